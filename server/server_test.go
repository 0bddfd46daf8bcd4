package server_test

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/skillsenselab/streamkit/errors"
	"github.com/skillsenselab/streamkit/logger"
	"github.com/skillsenselab/streamkit/security"
	"github.com/skillsenselab/streamkit/security/tlstest"
	"github.com/skillsenselab/streamkit/server"
)

// ----------------------------------------------------------------------------
// Config
// ----------------------------------------------------------------------------

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg server.Config
	cfg.ApplyDefaults()

	if cfg.Port != 8080 {
		t.Errorf("Port: got %d, want 8080", cfg.Port)
	}
	if cfg.ReadTimeout != 15 {
		t.Errorf("ReadTimeout: got %d, want 15", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 120 {
		t.Errorf("WriteTimeout: got %d, want 120", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60 {
		t.Errorf("IdleTimeout: got %d, want 60", cfg.IdleTimeout)
	}
	if cfg.MaxBodySize != "10MB" {
		t.Errorf("MaxBodySize: got %s, want 10MB", cfg.MaxBodySize)
	}
	if cfg.MaxConcurrentRuns != 16 {
		t.Errorf("MaxConcurrentRuns: got %d, want 16", cfg.MaxConcurrentRuns)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS origins: got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := server.Config{Port: 9999, WriteTimeout: 30, MaxConcurrentRuns: 2}
	cfg.ApplyDefaults()

	if cfg.Port != 9999 {
		t.Errorf("Port: got %d, want 9999", cfg.Port)
	}
	if cfg.WriteTimeout != 30 {
		t.Errorf("WriteTimeout: got %d, want 30", cfg.WriteTimeout)
	}
	if cfg.MaxConcurrentRuns != 2 {
		t.Errorf("MaxConcurrentRuns: got %d, want 2", cfg.MaxConcurrentRuns)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() server.Config {
		var cfg server.Config
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*server.Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *server.Config) {}, false},
		{"port too large", func(c *server.Config) { c.Port = 70000 }, true},
		{"negative port", func(c *server.Config) { c.Port = -1 }, true},
		{"negative read timeout", func(c *server.Config) { c.ReadTimeout = -1 }, true},
		{"zero concurrent runs", func(c *server.Config) { c.MaxConcurrentRuns = 0 }, true},
		{"negative rate limit", func(c *server.Config) { c.RateLimitPerMinute = -1 }, true},
		{"tls cert without key", func(c *server.Config) { c.TLS.CertFile = "cert.pem" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// HTTP helpers
// ----------------------------------------------------------------------------

func newTestServer(t *testing.T, cfg server.Config, rcfg server.RunnerConfig) *server.Server {
	t.Helper()
	cfg.ApplyDefaults()
	log := logger.NewDefault("test")
	srv := server.New(cfg, log)
	srv.Setup("streamkit", server.NewRunner(rcfg, log))
	return srv
}

func doRequest(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.GinEngine().ServeHTTP(w, req)
	return w
}

func postJSON(t *testing.T, srv *server.Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return doRequest(srv, req)
}

func decodeRun(t *testing.T, w *httptest.ResponseRecorder) server.RunResponse {
	t.Helper()
	var resp server.RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding run response: %v\nbody: %s", err, w.Body.String())
	}
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorBody {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v\nbody: %s", err, w.Body.String())
	}
	return resp.Error
}

// sseDataLines returns the JSON payload of every data line in an SSE body.
func sseDataLines(t *testing.T, body string) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			lines = append(lines, strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

// ----------------------------------------------------------------------------
// Run endpoint
// ----------------------------------------------------------------------------

func TestRunEndpoint_Chunk(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs", map[string]any{
		"action": "chunk",
		"items":  []any{1, 2, 3},
		"params": map[string]any{"chunkSize": 2},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeRun(t, w)
	if resp.Status != "completed" {
		t.Fatalf("run status: got %s", resp.Status)
	}
	if resp.RunID == "" {
		t.Error("expected a run ID")
	}
	if len(resp.Chunks) != 2 {
		t.Fatalf("chunks: got %d, want 2", len(resp.Chunks))
	}
	if !resp.Chunks[1].IsComplete {
		t.Error("last chunk should be complete")
	}
}

func TestRunEndpoint_Reduce(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs", map[string]any{
		"action": "reduce",
		"items":  []any{1, 2, 3},
		"params": map[string]any{"reducer": "sum"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeRun(t, w)
	if resp.Result != 6.0 {
		t.Fatalf("result: got %v, want 6", resp.Result)
	}
}

func TestRunEndpoint_UnknownAction(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs", map[string]any{"action": "explode"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	body := decodeError(t, w)
	if body.Code != apperrors.ErrCodeInvalidArgument {
		t.Fatalf("code: got %s", body.Code)
	}
}

func TestRunEndpoint_MalformedJSON(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := doRequest(srv, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	if decodeError(t, w).Code != apperrors.ErrCodeInvalidArgument {
		t.Fatal("expected INVALID_ARGUMENT")
	}
}

func TestRunEndpoint_FailedRunKeepsStatusOK(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs", map[string]any{
		"action": "map",
		"items":  []any{"not a number"},
		"params": map[string]any{"transform": "double"},
	})

	// The run started, so the outcome travels in the envelope.
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	resp := decodeRun(t, w)
	if resp.Status != "failed" {
		t.Fatalf("run status: got %s", resp.Status)
	}
	if resp.Error == nil || resp.Error.Code != apperrors.ErrCodeUserFunction {
		t.Fatalf("error: got %+v", resp.Error)
	}
}

func TestRunEndpoint_Analyze(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(path, []byte("alpha beta\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	roots, err := security.NewRoots(dir)
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{Roots: roots})

	w := postJSON(t, srv, "/v1/runs", map[string]any{
		"action": "analyze",
		"path":   path,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	resp := decodeRun(t, w)
	if resp.Stats == nil || resp.Stats.WordCount != 2 || resp.Stats.LineCount != 1 {
		t.Fatalf("stats: got %+v", resp.Stats)
	}
}

func TestRunEndpoint_PathSecurityIsForbidden(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs", map[string]any{
		"action": "analyze",
		"path":   "/etc/hosts",
	})

	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}
	if decodeError(t, w).Code != apperrors.ErrCodePathSecurity {
		t.Fatal("expected PATH_SECURITY")
	}
}

// ----------------------------------------------------------------------------
// Stream endpoint
// ----------------------------------------------------------------------------

func TestStreamEndpoint_EmitsChunksThenDone(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs/stream", map[string]any{
		"action": "chunk",
		"items":  []any{1, 2, 3},
		"params": map[string]any{"chunkSize": 1},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type: got %s", ct)
	}
	body := w.Body.String()
	if got := strings.Count(body, "event:chunk"); got != 3 {
		t.Fatalf("chunk events: got %d, want 3\nbody: %s", got, body)
	}
	if !strings.Contains(body, "event:done") {
		t.Fatalf("missing done event\nbody: %s", body)
	}

	data := sseDataLines(t, body)
	if len(data) != 4 {
		t.Fatalf("data lines: got %d, want 4", len(data))
	}
	var first server.ChunkPayload
	if err := json.Unmarshal([]byte(data[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first.Index != 0 || len(first.Data) != 1 || first.Data[0] != 1.0 {
		t.Fatalf("first chunk: got %+v", first)
	}
	var envelope server.RunResponse
	if err := json.Unmarshal([]byte(data[len(data)-1]), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Status != "completed" {
		t.Fatalf("envelope status: got %s", envelope.Status)
	}
	if envelope.Chunks != nil {
		t.Error("streamed envelope should not repeat the chunks")
	}
}

func TestStreamEndpoint_PreStreamFaultIsPlainJSON(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs/stream", map[string]any{
		"action": "map",
		"items":  []any{1},
		"params": map[string]any{"transform": "teleport"},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	if strings.Contains(w.Body.String(), "event:") {
		t.Fatal("fault before the stream must not be framed as SSE")
	}
	if decodeError(t, w).Code != apperrors.ErrCodeInvalidArgument {
		t.Fatal("expected INVALID_ARGUMENT")
	}
}

func TestStreamEndpoint_FailureEndsWithErrorEvent(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	w := postJSON(t, srv, "/v1/runs/stream", map[string]any{
		"action": "map",
		"items":  []any{"not a number"},
		"params": map[string]any{"transform": "double"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:error") {
		t.Fatalf("missing error event\nbody: %s", body)
	}

	data := sseDataLines(t, body)
	var envelope server.RunResponse
	if err := json.Unmarshal([]byte(data[len(data)-1]), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Status != "failed" {
		t.Fatalf("envelope status: got %s", envelope.Status)
	}
	if envelope.Error == nil || envelope.Error.Code != apperrors.ErrCodeUserFunction {
		t.Fatalf("envelope error: got %+v", envelope.Error)
	}
}

// ----------------------------------------------------------------------------
// Middleware wiring
// ----------------------------------------------------------------------------

func TestAuth_ProtectsRunEndpoints(t *testing.T) {
	const secret = "top-secret"
	srv := newTestServer(t, server.Config{JWTSecret: secret}, server.RunnerConfig{})

	runBody := map[string]any{"action": "chunk", "items": []any{1}}

	w := postJSON(t, srv, "/v1/runs", runBody)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("without token: got %d, want 401", w.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "tester"}).
		SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(runBody)
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if w := doRequest(srv, req); w.Code != http.StatusOK {
		t.Fatalf("with token: got %d, body %s", w.Code, w.Body.String())
	}

	// Health stays reachable without a token.
	health := httptest.NewRequest(http.MethodGet, "/health", nil)
	if w := doRequest(srv, health); w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
}

func TestRateLimit_Enforced(t *testing.T) {
	srv := newTestServer(t, server.Config{RateLimitPerMinute: 2}, server.RunnerConfig{})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		if w := doRequest(srv, req); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, w.Code)
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := doRequest(srv, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d, want 429", w.Code)
	}
	if decodeError(t, w).Code != apperrors.ErrCodeRateLimited {
		t.Fatal("expected RATE_LIMITED")
	}
}

// ----------------------------------------------------------------------------
// Default endpoints and lifecycle
// ----------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["service"] != "streamkit" {
		t.Fatalf("body: got %v", body)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["version"]; !ok {
		t.Fatalf("body missing version: %v", body)
	}
}

func TestInfoEndpoint(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != "streamkit" {
		t.Fatalf("service: got %v", body["service"])
	}
	if _, ok := body["uptime"]; !ok {
		t.Fatalf("body missing uptime: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, server.Config{}, server.RunnerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := doRequest(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if g, ok := body["goroutines"].(float64); !ok || g < 1 {
		t.Fatalf("goroutines: got %v", body["goroutines"])
	}
	if _, ok := body["memory"].(map[string]any); !ok {
		t.Fatalf("memory: got %v", body["memory"])
	}
}

func TestServer_Addr(t *testing.T) {
	cfg := server.Config{Host: "127.0.0.1", Port: 9090}
	cfg.ApplyDefaults()
	srv := server.New(cfg, logger.NewDefault("test"))

	if got := srv.Addr(); got != "127.0.0.1:9090" {
		t.Fatalf("addr: got %s", got)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := server.Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0 // keep the ephemeral port after defaults
	srv := server.New(cfg, logger.NewDefault("test"))

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestServer_ServesTLS(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)

	cfg := server.Config{Host: "127.0.0.1", Port: 0}
	cfg.ApplyDefaults()
	cfg.Port = 0 // keep the ephemeral port after defaults
	cfg.TLS = security.TLSConfig{CertFile: certs.CertFile, KeyFile: certs.KeyFile}

	log := logger.NewDefault("test")
	srv := server.New(cfg, log)
	srv.Setup("streamkit", server.NewRunner(server.RunnerConfig{}, log))

	ctx := context.Background()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = srv.Stop(ctx) }()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: certs.CertPool},
		},
	}
	resp, err := client.Get("https://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	if resp.TLS == nil {
		t.Fatal("expected a TLS connection")
	}
}

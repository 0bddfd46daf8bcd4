package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/skillsenselab/streamkit/logger"
	"github.com/skillsenselab/streamkit/server/endpoint"
	"github.com/skillsenselab/streamkit/server/middleware"
)

// Server is the HTTP tool boundary: a Gin engine mounted on a ServeMux.
// Without TLS the handler is wrapped with h2c so HTTP/2 clients can use the
// streaming endpoint over cleartext; with TLS, HTTP/2 negotiates via ALPN.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	mux        *http.ServeMux
	config     Config
	log        *logger.Logger
	boundAddr  string
}

// New creates a new Server. Handler-level middleware (request logging, CORS,
// body-size limit) is wired here because it must cover every mount; the Gin
// middleware stack is applied separately via ApplyMiddleware.
func New(cfg Config, log *logger.Logger) *Server {
	// Set Gin mode based on global zerolog level.
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	mux := http.NewServeMux()

	// Mount Gin as the fallback handler on the root mux.
	mux.Handle("/", engine)

	handler := middleware.Chain(
		middleware.Tracing(),
		middleware.RequestLogger(log),
		middleware.CORS(cfg.CORS),
		middleware.BodySizeLimit(cfg.MaxBodySize),
	)(mux)

	var httpHandler http.Handler = handler
	if !cfg.TLS.Enabled() {
		// Wrap with h2c for HTTP/2 cleartext. Under TLS the stdlib
		// negotiates HTTP/2 itself.
		h2s := &http2.Server{
			MaxConcurrentStreams: 250,
			IdleTimeout:          120 * time.Second,
		}
		httpHandler = h2c.NewHandler(handler, h2s)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      httpHandler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		engine:     engine,
		mux:        mux,
		config:     cfg,
		log:        log.WithComponent("server"),
	}
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.httpServer.Addr,
		"tls":  s.config.TLS.Enabled(),
	})

	serve := s.httpServer.Serve
	if s.config.TLS.Enabled() {
		tlsCfg, err := s.config.TLS.Build()
		if err != nil {
			return fmt.Errorf("server tls config: %w", err)
		}
		s.httpServer.TLSConfig = tlsCfg
		serve = func(l net.Listener) error {
			return s.httpServer.ServeTLS(l, "", "")
		}
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.boundAddr = listener.Addr().String()

	go func() {
		if err := serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("HTTP server started", map[string]interface{}{
		"addr": s.boundAddr,
	})
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", logger.ErrorFields("shutdown", err))
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Addr returns the bound listen address once Start has bound the listener,
// otherwise the configured one. The two differ when the configured port is 0.
func (s *Server) Addr() string {
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.httpServer.Addr
}

// ApplyMiddleware applies the Gin middleware stack: recovery, request-ID,
// and, when configured, rate limiting and JWT auth.
func (s *Server) ApplyMiddleware() {
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	if s.config.RateLimitPerMinute > 0 {
		s.engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: s.config.RateLimitPerMinute,
		}))
	}
	if s.config.JWTSecret != "" {
		s.engine.Use(middleware.Auth(middleware.AuthConfig{
			TokenValidator: middleware.HMACValidator(s.config.JWTSecret),
			SkipPaths:      []string{"/health", "/version"},
		}))
	}
}

// RegisterDefaultEndpoints registers the standard observability endpoints:
// /health, /version, /info, and /metrics.
func (s *Server) RegisterDefaultEndpoints(serviceName string) {
	s.engine.GET("/health", endpoint.Health(serviceName))
	s.engine.GET("/version", endpoint.Version())
	s.engine.GET("/info", endpoint.Info(serviceName))
	s.engine.GET("/metrics", endpoint.Metrics())
}

// RegisterRunEndpoints registers the run endpoints backed by the given runner.
func (s *Server) RegisterRunEndpoints(runner *Runner) {
	v1 := s.engine.Group("/v1")
	v1.POST("/runs", RunHandler(runner))
	v1.POST("/runs/stream", RunStreamHandler(runner))
}

// Setup applies the standard middleware stack and registers all endpoints.
func (s *Server) Setup(serviceName string, runner *Runner) {
	s.ApplyMiddleware()
	s.RegisterDefaultEndpoints(serviceName)
	s.RegisterRunEndpoints(runner)
}

// Package server is the HTTP tool boundary for streamkit pipeline runs.
// It serves a Gin engine over HTTP/2 (h2c for cleartext, ALPN under TLS)
// and dispatches run requests through a closed action set.
//
// # Endpoints
//
//   - POST /v1/runs: execute a run, respond with the full envelope
//   - POST /v1/runs/stream: execute a run, stream chunks as SSE events
//   - /health, /version, /info, /metrics: standard service endpoints
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - Tracing: one OpenTelemetry span per request
//   - Logging: request/response logging with duration tracking
//   - CORS: cross-origin resource sharing configuration
//   - RequestID: request ID generation and propagation
//   - RateLimit: per-client token bucket rate limiting
//   - BodySizeLimit: request body size limits
//   - Auth: JWT bearer token authentication
//
// Every started run produces a RunResponse envelope whose status is
// completed, cancelled, or failed; only pre-execution faults (validation,
// unknown names, path security, run limit) map to HTTP error codes.
package server

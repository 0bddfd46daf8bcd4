package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/streamkit/observability"
)

// Tracing returns middleware that wraps each request in a server span.
// Health-check paths are skipped to keep probe noise out of the trace
// backend. Without an installed tracer provider the spans are no-ops, so
// the middleware is safe to mount unconditionally.
func Tracing() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := observability.StartSpan(r.Context(), observability.SpanHTTPRequest,
				trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", sw.status))
			if id := sw.Header().Get("X-Request-Id"); id != "" {
				span.SetAttributes(attribute.String(observability.AttrRequestID, id))
			}
		})
	}
}

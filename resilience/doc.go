// Package resilience provides retry and concurrency-limiting primitives.
//
// Retry re-executes an operation with capped exponential backoff and jitter.
// The default policy retries only errors the streamkit taxonomy marks
// retryable (transient I/O); user function failures, permanent I/O, and
// cancellation surface immediately.
//
// Bulkhead caps how many operations run at once. The server uses it to
// bound concurrent pipeline runs; inside the pipeline, the parallel stage
// enforces the same ceiling with an errgroup limit.
//
// RateLimiter is a token bucket; the HTTP middleware keeps one per client
// to enforce the per-minute request budget.
//
//	cfg := resilience.DefaultRetryConfig()
//	data, err := resilience.Retry(ctx, cfg, func() ([]byte, error) {
//	    return readChunk(f)
//	})
package resilience

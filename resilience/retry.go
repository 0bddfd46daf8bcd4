package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// RetryConfig configures the retry combinator.
type RetryConfig struct {
	// MaxAttempts counts the first try, so 3 means at most two retries.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the grown backoff.
	MaxBackoff time.Duration
	// BackoffFactor multiplies the backoff after every retry.
	BackoffFactor float64
	// Jitter spreads each backoff by +/- this fraction (0 to 1).
	Jitter float64
	// RetryIf decides whether an error is worth another attempt.
	// Nil means DefaultRetryIf: taxonomy-retryable errors only.
	RetryIf func(error) bool
	// OnRetry is invoked before each retry sleep.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryConfig returns the standard tuning: 3 attempts, 100ms initial
// backoff doubling up to 10s, 10% jitter, taxonomy-based retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryIf,
	}
}

// withDefaults fills zero fields from DefaultRetryConfig so a partial or
// zero RetryConfig still behaves sanely.
func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = def.RetryIf
	}
	return cfg
}

// DefaultRetryIf retries only errors classified retryable by the taxonomy
// (TRANSIENT_IO). Cancellation and unclassified errors surface immediately.
func DefaultRetryIf(err error) bool {
	return apperrors.IsRetryable(err) && !apperrors.IsCancelled(err)
}

// RetryAnyIf retries everything except cancellation. For call sites dealing
// with raw errors that have not passed through the taxonomy.
func RetryAnyIf(err error) bool {
	return !apperrors.IsCancelled(err)
}

// Retry executes fn with retry logic. It returns fn's result, or the last
// error verbatim once attempts are exhausted or the error is not retryable.
// Context cancellation is checked before every attempt and during backoff
// sleeps.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T

	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts {
			return zero, lastErr
		}

		backoff := calculateBackoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		if err := sleepContext(ctx, backoff); err != nil {
			return zero, err
		}
	}
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := Retry(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// calculateBackoff computes initial * factor^(attempt-1), spreads it by
// +/- jitter, and clamps the result to (0, MaxBackoff].
func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))

	if cfg.Jitter > 0 {
		spread := backoff * cfg.Jitter
		backoff += (rand.Float64()*2 - 1) * spread
	}

	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if backoff < 0 {
		backoff = float64(cfg.InitialBackoff)
	}

	return time.Duration(backoff)
}

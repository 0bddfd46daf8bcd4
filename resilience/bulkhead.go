package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrBulkheadFull is returned when every slot is taken and MaxWait is zero.
var ErrBulkheadFull = errors.New("bulkhead is full")

// ErrBulkheadTimeout is returned when no slot frees up within MaxWait.
var ErrBulkheadTimeout = errors.New("bulkhead wait timeout")

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name tags the bulkhead in logs and metrics.
	Name string
	// MaxConcurrent caps simultaneous calls. Non-positive falls back to 10.
	MaxConcurrent int
	// MaxWait bounds how long Execute blocks for a slot. Zero fails
	// immediately when saturated.
	MaxWait time.Duration
}

// Bulkhead limits how many calls may run concurrently. The limit is a hard
// ceiling: a slot must be acquired before fn starts and is released when fn
// returns, so at no instant do more than MaxConcurrent calls run.
type Bulkhead struct {
	config BulkheadConfig
	sem    chan struct{}
}

// NewBulkhead creates a bulkhead with MaxConcurrent slots.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	return &Bulkhead{
		config: config,
		sem:    make(chan struct{}, config.MaxConcurrent),
	}
}

// Execute runs fn once a slot is free. It returns ErrBulkheadFull when
// saturated with no wait configured, ErrBulkheadTimeout when the wait
// expires, or the context error on cancellation. fn's own error passes
// through unchanged.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()

	return fn()
}

// ExecuteWithResult runs a function that returns a value within the bulkhead.
func ExecuteWithResult[T any](ctx context.Context, b *Bulkhead, fn func() (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// acquire tries to acquire a slot in the bulkhead. The immediate attempt
// comes first so a free slot wins over an already-cancelled context; the
// caller then reports cancellation from inside the run rather than flaking
// between the two.
func (b *Bulkhead) acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	default:
	}

	if b.config.MaxWait <= 0 {
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bulkhead) release() {
	<-b.sem
}

// Available reports how many slots are free right now.
func (b *Bulkhead) Available() int {
	return cap(b.sem) - len(b.sem)
}

// InUse reports how many slots are occupied right now.
func (b *Bulkhead) InUse() int {
	return len(b.sem)
}

// MaxConcurrent reports the slot ceiling.
func (b *Bulkhead) MaxConcurrent() int {
	return cap(b.sem)
}

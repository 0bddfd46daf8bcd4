package stream

import (
	"context"
	"time"
)

// Throttle paces the stream with a fixed delay: each pull that follows a
// non-final chunk waits delay before reaching the source. The completing
// chunk is never followed by a wait, so n chunks incur n-1 delays. A zero
// or negative delay disables pacing. The wait is context-aware;
// cancellation during it surfaces immediately.
func Throttle[T any](s *Stream[T], delay time.Duration) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[Chunk[T]] {
			return &throttleIter[T]{source: s.create(ctx), delay: delay}
		},
	}
}

type throttleIter[T any] struct {
	source       Iterator[Chunk[T]]
	delay        time.Duration
	pendingDelay bool
}

func (it *throttleIter[T]) Next(ctx context.Context) (Chunk[T], bool, error) {
	if it.pendingDelay && it.delay > 0 {
		timer := time.NewTimer(it.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Chunk[T]{}, false, ctx.Err()
		case <-timer.C:
		}
	}

	chunk, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return Chunk[T]{}, false, err
	}
	it.pendingDelay = !chunk.IsComplete
	return chunk, true, nil
}

func (it *throttleIter[T]) Close() error { return it.source.Close() }

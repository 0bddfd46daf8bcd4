package stream

import (
	"context"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// wrapUserErr classifies an error returned by a caller-supplied function.
// Taxonomy errors pass through, so a transform that does I/O may report
// TRANSIENT_IO and stay retryable; anything else is a user function
// failure, which is fatal and never retried.
func wrapUserErr(stage string, err error) error {
	if apperrors.IsAppError(err) || apperrors.IsCancelled(err) {
		return err
	}
	return apperrors.UserFunction(stage, err)
}

// Map applies fn to every item and yields chunks of the transformed items.
// Index, IsComplete, byte accounting, and metadata pass through unchanged.
// An fn error stops the stream; see wrapUserErr for how it is classified.
func Map[I, O any](s *Stream[I], fn func(context.Context, I) (O, error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[Chunk[O]] {
			return &mapIter[I, O]{source: s.create(ctx), fn: fn}
		},
	}
}

type mapIter[I, O any] struct {
	source Iterator[Chunk[I]]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (Chunk[O], bool, error) {
	in, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return Chunk[O]{}, false, err
	}
	out := make([]O, len(in.Data))
	for i, item := range in.Data {
		mapped, err := it.fn(ctx, item)
		if err != nil {
			return Chunk[O]{}, false, wrapUserErr("map", err)
		}
		out[i] = mapped
	}
	return Chunk[O]{
		Data:           out,
		Index:          in.Index,
		IsComplete:     in.IsComplete,
		Timestamp:      in.Timestamp,
		BytesProcessed: in.BytesProcessed,
		Metadata:       in.Metadata,
	}, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

// Filter keeps only items satisfying pred. Every chunk is passed on, even
// when all of its items are rejected, and each carries the fraction kept
// under Metadata[MetaFilterRatio] (0 for a chunk that arrived empty).
func Filter[T any](s *Stream[T], pred func(T) (bool, error)) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[Chunk[T]] {
			return &filterIter[T]{source: s.create(ctx), pred: pred}
		},
	}
}

type filterIter[T any] struct {
	source Iterator[Chunk[T]]
	pred   func(T) (bool, error)
}

func (it *filterIter[T]) Next(ctx context.Context) (Chunk[T], bool, error) {
	in, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return Chunk[T]{}, false, err
	}
	kept := make([]T, 0, len(in.Data))
	for _, item := range in.Data {
		keep, err := it.pred(item)
		if err != nil {
			return Chunk[T]{}, false, wrapUserErr("filter", err)
		}
		if keep {
			kept = append(kept, item)
		}
	}
	ratio := 0.0
	if len(in.Data) > 0 {
		ratio = float64(len(kept)) / float64(len(in.Data))
	}
	out := in
	out.Data = kept
	out.Metadata = withMeta(in.Metadata, MetaFilterRatio, ratio)
	return out, true, nil
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

// Reduce folds every item of the stream into a single value and is a
// terminal: it consumes the stream instead of returning one. fn sees items
// in order across chunk boundaries. Cancellation is checked once per chunk,
// and a cancelled fold returns the context error, never a partial value.
func Reduce[T, R any](ctx context.Context, s *Stream[T], init R, fn func(R, T) (R, error)) (R, error) {
	var zero R
	iter := s.create(ctx)
	defer iter.Close()

	acc := init
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		chunk, ok, err := iter.Next(ctx)
		if err != nil {
			return zero, err
		}
		if !ok {
			return acc, nil
		}
		for _, item := range chunk.Data {
			next, err := fn(acc, item)
			if err != nil {
				return zero, wrapUserErr("reduce", err)
			}
			acc = next
		}
	}
}

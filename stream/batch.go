package stream

import (
	"context"
	"time"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// Batch regroups items across chunk boundaries into groups of batchSize.
// Each output chunk carries exactly one group as its sole Data element, so
// downstream stages see a uniform list-of-batches shape. The final group
// may be smaller and rides on the completing chunk. batchSize must be
// positive; violations surface as INVALID_ARGUMENT on the first pull.
func Batch[T any](s *Stream[T], batchSize int) *Stream[[]T] {
	return &Stream[[]T]{
		create: func(ctx context.Context) Iterator[Chunk[[]T]] {
			if batchSize <= 0 {
				return &errIter[Chunk[[]T]]{err: apperrors.InvalidArgument("batchSize", "must be positive")}
			}
			return &batchIter[T]{source: s.create(ctx), size: batchSize}
		},
	}
}

type batchIter[T any] struct {
	source      Iterator[Chunk[T]]
	size        int
	pending     []T
	index       int
	bytes       int64
	srcComplete bool // saw the source's completing chunk
	srcDone     bool // source exhausted without a completion flag
	done        bool
}

func (it *batchIter[T]) Next(ctx context.Context) (Chunk[[]T], bool, error) {
	if it.done {
		return Chunk[[]T]{}, false, nil
	}

	for len(it.pending) < it.size && !it.srcComplete && !it.srcDone {
		chunk, ok, err := it.source.Next(ctx)
		if err != nil {
			return Chunk[[]T]{}, false, err
		}
		if !ok {
			it.srcDone = true
			break
		}
		it.pending = append(it.pending, chunk.Data...)
		it.bytes = chunk.BytesProcessed
		if chunk.IsComplete {
			it.srcComplete = true
		}
	}

	if len(it.pending) == 0 {
		it.done = true
		return Chunk[[]T]{}, false, nil
	}

	n := it.size
	if n > len(it.pending) {
		n = len(it.pending)
	}
	group := make([]T, n)
	copy(group, it.pending[:n])
	it.pending = it.pending[n:]

	complete := (it.srcComplete || it.srcDone) && len(it.pending) == 0
	if complete {
		it.done = true
	}

	out := Chunk[[]T]{
		Data:           [][]T{group},
		Index:          it.index,
		IsComplete:     complete,
		Timestamp:      time.Now(),
		BytesProcessed: it.bytes,
		Metadata:       withMeta(nil, MetaBatchSize, it.size),
	}
	it.index++
	return out, true, nil
}

func (it *batchIter[T]) Close() error { return it.source.Close() }

// BatchAny regroups an untyped stream, keeping the element type any: each
// output chunk's Data holds the groups themselves. Dynamically composed
// pipelines use it where Batch's type change would break the stage chain.
func BatchAny(s *Stream[any], batchSize int) *Stream[any] {
	grouped := Batch(s, batchSize)
	return Map(grouped, func(_ context.Context, group []any) (any, error) {
		return group, nil
	})
}

package stream

import (
	"context"
	"time"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// BufferCount accumulates items until at least bufferSize are pending, then
// emits them all as one chunk. Arrival and emission are decoupled: an
// upstream chunk that overshoots the threshold flushes whole rather than
// being split, and the remainder flushes when the source completes. Every
// item is emitted exactly once, so the emitted sizes sum to the source
// size. Metadata[MetaFlush] records the trigger, "size" or "final".
func BufferCount[T any](s *Stream[T], bufferSize int) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[Chunk[T]] {
			if bufferSize <= 0 {
				return &errIter[Chunk[T]]{err: apperrors.InvalidArgument("bufferSize", "must be positive")}
			}
			return &bufferIter[T]{source: s.create(ctx), size: bufferSize}
		},
	}
}

type bufferIter[T any] struct {
	source      Iterator[Chunk[T]]
	size        int
	pending     []T
	index       int
	bytes       int64
	srcComplete bool
	srcDone     bool
	done        bool
}

func (it *bufferIter[T]) Next(ctx context.Context) (Chunk[T], bool, error) {
	if it.done {
		return Chunk[T]{}, false, nil
	}

	for len(it.pending) < it.size && !it.srcComplete && !it.srcDone {
		chunk, ok, err := it.source.Next(ctx)
		if err != nil {
			return Chunk[T]{}, false, err
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
		return Chunk[T]{}, false, nil
	}

	data := it.pending
	it.pending = nil

	complete := it.srcComplete || it.srcDone
	flush := "size"
	if complete {
		flush = "final"
		it.done = true
	}

	out := Chunk[T]{
		Data:           data,
		Index:          it.index,
		IsComplete:     complete,
		Timestamp:      time.Now(),
		BytesProcessed: it.bytes,
		Metadata:       withMeta(nil, MetaFlush, flush),
	}
	it.index++
	return out, true, nil
}

func (it *bufferIter[T]) Close() error { return it.source.Close() }

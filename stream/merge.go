package stream

import (
	"context"
	"time"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// Merge interleaves chunks from several streams in deterministic round-robin
// order, renumbering output chunks with one shared counter. An input leaves
// the rotation once it finishes, either by marking a chunk complete or by
// exhausting, and the remaining inputs keep alternating. A merged chunk
// keeps IsComplete only when it came from the last input still active, so
// the combined stream signals completion at most once, on its true final
// chunk. An input that ends without ever marking completion (nothing in
// this package produces one, but the contract allows it) can leave the
// final merged chunk unmarked; consumers must treat exhaustion, not the
// flag, as the end of the stream. Zero inputs surface INVALID_ARGUMENT on
// the first pull.
func Merge[T any](streams ...*Stream[T]) *Stream[T] {
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[Chunk[T]] {
			if len(streams) == 0 {
				return &errIter[Chunk[T]]{err: apperrors.InvalidArgument("sources", "merge requires at least one input stream")}
			}
			active := make([]*mergeSource[T], len(streams))
			all := make([]Iterator[Chunk[T]], len(streams))
			for i, s := range streams {
				iter := s.create(ctx)
				active[i] = &mergeSource[T]{iter: iter}
				all[i] = iter
			}
			return &mergeIter[T]{active: active, all: all}
		},
	}
}

type mergeSource[T any] struct {
	iter      Iterator[Chunk[T]]
	lastBytes int64
}

type mergeIter[T any] struct {
	active []*mergeSource[T]
	all    []Iterator[Chunk[T]]
	pos    int
	index  int
	bytes  int64
}

func (it *mergeIter[T]) Next(ctx context.Context) (Chunk[T], bool, error) {
	if err := ctx.Err(); err != nil {
		return Chunk[T]{}, false, err
	}

	for len(it.active) > 0 {
		if it.pos >= len(it.active) {
			it.pos = 0
		}
		src := it.active[it.pos]

		chunk, ok, err := src.iter.Next(ctx)
		if err != nil {
			return Chunk[T]{}, false, err
		}
		if !ok {
			it.retire()
			continue
		}

		it.bytes += chunk.BytesProcessed - src.lastBytes
		src.lastBytes = chunk.BytesProcessed

		if chunk.IsComplete {
			// A complete chunk is the input's last, so the input is
			// finished; retiring now lets the merge's true final emission
			// carry the completion flag.
			it.retire()
		} else {
			it.pos++
		}

		out := Chunk[T]{
			Data:           chunk.Data,
			Index:          it.index,
			IsComplete:     chunk.IsComplete && len(it.active) == 0,
			Timestamp:      time.Now(),
			BytesProcessed: it.bytes,
			Metadata:       chunk.Metadata,
		}
		it.index++
		return out, true, nil
	}
	return Chunk[T]{}, false, nil
}

// retire removes the source at the rotation cursor; the removal shift means
// the cursor already points at the next source.
func (it *mergeIter[T]) retire() {
	it.active = append(it.active[:it.pos], it.active[it.pos+1:]...)
}

func (it *mergeIter[T]) Close() error {
	var firstErr error
	for _, iter := range it.all {
		if err := iter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

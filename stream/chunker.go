package stream

import (
	"context"
	"time"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// ChunkerOption configures slice chunking.
type ChunkerOption[T any] func(*chunkerOptions[T])

type chunkerOptions[T any] struct {
	sizer func(T) int
}

// WithSizer supplies a per-item byte size estimator so slice sources can
// fill BytesProcessed. Without it the counter stays 0; file sources track
// real bytes regardless.
func WithSizer[T any](fn func(T) int) ChunkerOption[T] {
	return func(o *chunkerOptions[T]) { o.sizer = fn }
}

// FromSlice splits items into chunks of chunkSize and returns the lazy
// chunk stream. chunkSize must be positive; a violation surfaces as
// INVALID_ARGUMENT on the first pull. An empty source yields no chunks at
// all. A non-empty source marks exactly one chunk complete: the last one,
// even when the items divide evenly.
func FromSlice[T any](items []T, chunkSize int, opts ...ChunkerOption[T]) *Stream[T] {
	var o chunkerOptions[T]
	for _, opt := range opts {
		opt(&o)
	}
	return &Stream[T]{
		create: func(_ context.Context) Iterator[Chunk[T]] {
			if chunkSize <= 0 {
				return &errIter[Chunk[T]]{err: apperrors.InvalidArgument("chunkSize", "must be positive")}
			}
			return &sliceChunkIter[T]{items: items, chunkSize: chunkSize, sizer: o.sizer}
		},
	}
}

type sliceChunkIter[T any] struct {
	items     []T
	chunkSize int
	sizer     func(T) int
	offset    int
	index     int
	bytes     int64
}

func (it *sliceChunkIter[T]) Next(ctx context.Context) (Chunk[T], bool, error) {
	if err := ctx.Err(); err != nil {
		return Chunk[T]{}, false, err
	}
	if it.offset >= len(it.items) {
		return Chunk[T]{}, false, nil
	}

	end := it.offset + it.chunkSize
	if end > len(it.items) {
		end = len(it.items)
	}
	// Full slice expression: appends by a consumer never reach our backing array.
	data := it.items[it.offset:end:end]
	if it.sizer != nil {
		for _, item := range data {
			it.bytes += int64(it.sizer(item))
		}
	}

	chunk := Chunk[T]{
		Data:           data,
		Index:          it.index,
		IsComplete:     end == len(it.items),
		Timestamp:      time.Now(),
		BytesProcessed: it.bytes,
	}
	it.offset = end
	it.index++
	return chunk, true, nil
}

func (it *sliceChunkIter[T]) Close() error { return nil }

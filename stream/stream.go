package stream

import (
	"context"
	"time"
)

// Metadata keys attached to chunks by stages.
const (
	// MetaFilterRatio is the fraction of items a Filter stage kept,
	// per chunk. 0 for a chunk that arrived empty.
	MetaFilterRatio = "filterRatio"
	// MetaBatchSize is the configured group size of a Batch stage.
	MetaBatchSize = "batchSize"
	// MetaFlush records what triggered a BufferCount emission:
	// "size" or "final".
	MetaFlush = "flush"
)

// Chunk is the unit every stage consumes and produces: a slice of items
// plus bookkeeping about where the slice sits in its stream.
type Chunk[T any] struct {
	// Data holds the items in this chunk.
	Data []T
	// Index is the 0-based position of the chunk in its stream.
	Index int
	// IsComplete marks the final chunk. A non-empty source emits exactly
	// one complete chunk; stages that regroup preserve the property.
	IsComplete bool
	// Timestamp records when the chunk was produced.
	Timestamp time.Time
	// BytesProcessed is the cumulative byte count through this chunk.
	// Zero unless the source tracks sizes: file sources always do, slice
	// sources only with WithSizer.
	BytesProcessed int64
	// Metadata carries per-chunk diagnostics attached by stages.
	// Nil until a stage attaches something.
	Metadata map[string]any
}

// Len returns the number of items in the chunk.
func (c Chunk[T]) Len() int { return len(c.Data) }

// withMeta returns a fresh metadata map with key set. The input map is
// never mutated; chunks can be shared across stages.
func withMeta(meta map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = value
	return out
}

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Stream represents a lazy, pull-based sequence of chunks.
// No work happens until chunks are pulled via a terminal.
type Stream[T any] struct {
	create func(ctx context.Context) Iterator[Chunk[T]]
}

// Runnable is a fully-configured pipeline ready to execute.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run executes the pipeline until completion or context cancellation.
func (r *Runnable) Run(ctx context.Context) error {
	return r.run(ctx)
}

// --- Constructors ---

// From creates a stream from an existing chunk iterator.
func From[T any](iter Iterator[Chunk[T]]) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[Chunk[T]] {
			return iter
		},
	}
}

// FromFunc creates a stream from a factory that produces a chunk iterator.
// The factory runs once per terminal, when pulling starts.
func FromFunc[T any](fn func(ctx context.Context) Iterator[Chunk[T]]) *Stream[T] {
	return &Stream[T]{create: fn}
}

// Fail returns a stream that surfaces err on its first pull. Source
// constructors in other packages use it to defer argument validation to
// pull time, the way the in-package constructors do.
func Fail[T any](err error) *Stream[T] {
	return &Stream[T]{
		create: func(_ context.Context) Iterator[Chunk[T]] {
			return &errIter[Chunk[T]]{err: err}
		},
	}
}

// --- Terminals ---

// Drain creates a Runnable that pulls all chunks and sends each to sink.
func Drain[T any](s *Stream[T], sink func(context.Context, Chunk[T]) error) *Runnable {
	return &Runnable{
		run: func(ctx context.Context) error {
			iter := s.create(ctx)
			defer iter.Close()
			for {
				chunk, ok, err := iter.Next(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				if err := sink(ctx, chunk); err != nil {
					return err
				}
			}
		},
	}
}

// Collect runs the stream and returns all chunks as a slice.
// On error the chunks pulled so far are returned alongside it.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]Chunk[T], error) {
	iter := s.create(ctx)
	defer iter.Close()
	var chunks []Chunk[T]
	for {
		chunk, ok, err := iter.Next(ctx)
		if err != nil {
			return chunks, err
		}
		if !ok {
			return chunks, nil
		}
		chunks = append(chunks, chunk)
	}
}

// CollectItems runs the stream and returns every item, flattened across
// chunk boundaries in order.
func CollectItems[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	iter := s.create(ctx)
	defer iter.Close()
	var items []T
	for {
		chunk, ok, err := iter.Next(ctx)
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, chunk.Data...)
	}
}

// ForEach pulls all chunks and calls fn for each. Convenience wrapper around Drain.
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(context.Context, Chunk[T]) error) error {
	return Drain(s, fn).Run(ctx)
}

// Iter returns the raw chunk iterator for this stream. The caller must Close() it.
func (s *Stream[T]) Iter(ctx context.Context) Iterator[Chunk[T]] {
	return s.create(ctx)
}

// --- Internal iterators ---

// errIter surfaces a construction-time fault on the first pull, keeping
// stream constructors lazy even when their arguments are invalid.
type errIter[T any] struct {
	err error
}

func (it *errIter[T]) Next(_ context.Context) (T, bool, error) {
	var zero T
	return zero, false, it.err
}

func (it *errIter[T]) Close() error { return nil }

package stream

import (
	"context"
	"time"
)

// Stage is a composable transformation from one chunk stream to another of
// the same element type. Stages are values, so pipelines can be assembled
// at runtime from configuration or request parameters.
type Stage[T any] func(*Stream[T]) *Stream[T]

// Compose threads src through stages in order and returns the composed
// stream. Zero stages returns the source unchanged. Composition is as lazy
// as its parts: nothing executes until a terminal pulls, a single context
// reaches every stage, and the first error from any stage surfaces through
// the terminal unchanged.
func Compose[T any](src *Stream[T], stages ...Stage[T]) *Stream[T] {
	out := src
	for _, stage := range stages {
		out = stage(out)
	}
	return out
}

// MapStage returns a Stage that applies fn to every item.
func MapStage[T any](fn func(context.Context, T) (T, error)) Stage[T] {
	return func(s *Stream[T]) *Stream[T] { return Map(s, fn) }
}

// FilterStage returns a Stage that keeps items satisfying pred.
func FilterStage[T any](pred func(T) (bool, error)) Stage[T] {
	return func(s *Stream[T]) *Stream[T] { return Filter(s, pred) }
}

// ThrottleStage returns a Stage that paces chunks by delay.
func ThrottleStage[T any](delay time.Duration) Stage[T] {
	return func(s *Stream[T]) *Stream[T] { return Throttle(s, delay) }
}

// BufferStage returns a Stage that accumulates items into larger chunks.
func BufferStage[T any](bufferSize int) Stage[T] {
	return func(s *Stream[T]) *Stream[T] { return BufferCount(s, bufferSize) }
}

// ParallelMapStage returns a Stage that transforms items concurrently under
// cfg's parallelism ceiling.
func ParallelMapStage[T any](cfg ParallelMapConfig, fn func(context.Context, T) (T, error)) Stage[T] {
	return func(s *Stream[T]) *Stream[T] { return ParallelMap(s, cfg, fn) }
}

// BatchStage returns a Stage that regroups an untyped stream into groups of
// batchSize, each group an element of the output. Only untyped streams can
// batch in place: batching changes the element type, which a Stage cannot.
func BatchStage(batchSize int) Stage[any] {
	return func(s *Stream[any]) *Stream[any] { return BatchAny(s, batchSize) }
}

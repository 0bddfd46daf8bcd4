// Package stream provides a lazy, pull-based pipeline over chunked data.
//
// A Stream[T] is a sequence of Chunk[T] values: each chunk carries a slice
// of items plus its position, a completion flag, and byte accounting. No
// work happens until chunks are pulled via Collect, Drain, ForEach, or
// Reduce. Each stage pulls from the previous stage on demand, providing
// natural backpressure without explicit flow control.
//
// Cancellation rides on context.Context: iterators check the context
// between chunks and stop with the context's error, so a cancelled run
// always ends in a visible CANCELLED outcome, never a silently truncated
// result.
//
// # Stages
//
// Synchronous (single-goroutine):
//
//   - Map: transform each item, chunk shape preserved
//   - Filter: keep items matching a predicate, records the kept ratio
//   - Batch: regroup items across chunk boundaries into fixed-size groups
//   - BufferCount: accumulate items and emit fewer, larger chunks
//   - Throttle: pace emission with a fixed delay between chunks
//   - Merge: interleave several streams round-robin under one index
//
// Concurrent:
//
//   - ParallelMap: transform sub-batches concurrently under a hard
//     parallelism ceiling, retrying transient failures, order preserved
//
// Reduce folds the whole stream into one value and is a terminal, not a
// stage.
//
// # Usage
//
//	src := stream.FromSlice([]int{1, 2, 3, 4, 5}, 2)
//	doubled := stream.Map(src, func(_ context.Context, n int) (int, error) {
//	    return n * 2, nil
//	})
//	evens := stream.Filter(doubled, func(n int) (bool, error) {
//	    return n%2 == 0, nil
//	})
//	chunks, err := stream.Collect(ctx, evens)
//
// Stages compose into reusable pipelines:
//
//	p := stream.Compose(src,
//	    stream.MapStage(double),
//	    stream.FilterStage(even),
//	    stream.ThrottleStage[int](50*time.Millisecond),
//	)
package stream

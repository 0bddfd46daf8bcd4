package stream

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/skillsenselab/streamkit/errors"
	"github.com/skillsenselab/streamkit/resilience"
)

// ParallelMapConfig configures ParallelMap.
type ParallelMapConfig struct {
	// ChunkSize is the number of items per sub-batch.
	ChunkSize int
	// Parallelism is the hard ceiling on concurrently running sub-batches.
	Parallelism int
	// Retry governs per-sub-batch retries. The zero value gets the retry
	// defaults: 3 attempts, exponential backoff with jitter, and the
	// transient-only policy.
	Retry resilience.RetryConfig
}

// ParallelMap transforms items concurrently while preserving their order.
// It gathers windows of ChunkSize*Parallelism items across upstream chunk
// boundaries, splits each window into sub-batches of at most ChunkSize,
// and runs the sub-batches with at most Parallelism in flight at any
// moment: a slot frees only when its sub-batch returns. A sub-batch that
// fails with a retryable error is retried whole, with capped exponential
// backoff and jitter; a user function failure is fatal on first occurrence
// and cancels the window. Results reassemble in window order, one output
// chunk per window.
func ParallelMap[I, O any](s *Stream[I], cfg ParallelMapConfig, fn func(context.Context, I) (O, error)) *Stream[O] {
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[Chunk[O]] {
			if cfg.ChunkSize <= 0 {
				return &errIter[Chunk[O]]{err: apperrors.InvalidArgument("chunkSize", "must be positive")}
			}
			if cfg.Parallelism <= 0 {
				return &errIter[Chunk[O]]{err: apperrors.InvalidArgument("parallelism", "must be positive")}
			}
			return &parallelIter[I, O]{source: s.create(ctx), fn: fn, cfg: cfg}
		},
	}
}

type parallelIter[I, O any] struct {
	source      Iterator[Chunk[I]]
	fn          func(context.Context, I) (O, error)
	cfg         ParallelMapConfig
	pending     []I
	index       int
	bytes       int64
	srcComplete bool
	srcDone     bool
	done        bool
}

func (it *parallelIter[I, O]) Next(ctx context.Context) (Chunk[O], bool, error) {
	if it.done {
		return Chunk[O]{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return Chunk[O]{}, false, err
	}

	window := it.cfg.ChunkSize * it.cfg.Parallelism
	for len(it.pending) < window && !it.srcComplete && !it.srcDone {
		chunk, ok, err := it.source.Next(ctx)
		if err != nil {
			return Chunk[O]{}, false, err
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
		return Chunk[O]{}, false, nil
	}

	n := window
	if n > len(it.pending) {
		n = len(it.pending)
	}
	items := it.pending[:n]
	results := make([]O, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(it.cfg.Parallelism)
	for start := 0; start < n; start += it.cfg.ChunkSize {
		end := start + it.cfg.ChunkSize
		if end > n {
			end = n
		}
		sub := items[start:end]
		out := results[start:end]
		g.Go(func() error {
			processed, err := resilience.Retry(gctx, it.cfg.Retry, func() ([]O, error) {
				batch := make([]O, len(sub))
				for i, item := range sub {
					if err := gctx.Err(); err != nil {
						return nil, err
					}
					o, err := it.fn(gctx, item)
					if err != nil {
						return nil, wrapUserErr("parallelMap", err)
					}
					batch[i] = o
				}
				return batch, nil
			})
			if err != nil {
				return err
			}
			copy(out, processed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Chunk[O]{}, false, err
	}

	it.pending = it.pending[n:]
	complete := (it.srcComplete || it.srcDone) && len(it.pending) == 0
	if complete {
		it.done = true
	}

	chunk := Chunk[O]{
		Data:           results,
		Index:          it.index,
		IsComplete:     complete,
		Timestamp:      time.Now(),
		BytesProcessed: it.bytes,
	}
	it.index++
	return chunk, true, nil
}

func (it *parallelIter[I, O]) Close() error { return it.source.Close() }

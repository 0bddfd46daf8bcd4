package bytestream

import (
	"context"
	"io"
	"os"
	"time"

	apperrors "github.com/skillsenselab/streamkit/errors"
	"github.com/skillsenselab/streamkit/resilience"
	"github.com/skillsenselab/streamkit/stream"
)

// Options configures a byte-stream pass.
type Options struct {
	// ChunkSize is the read size in bytes. 0 means DefaultChunkSize;
	// negative values are rejected.
	ChunkSize int
	// Filter, when set, decides per chunk whether its bytes continue to the
	// transform and the output. Rejected chunks still count toward Stats.
	// Analyze ignores it.
	Filter func([]byte) (bool, error)
	// Transform, when set, rewrites chunk bytes before they are written.
	// Analyze ignores it.
	Transform func([]byte) ([]byte, error)
	// Retry governs transient read and write retries. The zero value gets
	// the resilience defaults.
	Retry resilience.RetryConfig
}

func (o Options) chunkSize() (int, error) {
	if o.ChunkSize < 0 {
		return 0, apperrors.InvalidArgument("chunkSize", "must be positive")
	}
	if o.ChunkSize == 0 {
		return DefaultChunkSize, nil
	}
	return o.ChunkSize, nil
}

// Analyze reads path chunk by chunk and returns its Stats without producing
// any output.
func Analyze(ctx context.Context, path string, opts Options) (*Stats, error) {
	chunkSize, err := opts.chunkSize()
	if err != nil {
		return nil, err
	}
	src := FromFile(path, chunkSize, opts.Retry)
	stats, err := consume(ctx, src, nil, nil, nil)
	if err != nil {
		return nil, finishErr("analyze", err)
	}
	return stats, nil
}

// ProcessToFile streams inPath through the optional filter and transform
// into outPath and returns Stats describing the input. The filter runs
// before the transform; a rejected chunk writes nothing but still counts.
// Cancellation mid-stream leaves the partial output file in place.
func ProcessToFile(ctx context.Context, inPath, outPath string, opts Options) (*Stats, error) {
	return pipeFile(ctx, "process", inPath, outPath, opts)
}

// CopyToFile streams inPath into outPath unchanged and returns Stats.
// Equivalent to ProcessToFile with no filter and no transform.
func CopyToFile(ctx context.Context, inPath, outPath string, opts Options) (*Stats, error) {
	opts.Filter = nil
	opts.Transform = nil
	return pipeFile(ctx, "copy", inPath, outPath, opts)
}

func pipeFile(ctx context.Context, op, inPath, outPath string, opts Options) (*Stats, error) {
	chunkSize, err := opts.chunkSize()
	if err != nil {
		return nil, err
	}

	// The input opens first so a bad input path cannot clobber the output.
	in, err := os.Open(inPath)
	if err != nil {
		return nil, apperrors.ClassifyIO("open", inPath, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return nil, apperrors.ClassifyIO("create", outPath, err)
	}

	src := FromReader(inPath, in, chunkSize, opts.Retry)
	stats, runErr := consume(ctx, src, opts.Filter, opts.Transform, func(p []byte) error {
		return writeAll(ctx, out, outPath, p, opts.Retry)
	})
	closeErr := out.Close()
	if runErr != nil {
		return nil, finishErr(op, runErr)
	}
	if closeErr != nil {
		return nil, apperrors.ClassifyIO("close", outPath, closeErr)
	}
	return stats, nil
}

// consume drains src, accumulating Stats over every chunk read. When sink is
// set, each chunk additionally passes filter, then transform, then sink.
func consume(
	ctx context.Context,
	src *stream.Stream[byte],
	filter func([]byte) (bool, error),
	transform func([]byte) ([]byte, error),
	sink func([]byte) error,
) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}
	var counter textCounter

	err := stream.ForEach(ctx, src, func(_ context.Context, c stream.Chunk[byte]) error {
		stats.ChunkCount++
		stats.SizeBytes += int64(len(c.Data))
		counter.add(c.Data)
		if sink == nil {
			return nil
		}
		data := c.Data
		if filter != nil {
			keep, err := filter(data)
			if err != nil {
				return classifyUser("filter", err)
			}
			if !keep {
				return nil
			}
		}
		if transform != nil {
			out, err := transform(data)
			if err != nil {
				return classifyUser("transform", err)
			}
			data = out
		}
		return sink(data)
	})
	if err != nil {
		return nil, err
	}

	counter.finish()
	stats.LineCount = counter.lines
	stats.WordCount = counter.words
	stats.CharCount = counter.chars
	if stats.ChunkCount > 0 {
		stats.AverageChunkSize = float64(stats.SizeBytes) / float64(stats.ChunkCount)
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// writeAll writes p fully, retrying transient failures on the unwritten
// remainder only.
func writeAll(ctx context.Context, w io.Writer, path string, p []byte, retry resilience.RetryConfig) error {
	written := 0
	for written < len(p) {
		err := resilience.RetryFunc(ctx, retry, func() error {
			n, werr := w.Write(p[written:])
			written += n
			if werr != nil {
				return apperrors.ClassifyIO("write", path, werr)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// classifyUser mirrors how the stream stages treat caller-supplied function
// failures: taxonomy errors pass through, anything else is fatal.
func classifyUser(stage string, err error) error {
	if apperrors.IsAppError(err) || apperrors.IsCancelled(err) {
		return err
	}
	return apperrors.UserFunction(stage, err)
}

// finishErr normalizes a drain failure for an operation boundary: taxonomy
// errors pass through and raw context errors become the Cancelled outcome.
func finishErr(op string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if apperrors.IsCancelled(err) {
		return apperrors.Cancelled(op).WithCause(err)
	}
	return apperrors.Internal(err)
}

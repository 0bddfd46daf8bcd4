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

// DefaultChunkSize is the read size used when options leave it unset.
const DefaultChunkSize = 64 * 1024

// FromReader turns r into a chunk stream reading chunkSize bytes at a time.
// name labels the source in classified I/O errors. Transient read failures
// are retried per retry; the bytes already read are kept, so a retry never
// rereads or drops data. The final chunk is detected by reading one byte
// ahead, which lets it carry the completion flag even when the source size
// is an exact multiple of chunkSize.
func FromReader(name string, r io.Reader, chunkSize int, retry resilience.RetryConfig) *stream.Stream[byte] {
	if chunkSize <= 0 {
		return stream.Fail[byte](apperrors.InvalidArgument("chunkSize", "must be positive"))
	}
	return stream.FromFunc(func(_ context.Context) stream.Iterator[stream.Chunk[byte]] {
		return &readerIter{name: name, r: r, chunkSize: chunkSize, retry: retry}
	})
}

// FromFile streams path in chunkSize chunks. The file opens on the first
// pull and closes with the iterator; open failures surface classified.
func FromFile(path string, chunkSize int, retry resilience.RetryConfig) *stream.Stream[byte] {
	if chunkSize <= 0 {
		return stream.Fail[byte](apperrors.InvalidArgument("chunkSize", "must be positive"))
	}
	return stream.FromFunc(func(_ context.Context) stream.Iterator[stream.Chunk[byte]] {
		return &fileIter{path: path, chunkSize: chunkSize, retry: retry}
	})
}

type fileIter struct {
	path      string
	chunkSize int
	retry     resilience.RetryConfig
	f         *os.File
	inner     *readerIter
}

func (it *fileIter) Next(ctx context.Context) (stream.Chunk[byte], bool, error) {
	if it.inner == nil {
		f, err := os.Open(it.path)
		if err != nil {
			return stream.Chunk[byte]{}, false, apperrors.ClassifyIO("open", it.path, err)
		}
		it.f = f
		it.inner = &readerIter{name: it.path, r: f, chunkSize: it.chunkSize, retry: it.retry}
	}
	return it.inner.Next(ctx)
}

func (it *fileIter) Close() error {
	if it.f == nil {
		return nil
	}
	return it.f.Close()
}

type readerIter struct {
	name      string
	r         io.Reader
	chunkSize int
	retry     resilience.RetryConfig
	index     int
	bytes     int64
	carry     byte
	hasCarry  bool
	eof       bool
	done      bool
}

func (it *readerIter) Next(ctx context.Context) (stream.Chunk[byte], bool, error) {
	if err := ctx.Err(); err != nil {
		return stream.Chunk[byte]{}, false, err
	}
	if it.done {
		return stream.Chunk[byte]{}, false, nil
	}

	buf := make([]byte, it.chunkSize)
	filled := 0
	if it.hasCarry {
		buf[0] = it.carry
		it.hasCarry = false
		filled = 1
	}

	for filled < it.chunkSize && !it.eof {
		err := resilience.RetryFunc(ctx, it.retry, func() error {
			n, rerr := it.r.Read(buf[filled:])
			filled += n
			switch {
			case rerr == io.EOF:
				it.eof = true
				return nil
			case rerr != nil:
				return apperrors.ClassifyIO("read", it.name, rerr)
			}
			return nil
		})
		if err != nil {
			return stream.Chunk[byte]{}, false, err
		}
	}

	if filled == 0 {
		it.done = true
		return stream.Chunk[byte]{}, false, nil
	}

	// Peek a byte so a chunk that exactly drains the source is still the
	// one marked complete. The byte becomes the start of the next chunk.
	for !it.eof && !it.hasCarry {
		err := resilience.RetryFunc(ctx, it.retry, func() error {
			var peek [1]byte
			n, rerr := it.r.Read(peek[:])
			if n > 0 {
				it.carry = peek[0]
				it.hasCarry = true
			}
			switch {
			case rerr == io.EOF:
				it.eof = true
				return nil
			case rerr != nil:
				return apperrors.ClassifyIO("read", it.name, rerr)
			}
			return nil
		})
		if err != nil {
			return stream.Chunk[byte]{}, false, err
		}
	}

	it.bytes += int64(filled)
	complete := it.eof && !it.hasCarry
	if complete {
		it.done = true
	}
	chunk := stream.Chunk[byte]{
		Data:           buf[:filled],
		Index:          it.index,
		IsComplete:     complete,
		Timestamp:      time.Now(),
		BytesProcessed: it.bytes,
	}
	it.index++
	return chunk, true, nil
}

func (it *readerIter) Close() error { return nil }

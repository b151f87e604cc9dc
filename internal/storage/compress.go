package storage

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// zstdReadCloser adapts zstd.Decoder, whose Close returns nothing.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// newCompressor wraps w with the codec for c. Closing the returned writer
// flushes the codec but does not close w.
func newCompressor(c types.CompressionType, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case types.CompressionNone, "":
		return nopWriteCloser{w}, nil
	case types.CompressionBrotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case types.CompressionGzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case types.CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

// newDecompressor wraps r with the codec for c.
func newDecompressor(c types.CompressionType, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case types.CompressionNone, "":
		return io.NopCloser(r), nil
	case types.CompressionBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case types.CompressionGzip:
		return gzip.NewReader(r)
	case types.CompressionZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{d}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
}

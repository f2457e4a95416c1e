// Package compress wraps an archive byte stream in an optional
// compression transform. The archive codec never sees which one is used.
package compress

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Scheme identifies a stream compression transform
type Scheme uint8

const (
	// None passes bytes through unchanged.
	None Scheme = iota

	// Gzip is the classic .tar.gz transform.
	Gzip

	// LZ4 is the LZ4 frame format. Fast, modest ratio.
	LZ4

	// Zstd is the Zstandard frame format.
	Zstd
)

// String returns the human-readable name of a scheme
func (s Scheme) String() string {
	switch s {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Extension returns the archive filename suffix for the scheme
func (s Scheme) Extension() string {
	switch s {
	case Gzip:
		return ".tar.gz"
	case LZ4:
		return ".tar.lz4"
	case Zstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// ParseScheme parses a scheme from its string representation
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression scheme: %q", name)
	}
}

// suffixes maps archive filename suffixes to schemes, longest first
var suffixes = []struct {
	suffix string
	scheme Scheme
}{
	{".tar.gz", Gzip},
	{".tar.lz4", LZ4},
	{".tar.zst", Zstd},
	{".tgz", Gzip},
	{".tar", None},
}

// FromFileName infers the scheme from an archive filename. ok is false when
// the suffix is not a known archive suffix.
func FromFileName(name string) (s Scheme, ok bool) {
	lower := strings.ToLower(name)
	for _, e := range suffixes {
		if strings.HasSuffix(lower, e.suffix) {
			return e.scheme, true
		}
	}
	return None, false
}

// TrimExtension removes a known archive suffix from name, if it has one
func TrimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, e := range suffixes {
		if strings.HasSuffix(lower, e.suffix) {
			return name[:len(name)-len(e.suffix)]
		}
	}
	return name
}

// nopWriteCloser turns an io.Writer into an io.WriteCloser whose Close does
// not close the underlying writer
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter returns a writer that compresses into w. Close flushes the
// compressor but never closes w.
func NewWriter(w io.Writer, s Scheme) (io.WriteCloser, error) {
	switch s {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported compression scheme: %s", s)
	}
}

// zstdReadCloser adapts zstd.Decoder, whose Close returns nothing
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader returns a reader that decompresses r. Close releases the
// decompressor but never closes r.
func NewReader(r io.Reader, s Scheme) (io.ReadCloser, error) {
	switch s {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return zr, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zstdReadCloser{zr}, nil
	default:
		return nil, fmt.Errorf("unsupported compression scheme: %s", s)
	}
}

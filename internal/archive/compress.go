package archive

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is a stream compression format.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

// String returns the string representation of the compression
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Extension is the conventional file suffix, empty for None.
func (c Compression) Extension() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseCompression accepts "none", "gzip" or "zstd" ("" means none).
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression %q: use gzip or zstd", s)
	}
}

// sniffLen is how much of a stream is inspected to detect compression.
const sniffLen = 512

// Detect peeks at the start of r and reports its compression. The
// returned reader yields the full stream.
func Detect(r io.Reader) (Compression, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return None, br, err
	}

	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("application/gzip"):
		return Gzip, br, nil
	case mtype.Is("application/zstd"):
		return Zstd, br, nil
	default:
		return None, br, nil
	}
}

// NewReader decompresses r, detecting the format from its first bytes.
// Uncompressed streams pass through unchanged.
func NewReader(r io.Reader) (io.ReadCloser, Compression, error) {
	compression, r, err := Detect(r)
	if err != nil {
		return nil, None, err
	}

	switch compression {
	case Gzip:
		gzReader, err := gzip.NewReader(r)
		if err != nil {
			return nil, compression, fmt.Errorf("gzip failed: %w", err)
		}
		return gzReader, compression, nil
	case Zstd:
		zstdReader, err := zstd.NewReader(r)
		if err != nil {
			return nil, compression, fmt.Errorf("zstd failed: %w", err)
		}
		return zstdReader.IOReadCloser(), compression, nil
	default:
		return io.NopCloser(r), None, nil
	}
}

// NewWriter compresses everything written to it into w. Close flushes the
// compressor but leaves w open.
func NewWriter(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zstdWriter, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd failed: %w", err)
		}
		return zstdWriter, nil
	default:
		return nopWriteCloser{w}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

package tile

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/versatiles-org/versatiles/internal/binio"
)

// Compression identifies the transport compression of a tile's bytes.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBrotli
)

// ParseCompression converts a compression name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "raw", "uncompressed":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "brotli", "br":
		return CompressionBrotli, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// CompressionFromByte decodes the container header's compression byte.
func CompressionFromByte(b uint8) (Compression, error) {
	switch b {
	case 0:
		return CompressionNone, nil
	case 1:
		return CompressionGzip, nil
	case 2:
		return CompressionBrotli, nil
	default:
		return 0, fmt.Errorf("unknown compression byte %#02x", b)
	}
}

// Byte returns the container header's encoding of the compression.
func (c Compression) Byte() uint8 {
	return uint8(c)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionBrotli:
		return "brotli"
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

// Compress encodes a blob with the given compression.
func Compress(b binio.Blob, c Compression) (binio.Blob, error) {
	switch c {
	case CompressionNone:
		return b, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return binio.Blob{}, err
		}
		if _, err := w.Write(b.AsBytes()); err != nil {
			return binio.Blob{}, fmt.Errorf("gzip: %w", err)
		}
		if err := w.Close(); err != nil {
			return binio.Blob{}, fmt.Errorf("gzip: %w", err)
		}
		return binio.NewBlob(buf.Bytes()), nil
	case CompressionBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(b.AsBytes()); err != nil {
			return binio.Blob{}, fmt.Errorf("brotli: %w", err)
		}
		if err := w.Close(); err != nil {
			return binio.Blob{}, fmt.Errorf("brotli: %w", err)
		}
		return binio.NewBlob(buf.Bytes()), nil
	}
	return binio.Blob{}, fmt.Errorf("unknown compression %d", int(c))
}

// Decompress decodes a blob compressed with the given compression.
func Decompress(b binio.Blob, c Compression) (binio.Blob, error) {
	switch c {
	case CompressionNone:
		return b, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(b.AsBytes()))
		if err != nil {
			return binio.Blob{}, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return binio.Blob{}, fmt.Errorf("gzip: %w", err)
		}
		return binio.NewBlob(data), nil
	case CompressionBrotli:
		data, err := io.ReadAll(brotli.NewReader(bytes.NewReader(b.AsBytes())))
		if err != nil {
			return binio.Blob{}, fmt.Errorf("brotli: %w", err)
		}
		return binio.NewBlob(data), nil
	}
	return binio.Blob{}, fmt.Errorf("unknown compression %d", int(c))
}

// Recompress converts a blob from one compression to another.
func Recompress(b binio.Blob, from, to Compression) (binio.Blob, error) {
	if from == to {
		return b, nil
	}
	raw, err := Decompress(b, from)
	if err != nil {
		return binio.Blob{}, err
	}
	return Compress(raw, to)
}

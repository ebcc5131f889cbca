package tile

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/webp"

	"github.com/versatiles-org/versatiles/internal/binio"
)

// EncodeImage encodes pixels into the given raster format. quality is the
// codec's 1-100 quality knob where supported; speed trades encoding time
// for size on codecs that expose it. Zero quality selects 85 for JPEG
// and WebP; zero speed keeps PNG's default compression level.
func EncodeImage(img image.Image, f Format, quality, speed int) (binio.Blob, error) {
	switch f {
	case FormatPNG:
		var buf bytes.Buffer
		level := png.DefaultCompression
		if speed > 0 {
			level = png.BestSpeed
		}
		enc := &png.Encoder{CompressionLevel: level}
		if err := enc.Encode(&buf, img); err != nil {
			return binio.Blob{}, fmt.Errorf("encoding png: %w", err)
		}
		return binio.NewBlob(buf.Bytes()), nil

	case FormatJPG:
		if quality <= 0 {
			quality = 85
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return binio.Blob{}, fmt.Errorf("encoding jpeg: %w", err)
		}
		return binio.NewBlob(buf.Bytes()), nil

	case FormatWEBP:
		if quality <= 0 {
			quality = 85
		}
		var buf bytes.Buffer
		opts := webp.Options{Quality: quality}
		if err := webp.Encode(&buf, img, opts); err != nil {
			return binio.Blob{}, fmt.Errorf("encoding webp: %w", err)
		}
		return binio.NewBlob(buf.Bytes()), nil

	case FormatAVIF:
		return binio.Blob{}, fmt.Errorf("avif encoding requires an external codec")

	default:
		return binio.Blob{}, fmt.Errorf("format %s is not a raster format", f)
	}
}

// DecodeImage decodes raster bytes back into pixels.
func DecodeImage(b binio.Blob, f Format) (image.Image, error) {
	r := bytes.NewReader(b.AsBytes())
	switch f {
	case FormatPNG:
		img, err := png.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decoding png: %w", err)
		}
		return img, nil
	case FormatJPG:
		img, err := jpeg.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decoding jpeg: %w", err)
		}
		return img, nil
	case FormatWEBP:
		img, err := webp.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decoding webp: %w", err)
		}
		return img, nil
	case FormatAVIF:
		return nil, fmt.Errorf("avif decoding requires an external codec")
	default:
		return nil, fmt.Errorf("format %s is not a raster format", f)
	}
}

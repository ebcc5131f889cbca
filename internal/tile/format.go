// Package tile implements the tile value model: formats, compressions,
// raster and vector codecs, and the lazy three-way representation that
// lets a tile exist as encoded bytes, a decoded image or a decoded
// vector tile at the same time.
package tile

import "fmt"

// Format identifies the encoding of a tile's payload.
type Format int

const (
	FormatBin Format = iota
	FormatPNG
	FormatJPG
	FormatWEBP
	FormatAVIF
	FormatSVG
	FormatMVT
	FormatGeoJSON
	FormatTopoJSON
	FormatJSON
)

// Category groups formats by the decoded representation they support.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryRaster
	CategoryVector
)

// ParseFormat converts a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "bin":
		return FormatBin, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "webp":
		return FormatWEBP, nil
	case "avif":
		return FormatAVIF, nil
	case "svg":
		return FormatSVG, nil
	case "mvt", "pbf":
		return FormatMVT, nil
	case "geojson":
		return FormatGeoJSON, nil
	case "topojson":
		return FormatTopoJSON, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown tile format %q", s)
	}
}

// FormatFromTypeByte decodes the container header's tile type byte.
func FormatFromTypeByte(b uint8) (Format, error) {
	switch b {
	case 0x00:
		return FormatBin, nil
	case 0x10:
		return FormatPNG, nil
	case 0x11:
		return FormatJPG, nil
	case 0x12:
		return FormatWEBP, nil
	case 0x13:
		return FormatAVIF, nil
	case 0x14:
		return FormatSVG, nil
	case 0x20:
		return FormatMVT, nil
	case 0x21:
		return FormatGeoJSON, nil
	case 0x22:
		return FormatTopoJSON, nil
	case 0x23:
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown tile type byte %#02x", b)
	}
}

// TypeByte returns the container header's encoding of the format.
func (f Format) TypeByte() uint8 {
	switch f {
	case FormatBin:
		return 0x00
	case FormatPNG:
		return 0x10
	case FormatJPG:
		return 0x11
	case FormatWEBP:
		return 0x12
	case FormatAVIF:
		return 0x13
	case FormatSVG:
		return 0x14
	case FormatMVT:
		return 0x20
	case FormatGeoJSON:
		return 0x21
	case FormatTopoJSON:
		return 0x22
	case FormatJSON:
		return 0x23
	}
	panic(fmt.Sprintf("unhandled format %d", int(f)))
}

// Category returns whether the format decodes to pixels or to features.
func (f Format) Category() Category {
	switch f {
	case FormatPNG, FormatJPG, FormatWEBP, FormatAVIF:
		return CategoryRaster
	case FormatMVT:
		return CategoryVector
	default:
		return CategoryUnknown
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatBin:
		return ".bin"
	case FormatPNG:
		return ".png"
	case FormatJPG:
		return ".jpg"
	case FormatWEBP:
		return ".webp"
	case FormatAVIF:
		return ".avif"
	case FormatSVG:
		return ".svg"
	case FormatMVT:
		return ".pbf"
	case FormatGeoJSON:
		return ".geojson"
	case FormatTopoJSON:
		return ".topojson"
	case FormatJSON:
		return ".json"
	}
	return ""
}

// MimeType returns the content type served to tile clients.
func (f Format) MimeType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPG:
		return "image/jpeg"
	case FormatWEBP:
		return "image/webp"
	case FormatAVIF:
		return "image/avif"
	case FormatSVG:
		return "image/svg+xml"
	case FormatMVT:
		return "application/x-protobuf"
	case FormatGeoJSON:
		return "application/geo+json"
	case FormatTopoJSON, FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func (f Format) String() string {
	switch f {
	case FormatBin:
		return "bin"
	case FormatPNG:
		return "png"
	case FormatJPG:
		return "jpg"
	case FormatWEBP:
		return "webp"
	case FormatAVIF:
		return "avif"
	case FormatSVG:
		return "svg"
	case FormatMVT:
		return "mvt"
	case FormatGeoJSON:
		return "geojson"
	case FormatTopoJSON:
		return "topojson"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

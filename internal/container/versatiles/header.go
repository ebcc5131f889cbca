// Package versatiles implements the VersaTiles container: a seekable,
// block-indexed archive of Web Mercator tiles that supports random
// access over local files and HTTP range requests.
//
// Layout (all integers big-endian):
//
//	[file header]   66 bytes, rewritten at the end of a write
//	[metadata]      compressed with the header's compression
//	[block data]    per block: tiles back to back, then the block's
//	                brotli-compressed tile index
//	[block index]   brotli-compressed catalogue of all blocks
package versatiles

import (
	"fmt"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/tile"
)

const (
	// Magic identifies the container format and version.
	Magic = "versatiles_v02"
	// HeaderLength is the exact byte size of the file header.
	HeaderLength = 66
	// bboxScale converts degrees to the header's fixed-point encoding.
	bboxScale = 1e7
)

// FileHeader is the 66-byte file header: magic, tile type, compression,
// zoom range, geographic bbox in 1e-7 degrees, and the byte ranges of
// the metadata payload and the block index.
type FileHeader struct {
	Format      tile.Format
	Compression tile.Compression
	ZoomMin     uint8
	ZoomMax     uint8
	BBox        [4]int32 // min_lon, min_lat, max_lon, max_lat scaled by 1e7

	MetaRange   binio.ByteRange
	BlocksRange binio.ByteRange
}

// NewFileHeader builds a header for the given content. The byte ranges
// stay empty until the writer fills them in.
func NewFileHeader(f tile.Format, c tile.Compression, zoomMin, zoomMax uint8, geo coord.GeoBBox) (*FileHeader, error) {
	if zoomMin > zoomMax {
		return nil, fmt.Errorf("zoom_min (%d) must be <= zoom_max (%d)", zoomMin, zoomMax)
	}
	if err := geo.Check(); err != nil {
		return nil, fmt.Errorf("invalid header bbox: %w", err)
	}
	return &FileHeader{
		Format:      f,
		Compression: c,
		ZoomMin:     zoomMin,
		ZoomMax:     zoomMax,
		BBox: [4]int32{
			int32(geo.West * bboxScale),
			int32(geo.South * bboxScale),
			int32(geo.East * bboxScale),
			int32(geo.North * bboxScale),
		},
	}, nil
}

// Serialize returns the header as exactly 66 bytes.
func (h *FileHeader) Serialize() binio.Blob {
	w := binio.NewValueWriterBE()
	w.WriteBytes([]byte(Magic))
	w.WriteU8(h.Format.TypeByte())
	w.WriteU8(h.Compression.Byte())
	w.WriteU8(h.ZoomMin)
	w.WriteU8(h.ZoomMax)
	for _, v := range h.BBox {
		w.WriteI32(v)
	}
	w.WriteByteRange(h.MetaRange)
	w.WriteByteRange(h.BlocksRange)
	if w.Len() != HeaderLength {
		panic(fmt.Sprintf("header serialized to %d bytes, must be %d", w.Len(), HeaderLength))
	}
	return w.Blob()
}

// ParseFileHeader validates and decodes a 66-byte header blob.
func ParseFileHeader(b binio.Blob) (*FileHeader, error) {
	if b.Len() != HeaderLength {
		return nil, fmt.Errorf("header is %d bytes, must be %d", b.Len(), HeaderLength)
	}
	r := binio.NewValueReaderBE(b.AsBytes())

	magic, err := r.ReadBytes(len(Magic))
	if err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("magic mismatch: %q is not a versatiles container", string(magic))
	}

	typeByte, _ := r.ReadU8()
	format, err := tile.FormatFromTypeByte(typeByte)
	if err != nil {
		return nil, err
	}
	compByte, _ := r.ReadU8()
	compression, err := tile.CompressionFromByte(compByte)
	if err != nil {
		return nil, err
	}

	h := &FileHeader{Format: format, Compression: compression}
	h.ZoomMin, _ = r.ReadU8()
	h.ZoomMax, _ = r.ReadU8()
	for i := range h.BBox {
		h.BBox[i], _ = r.ReadI32()
	}
	if h.MetaRange, err = r.ReadByteRange(); err != nil {
		return nil, err
	}
	if h.BlocksRange, err = r.ReadByteRange(); err != nil {
		return nil, err
	}
	return h, nil
}

// GeoBBox converts the fixed-point bbox back to degrees.
func (h *FileHeader) GeoBBox() coord.GeoBBox {
	return coord.GeoBBox{
		West:  float64(h.BBox[0]) / bboxScale,
		South: float64(h.BBox[1]) / bboxScale,
		East:  float64(h.BBox[2]) / bboxScale,
		North: float64(h.BBox[3]) / bboxScale,
	}
}

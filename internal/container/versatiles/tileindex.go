package versatiles

import (
	"fmt"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// tileRecordLength is the serialized size of one tile index entry:
// offset u64 plus length u32.
const tileRecordLength = 12

// TileIndex maps the row-major tile slots of a block's coverage to byte
// ranges in the block's tile payload. A length of zero marks an absent
// tile. Offsets are stored relative to the block's payload start; the
// reader shifts them to absolute positions when loading.
type TileIndex struct {
	ranges []binio.ByteRange
}

// NewTileIndex creates an index with the given number of empty slots.
func NewTileIndex(slots int) *TileIndex {
	return &TileIndex{ranges: make([]binio.ByteRange, slots)}
}

// Set stores the byte range of a tile slot.
func (ti *TileIndex) Set(slot int, r binio.ByteRange) {
	ti.ranges[slot] = r
}

// Get returns the byte range of a tile slot.
func (ti *TileIndex) Get(slot int) binio.ByteRange {
	return ti.ranges[slot]
}

// Len returns the number of slots.
func (ti *TileIndex) Len() int {
	return len(ti.ranges)
}

// AddOffset shifts every present entry by delta bytes.
func (ti *TileIndex) AddOffset(delta uint64) {
	for i, r := range ti.ranges {
		if r.Length > 0 {
			ti.ranges[i] = r.Shift(delta)
		}
	}
}

// ToBrotliBlob serializes the entries and compresses them with brotli.
func (ti *TileIndex) ToBrotliBlob() (binio.Blob, error) {
	w := binio.NewValueWriterBE()
	for _, r := range ti.ranges {
		w.WriteU64(r.Offset)
		w.WriteU32(uint32(r.Length))
	}
	return tile.Compress(w.Blob(), tile.CompressionBrotli)
}

// TileIndexFromBrotliBlob decompresses and parses a tile index. A
// payload length that is not a multiple of the record size is a fatal
// error.
func TileIndexFromBrotliBlob(b binio.Blob) (*TileIndex, error) {
	raw, err := tile.Decompress(b, tile.CompressionBrotli)
	if err != nil {
		return nil, fmt.Errorf("decompressing tile index: %w", err)
	}
	if raw.Len()%tileRecordLength != 0 {
		return nil, fmt.Errorf("tile index length %d is not a multiple of %d", raw.Len(), tileRecordLength)
	}
	ti := NewTileIndex(int(raw.Len() / tileRecordLength))
	r := binio.NewValueReaderBE(raw.AsBytes())
	for i := range ti.ranges {
		offset, _ := r.ReadU64()
		length, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("parsing tile index: %w", err)
		}
		ti.ranges[i] = binio.ByteRange{Offset: offset, Length: uint64(length)}
	}
	return ti, nil
}

package versatiles

import (
	"fmt"
	"sort"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// BlockSize is the tile edge length of one block: a block covers up to
// 256x256 tiles of one zoom level.
const BlockSize = 256

// blockRecordLength is the serialized size of one BlockDefinition.
const blockRecordLength = 33

// BlockDefinition catalogues one block: its coordinate in the block
// grid, the coverage of present tiles within the block, and the byte
// ranges of the tile payload and the tile index.
type BlockDefinition struct {
	Coord      coord.TileCoord // block coordinate: (z, x>>8, y>>8)
	Coverage   coord.TileBBox  // intra-block bbox, within [0,255]
	TilesRange binio.ByteRange
	IndexRange binio.ByteRange
}

// NewBlockDefinition derives the block containing a global bbox chunk.
// The chunk must not span block boundaries.
func NewBlockDefinition(chunk coord.TileBBox) BlockDefinition {
	blockX := chunk.XMin / BlockSize
	blockY := chunk.YMin / BlockSize
	coverage := coord.TileBBox{
		Level: chunk.Level,
		XMin:  chunk.XMin - blockX*BlockSize,
		YMin:  chunk.YMin - blockY*BlockSize,
		XMax:  chunk.XMax - blockX*BlockSize,
		YMax:  chunk.YMax - blockY*BlockSize,
	}
	if coverage.XMax >= BlockSize || coverage.YMax >= BlockSize {
		panic(fmt.Sprintf("chunk %s spans block boundaries", chunk))
	}
	return BlockDefinition{
		Coord:    coord.TileCoord{X: blockX, Y: blockY, Z: chunk.Level},
		Coverage: coverage,
	}
}

// GlobalBBox projects the coverage back into level coordinates.
func (d *BlockDefinition) GlobalBBox() coord.TileBBox {
	return d.Coverage.Shift(d.Coord.X*BlockSize, d.Coord.Y*BlockSize)
}

// CountTiles returns the number of tile slots in the coverage.
func (d *BlockDefinition) CountTiles() uint64 {
	return d.Coverage.CountTiles()
}

// serialize appends the 33-byte record.
func (d *BlockDefinition) serialize(w *binio.ValueWriter) error {
	if d.TilesRange.End() != d.IndexRange.Offset {
		return fmt.Errorf("block %s: tile range %s does not abut index range %s",
			d.Coord, d.TilesRange, d.IndexRange)
	}
	w.WriteU8(d.Coord.Z)
	w.WriteU32(d.Coord.X)
	w.WriteU32(d.Coord.Y)
	w.WriteU8(uint8(d.Coverage.XMin))
	w.WriteU8(uint8(d.Coverage.YMin))
	w.WriteU8(uint8(d.Coverage.XMax))
	w.WriteU8(uint8(d.Coverage.YMax))
	w.WriteU64(d.TilesRange.Offset)
	w.WriteU64(d.TilesRange.Length)
	w.WriteU32(uint32(d.IndexRange.Length))
	return nil
}

// parseBlockDefinition reads one 33-byte record.
func parseBlockDefinition(r *binio.ValueReader) (BlockDefinition, error) {
	var d BlockDefinition
	z, err := r.ReadU8()
	if err != nil {
		return d, err
	}
	x, _ := r.ReadU32()
	y, _ := r.ReadU32()
	d.Coord = coord.TileCoord{X: x, Y: y, Z: z}

	xMin, _ := r.ReadU8()
	yMin, _ := r.ReadU8()
	xMax, _ := r.ReadU8()
	yMax, _ := r.ReadU8()
	d.Coverage = coord.TileBBox{
		Level: z,
		XMin:  uint32(xMin), YMin: uint32(yMin),
		XMax: uint32(xMax), YMax: uint32(yMax),
	}
	if d.Coverage.XMin > d.Coverage.XMax || d.Coverage.YMin > d.Coverage.YMax {
		return d, fmt.Errorf("block %s: inverted coverage [%d,%d,%d,%d]", d.Coord, xMin, yMin, xMax, yMax)
	}

	offset, _ := r.ReadU64()
	tilesLength, _ := r.ReadU64()
	indexLength, err := r.ReadU32()
	if err != nil {
		return d, err
	}
	d.TilesRange = binio.ByteRange{Offset: offset, Length: tilesLength}
	d.IndexRange = binio.ByteRange{Offset: offset + tilesLength, Length: uint64(indexLength)}
	return d, nil
}

// BlockIndex is the catalogue of all blocks in a container.
type BlockIndex struct {
	blocks map[coord.TileCoord]BlockDefinition
}

// NewBlockIndex returns an empty index.
func NewBlockIndex() *BlockIndex {
	return &BlockIndex{blocks: make(map[coord.TileCoord]BlockDefinition)}
}

// Add inserts a block definition.
func (bi *BlockIndex) Add(d BlockDefinition) {
	bi.blocks[d.Coord] = d
}

// Get looks up the block at a block coordinate.
func (bi *BlockIndex) Get(c coord.TileCoord) (BlockDefinition, bool) {
	d, ok := bi.blocks[c]
	return d, ok
}

// Len returns the number of blocks.
func (bi *BlockIndex) Len() int {
	return len(bi.blocks)
}

// Blocks returns all definitions ordered by block coordinate.
func (bi *BlockIndex) Blocks() []BlockDefinition {
	out := make([]BlockDefinition, 0, len(bi.blocks))
	for _, d := range bi.blocks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Coord.SortIndex() < out[j].Coord.SortIndex()
	})
	return out
}

// Pyramid unions every block's global bbox into a pyramid.
func (bi *BlockIndex) Pyramid() coord.TileBBoxPyramid {
	p := coord.NewPyramidEmpty()
	for _, d := range bi.blocks {
		p.IncludeBBox(d.GlobalBBox())
	}
	return p
}

// ToBrotliBlob serializes all records and compresses them with brotli.
func (bi *BlockIndex) ToBrotliBlob() (binio.Blob, error) {
	w := binio.NewValueWriterBE()
	for _, d := range bi.Blocks() {
		if err := d.serialize(w); err != nil {
			return binio.Blob{}, err
		}
	}
	return tile.Compress(w.Blob(), tile.CompressionBrotli)
}

// BlockIndexFromBrotliBlob decompresses and parses a block index. A
// payload length that is not a multiple of the record size is a fatal
// open error.
func BlockIndexFromBrotliBlob(b binio.Blob) (*BlockIndex, error) {
	raw, err := tile.Decompress(b, tile.CompressionBrotli)
	if err != nil {
		return nil, fmt.Errorf("decompressing block index: %w", err)
	}
	if raw.Len()%blockRecordLength != 0 {
		return nil, fmt.Errorf("block index length %d is not a multiple of %d", raw.Len(), blockRecordLength)
	}
	bi := NewBlockIndex()
	r := binio.NewValueReaderBE(raw.AsBytes())
	for r.Remaining() > 0 {
		d, err := parseBlockDefinition(r)
		if err != nil {
			return nil, fmt.Errorf("parsing block index: %w", err)
		}
		bi.Add(d)
	}
	return bi, nil
}

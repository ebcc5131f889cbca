package coord

import (
	"fmt"
	"math"
)

// TileBBox is an inclusive range of tiles on one zoom level. The zero
// width/height bbox still contains one tile; emptiness is represented
// explicitly (XMin > XMax).
type TileBBox struct {
	Level                  uint8
	XMin, YMin, XMax, YMax uint32
}

// NewBBox validates and constructs a bbox from inclusive bounds.
func NewBBox(level uint8, xMin, yMin, xMax, yMax uint32) (TileBBox, error) {
	if level > MaxZoom {
		return TileBBox{}, fmt.Errorf("zoom level %d exceeds maximum %d", level, MaxZoom)
	}
	max := uint64(1) << level
	if xMin > xMax || yMin > yMax {
		return TileBBox{}, fmt.Errorf("bbox bounds inverted: [%d,%d,%d,%d]", xMin, yMin, xMax, yMax)
	}
	if uint64(xMax) >= max || uint64(yMax) >= max {
		return TileBBox{}, fmt.Errorf("bbox [%d,%d,%d,%d] exceeds level %d grid", xMin, yMin, xMax, yMax, level)
	}
	return TileBBox{Level: level, XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}, nil
}

// NewBBoxFull covers the whole grid of a zoom level.
func NewBBoxFull(level uint8) TileBBox {
	max := uint32(uint64(1)<<level - 1)
	return TileBBox{Level: level, XMin: 0, YMin: 0, XMax: max, YMax: max}
}

// NewBBoxEmpty returns the canonical empty bbox for a level.
func NewBBoxEmpty(level uint8) TileBBox {
	return TileBBox{Level: level, XMin: math.MaxUint32, YMin: math.MaxUint32, XMax: 0, YMax: 0}
}

// BBoxFromGeo covers all tiles of a level that a geographic bbox touches.
func BBoxFromGeo(level uint8, geo GeoBBox) TileBBox {
	// The NW corner of the range comes from (west, north), the SE corner
	// from (east, south). Stepping back one tile when the rounded-up tile
	// starts at or beyond the east/south edge keeps boundary-aligned bboxes
	// from bleeding into the neighbor tile; a corner clamped to the last
	// column or row of the grid keeps that tile.
	nw := FromGeo(geo.West, geo.North, level, false)
	se := FromGeo(geo.East, geo.South, level, true)
	seX, seY := se.X, se.Y
	seLon, seLat := se.AsGeo()
	if seX > nw.X && seLon >= geo.East {
		seX--
	}
	if seY > nw.Y && seLat <= geo.South {
		seY--
	}
	return TileBBox{Level: level, XMin: nw.X, YMin: nw.Y, XMax: seX, YMax: seY}
}

// IsEmpty reports whether the bbox contains no tiles.
func (b TileBBox) IsEmpty() bool {
	return b.XMin > b.XMax || b.YMin > b.YMax
}

// Width returns the number of tile columns.
func (b TileBBox) Width() uint32 {
	if b.IsEmpty() {
		return 0
	}
	return b.XMax - b.XMin + 1
}

// Height returns the number of tile rows.
func (b TileBBox) Height() uint32 {
	if b.IsEmpty() {
		return 0
	}
	return b.YMax - b.YMin + 1
}

// CountTiles returns the number of tiles covered.
func (b TileBBox) CountTiles() uint64 {
	return uint64(b.Width()) * uint64(b.Height())
}

// Contains reports whether the coordinate lies inside the bbox. The zoom
// level must match.
func (b TileBBox) Contains(c TileCoord) bool {
	return c.Z == b.Level && b.ContainsXY(c.X, c.Y)
}

// ContainsXY reports whether column x and row y lie inside the bbox.
func (b TileBBox) ContainsXY(x, y uint32) bool {
	return !b.IsEmpty() && x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// IncludeCoord grows the bbox to cover the coordinate.
func (b TileBBox) IncludeCoord(x, y uint32) TileBBox {
	if b.IsEmpty() {
		return TileBBox{Level: b.Level, XMin: x, YMin: y, XMax: x, YMax: y}
	}
	if x < b.XMin {
		b.XMin = x
	}
	if y < b.YMin {
		b.YMin = y
	}
	if x > b.XMax {
		b.XMax = x
	}
	if y > b.YMax {
		b.YMax = y
	}
	return b
}

// Intersect clips the bbox to the overlap with other. Both must share the
// same level; a level mismatch is a programming error.
func (b TileBBox) Intersect(other TileBBox) TileBBox {
	if b.Level != other.Level {
		panic(fmt.Sprintf("intersecting bboxes of different levels: %d vs %d", b.Level, other.Level))
	}
	if b.IsEmpty() || other.IsEmpty() {
		return NewBBoxEmpty(b.Level)
	}
	r := TileBBox{
		Level: b.Level,
		XMin:  maxU32(b.XMin, other.XMin),
		YMin:  maxU32(b.YMin, other.YMin),
		XMax:  minU32(b.XMax, other.XMax),
		YMax:  minU32(b.YMax, other.YMax),
	}
	if r.IsEmpty() {
		return NewBBoxEmpty(b.Level)
	}
	return r
}

// Union grows the bbox to cover other. Both must share the same level.
func (b TileBBox) Union(other TileBBox) TileBBox {
	if b.Level != other.Level {
		panic(fmt.Sprintf("joining bboxes of different levels: %d vs %d", b.Level, other.Level))
	}
	if b.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return b
	}
	return TileBBox{
		Level: b.Level,
		XMin:  minU32(b.XMin, other.XMin),
		YMin:  minU32(b.YMin, other.YMin),
		XMax:  maxU32(b.XMax, other.XMax),
		YMax:  maxU32(b.YMax, other.YMax),
	}
}

// Shift translates the bbox by (dx, dy) tiles.
func (b TileBBox) Shift(dx, dy uint32) TileBBox {
	if b.IsEmpty() {
		return b
	}
	b.XMin += dx
	b.XMax += dx
	b.YMin += dy
	b.YMax += dy
	return b
}

// EachCoord calls fn for every tile in row-major order: y outer, x inner.
func (b TileBBox) EachCoord(fn func(TileCoord)) {
	if b.IsEmpty() {
		return
	}
	for y := b.YMin; ; y++ {
		for x := b.XMin; ; x++ {
			fn(TileCoord{X: x, Y: y, Z: b.Level})
			if x == b.XMax {
				break
			}
		}
		if y == b.YMax {
			break
		}
	}
}

// Coords returns all tiles in row-major order.
func (b TileBBox) Coords() []TileCoord {
	out := make([]TileCoord, 0, b.CountTiles())
	b.EachCoord(func(c TileCoord) { out = append(out, c) })
	return out
}

// SplitGrid partitions the bbox into sub-bboxes of at most size x size
// tiles, aligned to the global size grid and clipped to the bbox. The
// first chunk is the north-west corner; chunks follow in row-major order.
// size must be > 0.
func (b TileBBox) SplitGrid(size uint32) []TileBBox {
	if size == 0 {
		panic("SplitGrid: size must be > 0")
	}
	if b.IsEmpty() {
		return nil
	}
	var out []TileBBox
	for y0 := b.YMin - b.YMin%size; y0 <= b.YMax; y0 += size {
		for x0 := b.XMin - b.XMin%size; x0 <= b.XMax; x0 += size {
			chunk := TileBBox{
				Level: b.Level,
				XMin:  maxU32(x0, b.XMin),
				YMin:  maxU32(y0, b.YMin),
				XMax:  minU32(x0+size-1, b.XMax),
				YMax:  minU32(y0+size-1, b.YMax),
			}
			out = append(out, chunk)
		}
	}
	return out
}

// TileIndex returns the row-major position of a coordinate within the
// bbox, used to address per-block tile index slots.
func (b TileBBox) TileIndex(x, y uint32) int {
	return int(y-b.YMin)*int(b.Width()) + int(x-b.XMin)
}

// CoordAt is the inverse of TileIndex.
func (b TileBBox) CoordAt(index int) TileCoord {
	w := int(b.Width())
	return TileCoord{
		X: b.XMin + uint32(index%w),
		Y: b.YMin + uint32(index/w),
		Z: b.Level,
	}
}

// GeoBBox returns the geographic extent of the bbox.
func (b TileBBox) GeoBBox() GeoBBox {
	if b.IsEmpty() {
		return GeoBBox{}
	}
	west, north := TileCoord{X: b.XMin, Y: b.YMin, Z: b.Level}.AsGeo()
	east, south := TileCoord{X: b.XMax + 1, Y: b.YMax + 1, Z: b.Level}.AsGeo()
	return GeoBBox{West: west, South: south, East: east, North: north}
}

func (b TileBBox) String() string {
	if b.IsEmpty() {
		return fmt.Sprintf("%d: empty", b.Level)
	}
	return fmt.Sprintf("%d: [%d,%d,%d,%d] (%d)", b.Level, b.XMin, b.YMin, b.XMax, b.YMax, b.CountTiles())
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

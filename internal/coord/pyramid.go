package coord

import (
	"fmt"
	"strings"
)

// TileBBoxPyramid is one TileBBox per zoom level, describing the set of
// tiles a source knows about.
type TileBBoxPyramid struct {
	levels [MaxZoom + 1]TileBBox
}

// NewPyramidEmpty returns a pyramid with every level empty.
func NewPyramidEmpty() TileBBoxPyramid {
	var p TileBBoxPyramid
	for z := range p.levels {
		p.levels[z] = NewBBoxEmpty(uint8(z))
	}
	return p
}

// NewPyramidFull covers every tile from zoomMin to zoomMax.
func NewPyramidFull(zoomMin, zoomMax uint8) TileBBoxPyramid {
	p := NewPyramidEmpty()
	for z := zoomMin; z <= zoomMax && z <= MaxZoom; z++ {
		p.levels[z] = NewBBoxFull(z)
	}
	return p
}

// Level returns the bbox of a zoom level.
func (p *TileBBoxPyramid) Level(z uint8) TileBBox {
	return p.levels[z]
}

// SetLevel replaces the bbox of a zoom level.
func (p *TileBBoxPyramid) SetLevel(b TileBBox) {
	p.levels[b.Level] = b
}

// IncludeCoord grows the pyramid to cover the coordinate.
func (p *TileBBoxPyramid) IncludeCoord(c TileCoord) {
	p.levels[c.Z] = p.levels[c.Z].IncludeCoord(c.X, c.Y)
}

// IncludeBBox grows the pyramid to cover the bbox.
func (p *TileBBoxPyramid) IncludeBBox(b TileBBox) {
	p.levels[b.Level] = p.levels[b.Level].Union(b)
}

// Intersect clips every level against the other pyramid.
func (p *TileBBoxPyramid) Intersect(other *TileBBoxPyramid) {
	for z := range p.levels {
		p.levels[z] = p.levels[z].Intersect(other.levels[z])
	}
}

// IntersectGeo clips every level against a geographic bbox.
func (p *TileBBoxPyramid) IntersectGeo(geo GeoBBox) {
	for z := range p.levels {
		p.levels[z] = p.levels[z].Intersect(BBoxFromGeo(uint8(z), geo))
	}
}

// SetZoomMin empties every level below z.
func (p *TileBBoxPyramid) SetZoomMin(z uint8) {
	for l := uint8(0); l < z && l <= MaxZoom; l++ {
		p.levels[l] = NewBBoxEmpty(l)
	}
}

// SetZoomMax empties every level above z.
func (p *TileBBoxPyramid) SetZoomMax(z uint8) {
	for l := int(z) + 1; l <= MaxZoom; l++ {
		p.levels[l] = NewBBoxEmpty(uint8(l))
	}
}

// IsEmpty reports whether no level contains any tile.
func (p *TileBBoxPyramid) IsEmpty() bool {
	for z := range p.levels {
		if !p.levels[z].IsEmpty() {
			return false
		}
	}
	return true
}

// CountTiles sums the tile counts of all levels.
func (p *TileBBoxPyramid) CountTiles() uint64 {
	var n uint64
	for z := range p.levels {
		n += p.levels[z].CountTiles()
	}
	return n
}

// Levels returns the non-empty level bboxes in ascending zoom order.
func (p *TileBBoxPyramid) Levels() []TileBBox {
	out := make([]TileBBox, 0, len(p.levels))
	for z := range p.levels {
		if !p.levels[z].IsEmpty() {
			out = append(out, p.levels[z])
		}
	}
	return out
}

// ZoomMin returns the lowest non-empty zoom level, or false if the
// pyramid is empty.
func (p *TileBBoxPyramid) ZoomMin() (uint8, bool) {
	for z := 0; z <= MaxZoom; z++ {
		if !p.levels[z].IsEmpty() {
			return uint8(z), true
		}
	}
	return 0, false
}

// ZoomMax returns the highest non-empty zoom level, or false if the
// pyramid is empty.
func (p *TileBBoxPyramid) ZoomMax() (uint8, bool) {
	for z := MaxZoom; z >= 0; z-- {
		if !p.levels[z].IsEmpty() {
			return uint8(z), true
		}
	}
	return 0, false
}

// Contains reports whether any level bbox covers the coordinate.
func (p *TileBBoxPyramid) Contains(c TileCoord) bool {
	return p.levels[c.Z].Contains(c)
}

// GeoBBox returns the geographic union over all non-empty levels.
func (p *TileBBoxPyramid) GeoBBox() GeoBBox {
	levels := p.Levels()
	if len(levels) == 0 {
		return GeoBBox{}
	}
	geo := levels[0].GeoBBox()
	for _, b := range levels[1:] {
		geo = geo.Extend(b.GeoBBox())
	}
	return geo
}

func (p *TileBBoxPyramid) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, b := range p.Levels() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s", b)
	}
	sb.WriteString("]")
	return sb.String()
}

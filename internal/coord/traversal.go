package coord

import (
	"fmt"
	"sort"
)

// Traversal selects the order in which a pyramid's tiles are visited.
// Traversals emit chunked bboxes; a consumer streams the chunks in
// sequence and iterates row-major within each chunk.
type Traversal int

const (
	// AnyOrder lets the engine pick whatever is cheapest (currently TopDown).
	AnyOrder Traversal = iota
	// TopDown visits low zoom levels first.
	TopDown
	// BottomUp visits high zoom levels first.
	BottomUp
	// DepthFirst16 descends the quadtree in 16x16 tile chunks.
	DepthFirst16
	// DepthFirst256 descends the quadtree in 256x256 tile chunks.
	DepthFirst256
	// PMTilesOrder visits each level in Hilbert curve order, 64x64 chunks.
	PMTilesOrder
)

// ParseTraversal converts a string to a Traversal constant.
func ParseTraversal(s string) (Traversal, error) {
	switch s {
	case "any":
		return AnyOrder, nil
	case "top_down":
		return TopDown, nil
	case "bottom_up":
		return BottomUp, nil
	case "depth_first_16":
		return DepthFirst16, nil
	case "depth_first_256":
		return DepthFirst256, nil
	case "pmtiles":
		return PMTilesOrder, nil
	default:
		return 0, fmt.Errorf("unknown traversal order %q", s)
	}
}

func (t Traversal) String() string {
	switch t {
	case AnyOrder:
		return "any"
	case TopDown:
		return "top_down"
	case BottomUp:
		return "bottom_up"
	case DepthFirst16:
		return "depth_first_16"
	case DepthFirst256:
		return "depth_first_256"
	case PMTilesOrder:
		return "pmtiles"
	}
	return fmt.Sprintf("traversal(%d)", int(t))
}

// TraversePyramid emits the pyramid's tiles as a sequence of bbox chunks
// in the given order. Chunks never span zoom levels and are clipped to
// the pyramid.
func TraversePyramid(p *TileBBoxPyramid, order Traversal) []TileBBox {
	switch order {
	case AnyOrder, TopDown:
		return traverseLevels(p.Levels(), 256)
	case BottomUp:
		levels := p.Levels()
		for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
			levels[i], levels[j] = levels[j], levels[i]
		}
		return traverseLevels(levels, 256)
	case DepthFirst16:
		return traverseDepthFirst(p, 16)
	case DepthFirst256:
		return traverseDepthFirst(p, 256)
	case PMTilesOrder:
		return traverseHilbert(p, 64)
	}
	panic(fmt.Sprintf("unhandled traversal order %d", int(order)))
}

func traverseLevels(levels []TileBBox, chunk uint32) []TileBBox {
	var out []TileBBox
	for _, b := range levels {
		out = append(out, b.SplitGrid(chunk)...)
	}
	return out
}

// traverseDepthFirst emits a chunk, then recursively the four child
// chunk groups below it, before moving on to the chunk's sibling.
func traverseDepthFirst(p *TileBBoxPyramid, chunk uint32) []TileBBox {
	zoomMin, ok := p.ZoomMin()
	if !ok {
		return nil
	}
	zoomMax, _ := p.ZoomMax()

	var out []TileBBox
	var descend func(level uint8, x0, y0 uint32)
	// subtreeHasTiles prunes empty quadrants: it checks the chunk's
	// projection onto every remaining level against the pyramid.
	subtreeHasTiles := func(level uint8, x0, y0 uint32) bool {
		for l := level; l <= zoomMax; l++ {
			shift := l - level
			lb := p.Level(l)
			if lb.IsEmpty() {
				continue
			}
			pxMin := uint64(x0) << shift
			pyMin := uint64(y0) << shift
			pxMax := uint64(x0+chunk)<<shift - 1
			pyMax := uint64(y0+chunk)<<shift - 1
			if pxMin <= uint64(lb.XMax) && pxMax >= uint64(lb.XMin) &&
				pyMin <= uint64(lb.YMax) && pyMax >= uint64(lb.YMin) {
				return true
			}
		}
		return false
	}

	descend = func(level uint8, x0, y0 uint32) {
		if level > zoomMax || !subtreeHasTiles(level, x0, y0) {
			return
		}
		full := TileBBox{Level: level, XMin: x0, YMin: y0,
			XMax: x0 + chunk - 1, YMax: y0 + chunk - 1}
		// Deeper levels may still have tiles under an empty chunk when the
		// pyramid is sparse, so the descent continues regardless.
		clipped := full.Intersect(p.Level(level))
		if !clipped.IsEmpty() {
			out = append(out, clipped)
		}
		// The chunk covers 2*chunk tiles on the next level, which is four
		// chunk-sized children.
		cx, cy := x0*2, y0*2
		descend(level+1, cx, cy)
		descend(level+1, cx+chunk, cy)
		descend(level+1, cx, cy+chunk)
		descend(level+1, cx+chunk, cy+chunk)
	}

	// Roots: the chunk grid over the lowest non-empty level.
	rootLevel := zoomMin
	root := p.Level(rootLevel)
	for y0 := root.YMin - root.YMin%chunk; y0 <= root.YMax; y0 += chunk {
		for x0 := root.XMin - root.XMin%chunk; x0 <= root.XMax; x0 += chunk {
			descend(rootLevel, x0, y0)
		}
	}
	return out
}

// traverseHilbert emits each level's chunks ordered along the Hilbert
// curve of the chunk grid, matching the clustering of PMTiles layouts.
func traverseHilbert(p *TileBBoxPyramid, chunk uint32) []TileBBox {
	var out []TileBBox
	for _, level := range p.Levels() {
		chunks := level.SplitGrid(chunk)
		n := uint64(1) << level.Level
		gridN := (n + uint64(chunk) - 1) / uint64(chunk)
		// Hilbert needs a power-of-two grid.
		pow := uint64(1)
		for pow < gridN {
			pow *= 2
		}
		sort.Slice(chunks, func(i, j int) bool {
			hi := xyToHilbert(uint64(chunks[i].XMin/chunk), uint64(chunks[i].YMin/chunk), pow)
			hj := xyToHilbert(uint64(chunks[j].XMin/chunk), uint64(chunks[j].YMin/chunk), pow)
			return hi < hj
		})
		out = append(out, chunks...)
	}
	return out
}

package coord

import "testing"

func TestBBoxCountLaw(t *testing.T) {
	// iter_coords().count() == (xMax-xMin+1)*(yMax-yMin+1)
	for _, tc := range []struct {
		level                  uint8
		xMin, yMin, xMax, yMax uint32
	}{
		{0, 0, 0, 0, 0},
		{4, 2, 3, 9, 7},
		{8, 0, 0, 255, 255},
		{10, 100, 100, 100, 100},
	} {
		b, err := NewBBox(tc.level, tc.xMin, tc.yMin, tc.xMax, tc.yMax)
		if err != nil {
			t.Fatalf("NewBBox: %v", err)
		}
		want := uint64(tc.xMax-tc.xMin+1) * uint64(tc.yMax-tc.yMin+1)
		if got := uint64(len(b.Coords())); got != want {
			t.Errorf("%v: coord count = %d, want %d", b, got, want)
		}
		if got := b.CountTiles(); got != want {
			t.Errorf("%v: CountTiles = %d, want %d", b, got, want)
		}
	}
}

func TestBBoxValidation(t *testing.T) {
	if _, err := NewBBox(4, 5, 0, 3, 0); err == nil {
		t.Error("inverted x bounds accepted")
	}
	if _, err := NewBBox(4, 0, 0, 16, 0); err == nil {
		t.Error("x beyond grid accepted")
	}
	if _, err := NewBBox(32, 0, 0, 0, 0); err == nil {
		t.Error("level beyond max accepted")
	}
}

func TestBBoxRowMajorOrder(t *testing.T) {
	b := TileBBox{Level: 3, XMin: 1, YMin: 2, XMax: 2, YMax: 3}
	got := b.Coords()
	want := []TileCoord{
		{X: 1, Y: 2, Z: 3}, {X: 2, Y: 2, Z: 3},
		{X: 1, Y: 3, Z: 3}, {X: 2, Y: 3, Z: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d coords, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("coord %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBBoxEmpty(t *testing.T) {
	e := NewBBoxEmpty(5)
	if !e.IsEmpty() {
		t.Fatal("NewBBoxEmpty is not empty")
	}
	if e.CountTiles() != 0 {
		t.Errorf("empty CountTiles = %d", e.CountTiles())
	}
	if len(e.Coords()) != 0 {
		t.Error("empty bbox yields coords")
	}
	grown := e.IncludeCoord(7, 9)
	if grown.IsEmpty() || grown.XMin != 7 || grown.YMax != 9 {
		t.Errorf("IncludeCoord on empty = %v", grown)
	}
}

func TestBBoxIntersectUnion(t *testing.T) {
	a := TileBBox{Level: 6, XMin: 0, YMin: 0, XMax: 10, YMax: 10}
	b := TileBBox{Level: 6, XMin: 5, YMin: 8, XMax: 20, YMax: 20}

	got := a.Intersect(b)
	if got.XMin != 5 || got.YMin != 8 || got.XMax != 10 || got.YMax != 10 {
		t.Errorf("Intersect = %v", got)
	}

	u := a.Union(b)
	if u.XMin != 0 || u.YMin != 0 || u.XMax != 20 || u.YMax != 20 {
		t.Errorf("Union = %v", u)
	}

	far := TileBBox{Level: 6, XMin: 30, YMin: 30, XMax: 31, YMax: 31}
	if !a.Intersect(far).IsEmpty() {
		t.Error("disjoint intersect not empty")
	}
}

func TestBBoxContains(t *testing.T) {
	b := TileBBox{Level: 8, XMin: 100, YMin: 50, XMax: 200, YMax: 80}
	if !b.Contains(TileCoord{X: 150, Y: 60, Z: 8}) {
		t.Error("inside coord not contained")
	}
	if b.Contains(TileCoord{X: 150, Y: 60, Z: 9}) {
		t.Error("wrong level contained")
	}
	if b.Contains(TileCoord{X: 99, Y: 60, Z: 8}) {
		t.Error("outside coord contained")
	}
}

func TestBBoxSplitGrid(t *testing.T) {
	// A full level-10 bbox splits into 4x4 blocks of 256 tiles.
	full := NewBBoxFull(10)
	chunks := full.SplitGrid(256)
	if len(chunks) != 16 {
		t.Fatalf("chunk count = %d, want 16", len(chunks))
	}
	if chunks[0].XMin != 0 || chunks[0].YMin != 0 {
		t.Errorf("first chunk %v is not the NW corner", chunks[0])
	}
	var n uint64
	for _, c := range chunks {
		n += c.CountTiles()
	}
	if n != full.CountTiles() {
		t.Errorf("chunks cover %d tiles, want %d", n, full.CountTiles())
	}

	// Unaligned bbox: chunks are clipped, aligned to the global grid.
	b := TileBBox{Level: 10, XMin: 200, YMin: 200, XMax: 300, YMax: 300}
	chunks = b.SplitGrid(256)
	if len(chunks) != 4 {
		t.Fatalf("chunk count = %d, want 4", len(chunks))
	}
	if chunks[0].XMax != 255 || chunks[0].YMax != 255 {
		t.Errorf("first chunk %v not clipped at block boundary", chunks[0])
	}
}

func TestBBoxTileIndexRoundTrip(t *testing.T) {
	b := TileBBox{Level: 9, XMin: 10, YMin: 20, XMax: 25, YMax: 33}
	i := 0
	b.EachCoord(func(c TileCoord) {
		if got := b.TileIndex(c.X, c.Y); got != i {
			t.Fatalf("TileIndex(%v) = %d, want %d", c, got, i)
		}
		if got := b.CoordAt(i); got != c {
			t.Fatalf("CoordAt(%d) = %v, want %v", i, got, c)
		}
		i++
	})
}

func TestBBoxFromGeo(t *testing.T) {
	b := BBoxFromGeo(2, GeoBBox{West: -10, South: -10, East: 10, North: 10})
	if !b.ContainsXY(1, 1) || !b.ContainsXY(2, 2) {
		t.Errorf("bbox %v misses the central tiles", b)
	}
	world := BBoxFromGeo(3, WorldGeoBBox())
	if world.CountTiles() != 64 {
		t.Errorf("world bbox at z3 has %d tiles, want 64", world.CountTiles())
	}
}

func TestBBoxGeoBBoxRoundTrip(t *testing.T) {
	b := TileBBox{Level: 5, XMin: 3, YMin: 9, XMax: 12, YMax: 14}
	geo := b.GeoBBox()
	if err := geo.Check(); err != nil {
		t.Fatalf("invalid geo bbox: %v", err)
	}
	back := BBoxFromGeo(5, geo)
	if back != b {
		t.Errorf("geo round trip = %v, want %v", back, b)
	}
}

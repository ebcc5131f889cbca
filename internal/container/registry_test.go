package container

import (
	"context"
	"testing"

	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/tile"
)

func TestRegistryUnknownExtension(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.OpenReader(context.Background(), "tiles.mbtiles"); err == nil {
		t.Error("unknown extension accepted")
	}
	if _, err := reg.CreateWriter("out.nope"); err == nil {
		t.Error("unknown writer extension accepted")
	}
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterReader(".mock", func(_ context.Context, name string) (TilesReader, error) {
		return NewMockReader(tile.FormatBin, tile.CompressionNone, coord.NewPyramidFull(0, 1)), nil
	})

	r, err := reg.OpenReader(context.Background(), "anything.mock")
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if r.ContainerName() != "mock" {
		t.Errorf("container = %q", r.ContainerName())
	}

	// URLs with query strings resolve by path extension.
	if _, err := reg.OpenReader(context.Background(), "https://example.org/x.mock?token=1"); err != nil {
		t.Errorf("url with query: %v", err)
	}

	if got := reg.ReaderExtensions(); len(got) != 1 || got[0] != ".mock" {
		t.Errorf("extensions = %v", got)
	}
}

func TestMockReader(t *testing.T) {
	ctx := context.Background()
	mock := NewMockReader(tile.FormatMVT, tile.CompressionGzip, coord.NewPyramidFull(0, 2))

	c := coord.TileCoord{X: 1, Y: 1, Z: 1}
	b, ok, err := mock.Tile(ctx, c)
	if err != nil || !ok {
		t.Fatalf("Tile: ok=%v err=%v", ok, err)
	}

	// Deterministic: the same coordinate yields the same bytes.
	b2, _, _ := mock.Tile(ctx, c)
	if !b.Equal(b2) {
		t.Error("mock payload not deterministic")
	}

	// The payload decompresses into a vector tile with coord properties.
	raw, err := tile.Decompress(b, tile.CompressionGzip)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	vt, err := tile.ParseVectorTile(raw)
	if err != nil {
		t.Fatalf("ParseVectorTile: %v", err)
	}
	layer := vt.Layer("mock")
	if layer == nil || len(layer.Features) != 1 {
		t.Fatal("mock layer malformed")
	}
	if z := layer.Features[0].Properties.MustFloat64("z", -1); z != 1 {
		t.Errorf("z property = %v", z)
	}

	// Outside the pyramid: missing, not an error.
	if _, ok, err := mock.Tile(ctx, coord.TileCoord{X: 0, Y: 0, Z: 9}); ok || err != nil {
		t.Errorf("outside tile: ok=%v err=%v", ok, err)
	}

	// Bulk access covers the clipped bbox.
	got, err := mock.TileStream(ctx, coord.NewBBoxFull(2)).ToMap()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 16 {
		t.Errorf("stream yielded %d tiles, want 16", len(got))
	}
}

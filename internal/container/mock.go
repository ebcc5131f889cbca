package container

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// MockReader is a deterministic in-memory tile source used by tests and
// benchmarks. Every coordinate inside the pyramid yields a payload
// derived from the coordinate, stored under the declared compression.
type MockReader struct {
	params Parameters
	meta   binio.Blob
}

// NewMockReader builds a mock source over the given pyramid.
func NewMockReader(f tile.Format, c tile.Compression, pyramid coord.TileBBoxPyramid) *MockReader {
	return &MockReader{
		params: Parameters{Format: f, Compression: c, Pyramid: pyramid},
		meta:   binio.NewBlobString(`{"name":"mock source"}`),
	}
}

func (r *MockReader) Name() string {
	return "mock"
}

func (r *MockReader) ContainerName() string {
	return "mock"
}

func (r *MockReader) Parameters() *Parameters {
	return &r.params
}

func (r *MockReader) Meta(context.Context) (binio.Blob, error) {
	return r.meta, nil
}

// payload builds the deterministic tile content for a coordinate.
func (r *MockReader) payload(c coord.TileCoord) (binio.Blob, error) {
	var raw binio.Blob
	switch r.params.Format.Category() {
	case tile.CategoryRaster:
		img := image.NewRGBA(image.Rect(0, 0, 16, 16))
		col := color.RGBA{uint8(c.X), uint8(c.Y), uint8(c.Z) * 8, 255}
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				img.SetRGBA(x, y, col)
			}
		}
		var err error
		raw, err = tile.EncodeImage(img, r.params.Format, 0, 1)
		if err != nil {
			return binio.Blob{}, err
		}
	case tile.CategoryVector:
		fc := geojson.NewFeatureCollection()
		f := geojson.NewFeature(orb.Point{
			float64(c.X%16)*256 + 128,
			float64(c.Y%16)*256 + 128,
		})
		f.Properties = geojson.Properties{
			"x": float64(c.X), "y": float64(c.Y), "z": float64(c.Z),
		}
		fc.Append(f)
		vt := tile.NewVectorTile()
		vt.AddLayer("mock", fc)
		var err error
		raw, err = vt.Blob()
		if err != nil {
			return binio.Blob{}, err
		}
	default:
		raw = binio.NewBlobString(c.String())
	}
	return tile.Compress(raw, r.params.Compression)
}

func (r *MockReader) Tile(_ context.Context, c coord.TileCoord) (binio.Blob, bool, error) {
	if !r.params.Pyramid.Contains(c) {
		return binio.Blob{}, false, nil
	}
	b, err := r.payload(c)
	if err != nil {
		return binio.Blob{}, false, err
	}
	return b, true, nil
}

func (r *MockReader) TileStream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[binio.Blob] {
	clipped := bbox.Intersect(r.params.Pyramid.Level(bbox.Level))
	return stream.Generate(ctx, func(emit func(stream.Item[binio.Blob]) bool) error {
		var failed error
		clipped.EachCoord(func(c coord.TileCoord) {
			if failed != nil {
				return
			}
			b, err := r.payload(c)
			if err != nil {
				failed = fmt.Errorf("mock tile %s: %w", c, err)
				return
			}
			if !emit(stream.Item[binio.Blob]{Coord: c, Value: b}) {
				failed = context.Canceled
			}
		})
		if failed == context.Canceled {
			return nil
		}
		return failed
	})
}

func (r *MockReader) Close() error {
	return nil
}

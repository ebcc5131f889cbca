package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/image/font/basicfont"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// generatorSource serves tiles produced by a function over a pyramid.
// The read operators from_color, from_debug and from_tile are all
// generator sources with different producers.
type generatorSource struct {
	name string
	md   Metadata
	tj   *TileJSON
	gen  func(c coord.TileCoord) (*tile.Tile, error)
}

func (s *generatorSource) Metadata() *Metadata { return &s.md }
func (s *generatorSource) TileJSON() *TileJSON { return s.tj }

func (s *generatorSource) Tile(_ context.Context, c coord.TileCoord) (*tile.Tile, error) {
	if !s.md.Pyramid.Contains(c) {
		return nil, nil
	}
	return s.gen(c)
}

func (s *generatorSource) Stream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[*tile.Tile] {
	clipped := bbox.Intersect(s.md.Pyramid.Level(bbox.Level))
	return stream.FromBBoxParallel(ctx, clipped, func(c coord.TileCoord) (*tile.Tile, bool, error) {
		t, err := s.gen(c)
		if err != nil {
			return nil, false, err
		}
		return t, t != nil, nil
	})
}

func (s *generatorSource) SourceType() *SourceType {
	return &SourceType{Kind: "container", Name: s.name}
}

// zoomRange reads the min/max zoom parameters of a generator node.
func zoomRange(node *Node, defMin, defMax int) (uint8, uint8, error) {
	zMin, err := node.IntOr("min", defMin)
	if err != nil {
		return 0, 0, err
	}
	zMax, err := node.IntOr("max", defMax)
	if err != nil {
		return 0, 0, err
	}
	if zMin < 0 || zMax > coord.MaxZoom || zMin > zMax {
		return 0, 0, &ParseError{Node: node.Name, Param: "min",
			Msg: fmt.Sprintf("invalid zoom range [%d,%d]", zMin, zMax)}
	}
	return uint8(zMin), uint8(zMax), nil
}

// buildRead opens a container through the registry.
func buildRead(ctx context.Context, f *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 0, 0); err != nil {
		return nil, err
	}
	filename, err := node.String("filename")
	if err != nil {
		return nil, err
	}
	if !strings.Contains(filename, "://") && !filepath.IsAbs(filename) {
		filename = filepath.Join(f.Runtime().Dir, filename)
	}
	reader, err := f.Runtime().Registry.OpenReader(ctx, filename)
	if err != nil {
		return nil, err
	}
	return NewContainerSource(ctx, reader)
}

// parseHexColor parses RRGGBB or RRGGBBAA.
func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("expected RRGGBB or RRGGBBAA, got %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("not a hex color: %q", s)
	}
	if len(s) == 6 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// buildFromColor produces uniform single-color raster tiles. The tile is
// encoded once at build time and shared by every coordinate.
func buildFromColor(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 0, 0); err != nil {
		return nil, err
	}
	col, err := parseHexColor(node.StringOr("color", "FF0000"))
	if err != nil {
		return nil, &ParseError{Node: node.Name, Param: "color", Msg: err.Error()}
	}
	size, err := node.IntOr("size", 256)
	if err != nil {
		return nil, err
	}
	format, err := tile.ParseFormat(node.StringOr("format", "png"))
	if err != nil {
		return nil, &ParseError{Node: node.Name, Param: "format", Msg: err.Error()}
	}
	if format.Category() != tile.CategoryRaster {
		return nil, &ParseError{Node: node.Name, Param: "format", Msg: "from_color needs a raster format"}
	}
	zMin, zMax, err := zoomRange(node, 0, 12)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(size, size)
	dc.SetColor(col)
	dc.Clear()
	blob, err := tile.EncodeImage(dc.Image(), format, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("encoding color tile: %w", err)
	}

	md := Metadata{
		Format:      format,
		Compression: tile.CompressionNone,
		Pyramid:     coord.NewPyramidFull(zMin, zMax),
		Traversal:   coord.AnyOrder,
	}
	tj := NewTileJSON(&md)
	tj.Name = "from_color"
	return &generatorSource{
		name: "from_color",
		md:   md,
		tj:   tj,
		gen: func(coord.TileCoord) (*tile.Tile, error) {
			return tile.FromBlob(blob, format, tile.CompressionNone), nil
		},
	}, nil
}

// buildFromDebug produces tiles that display their own coordinate:
// raster tiles render the label, vector tiles carry it as properties.
func buildFromDebug(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 0, 0); err != nil {
		return nil, err
	}
	format, err := tile.ParseFormat(node.StringOr("format", "png"))
	if err != nil {
		return nil, &ParseError{Node: node.Name, Param: "format", Msg: err.Error()}
	}
	size, err := node.IntOr("size", 256)
	if err != nil {
		return nil, err
	}
	zMin, zMax, err := zoomRange(node, 0, 12)
	if err != nil {
		return nil, err
	}

	md := Metadata{
		Format:      format,
		Compression: tile.CompressionNone,
		Pyramid:     coord.NewPyramidFull(zMin, zMax),
		Traversal:   coord.AnyOrder,
	}
	tj := NewTileJSON(&md)
	tj.Name = "from_debug"

	var gen func(c coord.TileCoord) (*tile.Tile, error)
	switch format.Category() {
	case tile.CategoryRaster:
		gen = func(c coord.TileCoord) (*tile.Tile, error) {
			return debugRasterTile(c, size, format)
		}
	case tile.CategoryVector:
		tj.VectorLayers = []VectorLayerInfo{{
			ID: "debug", MinZoom: zMin, MaxZoom: zMax,
			Fields: map[string]string{"x": "Number", "y": "Number", "z": "Number", "label": "String"},
		}}
		gen = debugVectorTile
	default:
		return nil, &ParseError{Node: node.Name, Param: "format",
			Msg: fmt.Sprintf("format %s has no debug renderer", format)}
	}

	return &generatorSource{name: "from_debug", md: md, tj: tj, gen: gen}, nil
}

// debugRasterTile renders the coordinate label onto a checkered tile.
func debugRasterTile(c coord.TileCoord, size int, format tile.Format) (*tile.Tile, error) {
	dc := gg.NewContext(size, size)
	if (c.X+c.Y)%2 == 0 {
		dc.SetRGB255(240, 240, 240)
	} else {
		dc.SetRGB255(220, 220, 220)
	}
	dc.Clear()

	dc.SetRGB255(160, 160, 160)
	dc.SetLineWidth(1)
	dc.DrawRectangle(0.5, 0.5, float64(size)-1, float64(size)-1)
	dc.Stroke()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB255(32, 32, 32)
	dc.DrawStringAnchored(c.String(), float64(size)/2, float64(size)/2, 0.5, 0.5)

	blob, err := tile.EncodeImage(dc.Image(), format, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("encoding debug tile %s: %w", c, err)
	}
	return tile.FromBlob(blob, format, tile.CompressionNone), nil
}

// debugVectorTile carries the coordinate as feature properties in a
// "debug" layer.
func debugVectorTile(c coord.TileCoord) (*tile.Tile, error) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{tile.DefaultExtent / 2, tile.DefaultExtent / 2})
	f.Properties = geojson.Properties{
		"x":     float64(c.X),
		"y":     float64(c.Y),
		"z":     float64(c.Z),
		"label": c.String(),
	}
	fc.Append(f)

	vt := tile.NewVectorTile()
	vt.AddLayer("debug", fc)
	return tile.FromVector(vt), nil
}

// buildFromTile serves one tile file for every coordinate.
func buildFromTile(_ context.Context, f *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 0, 0); err != nil {
		return nil, err
	}
	filename, err := node.String("filename")
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(f.Runtime().Dir, filename)
	}
	format, err := tile.ParseFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
	if err != nil {
		return nil, &ParseError{Node: node.Name, Param: "filename", Msg: err.Error()}
	}
	zMin, zMax, err := zoomRange(node, 0, 12)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading tile file: %w", err)
	}
	blob := binio.NewBlob(data)

	md := Metadata{
		Format:      format,
		Compression: tile.CompressionNone,
		Pyramid:     coord.NewPyramidFull(zMin, zMax),
		Traversal:   coord.AnyOrder,
	}
	tj := NewTileJSON(&md)
	tj.Name = filepath.Base(filename)
	return &generatorSource{
		name: "from_tile",
		md:   md,
		tj:   tj,
		gen: func(coord.TileCoord) (*tile.Tile, error) {
			return tile.FromBlob(blob, format, tile.CompressionNone), nil
		},
	}, nil
}

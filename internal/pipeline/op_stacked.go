package pipeline

import (
	"context"
	"fmt"

	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// stackedSource overlays several sources of the same format. For raster
// sources the first input that has a tile wins; for vector sources the
// layers of all inputs are merged into one tile.
type stackedSource struct {
	children []TileSource
	md       Metadata
	tj       *TileJSON
}

// buildStacked composes n sources into one.
func buildStacked(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 1, -1); err != nil {
		return nil, err
	}
	format := inputs[0].Metadata().Format
	for _, in := range inputs[1:] {
		if in.Metadata().Format != format {
			return nil, &ParseError{Node: node.Name,
				Msg: fmt.Sprintf("all inputs must share one format, got %s and %s",
					format, in.Metadata().Format)}
		}
	}

	pyramid := coord.NewPyramidEmpty()
	for _, in := range inputs {
		for _, b := range in.Metadata().Pyramid.Levels() {
			pyramid.IncludeBBox(b)
		}
	}
	md := Metadata{
		Format:      format,
		Compression: tile.CompressionNone,
		Pyramid:     pyramid,
		Traversal:   coord.AnyOrder,
	}
	tj := NewTileJSON(&md)
	tj.Name = "stacked"
	if format == tile.FormatMVT {
		seen := make(map[string]bool)
		for _, in := range inputs {
			for _, l := range in.TileJSON().VectorLayers {
				if !seen[l.ID] {
					seen[l.ID] = true
					tj.VectorLayers = append(tj.VectorLayers, l)
				}
			}
		}
	}

	return &stackedSource{children: inputs, md: md, tj: tj}, nil
}

func (s *stackedSource) Metadata() *Metadata { return &s.md }
func (s *stackedSource) TileJSON() *TileJSON { return s.tj }

func (s *stackedSource) Tile(ctx context.Context, c coord.TileCoord) (*tile.Tile, error) {
	if s.md.Format == tile.FormatMVT {
		return s.mergedVectorTile(ctx, c)
	}
	for _, child := range s.children {
		t, err := child.Tile(ctx, c)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, nil
}

// mergedVectorTile merges the layers of every input that has the tile.
func (s *stackedSource) mergedVectorTile(ctx context.Context, c coord.TileCoord) (*tile.Tile, error) {
	var merged *tile.VectorTile
	for _, child := range s.children {
		t, err := child.Tile(ctx, c)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		vt, err := t.Vector()
		if err != nil {
			return nil, err
		}
		if merged == nil {
			merged = tile.NewVectorTile()
		}
		merged.MergeFrom(vt)
	}
	if merged == nil {
		return nil, nil
	}
	return tile.FromVector(merged), nil
}

func (s *stackedSource) Stream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[*tile.Tile] {
	clipped := bbox.Intersect(s.md.Pyramid.Level(bbox.Level))
	return stream.FromBBoxParallel(ctx, clipped, func(c coord.TileCoord) (*tile.Tile, bool, error) {
		t, err := s.Tile(ctx, c)
		if err != nil {
			return nil, false, err
		}
		return t, t != nil, nil
	})
}

func (s *stackedSource) SourceType() *SourceType {
	st := &SourceType{Kind: "composite", Name: "stacked"}
	for _, child := range s.children {
		st.Inputs = append(st.Inputs, child.SourceType())
	}
	return st
}

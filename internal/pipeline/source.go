package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/versatiles-org/versatiles/internal/binio"
	"github.com/versatiles-org/versatiles/internal/container"
	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// Metadata describes what a tile source serves.
type Metadata struct {
	Format      tile.Format
	Compression tile.Compression
	Pyramid     coord.TileBBoxPyramid
	// Traversal is the order the source's Stream naturally emits.
	Traversal coord.Traversal
}

// SourceType is a tagged provenance tree: containers at the leaves,
// processors and composites above them.
type SourceType struct {
	Kind   string // "container", "processor", "composite"
	Name   string
	Inputs []*SourceType
}

func (st *SourceType) String() string {
	if len(st.Inputs) == 0 {
		return fmt.Sprintf("%s(%s)", st.Kind, st.Name)
	}
	parts := make([]string, len(st.Inputs))
	for i, in := range st.Inputs {
		parts[i] = in.String()
	}
	return fmt.Sprintf("%s(%s: %s)", st.Kind, st.Name, strings.Join(parts, ", "))
}

// TileSource is the universal tile producer contract every pipeline
// operator implements.
type TileSource interface {
	// Metadata returns format, compression, pyramid and traversal order.
	Metadata() *Metadata
	// TileJSON returns the client-facing descriptor.
	TileJSON() *TileJSON
	// Tile returns the tile at a coordinate, or nil for a missing tile.
	Tile(ctx context.Context, c coord.TileCoord) (*tile.Tile, error)
	// Stream emits all tiles intersecting the bbox.
	Stream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[*tile.Tile]
	// SourceType describes the source's provenance.
	SourceType() *SourceType
}

// containerSource adapts a container.TilesReader to the TileSource
// contract, wrapping stored blobs into tiles.
type containerSource struct {
	reader container.TilesReader
	md     Metadata
	tj     *TileJSON
}

// NewContainerSource wraps an opened container reader.
func NewContainerSource(ctx context.Context, reader container.TilesReader) (TileSource, error) {
	params := reader.Parameters()
	md := Metadata{
		Format:      params.Format,
		Compression: params.Compression,
		Pyramid:     params.Pyramid,
		Traversal:   coord.TopDown,
	}
	tj := NewTileJSON(&md)
	tj.Name = reader.Name()

	// A container's metadata payload may refine the descriptor.
	if meta, err := reader.Meta(ctx); err == nil && !meta.IsEmpty() {
		if parsed, err := ParseTileJSON(meta.AsBytes()); err == nil {
			if parsed.Name != "" {
				tj.Name = parsed.Name
			}
			tj.Description = parsed.Description
			tj.Attribution = parsed.Attribution
			tj.VectorLayers = parsed.VectorLayers
		}
	}

	return &containerSource{reader: reader, md: md, tj: tj}, nil
}

func (s *containerSource) Metadata() *Metadata {
	return &s.md
}

func (s *containerSource) TileJSON() *TileJSON {
	return s.tj
}

func (s *containerSource) Tile(ctx context.Context, c coord.TileCoord) (*tile.Tile, error) {
	blob, ok, err := s.reader.Tile(ctx, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return tile.FromBlob(blob, s.md.Format, s.md.Compression), nil
}

func (s *containerSource) Stream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[*tile.Tile] {
	blobs := s.reader.TileStream(ctx, bbox)
	return stream.MapItemParallel(blobs, func(_ coord.TileCoord, b binio.Blob) (*tile.Tile, error) {
		return tile.FromBlob(b, s.md.Format, s.md.Compression), nil
	})
}

func (s *containerSource) SourceType() *SourceType {
	return &SourceType{Kind: "container", Name: s.reader.ContainerName()}
}

// SourceAsReader adapts a TileSource back to the container reader
// contract so container writers can consume pipeline output.
type SourceAsReader struct {
	src  TileSource
	name string
}

// NewSourceAsReader wraps a source for writing.
func NewSourceAsReader(name string, src TileSource) *SourceAsReader {
	return &SourceAsReader{src: src, name: name}
}

func (a *SourceAsReader) Name() string          { return a.name }
func (a *SourceAsReader) ContainerName() string { return "pipeline" }

func (a *SourceAsReader) Parameters() *container.Parameters {
	md := a.src.Metadata()
	return &container.Parameters{
		Format:      md.Format,
		Compression: md.Compression,
		Pyramid:     md.Pyramid,
	}
}

func (a *SourceAsReader) Meta(context.Context) (binio.Blob, error) {
	data, err := a.src.TileJSON().Marshal()
	if err != nil {
		return binio.Blob{}, err
	}
	return binio.NewBlob(data), nil
}

func (a *SourceAsReader) Tile(ctx context.Context, c coord.TileCoord) (binio.Blob, bool, error) {
	t, err := a.src.Tile(ctx, c)
	if err != nil {
		return binio.Blob{}, false, err
	}
	if t == nil {
		return binio.Blob{}, false, nil
	}
	blob, err := t.IntoBlob(a.src.Metadata().Compression)
	if err != nil {
		return binio.Blob{}, false, err
	}
	return blob, true, nil
}

func (a *SourceAsReader) TileStream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[binio.Blob] {
	compression := a.src.Metadata().Compression
	tiles := a.src.Stream(ctx, bbox)
	return stream.MapItemParallel(tiles, func(_ coord.TileCoord, t *tile.Tile) (binio.Blob, error) {
		return t.IntoBlob(compression)
	})
}

func (a *SourceAsReader) Close() error { return nil }

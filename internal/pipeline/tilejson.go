package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// VectorLayerInfo describes one vector layer for clients.
type VectorLayerInfo struct {
	ID          string            `json:"id"`
	Description string            `json:"description,omitempty"`
	MinZoom     uint8             `json:"minzoom"`
	MaxZoom     uint8             `json:"maxzoom"`
	Fields      map[string]string `json:"fields"`
}

// TileJSON is the client-facing descriptor of a tile source, following
// the TileJSON 3.0.0 shape plus the tile_format/tile_type extensions.
type TileJSON struct {
	TileJSON    string `json:"tilejson"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Attribution string `json:"attribution,omitempty"`

	Bounds  [4]float64 `json:"bounds"`
	MinZoom uint8      `json:"minzoom"`
	MaxZoom uint8      `json:"maxzoom"`

	Format string `json:"tile_format"`
	Type   string `json:"tile_type"`
	Schema string `json:"tile_schema"`

	VectorLayers []VectorLayerInfo `json:"vector_layers,omitempty"`
}

// NewTileJSON derives a descriptor from source metadata.
func NewTileJSON(md *Metadata) *TileJSON {
	zoomMin, _ := md.Pyramid.ZoomMin()
	zoomMax, _ := md.Pyramid.ZoomMax()
	geo := md.Pyramid.GeoBBox()

	tj := &TileJSON{
		TileJSON: "3.0.0",
		Bounds:   geo.AsSlice(),
		MinZoom:  zoomMin,
		MaxZoom:  zoomMax,
		Format:   md.Format.String(),
		Schema:   "xyz",
	}
	switch md.Format.Category() {
	case tile.CategoryVector:
		tj.Type = "vector"
	case tile.CategoryRaster:
		tj.Type = "raster"
	default:
		tj.Type = "raster"
	}
	return tj
}

// Clone returns a deep copy.
func (tj *TileJSON) Clone() *TileJSON {
	out := *tj
	out.VectorLayers = append([]VectorLayerInfo(nil), tj.VectorLayers...)
	return &out
}

// Marshal renders the descriptor as JSON.
func (tj *TileJSON) Marshal() ([]byte, error) {
	data, err := json.Marshal(tj)
	if err != nil {
		return nil, fmt.Errorf("serializing tilejson: %w", err)
	}
	return data, nil
}

// ParseTileJSON decodes a descriptor, tolerating unknown fields.
func ParseTileJSON(data []byte) (*TileJSON, error) {
	var tj TileJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parsing tilejson: %w", err)
	}
	return &tj, nil
}

// SetBounds stores a geographic bbox.
func (tj *TileJSON) SetBounds(geo coord.GeoBBox) {
	tj.Bounds = geo.AsSlice()
}

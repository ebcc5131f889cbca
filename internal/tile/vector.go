package tile

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/versatiles-org/versatiles/internal/binio"
)

// DefaultExtent is the coordinate space of a vector tile layer.
const DefaultExtent = 4096

// VectorTile is a decoded Mapbox Vector Tile: a sequence of named layers,
// each carrying features with geometry and a property map. The per-layer
// key/value dictionaries of the wire format are handled by the codec.
type VectorTile struct {
	Layers mvt.Layers
}

// ParseVectorTile decodes uncompressed MVT bytes.
func ParseVectorTile(b binio.Blob) (*VectorTile, error) {
	layers, err := mvt.Unmarshal(b.AsBytes())
	if err != nil {
		return nil, fmt.Errorf("parsing vector tile: %w", err)
	}
	return &VectorTile{Layers: layers}, nil
}

// NewVectorTile returns a tile without layers.
func NewVectorTile() *VectorTile {
	return &VectorTile{}
}

// Blob serializes the tile to uncompressed MVT bytes.
func (vt *VectorTile) Blob() (binio.Blob, error) {
	data, err := mvt.Marshal(vt.Layers)
	if err != nil {
		return binio.Blob{}, fmt.Errorf("serializing vector tile: %w", err)
	}
	return binio.NewBlob(data), nil
}

// Layer returns the named layer, or nil.
func (vt *VectorTile) Layer(name string) *mvt.Layer {
	for _, l := range vt.Layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// AddLayer appends a layer built from a feature collection with the
// default extent and version.
func (vt *VectorTile) AddLayer(name string, fc *geojson.FeatureCollection) *mvt.Layer {
	layer := mvt.NewLayer(name, fc)
	layer.Extent = DefaultExtent
	vt.Layers = append(vt.Layers, layer)
	return layer
}

// FilterLayers keeps only the layers the predicate accepts.
func (vt *VectorTile) FilterLayers(keep func(name string) bool) {
	kept := vt.Layers[:0]
	for _, l := range vt.Layers {
		if keep(l.Name) {
			kept = append(kept, l)
		}
	}
	vt.Layers = kept
}

// MergeFrom appends the other tile's layers. Layers sharing a name are
// combined by concatenating features; the receiving layer's extent wins.
func (vt *VectorTile) MergeFrom(other *VectorTile) {
	for _, l := range other.Layers {
		if existing := vt.Layer(l.Name); existing != nil {
			existing.Features = append(existing.Features, l.Features...)
			continue
		}
		vt.Layers = append(vt.Layers, l)
	}
}

// MapProperties rewrites every feature's properties in the named layer;
// an empty layerName addresses all layers. Returning nil keeps the
// feature's properties unchanged.
func (vt *VectorTile) MapProperties(layerName string, fn func(props geojson.Properties) geojson.Properties) {
	for _, l := range vt.Layers {
		if layerName != "" && l.Name != layerName {
			continue
		}
		for _, f := range l.Features {
			if updated := fn(f.Properties); updated != nil {
				f.Properties = updated
			}
		}
	}
}

// RetainFeatures drops features the predicate rejects; an empty layerName
// addresses all layers.
func (vt *VectorTile) RetainFeatures(layerName string, keep func(f *geojson.Feature) bool) {
	for _, l := range vt.Layers {
		if layerName != "" && l.Name != layerName {
			continue
		}
		kept := l.Features[:0]
		for _, f := range l.Features {
			if keep(f) {
				kept = append(kept, f)
			}
		}
		l.Features = kept
	}
}

// CountFeatures sums the features over all layers.
func (vt *VectorTile) CountFeatures() int {
	n := 0
	for _, l := range vt.Layers {
		n += len(l.Features)
	}
	return n
}

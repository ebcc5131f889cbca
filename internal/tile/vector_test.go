package tile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func poiTile(layer string, ids ...float64) *VectorTile {
	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		f := geojson.NewFeature(orb.Point{id * 10, id * 10})
		f.Properties = geojson.Properties{"id": id}
		fc.Append(f)
	}
	vt := NewVectorTile()
	vt.AddLayer(layer, fc)
	return vt
}

func TestVectorTileFilterLayers(t *testing.T) {
	vt := poiTile("keep", 1)
	vt.MergeFrom(poiTile("drop", 2))
	vt.FilterLayers(func(name string) bool { return name == "keep" })
	if len(vt.Layers) != 1 || vt.Layers[0].Name != "keep" {
		t.Errorf("layers = %v", vt.Layers)
	}
}

func TestVectorTileMergeSameLayer(t *testing.T) {
	a := poiTile("pois", 1, 2)
	b := poiTile("pois", 3)
	a.MergeFrom(b)
	if len(a.Layers) != 1 {
		t.Fatalf("layers = %d", len(a.Layers))
	}
	if a.CountFeatures() != 3 {
		t.Errorf("features = %d", a.CountFeatures())
	}
}

func TestVectorTileMapProperties(t *testing.T) {
	vt := poiTile("pois", 1, 2)
	vt.MapProperties("pois", func(props geojson.Properties) geojson.Properties {
		props["tagged"] = true
		return props
	})
	for _, f := range vt.Layers[0].Features {
		if tagged := f.Properties.MustBool("tagged", false); !tagged {
			t.Error("feature not tagged")
		}
	}

	// A non-matching layer name touches nothing.
	vt.MapProperties("other", func(props geojson.Properties) geojson.Properties {
		props["oops"] = true
		return props
	})
	for _, f := range vt.Layers[0].Features {
		if _, ok := f.Properties["oops"]; ok {
			t.Error("wrong layer mutated")
		}
	}
}

func TestVectorTileRetainFeatures(t *testing.T) {
	vt := poiTile("pois", 1, 2, 3)
	vt.RetainFeatures("", func(f *geojson.Feature) bool {
		return f.Properties.MustFloat64("id", 0) != 2
	})
	if vt.CountFeatures() != 2 {
		t.Errorf("features = %d", vt.CountFeatures())
	}
}

func TestVectorTileWireRoundTrip(t *testing.T) {
	vt := poiTile("pois", 1, 2, 3)
	blob, err := vt.Blob()
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	back, err := ParseVectorTile(blob)
	if err != nil {
		t.Fatalf("ParseVectorTile: %v", err)
	}
	if back.CountFeatures() != 3 {
		t.Errorf("features after round trip = %d", back.CountFeatures())
	}
	if back.Layer("pois") == nil {
		t.Error("layer lost")
	}
	if got := back.Layer("pois").Extent; got != DefaultExtent {
		t.Errorf("extent = %d", got)
	}
}

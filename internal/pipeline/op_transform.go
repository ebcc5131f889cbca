package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/versatiles-org/versatiles/internal/coord"
	"github.com/versatiles-org/versatiles/internal/stream"
	"github.com/versatiles-org/versatiles/internal/tile"
)

// transformSource wraps one upstream source with a per-tile transform
// and optional metadata overrides.
type transformSource struct {
	name   string
	child  TileSource
	md     Metadata
	tj     *TileJSON
	fn     func(ctx context.Context, c coord.TileCoord, t *tile.Tile) (*tile.Tile, error)
	isTerm bool
}

func (s *transformSource) Metadata() *Metadata { return &s.md }
func (s *transformSource) TileJSON() *TileJSON { return s.tj }
func (s *transformSource) terminal() bool      { return s.isTerm }

func (s *transformSource) Tile(ctx context.Context, c coord.TileCoord) (*tile.Tile, error) {
	if !s.md.Pyramid.Contains(c) {
		return nil, nil
	}
	t, err := s.child.Tile(ctx, c)
	if err != nil || t == nil {
		return nil, err
	}
	if s.fn == nil {
		return t, nil
	}
	return s.fn(ctx, c, t)
}

func (s *transformSource) Stream(ctx context.Context, bbox coord.TileBBox) *stream.Stream[*tile.Tile] {
	clipped := bbox.Intersect(s.md.Pyramid.Level(bbox.Level))
	upstream := s.child.Stream(ctx, clipped)
	if s.fn == nil {
		return upstream
	}
	return stream.FilterMapParallel(upstream, func(c coord.TileCoord, t *tile.Tile) (*tile.Tile, bool, error) {
		out, err := s.fn(ctx, c, t)
		if err != nil {
			return nil, false, err
		}
		return out, out != nil, nil
	})
}

func (s *transformSource) SourceType() *SourceType {
	return &SourceType{Kind: "processor", Name: s.name, Inputs: []*SourceType{s.child.SourceType()}}
}

// buildFilterBBox intersects the child's pyramid with geographic and
// zoom constraints. Coordinates outside are answered without fetching.
func buildFilterBBox(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	child := inputs[0]

	md := *child.Metadata()
	if _, ok := node.Params["bbox"]; ok {
		vals, err := node.Floats("bbox", 4)
		if err != nil {
			return nil, err
		}
		geo, err := coord.NewGeoBBox(vals[0], vals[1], vals[2], vals[3])
		if err != nil {
			return nil, &ParseError{Node: node.Name, Param: "bbox", Msg: err.Error()}
		}
		md.Pyramid.IntersectGeo(geo)
	}
	zMin, err := node.IntOr("min", -1)
	if err != nil {
		return nil, err
	}
	if zMin >= 0 {
		md.Pyramid.SetZoomMin(uint8(zMin))
	}
	zMax, err := node.IntOr("max", -1)
	if err != nil {
		return nil, err
	}
	if zMax >= 0 {
		md.Pyramid.SetZoomMax(uint8(zMax))
	}

	tj := child.TileJSON().Clone()
	tj.SetBounds(md.Pyramid.GeoBBox())
	if zoomMin, ok := md.Pyramid.ZoomMin(); ok {
		tj.MinZoom = zoomMin
	}
	if zoomMax, ok := md.Pyramid.ZoomMax(); ok {
		tj.MaxZoom = zoomMax
	}

	return &transformSource{
		name:  "filter_bbox",
		child: child,
		md:    md,
		tj:    tj,
	}, nil
}

// buildMetaUpdate overrides tilejson fields without touching tiles.
func buildMetaUpdate(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	child := inputs[0]
	tj := child.TileJSON().Clone()

	for key, value := range node.Params {
		switch key {
		case "name":
			tj.Name = value
		case "description":
			tj.Description = value
		case "attribution":
			tj.Attribution = value
		default:
			return nil, &ParseError{Node: node.Name, Param: key, Msg: "unknown tilejson field"}
		}
	}

	return &transformSource{
		name:  "meta_update",
		child: child,
		md:    *child.Metadata(),
		tj:    tj,
	}, nil
}

// buildRasterFormat re-encodes every tile into a target raster format.
// The operator is terminal: no further raster transform may follow.
func buildRasterFormat(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	child := inputs[0]
	if child.Metadata().Format.Category() != tile.CategoryRaster {
		return nil, &ParseError{Node: node.Name, Msg: "input must be raster tiles"}
	}

	format, err := tile.ParseFormat(node.StringOr("format", "png"))
	if err != nil {
		return nil, &ParseError{Node: node.Name, Param: "format", Msg: err.Error()}
	}
	if format.Category() != tile.CategoryRaster {
		return nil, &ParseError{Node: node.Name, Param: "format", Msg: "target must be a raster format"}
	}
	quality, err := node.IntOr("quality", 0)
	if err != nil {
		return nil, err
	}
	speed, err := node.IntOr("speed", 0)
	if err != nil {
		return nil, err
	}

	md := *child.Metadata()
	md.Format = format
	md.Compression = tile.CompressionNone
	tj := child.TileJSON().Clone()
	tj.Format = format.String()

	return &transformSource{
		name:   "raster_format",
		child:  child,
		md:     md,
		tj:     tj,
		isTerm: true,
		fn: func(_ context.Context, _ coord.TileCoord, t *tile.Tile) (*tile.Tile, error) {
			if err := t.ChangeFormat(format, quality, speed); err != nil {
				return nil, err
			}
			return t, nil
		},
	}, nil
}

// buildVectorFilterLayers keeps only the named layers of vector tiles.
func buildVectorFilterLayers(_ context.Context, _ *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	child := inputs[0]
	if child.Metadata().Format != tile.FormatMVT {
		return nil, &ParseError{Node: node.Name, Msg: "input must be vector tiles"}
	}
	layersParam, err := node.String("layers")
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool)
	for _, name := range strings.Split(layersParam, ",") {
		if name = strings.TrimSpace(name); name != "" {
			keep[name] = true
		}
	}
	if len(keep) == 0 {
		return nil, &ParseError{Node: node.Name, Param: "layers", Msg: "no layers named"}
	}

	tj := child.TileJSON().Clone()
	kept := tj.VectorLayers[:0]
	for _, l := range tj.VectorLayers {
		if keep[l.ID] {
			kept = append(kept, l)
		}
	}
	tj.VectorLayers = kept

	compression := child.Metadata().Compression
	return &transformSource{
		name:  "vector_filter_layers",
		child: child,
		md:    *child.Metadata(),
		tj:    tj,
		fn: func(_ context.Context, _ coord.TileCoord, t *tile.Tile) (*tile.Tile, error) {
			vt, err := t.VectorMut()
			if err != nil {
				return nil, err
			}
			vt.FilterLayers(func(name string) bool { return keep[name] })
			if len(vt.Layers) == 0 {
				return nil, nil
			}
			if err := t.ChangeCompression(compression); err != nil {
				return nil, err
			}
			return t, nil
		},
	}, nil
}

// buildUpdateProperties joins an external CSV into vector tile feature
// properties. The CSV is loaded once at build time; per-tile work is a
// dictionary lookup per feature.
func buildUpdateProperties(_ context.Context, f *Factory, node *Node, inputs []TileSource) (TileSource, error) {
	if err := requireInputs(node, inputs, 1, 1); err != nil {
		return nil, err
	}
	child := inputs[0]
	if child.Metadata().Format != tile.FormatMVT {
		return nil, &ParseError{Node: node.Name, Msg: "input must be vector tiles"}
	}

	dataPath, err := node.String("data_source_path")
	if err != nil {
		return nil, err
	}
	idFieldTiles, err := node.String("id_field_tiles")
	if err != nil {
		return nil, err
	}
	idFieldValues, err := node.String("id_field_values")
	if err != nil {
		return nil, err
	}
	layerName := node.StringOr("layer_name", "")
	replaceProps, err := node.BoolOr("replace_properties", false)
	if err != nil {
		return nil, err
	}
	removeEmpty, err := node.BoolOr("remove_empty_properties", false)
	if err != nil {
		return nil, err
	}
	addID, err := node.BoolOr("add_id", false)
	if err != nil {
		return nil, err
	}

	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(f.Runtime().Dir, dataPath)
	}
	values, err := loadCSVProperties(dataPath, idFieldValues, addID)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", dataPath, err)
	}

	bus := f.Runtime().Bus
	compression := child.Metadata().Compression

	return &transformSource{
		name:  "vectortiles_update_properties",
		child: child,
		md:    *child.Metadata(),
		tj:    child.TileJSON().Clone(),
		fn: func(_ context.Context, c coord.TileCoord, t *tile.Tile) (*tile.Tile, error) {
			vt, err := t.VectorMut()
			if err != nil {
				return nil, err
			}
			vt.MapProperties(layerName, func(props geojson.Properties) geojson.Properties {
				id, ok := props[idFieldTiles]
				if !ok {
					bus.Warn(fmt.Sprintf("tile %s: id field %q not found in feature", c, idFieldTiles))
					return nil
				}
				newProps, ok := values[propertyKey(id)]
				if !ok {
					bus.Warn(fmt.Sprintf("tile %s: id %q not found in data source", c, propertyKey(id)))
					return nil
				}
				if replaceProps {
					return cloneProperties(newProps)
				}
				merged := cloneProperties(props)
				if !addID {
					delete(merged, idFieldTiles)
				}
				for k, v := range newProps {
					merged[k] = v
				}
				return merged
			})
			if removeEmpty {
				vt.RetainFeatures(layerName, func(f *geojson.Feature) bool {
					return len(f.Properties) > 0
				})
			}
			if err := t.ChangeCompression(compression); err != nil {
				return nil, err
			}
			return t, nil
		},
	}, nil
}

// loadCSVProperties reads the CSV into an id -> properties map. A
// missing id column is an input error.
func loadCSVProperties(path, idField string, keepID bool) (map[string]geojson.Properties, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	idCol := -1
	for i, name := range header {
		if name == idField {
			idCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("csv has no column %q (columns: %v)", idField, header)
	}

	values := make(map[string]geojson.Properties)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		props := make(geojson.Properties, len(header))
		for i, field := range record {
			if i == idCol && !keepID {
				continue
			}
			if i < len(header) {
				props[header[i]] = csvValue(field)
			}
		}
		values[record[idCol]] = props
	}
	return values, nil
}

// csvValue converts a CSV field into a scalar: number, bool or string.
func csvValue(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// propertyKey renders a property value the way ids are written in CSV.
func propertyKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func cloneProperties(props geojson.Properties) geojson.Properties {
	out := make(geojson.Properties, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}


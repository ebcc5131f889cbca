package pipeline

import (
	"context"
	"fmt"
)

// buildFunc constructs an operator from its parsed node and already
// built inputs.
type buildFunc func(ctx context.Context, f *Factory, node *Node, inputs []TileSource) (TileSource, error)

// Factory builds pipelines: it maps operator names to constructors and
// carries the runtime every operator is wired to.
type Factory struct {
	rt       *Runtime
	builders map[string]buildFunc
}

// NewFactory creates a factory with the standard operators registered.
func NewFactory(rt *Runtime) *Factory {
	f := &Factory{rt: rt, builders: make(map[string]buildFunc)}

	// Read operators.
	f.Register("read", buildRead)
	f.Register("from_color", buildFromColor)
	f.Register("from_debug", buildFromDebug)
	f.Register("from_tile", buildFromTile)

	// Transform operators.
	f.Register("filter_bbox", buildFilterBBox)
	f.Register("meta_update", buildMetaUpdate)
	f.Register("raster_format", buildRasterFormat)
	f.Register("vector_filter_layers", buildVectorFilterLayers)
	f.Register("vectortiles_update_properties", buildUpdateProperties)

	// Composite operators.
	f.Register("stacked", buildStacked)

	return f
}

// Runtime returns the runtime operators are wired to.
func (f *Factory) Runtime() *Runtime {
	return f.rt
}

// Register binds an operator name to its constructor.
func (f *Factory) Register(name string, fn buildFunc) {
	f.builders[name] = fn
}

// BuildPipeline parses and builds a pipeline, returning the root source.
func (f *Factory) BuildPipeline(ctx context.Context, src string) (TileSource, error) {
	root, err := ParsePipeline(src)
	if err != nil {
		return nil, err
	}
	return f.Build(ctx, root)
}

// Build constructs the operator tree bottom-up and validates every edge.
func (f *Factory) Build(ctx context.Context, node *Node) (TileSource, error) {
	fn, ok := f.builders[node.Name]
	if !ok {
		return nil, &ParseError{Node: node.Name, Msg: "unknown operator"}
	}

	inputs := make([]TileSource, len(node.Children))
	for i, child := range node.Children {
		built, err := f.Build(ctx, child)
		if err != nil {
			return nil, err
		}
		if term, ok := built.(interface{ terminal() bool }); ok && term.terminal() {
			return nil, &ParseError{Node: node.Name,
				Msg: fmt.Sprintf("operator %q is terminal and cannot feed %q", child.Name, node.Name)}
		}
		inputs[i] = built
	}

	source, err := fn(ctx, f, node, inputs)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// requireInputs validates the input count of an operator.
func requireInputs(node *Node, inputs []TileSource, min, max int) error {
	if len(inputs) < min || (max >= 0 && len(inputs) > max) {
		if min == max {
			return &ParseError{Node: node.Name, Msg: fmt.Sprintf("needs exactly %d input(s), got %d", min, len(inputs))}
		}
		return &ParseError{Node: node.Name, Msg: fmt.Sprintf("needs %d..%d inputs, got %d", min, max, len(inputs))}
	}
	return nil
}

package pipeline

import (
	"strings"
	"testing"
)

func TestParseSingleNode(t *testing.T) {
	n, err := ParsePipeline(`from_color color=FF5733 size=512 format=png`)
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if n.Name != "from_color" {
		t.Errorf("name = %q", n.Name)
	}
	if n.Params["color"] != "FF5733" || n.Params["size"] != "512" || n.Params["format"] != "png" {
		t.Errorf("params = %v", n.Params)
	}
	if len(n.Children) != 0 {
		t.Errorf("children = %d", len(n.Children))
	}
}

func TestParsePipeChain(t *testing.T) {
	n, err := ParsePipeline(`read filename="world.versatiles" | filter_bbox bbox=[-10,-10,10,10] min=0 max=5 | raster_format format=webp quality=90`)
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if n.Name != "raster_format" {
		t.Fatalf("root = %q", n.Name)
	}
	if len(n.Children) != 1 || n.Children[0].Name != "filter_bbox" {
		t.Fatalf("middle = %v", n.Children)
	}
	mid := n.Children[0]
	if mid.Params["bbox"] != "[-10,-10,10,10]" {
		t.Errorf("bbox param = %q", mid.Params["bbox"])
	}
	if len(mid.Children) != 1 || mid.Children[0].Name != "read" {
		t.Fatalf("leaf = %v", mid.Children)
	}
	if mid.Children[0].Params["filename"] != "world.versatiles" {
		t.Errorf("filename = %q", mid.Children[0].Params["filename"])
	}
}

func TestParseBracketGroups(t *testing.T) {
	n, err := ParsePipeline(`stacked [ from_debug format=mvt ] [ from_debug format=mvt min=2 ]`)
	if err != nil {
		t.Fatalf("ParsePipeline: %v", err)
	}
	if n.Name != "stacked" || len(n.Children) != 2 {
		t.Fatalf("node = %+v", n)
	}
	if n.Children[1].Params["min"] != "2" {
		t.Errorf("second child params = %v", n.Children[1].Params)
	}
}

func TestParseErrorsNameTheNode(t *testing.T) {
	_, err := ParsePipeline(`from_color nonsense`)
	if err == nil {
		t.Fatal("bad parameter accepted")
	}
	if !strings.Contains(err.Error(), "from_color") {
		t.Errorf("error does not name the node: %v", err)
	}

	_, err = ParsePipeline(`from_color color=aa color=bb`)
	if err == nil || !strings.Contains(err.Error(), "color") {
		t.Errorf("duplicate parameter error does not name the parameter: %v", err)
	}

	if _, err = ParsePipeline(`a | `); err == nil {
		t.Error("dangling pipe accepted")
	}
	if _, err = ParsePipeline(`a [ b`); err == nil {
		t.Error("unclosed group accepted")
	}
	if _, err = ParsePipeline(`a key="unterminated`); err == nil {
		t.Error("unterminated string accepted")
	}
}

func TestParamAccessors(t *testing.T) {
	n, err := ParsePipeline(`op a=5 b=yes c=[1,2,3.5] d=text`)
	if err != nil {
		t.Fatal(err)
	}
	if v, err := n.IntOr("a", 0); err != nil || v != 5 {
		t.Errorf("IntOr(a) = %d, %v", v, err)
	}
	if v, err := n.IntOr("missing", 7); err != nil || v != 7 {
		t.Errorf("IntOr(missing) = %d, %v", v, err)
	}
	if v, err := n.BoolOr("b", false); err != nil || !v {
		t.Errorf("BoolOr(b) = %v, %v", v, err)
	}
	vals, err := n.Floats("c", 3)
	if err != nil || vals[2] != 3.5 {
		t.Errorf("Floats(c) = %v, %v", vals, err)
	}
	if _, err := n.Floats("c", 4); err == nil {
		t.Error("wrong arity accepted")
	}
	if _, err := n.IntOr("d", 0); err == nil {
		t.Error("non-integer accepted")
	}
	if _, err := n.String("missing"); err == nil {
		t.Error("missing required parameter accepted")
	}
}

func TestParseComments(t *testing.T) {
	n, err := ParsePipeline("from_debug format=png # renders coordinates\n")
	if err != nil {
		t.Fatal(err)
	}
	if n.Params["format"] != "png" {
		t.Errorf("params = %v", n.Params)
	}
}

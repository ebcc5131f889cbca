package coord

import "fmt"

// GeoBBox is a geographic bounding box in WGS84 degrees.
type GeoBBox struct {
	West, South, East, North float64
}

// NewGeoBBox validates and constructs a GeoBBox.
func NewGeoBBox(west, south, east, north float64) (GeoBBox, error) {
	b := GeoBBox{West: west, South: south, East: east, North: north}
	if err := b.Check(); err != nil {
		return GeoBBox{}, err
	}
	return b, nil
}

// WorldGeoBBox covers the full Web Mercator extent.
func WorldGeoBBox() GeoBBox {
	return GeoBBox{West: -180, South: -90, East: 180, North: 90}
}

// Check verifies the bounds invariants.
func (b GeoBBox) Check() error {
	if b.West < -180 || b.East > 180 {
		return fmt.Errorf("longitude out of range [-180,180]: west=%g east=%g", b.West, b.East)
	}
	if b.South < -90 || b.North > 90 {
		return fmt.Errorf("latitude out of range [-90,90]: south=%g north=%g", b.South, b.North)
	}
	if b.West > b.East {
		return fmt.Errorf("west (%g) must be <= east (%g)", b.West, b.East)
	}
	if b.South > b.North {
		return fmt.Errorf("south (%g) must be <= north (%g)", b.South, b.North)
	}
	return nil
}

// Extend grows the bbox to cover other.
func (b GeoBBox) Extend(other GeoBBox) GeoBBox {
	if other.West < b.West {
		b.West = other.West
	}
	if other.South < b.South {
		b.South = other.South
	}
	if other.East > b.East {
		b.East = other.East
	}
	if other.North > b.North {
		b.North = other.North
	}
	return b
}

// AsSlice returns [west, south, east, north].
func (b GeoBBox) AsSlice() [4]float64 {
	return [4]float64{b.West, b.South, b.East, b.North}
}

func (b GeoBBox) String() string {
	return fmt.Sprintf("[%g,%g,%g,%g]", b.West, b.South, b.East, b.North)
}

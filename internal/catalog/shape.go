package catalog

import (
	"fmt"
	"strings"
)

// Shape identifies the collision geometry registered for a block.
type Shape uint8

const (
	ShapeEmpty Shape = iota
	ShapeFull
	ShapeSlab
	ShapeFence
	ShapeWall
	ShapePane
	ShapeMat
	ShapeFarmland
	ShapeHatch
	ShapeDoor
	ShapeGate
	ShapeTall
)

// Box is an axis-aligned box. Shape boxes are expressed in cell-local units
// where the owning cell spans [0,1] on every axis.
type Box struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Offset translates the box by the given amounts.
func (b Box) Offset(dx, dy, dz float64) Box {
	return Box{
		MinX: b.MinX + dx, MinY: b.MinY + dy, MinZ: b.MinZ + dz,
		MaxX: b.MaxX + dx, MaxY: b.MaxY + dy, MaxZ: b.MaxZ + dz,
	}
}

// Intersects reports whether the two boxes overlap by more than eps on every
// axis. Touching faces do not count as an intersection.
func (b Box) Intersects(o Box, eps float64) bool {
	return b.MinX < o.MaxX-eps && b.MaxX > o.MinX+eps &&
		b.MinY < o.MaxY-eps && b.MaxY > o.MinY+eps &&
		b.MinZ < o.MaxZ-eps && b.MaxZ > o.MinZ+eps
}

type shapeInfo struct {
	name   string
	closed []Box
	// open holds the geometry once an openable block has been opened.
	open []Box
}

var fullCube = Box{MaxX: 1, MaxY: 1, MaxZ: 1}

var shapeTable = [...]shapeInfo{
	ShapeEmpty: {name: "empty"},
	ShapeFull:  {name: "full", closed: []Box{fullCube}, open: []Box{fullCube}},
	ShapeSlab: {name: "slab", closed: []Box{{MaxX: 1, MaxY: 0.5, MaxZ: 1}},
		open: []Box{{MaxX: 1, MaxY: 0.5, MaxZ: 1}}},
	ShapeFence: {name: "fence", closed: []Box{{MinX: 0.375, MinZ: 0.375, MaxX: 0.625, MaxY: 1.5, MaxZ: 0.625}},
		open: []Box{{MinX: 0.375, MinZ: 0.375, MaxX: 0.625, MaxY: 1.5, MaxZ: 0.625}}},
	ShapeWall: {name: "wall", closed: []Box{{MinX: 0.25, MinZ: 0.25, MaxX: 0.75, MaxY: 1.5, MaxZ: 0.75}},
		open: []Box{{MinX: 0.25, MinZ: 0.25, MaxX: 0.75, MaxY: 1.5, MaxZ: 0.75}}},
	ShapePane: {name: "pane", closed: []Box{{MinX: 0.4375, MinZ: 0.4375, MaxX: 0.5625, MaxY: 1, MaxZ: 0.5625}},
		open: []Box{{MinX: 0.4375, MinZ: 0.4375, MaxX: 0.5625, MaxY: 1, MaxZ: 0.5625}}},
	ShapeMat: {name: "mat", closed: []Box{{MaxX: 1, MaxY: 0.0625, MaxZ: 1}},
		open: []Box{{MaxX: 1, MaxY: 0.0625, MaxZ: 1}}},
	ShapeFarmland: {name: "farmland", closed: []Box{{MaxX: 1, MaxY: 0.9375, MaxZ: 1}},
		open: []Box{{MaxX: 1, MaxY: 0.9375, MaxZ: 1}}},
	ShapeHatch: {name: "hatch", closed: []Box{{MaxX: 1, MaxY: 0.1875, MaxZ: 1}}},
	ShapeDoor:  {name: "door", closed: []Box{fullCube}},
	ShapeGate:  {name: "gate", closed: []Box{{MinZ: 0.375, MaxX: 1, MaxY: 1.5, MaxZ: 0.625}}},
	ShapeTall:  {name: "tall", closed: []Box{{MaxX: 1, MaxY: 1.5, MaxZ: 1}}, open: []Box{{MaxX: 1, MaxY: 1.5, MaxZ: 1}}},
}

func (s Shape) info() shapeInfo {
	if int(s) >= len(shapeTable) {
		return shapeTable[ShapeFull]
	}
	return shapeTable[s]
}

// Boxes returns the cell-local collision boxes for the shape. Shapes outside
// the table resolve to a full cube.
func (s Shape) Boxes(open bool) []Box {
	info := s.info()
	if open {
		return info.open
	}
	return info.closed
}

// Top returns the highest collision surface of the shape in cell-local units,
// or 0 when the shape has no collision in the given state.
func (s Shape) Top(open bool) float64 {
	top := 0.0
	for _, box := range s.Boxes(open) {
		if box.MaxY > top {
			top = box.MaxY
		}
	}
	return top
}

// Openable reports whether opening the block changes its geometry.
func (s Shape) Openable() bool {
	switch s {
	case ShapeHatch, ShapeDoor, ShapeGate:
		return true
	default:
		return false
	}
}

func (s Shape) String() string {
	return s.info().name
}

// ParseShape resolves a shape by its registered name.
func ParseShape(name string) (Shape, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for idx, info := range shapeTable {
		if info.name == name {
			return Shape(idx), nil
		}
	}
	return ShapeFull, fmt.Errorf("unknown shape %q", name)
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ShapeNames lists every registered shape name in table order.
func ShapeNames() []string {
	names := make([]string, 0, len(shapeTable))
	for _, info := range shapeTable {
		names = append(names, info.name)
	}
	return names
}

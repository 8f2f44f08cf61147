package catalog

import "testing"

func TestShapeTops(t *testing.T) {
	tests := []struct {
		shape Shape
		open  bool
		want  float64
	}{
		{ShapeEmpty, false, 0},
		{ShapeFull, false, 1},
		{ShapeSlab, false, 0.5},
		{ShapeFence, false, 1.5},
		{ShapeWall, false, 1.5},
		{ShapePane, false, 1},
		{ShapeMat, false, 0.0625},
		{ShapeFarmland, false, 0.9375},
		{ShapeHatch, false, 0.1875},
		{ShapeHatch, true, 0},
		{ShapeDoor, false, 1},
		{ShapeDoor, true, 0},
		{ShapeGate, false, 1.5},
		{ShapeGate, true, 0},
		{ShapeTall, false, 1.5},
	}
	for _, tt := range tests {
		if got := tt.shape.Top(tt.open); got != tt.want {
			t.Fatalf("%s (open=%v) top = %v, want %v", tt.shape, tt.open, got, tt.want)
		}
	}
}

func TestShapeOutsideTableIsFullCube(t *testing.T) {
	bogus := Shape(200)
	boxes := bogus.Boxes(false)
	if len(boxes) != 1 || boxes[0] != fullCube {
		t.Fatalf("expected full cube fallback, got %+v", boxes)
	}
}

func TestParseShapeRoundTrip(t *testing.T) {
	for _, name := range ShapeNames() {
		shape, err := ParseShape(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if shape.String() != name {
			t.Fatalf("shape %q stringifies as %q", name, shape.String())
		}
	}
	if _, err := ParseShape("blob"); err == nil {
		t.Fatalf("expected unknown shape to fail")
	}
}

func TestBoxIntersectsIgnoresTouchingFaces(t *testing.T) {
	a := Box{MaxX: 1, MaxY: 1, MaxZ: 1}
	b := a.Offset(1, 0, 0)
	if a.Intersects(b, 1e-9) {
		t.Fatalf("touching boxes should not intersect")
	}
	c := a.Offset(0.5, 0.5, 0.5)
	if !a.Intersects(c, 1e-9) {
		t.Fatalf("overlapping boxes should intersect")
	}
}

package pathfinding

import (
	"math"
	"testing"

	"voxelnav/internal/catalog"
)

func TestColliderCollides(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(2, 0, 0), catalog.Fence)
	w.set(bc(4, 1, 0), catalog.Stone)
	collider := DefaultCollider()

	tests := []struct {
		name string
		pos  Vec3
		want bool
	}{
		{name: "resting on floor", pos: Vec3{X: 0.5, Y: 0, Z: 0.5}, want: false},
		{name: "sunk into floor", pos: Vec3{X: 0.5, Y: -0.5, Z: 0.5}, want: true},
		{name: "inside fence post", pos: Vec3{X: 2.5, Y: 0, Z: 0.5}, want: true},
		{name: "above fence cell within post height", pos: Vec3{X: 2.5, Y: 1.2, Z: 0.5}, want: true},
		{name: "on top of fence post", pos: Vec3{X: 2.5, Y: 1.5, Z: 0.5}, want: false},
		{name: "beside fence post", pos: Vec3{X: 1.5, Y: 0, Z: 0.5}, want: false},
		{name: "head in overhang", pos: Vec3{X: 4.5, Y: 0, Z: 0.5}, want: true},
		{name: "straddling overhang edge", pos: Vec3{X: 3.75, Y: 0, Z: 0.5}, want: true},
		{name: "outside loaded area", pos: Vec3{X: 20.5, Y: 0, Z: 0.5}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collider.Collides(w, tt.pos); got != tt.want {
				t.Fatalf("expected collides=%v at %+v", tt.want, tt.pos)
			}
		})
	}
}

func TestColliderCollidesShapes(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(2, 0, 0), catalog.Wall)
	w.set(bc(4, 0, 0), catalog.Pane)
	w.set(bc(6, 0, 0), catalog.Carpet)
	w.set(bc(8, 0, 0), catalog.Farmland)
	w.set(bc(10, 0, 0), catalog.Trapdoor)
	w.set(bc(10, 0, -2), catalog.Trapdoor)
	w.setOpen(bc(10, 0, -2), true)
	w.set(bc(0, 0, 2), catalog.FenceGate)
	w.set(bc(2, 0, 2), catalog.Barricade)
	collider := DefaultCollider()

	tests := []struct {
		name string
		pos  Vec3
		want bool
	}{
		// wall post spans x,z [0.25,0.75] up to 1.5
		{name: "wall mid-cell", pos: Vec3{X: 2.5, Y: 0, Z: 0.5}, want: true},
		{name: "wall cell boundary", pos: Vec3{X: 2.0, Y: 0, Z: 0.5}, want: true},
		{name: "wall straddling post edge", pos: Vec3{X: 1.96, Y: 0, Z: 0.5}, want: true},
		{name: "wall short of post edge", pos: Vec3{X: 1.94, Y: 0, Z: 0.5}, want: false},
		{name: "wall below post top", pos: Vec3{X: 2.5, Y: 1.45, Z: 0.5}, want: true},
		{name: "wall on post top", pos: Vec3{X: 2.5, Y: 1.5, Z: 0.5}, want: false},
		// pane spans x,z [0.4375,0.5625] up to 1
		{name: "pane mid-cell", pos: Vec3{X: 4.5, Y: 0, Z: 0.5}, want: true},
		{name: "pane cell boundary", pos: Vec3{X: 4.0, Y: 0, Z: 0.5}, want: false},
		{name: "pane straddling post edge", pos: Vec3{X: 4.15, Y: 0, Z: 0.5}, want: true},
		{name: "pane short of post edge", pos: Vec3{X: 4.13, Y: 0, Z: 0.5}, want: false},
		{name: "pane on top", pos: Vec3{X: 4.5, Y: 1, Z: 0.5}, want: false},
		{name: "mat top", pos: Vec3{X: 6.5, Y: 0.0625, Z: 0.5}, want: false},
		{name: "mat sunk", pos: Vec3{X: 6.5, Y: 0.05, Z: 0.5}, want: true},
		{name: "mat sunk at cell boundary", pos: Vec3{X: 6.0, Y: 0.05, Z: 0.5}, want: true},
		{name: "farmland top", pos: Vec3{X: 8.5, Y: 0.9375, Z: 0.5}, want: false},
		{name: "farmland sunk", pos: Vec3{X: 8.5, Y: 0.93, Z: 0.5}, want: true},
		{name: "closed hatch top", pos: Vec3{X: 10.5, Y: 0.1875, Z: 0.5}, want: false},
		{name: "closed hatch sunk", pos: Vec3{X: 10.5, Y: 0.18, Z: 0.5}, want: true},
		{name: "open hatch", pos: Vec3{X: 10.5, Y: 0, Z: -1.5}, want: false},
		// closed gate spans x [0,1], z [0.375,0.625] up to 1.5
		{name: "gate mid-cell", pos: Vec3{X: 0.5, Y: 0, Z: 2.5}, want: true},
		{name: "gate cell boundary", pos: Vec3{X: 0.5, Y: 0, Z: 2.0}, want: false},
		{name: "gate crossing top", pos: Vec3{X: 0.5, Y: 1.49, Z: 2.5}, want: true},
		{name: "gate above top", pos: Vec3{X: 0.5, Y: 1.5, Z: 2.5}, want: false},
		{name: "tall mid-cell", pos: Vec3{X: 2.5, Y: 0, Z: 2.5}, want: true},
		{name: "tall straddling cell boundary", pos: Vec3{X: 1.75, Y: 0, Z: 2.5}, want: true},
		{name: "tall touching cell boundary", pos: Vec3{X: 1.7, Y: 0, Z: 2.5}, want: false},
		{name: "tall crossing top", pos: Vec3{X: 2.5, Y: 1.2, Z: 2.5}, want: true},
		{name: "tall above top", pos: Vec3{X: 2.5, Y: 1.5, Z: 2.5}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collider.Collides(w, tt.pos); got != tt.want {
				t.Fatalf("expected collides=%v at %+v", tt.want, tt.pos)
			}
			if got := BoxCollides(w, collider.BoxAt(tt.pos)); got != tt.want {
				t.Fatalf("expected box collides=%v at %+v", tt.want, tt.pos)
			}
		})
	}
}

func TestColliderCanStand(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(2, 0, 0), catalog.Fence)
	w.set(bc(3, 0, 0), catalog.Slab)
	w.set(bc(5, 0, 0), catalog.Water)
	w.fill(7, 7, 0, 1, 0, 0, catalog.Stone)
	collider := DefaultCollider()

	tests := []struct {
		name string
		cell [3]int
		want bool
	}{
		{name: "floor", cell: [3]int{0, 0, 0}, want: true},
		{name: "slab", cell: [3]int{3, 0, 0}, want: true},
		{name: "fence top", cell: [3]int{2, 1, 0}, want: true},
		{name: "fence cell", cell: [3]int{2, 0, 0}, want: false},
		{name: "floating", cell: [3]int{0, 2, 0}, want: false},
		{name: "water over floor", cell: [3]int{5, 0, 0}, want: true},
		{name: "pillar", cell: [3]int{7, 0, 0}, want: false},
		{name: "pillar top", cell: [3]int{7, 2, 0}, want: true},
		{name: "inside floor", cell: [3]int{0, -1, 0}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := bc(tt.cell[0], tt.cell[1], tt.cell[2])
			if got := collider.CanStand(w, c); got != tt.want {
				t.Fatalf("expected CanStand(%v)=%v", c, tt.want)
			}
		})
	}
}

func TestObstaclesAreWorldSpace(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(3, 0, 1), catalog.Slab)
	box := DefaultCollider().BoxAt(Vec3{X: 3.5, Y: 0.5, Z: 1.5})

	obstacles := Obstacles(w, box)
	var foundSlab, foundFloor bool
	for _, o := range obstacles {
		if o.MinX == 3 && o.MinZ == 1 && o.MinY == 0 && o.MaxY == 0.5 {
			foundSlab = true
		}
		if o.MinX == 3 && o.MinZ == 1 && o.MinY == -1 && o.MaxY == 0 {
			foundFloor = true
		}
	}
	if !foundSlab || !foundFloor {
		t.Fatalf("expected slab and floor boxes in %+v", obstacles)
	}
	if BoxCollides(w, box) {
		t.Fatalf("body resting on the slab should not collide")
	}
}

func TestSupported(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	collider := DefaultCollider()
	if !collider.Supported(w, Vec3{X: 1.5, Y: 0, Z: 0.5}) {
		t.Fatalf("expected floor support")
	}
	if collider.Supported(w, Vec3{X: 1.5, Y: 0.2, Z: 0.5}) {
		t.Fatalf("expected no support while airborne")
	}
}

func TestStandingHeight(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(1, 0, 0), catalog.Slab)
	w.set(bc(2, 0, 0), catalog.Carpet)
	w.set(bc(3, 0, 0), catalog.Farmland)
	w.set(bc(4, 0, 0), catalog.Trapdoor)
	w.set(bc(5, 0, 0), catalog.Trapdoor)
	w.setOpen(bc(5, 0, 0), true)
	w.set(bc(6, 0, 0), catalog.Fence)
	w.set(bc(7, 0, 0), catalog.Stone)

	tests := []struct {
		name string
		x, y int
		want float64
	}{
		{name: "floor", x: 0, y: 0, want: 0},
		{name: "slab", x: 1, y: 0, want: 0.5},
		{name: "carpet", x: 2, y: 0, want: 0.0625},
		{name: "farmland", x: 3, y: 0, want: 0.9375},
		{name: "closed hatch", x: 4, y: 0, want: 0.1875},
		{name: "open hatch", x: 5, y: 0, want: 0},
		{name: "above slab", x: 1, y: 1, want: 1},
		{name: "fence cell", x: 6, y: 0, want: 0},
		{name: "above fence", x: 6, y: 1, want: 1.5},
		{name: "full block", x: 7, y: 0, want: 0},
		{name: "above block", x: 7, y: 1, want: 1},
		{name: "floating", x: 0, y: 3, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StandingHeight(w, bc(tt.x, tt.y, 0)); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected height %.4f, got %.4f", tt.want, got)
			}
		})
	}
}

func TestIsWalkThrough(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(1, 0, 0), catalog.Door)
	w.set(bc(2, 0, 0), catalog.Door)
	w.setOpen(bc(2, 0, 0), true)
	w.set(bc(3, 0, 0), catalog.Sign)
	w.set(bc(4, 0, 0), catalog.TallGrass)
	w.set(bc(5, 0, 0), catalog.FenceGate)
	w.setOpen(bc(5, 0, 0), true)

	tests := []struct {
		name string
		x    int
		want bool
	}{
		{name: "air", x: 0, want: false},
		{name: "closed door", x: 1, want: false},
		{name: "open door", x: 2, want: true},
		{name: "sign", x: 3, want: true},
		{name: "tall grass", x: 4, want: true},
		{name: "open gate", x: 5, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWalkThrough(w, bc(tt.x, 0, 0)); got != tt.want {
				t.Fatalf("expected walk-through=%v", tt.want)
			}
		})
	}
	if IsWalkThrough(w, bc(0, -1, 0)) {
		t.Fatalf("stone must not be walk-through")
	}
	if !IsOpen(w, bc(2, 0, 0)) || IsOpen(w, bc(1, 0, 0)) || IsOpen(w, bc(3, 0, 0)) {
		t.Fatalf("unexpected open state")
	}
}

func TestNeedsJumpToReach(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(1, 0, 0), catalog.Slab)
	w.set(bc(3, 0, 0), catalog.Stone)
	collider := DefaultCollider()

	if collider.NeedsJumpToReach(w, bc(0, 0, 0), bc(1, 0, 0)) {
		t.Fatalf("a slab is within the step allowance")
	}
	if !collider.NeedsJumpToReach(w, bc(2, 0, 0), bc(3, 1, 0)) {
		t.Fatalf("a full block needs a jump")
	}
	if collider.NeedsJumpToReach(w, bc(3, 1, 0), bc(2, 0, 0)) {
		t.Fatalf("stepping down never needs a jump")
	}
}

func TestShapeAtTreatsUnloadedAsFull(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(1, 0, 0), catalog.Slab)
	if ShapeAt(w, bc(1, 0, 0)) != catalog.ShapeSlab {
		t.Fatalf("expected slab shape")
	}
	if ShapeAt(w, bc(40, 0, 0)) != catalog.ShapeFull || !IsSolid(w, bc(40, 0, 0)) {
		t.Fatalf("unloaded cells must be solid cubes")
	}
	if IsSolid(w, bc(0, 0, 0)) {
		t.Fatalf("air must not be solid")
	}
}

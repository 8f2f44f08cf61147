package entities

import (
	"context"
	"fmt"
	"math"
	"testing"

	"voxelnav/internal/catalog"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

type floorGenerator struct{}

func (floorGenerator) Generate(ctx context.Context, coord world.ChunkCoord, bounds world.Bounds, dim world.Dimensions) (*world.Chunk, error) {
	chunk := world.NewChunk(coord, bounds, dim)
	for x := 0; x < dim.Width; x++ {
		for z := 0; z < dim.Depth; z++ {
			chunk.SetColumnBlocks(x, z, []world.Block{{Material: catalog.Stone}})
		}
	}
	return chunk, nil
}

// newTestWorld returns a 16x16 region whose stone floor tops out at y=-1.
func newTestWorld(t *testing.T) *world.Manager {
	t.Helper()
	region := world.ServerRegion{
		ChunksPerAxis:  2,
		ChunkDimension: world.Dimensions{Width: 8, Depth: 8, Height: 8},
		MinY:           -2,
	}
	return world.NewManager(region, floorGenerator{})
}

func place(t *testing.T, m *world.Manager, name string, coords ...world.BlockCoord) {
	t.Helper()
	for _, c := range coords {
		if _, err := m.SetBlock(context.Background(), c, world.Block{Material: name}); err != nil {
			t.Fatalf("SetBlock %v: %v", c, err)
		}
	}
}

func view(m *world.Manager) pathfinding.WorldAccessor {
	return pathfinding.NewWorldView(context.Background(), m, nil)
}

func run(e *Entity, m *world.Manager, ticks int) {
	for i := 0; i < ticks; i++ {
		e.Step(view(m))
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestEntityFallsToGround(t *testing.T) {
	m := newTestWorld(t)
	e := NewEntity("a", "falling", pathfinding.Vec3{X: 1.5, Y: 3, Z: 1.5}, DefaultPhysics())

	run(e, m, 60)
	state := e.State()
	if !near(state.Position.Y, -1) || !state.Grounded {
		t.Fatalf("expected entity resting on the floor, got %+v", state)
	}
	if state.Velocity.Y != 0 {
		t.Fatalf("expected vertical velocity to reset on landing, got %v", state.Velocity.Y)
	}
}

func TestEntityWalksAlongHeading(t *testing.T) {
	m := newTestWorld(t)
	e := NewEntity("a", "walker", pathfinding.Vec3{X: 1.5, Y: -1, Z: 1.5}, DefaultPhysics())
	e.SetHeading(0)
	e.SetForward(true)

	run(e, m, 10)
	state := e.State()
	if !near(state.Position.X, 1.5+10*0.2159) || !near(state.Position.Z, 1.5) || !near(state.Position.Y, -1) {
		t.Fatalf("unexpected position after walking %+v", state.Position)
	}
	if state.Sprinting {
		t.Fatalf("walking entity reported sprinting")
	}

	e.SetSprint(true)
	e.SetHeading(math.Pi / 2)
	before := e.State().Position
	run(e, m, 4)
	after := e.State().Position
	if !near(after.Z-before.Z, 4*0.2806) || !near(after.X, before.X) {
		t.Fatalf("expected a sprint along +z, moved from %+v to %+v", before, after)
	}
}

func TestEntityStopsAtWall(t *testing.T) {
	m := newTestWorld(t)
	for z := 0; z < 16; z++ {
		place(t, m, catalog.Stone, world.BlockCoord{X: 4, Y: -1, Z: z}, world.BlockCoord{X: 4, Y: 0, Z: z})
	}
	e := NewEntity("a", "walker", pathfinding.Vec3{X: 1.5, Y: -1, Z: 1.5}, DefaultPhysics())
	e.SetForward(true)

	run(e, m, 30)
	if x := e.State().Position.X; !near(x, 3.7) {
		t.Fatalf("expected body flush against the wall at x=3.7, got %v", x)
	}
}

func TestEntityStepsOntoSlab(t *testing.T) {
	m := newTestWorld(t)
	for x := 3; x < 16; x++ {
		place(t, m, catalog.Slab, world.BlockCoord{X: x, Y: -1, Z: 1})
	}
	e := NewEntity("a", "walker", pathfinding.Vec3{X: 1.5, Y: -1, Z: 1.5}, DefaultPhysics())
	e.SetForward(true)

	run(e, m, 20)
	state := e.State()
	if state.Position.X < 5 || !near(state.Position.Y, -0.5) {
		t.Fatalf("expected entity on top of the slabs, got %+v", state.Position)
	}
}

func TestEntityJumpsOntoBlock(t *testing.T) {
	m := newTestWorld(t)
	for x := 4; x < 16; x++ {
		for z := 0; z < 16; z++ {
			place(t, m, catalog.Stone, world.BlockCoord{X: x, Y: -1, Z: z})
		}
	}
	e := NewEntity("a", "jumper", pathfinding.Vec3{X: 3.7, Y: -1, Z: 1.5}, DefaultPhysics())
	run(e, m, 1)
	e.SetForward(true)

	run(e, m, 5)
	if x := e.State().Position.X; !near(x, 3.7) {
		t.Fatalf("a full block must not be auto-stepped, got x=%v", x)
	}

	e.Jump()
	run(e, m, 30)
	state := e.State()
	if state.Position.X <= 4 || !near(state.Position.Y, 0) || !state.Grounded {
		t.Fatalf("expected entity on the block after jumping, got %+v", state)
	}
}

func TestEntitySettlesOntoNearbySurface(t *testing.T) {
	m := newTestWorld(t)
	e := NewEntity("a", "settler", pathfinding.Vec3{X: 1.5, Y: -0.97, Z: 1.5}, DefaultPhysics())

	run(e, m, 1)
	state := e.State()
	if !near(state.Position.Y, -1) || !state.Grounded || state.Velocity.Y != 0 {
		t.Fatalf("expected entity resting on the floor, got %+v", state)
	}

	for x := 5; x < 9; x++ {
		place(t, m, catalog.Stone, world.BlockCoord{X: x, Y: -1, Z: 1})
	}
	e.SetPosition(pathfinding.Vec3{X: 4.3, Y: -1, Z: 1.5})
	e.SetHeading(0)
	run(e, m, 1)
	e.SetForward(true)
	e.Jump()
	run(e, m, 12)
	e.SetForward(false)
	run(e, m, 200)
	state = e.State()
	if state.Position.X <= 5 || !near(state.Position.Y, 0) || !state.Grounded {
		t.Fatalf("expected entity resting on the block top, got %+v", state)
	}
}

func TestEntityJumpNeedsGround(t *testing.T) {
	m := newTestWorld(t)
	e := NewEntity("a", "jumper", pathfinding.Vec3{X: 1.5, Y: 2, Z: 1.5}, DefaultPhysics())
	e.Jump()
	run(e, m, 1)
	if vy := e.State().Velocity.Y; vy > 0 {
		t.Fatalf("airborne entity must not jump, got vy=%v", vy)
	}
}

func TestEntityClimbsLadder(t *testing.T) {
	m := newTestWorld(t)
	place(t, m, catalog.Ladder,
		world.BlockCoord{X: 3, Y: -1, Z: 1},
		world.BlockCoord{X: 3, Y: 0, Z: 1},
		world.BlockCoord{X: 3, Y: 1, Z: 1},
	)
	e := NewEntity("a", "climber", pathfinding.Vec3{X: 3.5, Y: -1, Z: 1.5}, DefaultPhysics())
	e.SetVertical(1)

	run(e, m, 10)
	if y := e.State().Position.Y; !near(y, 0.5) {
		t.Fatalf("expected to climb 1.5 blocks, got y=%v", y)
	}
}

func TestFlyingEntityIgnoresGravity(t *testing.T) {
	m := newTestWorld(t)
	physics := DefaultPhysics()
	physics.Flying = true
	e := NewEntity("a", "flyer", pathfinding.Vec3{X: 1.5, Y: 2, Z: 1.5}, physics)

	run(e, m, 10)
	if y := e.State().Position.Y; !near(y, 2) {
		t.Fatalf("hovering entity drifted to y=%v", y)
	}
	e.SetVertical(-1)
	run(e, m, 40)
	if y := e.State().Position.Y; !near(y, -1) {
		t.Fatalf("expected descent to stop at the floor, got y=%v", y)
	}
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager(2)
	if err := m.Add(nil); err == nil {
		t.Fatalf("expected error for nil entity")
	}
	if err := m.Add(&Entity{}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	for _, id := range []ID{"b", "a"} {
		if err := m.Add(NewEntity(id, string(id), pathfinding.Vec3{}, DefaultPhysics())); err != nil {
			t.Fatalf("Add %s: %v", id, err)
		}
	}
	if err := m.Add(NewEntity("a", "dup", pathfinding.Vec3{}, DefaultPhysics())); err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
	if err := m.Add(NewEntity("c", "extra", pathfinding.Vec3{}, DefaultPhysics())); err == nil {
		t.Fatalf("expected limit to be enforced")
	}
	snapshots := m.Snapshots()
	if len(snapshots) != 2 || snapshots[0].ID != "a" || snapshots[1].ID != "b" {
		t.Fatalf("unexpected snapshots %+v", snapshots)
	}
	if !m.Remove("a") || m.Remove("a") {
		t.Fatalf("expected remove to succeed exactly once")
	}
	if _, ok := m.Entity("a"); ok || m.Len() != 1 {
		t.Fatalf("entity a should be gone")
	}
}

func TestManagerApplyConcurrentReportsDirty(t *testing.T) {
	w := newTestWorld(t)
	m := NewManager(0)
	for i := 0; i < 5; i++ {
		id := ID(fmt.Sprintf("e%d", i))
		e := NewEntity(id, string(id), pathfinding.Vec3{X: float64(i) + 0.5, Y: -1, Z: 0.5}, DefaultPhysics())
		if err := m.Add(e); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	dirty := m.ApplyConcurrent(3, func(e *Entity) { e.Step(view(w)) })
	if len(dirty) != 5 {
		t.Fatalf("expected every new entity to be reported, got %d", len(dirty))
	}
	dirty = m.ApplyConcurrent(3, func(e *Entity) { e.Step(view(w)) })
	if len(dirty) != 0 {
		t.Fatalf("resting entities must not be reported, got %d", len(dirty))
	}

	target, _ := m.Entity("e2")
	target.SetForward(true)
	dirty = m.Apply(func(e *Entity) { e.Step(view(w)) })
	if len(dirty) != 1 || dirty[0].ID != "e2" {
		t.Fatalf("expected only the moving entity, got %+v", dirty)
	}
}

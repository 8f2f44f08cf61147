package entities

import (
	"math"
	"sync"

	"voxelnav/internal/catalog"
	"voxelnav/internal/config"
	"voxelnav/internal/pathfinding"
)

type ID string

// Physics holds the movement constants of a simulated body. Speeds are in
// blocks per tick.
type Physics struct {
	Collider     pathfinding.Collider
	WalkSpeed    float64
	SprintSpeed  float64
	JumpVelocity float64
	Gravity      float64
	Drag         float64
	ClimbSpeed   float64
	SwimSpeed    float64
	Flying       bool
}

func DefaultPhysics() Physics {
	return Physics{
		Collider:     pathfinding.DefaultCollider(),
		WalkSpeed:    0.2159,
		SprintSpeed:  0.2806,
		JumpVelocity: 0.42,
		Gravity:      0.08,
		Drag:         0.98,
		ClimbSpeed:   0.15,
		SwimSpeed:    0.1,
	}
}

// PhysicsFromConfig builds the body described by the actor section of cfg.
// Bodies fly when the configured search mode is flying.
func PhysicsFromConfig(cfg *config.Config) Physics {
	p := DefaultPhysics()
	p.Collider = pathfinding.Collider{
		Width:      cfg.Actor.Width,
		Height:     cfg.Actor.Height,
		StepHeight: cfg.Actor.StepHeight,
	}
	p.WalkSpeed = cfg.Actor.WalkSpeed
	p.SprintSpeed = cfg.Actor.SprintSpeed
	p.JumpVelocity = cfg.Actor.JumpVelocity
	p.Gravity = cfg.Actor.Gravity
	p.Drag = cfg.Actor.Drag
	p.Flying = pathfinding.ModeFromString(cfg.Search.Mode) == pathfinding.ModeFlying
	return p
}

const (
	liquidSlowdown = 0.5
	liquidSink     = 0.02
	liquidDrag     = 0.8
	moveEpsilon    = 1e-7
)

// Snapshot is an immutable copy of an entity's observable state.
type Snapshot struct {
	ID        ID
	Name      string
	Position  pathfinding.Vec3
	Velocity  pathfinding.Vec3
	Yaw       float64
	Grounded  bool
	Sprinting bool
	Forward   bool
	Ticks     int64
}

// Entity is a simulated body steered through the pathfinding.Actor controls.
// Inputs latch until changed; a jump press is consumed by the next Step.
type Entity struct {
	mu sync.RWMutex

	ID      ID
	Name    string
	physics Physics

	position pathfinding.Vec3
	velocity pathfinding.Vec3
	yaw      float64
	forward  bool
	sprint   bool
	jump     bool
	vertical int
	grounded bool
	ticks    int64
	dirty    bool
}

func NewEntity(id ID, name string, position pathfinding.Vec3, physics Physics) *Entity {
	return &Entity{ID: id, Name: name, physics: physics, position: position, dirty: true}
}

func (e *Entity) Physics() Physics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.physics
}

func (e *Entity) State() pathfinding.ActorState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return pathfinding.ActorState{
		Position:  e.position,
		Velocity:  e.velocity,
		Yaw:       e.yaw,
		Grounded:  e.grounded,
		Sprinting: e.sprint && e.forward,
	}
}

func (e *Entity) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		ID:        e.ID,
		Name:      e.Name,
		Position:  e.position,
		Velocity:  e.velocity,
		Yaw:       e.yaw,
		Grounded:  e.grounded,
		Sprinting: e.sprint && e.forward,
		Forward:   e.forward,
		Ticks:     e.ticks,
	}
}

func (e *Entity) SetHeading(yaw float64) {
	e.mu.Lock()
	e.yaw = yaw
	e.mu.Unlock()
}

func (e *Entity) SetForward(forward bool) {
	e.mu.Lock()
	e.forward = forward
	e.mu.Unlock()
}

func (e *Entity) SetSprint(sprint bool) {
	e.mu.Lock()
	e.sprint = sprint
	e.mu.Unlock()
}

func (e *Entity) Jump() {
	e.mu.Lock()
	e.jump = true
	e.mu.Unlock()
}

// SetVertical sets the climb, swim or flight direction: 1 up, -1 down, 0 none.
func (e *Entity) SetVertical(direction int) {
	if direction > 1 {
		direction = 1
	} else if direction < -1 {
		direction = -1
	}
	e.mu.Lock()
	e.vertical = direction
	e.mu.Unlock()
}

// SetPosition teleports the entity and clears its velocity.
func (e *Entity) SetPosition(pos pathfinding.Vec3) {
	e.mu.Lock()
	e.position = pos
	e.velocity = pathfinding.Vec3{}
	e.grounded = false
	e.dirty = true
	e.mu.Unlock()
}

func (e *Entity) MarkClean() {
	e.mu.Lock()
	e.dirty = false
	e.mu.Unlock()
}

func (e *Entity) IsDirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty
}

// Step advances the body by one tick against w.
func (e *Entity) Step(w pathfinding.WorldAccessor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.physics
	e.ticks++

	feet := w.Cell(pathfinding.CellOf(e.position))
	surface := catalog.SurfacePlain
	if feet.Loaded {
		surface = feet.Def.Surface
	}
	inLiquid := surface.Liquid()
	climbing := surface == catalog.SurfaceClimbable

	speed := 0.0
	if e.forward {
		speed = p.WalkSpeed
		if e.sprint {
			speed = p.SprintSpeed
		}
		if inLiquid {
			speed *= liquidSlowdown
		}
	}
	vx, vz := math.Cos(e.yaw)*speed, math.Sin(e.yaw)*speed

	vy := e.velocity.Y
	switch {
	case p.Flying:
		vy = float64(e.vertical) * p.WalkSpeed
	case climbing && e.vertical != 0:
		vy = float64(e.vertical) * p.ClimbSpeed
	case inLiquid && e.vertical != 0:
		vy = float64(e.vertical) * p.SwimSpeed
	case e.jump && e.grounded:
		vy = p.JumpVelocity
	}
	e.jump = false

	wanted := pathfinding.Vec3{X: vx, Y: vy, Z: vz}
	moved := e.move(w, wanted)
	e.position = e.position.Add(moved)
	landed := wanted.Y <= 0 && moved.Y > wanted.Y+moveEpsilon
	supported := wanted.Y <= 0 && p.Collider.Supported(w, e.position)
	if supported && !landed && !p.Flying {
		// Feet stopped inside the support probe without touching the surface.
		drop := e.settle(w)
		e.position.Y += drop
		moved.Y += drop
	}
	e.grounded = landed || supported
	if math.Abs(moved.Y-wanted.Y) > moveEpsilon {
		vy = 0
	}

	switch {
	case p.Flying:
		vy = 0
	case climbing:
		if e.vertical == 0 {
			vy = math.Max(vy-p.Gravity, -p.ClimbSpeed)
		}
	case inLiquid:
		if e.vertical == 0 {
			vy = (vy - liquidSink) * liquidDrag
		}
	case e.grounded:
		vy = 0
	default:
		vy = (vy - p.Gravity) * p.Drag
	}
	e.velocity = pathfinding.Vec3{X: moved.X, Y: vy, Z: moved.Z}
	if moved.Len() > moveEpsilon {
		e.dirty = true
	}
}

// move resolves delta against the world one axis at a time, vertical first,
// and retries blocked horizontal movement raised by the step height when the
// body starts on the ground.
func (e *Entity) move(w pathfinding.WorldAccessor, delta pathfinding.Vec3) pathfinding.Vec3 {
	collider := e.physics.Collider
	box := collider.BoxAt(e.position)
	obstacles := pathfinding.Obstacles(w, sweep(box, delta, collider.StepHeight))

	moved := slide(obstacles, box, delta)
	blocked := math.Abs(moved.X-delta.X) > moveEpsilon || math.Abs(moved.Z-delta.Z) > moveEpsilon
	if !blocked || !e.grounded || e.physics.Flying || collider.StepHeight <= 0 {
		return moved
	}

	up := clipAxis(obstacles, box, 1, collider.StepHeight)
	raised := box.Offset(0, up, 0)
	horizontal := slide(obstacles, raised, pathfinding.Vec3{X: delta.X, Z: delta.Z})
	raised = raised.Offset(horizontal.X, 0, horizontal.Z)
	down := clipAxis(obstacles, raised, 1, -up)
	stepped := pathfinding.Vec3{X: horizontal.X, Y: up + down, Z: horizontal.Z}
	if stepped.X*stepped.X+stepped.Z*stepped.Z > moved.X*moved.X+moved.Z*moved.Z+moveEpsilon {
		return stepped
	}
	return moved
}

// settle returns the downward offset that puts the feet on the geometry
// within the support probe.
func (e *Entity) settle(w pathfinding.WorldAccessor) float64 {
	box := e.physics.Collider.BoxAt(e.position)
	obstacles := pathfinding.Obstacles(w, sweep(box, pathfinding.Vec3{Y: -pathfinding.SupportProbe}, 0))
	return clipAxis(obstacles, box, 1, -pathfinding.SupportProbe)
}

func slide(obstacles []catalog.Box, box catalog.Box, delta pathfinding.Vec3) pathfinding.Vec3 {
	dy := clipAxis(obstacles, box, 1, delta.Y)
	box = box.Offset(0, dy, 0)
	dx := clipAxis(obstacles, box, 0, delta.X)
	box = box.Offset(dx, 0, 0)
	dz := clipAxis(obstacles, box, 2, delta.Z)
	return pathfinding.Vec3{X: dx, Y: dy, Z: dz}
}

// clipAxis shortens a movement of box along one axis (0 x, 1 y, 2 z) so it
// stops at the first obstacle. Obstacles already overlapping box are ignored.
func clipAxis(obstacles []catalog.Box, box catalog.Box, axis int, delta float64) float64 {
	if delta == 0 {
		return 0
	}
	for _, o := range obstacles {
		if !overlapsOther(box, o, axis) {
			continue
		}
		bMin, bMax := bounds(box, axis)
		oMin, oMax := bounds(o, axis)
		if delta > 0 && bMax <= oMin+collisionSlack {
			delta = math.Min(delta, oMin-bMax)
		} else if delta < 0 && bMin >= oMax-collisionSlack {
			delta = math.Max(delta, oMax-bMin)
		}
	}
	return delta
}

const collisionSlack = 1e-6

func overlapsOther(a, b catalog.Box, axis int) bool {
	const eps = 1e-4
	x := a.MinX < b.MaxX-eps && a.MaxX > b.MinX+eps
	y := a.MinY < b.MaxY-eps && a.MaxY > b.MinY+eps
	z := a.MinZ < b.MaxZ-eps && a.MaxZ > b.MinZ+eps
	switch axis {
	case 0:
		return y && z
	case 1:
		return x && z
	default:
		return x && y
	}
}

func bounds(b catalog.Box, axis int) (float64, float64) {
	switch axis {
	case 0:
		return b.MinX, b.MaxX
	case 1:
		return b.MinY, b.MaxY
	default:
		return b.MinZ, b.MaxZ
	}
}

// sweep returns the region box may touch while moving by delta, including a
// step-height allowance above it.
func sweep(box catalog.Box, delta pathfinding.Vec3, step float64) catalog.Box {
	out := box
	if delta.X < 0 {
		out.MinX += delta.X
	} else {
		out.MaxX += delta.X
	}
	if delta.Y < 0 {
		out.MinY += delta.Y
	} else {
		out.MaxY += delta.Y
	}
	if delta.Z < 0 {
		out.MinZ += delta.Z
	} else {
		out.MaxZ += delta.Z
	}
	out.MaxY += step
	return out
}

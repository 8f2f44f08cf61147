package pathfinding

import (
	"math"

	"voxelnav/internal/world"
)

// JumpRules are the static jump limits shared by the search and the runtime
// advisor.
type JumpRules struct {
	JumpHeight   float64
	MaxSafeFall  float64
	MaxGapWalk   int
	MaxGapSprint int
}

func DefaultJumpRules() JumpRules {
	return JumpRules{JumpHeight: 1.25, MaxSafeFall: 3, MaxGapWalk: 2, MaxGapSprint: 3}
}

// IsJumpSafe reports whether landing drop blocks below the take-off is
// within the fall-damage threshold.
func (r JumpRules) IsJumpSafe(drop float64) bool {
	return drop <= r.MaxSafeFall+collisionEpsilon
}

// MaxGap returns the widest clearable gap for the movement mode.
func (r JumpRules) MaxGap(sprinting bool) int {
	if sprinting {
		return r.MaxGapSprint
	}
	return r.MaxGapWalk
}

// edgeWindow is the distance from the cell edge over which the timing score
// ramps from 0 to 1.
const edgeWindow = 0.5

// JumpAdvisor decides when the actor should press jump. It remembers the
// last jump tick, so each actor needs its own advisor.
type JumpAdvisor struct {
	JumpRules
	Collider      Collider
	CooldownTicks int64
	// EdgeThreshold is the minimum EdgeTiming score before a jump fires.
	EdgeThreshold float64

	lastJump int64
	jumped   bool
}

func NewJumpAdvisor(collider Collider, rules JumpRules, cooldownTicks int64, edgeThreshold float64) *JumpAdvisor {
	return &JumpAdvisor{
		JumpRules:     rules,
		Collider:      collider,
		CooldownTicks: cooldownTicks,
		EdgeThreshold: edgeThreshold,
	}
}

// CoolingDown reports whether a jump at tick would violate the cooldown.
func (a *JumpAdvisor) CoolingDown(tick int64) bool {
	return a.jumped && tick-a.lastJump < a.CooldownTicks
}

// Jump presses the actor's jump input and starts the cooldown.
func (a *JumpAdvisor) Jump(actor Actor, tick int64) {
	actor.Jump()
	a.lastJump = tick
	a.jumped = true
}

// ShouldJump reports whether the actor, standing in current and heading for
// target, should jump on this tick.
func (a *JumpAdvisor) ShouldJump(w WorldAccessor, current, target world.BlockCoord, state ActorState, tick int64) bool {
	if !state.Grounded || a.CoolingDown(tick) {
		return false
	}
	dx, dz := target.X-current.X, target.Z-current.Z
	if dx == 0 && dz == 0 {
		return false
	}
	if a.EdgeTiming(state, current, target) < a.EdgeThreshold {
		return false
	}

	from := StandingHeight(w, current)
	to := StandingHeight(w, target)
	if drop := from - to; !a.IsJumpSafe(drop) && !isLiquid(w.Cell(target)) {
		return false
	}

	if a.obstacleAhead(w, current, sign(dx), sign(dz), from) {
		return true
	}
	if a.Collider.NeedsJumpToReach(w, current, target) {
		return to-from <= a.JumpHeight+collisionEpsilon
	}
	if gap, ok := a.gapWidth(w, current, target); ok && gap > 0 {
		return gap <= a.MaxGap(state.Sprinting)
	}
	return false
}

// obstacleAhead detects a block in the adjacent cell whose top is above the
// auto-step allowance but within jump height, with room for the body on top.
func (a *JumpAdvisor) obstacleAhead(w WorldAccessor, current world.BlockCoord, sx, sz int, from float64) bool {
	ahead := current.Add(sx, 0, sz)
	cell := w.Cell(ahead)
	if len(cell.Boxes()) == 0 {
		return false
	}
	top := float64(ahead.Y) + cell.Top()
	rise := top - from
	if rise <= a.Collider.StepHeight+collisionEpsilon || rise > a.JumpHeight+collisionEpsilon {
		return false
	}
	return !a.Collider.Collides(w, CellCenter(ahead, top))
}

// gapWidth counts unsupported cells strictly between current and target on
// a straight cardinal or diagonal line. ok is false when a cell on the line
// offers support, meaning the actor can walk instead.
func (a *JumpAdvisor) gapWidth(w WorldAccessor, current, target world.BlockCoord) (int, bool) {
	dx, dz := target.X-current.X, target.Z-current.Z
	steps := maxInt(absInt(dx), absInt(dz))
	if steps < 2 {
		return 0, false
	}
	if dx != 0 && dz != 0 && absInt(dx) != absInt(dz) {
		return 0, false
	}
	sx, sz := sign(dx), sign(dz)
	for k := 1; k < steps; k++ {
		cell := current.Add(sx*k, 0, sz*k)
		if a.Collider.CanStand(w, cell) {
			return 0, false
		}
	}
	return steps - 1, true
}

// EdgeTiming scores how close the front of the body is to the edge of the
// current cell in the direction of travel: 0 when half a block or more away,
// 1 at or past the edge.
func (a *JumpAdvisor) EdgeTiming(state ActorState, current, target world.BlockCoord) float64 {
	sx, sz := sign(target.X-current.X), sign(target.Z-current.Z)
	if sx == 0 && sz == 0 {
		return 0
	}
	half := a.Collider.Width / 2
	best := math.Inf(1)
	if sx != 0 {
		best = math.Min(best, distanceToEdge(state.Position.X, current.X, sx, half))
	}
	if sz != 0 {
		best = math.Min(best, distanceToEdge(state.Position.Z, current.Z, sz, half))
	}
	if best < 0 {
		best = 0
	}
	return clamp(1-best/edgeWindow, 0, 1)
}

func distanceToEdge(pos float64, cell, dir int, half float64) float64 {
	front := pos + float64(dir)*half
	edge := float64(cell)
	if dir > 0 {
		edge++
	}
	return (edge - front) * float64(dir)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

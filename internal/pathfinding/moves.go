package pathfinding

import (
	"voxelnav/internal/world"
)

type edge struct {
	to   world.BlockCoord
	cost float64
	jump bool
}

type direction struct{ dx, dz int }

var (
	cardinalDirections = [...]direction{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonalDirections = [...]direction{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

type offset struct{ dx, dy, dz int }

var (
	faceOffsets = [...]offset{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
	}
	edgeOffsets = [...]offset{
		{1, 1, 0}, {1, -1, 0}, {-1, 1, 0}, {-1, -1, 0},
		{1, 0, 1}, {1, 0, -1}, {-1, 0, 1}, {-1, 0, -1},
		{0, 1, 1}, {0, 1, -1}, {0, -1, 1}, {0, -1, -1},
	}
)

// FaceNeighbors returns the six axis-aligned neighbours of c.
func FaceNeighbors(c world.BlockCoord) [6]world.BlockCoord {
	var out [6]world.BlockCoord
	for i, o := range faceOffsets {
		out[i] = c.Add(o.dx, o.dy, o.dz)
	}
	return out
}

func (n *Navigator) moves(w WorldAccessor, from world.BlockCoord, opts Options, buf []edge) []edge {
	if opts.Mode == ModeFlying {
		return n.flyingMoves(w, from, opts, buf)
	}
	return n.groundMoves(w, from, opts, buf)
}

func (n *Navigator) groundMoves(w WorldAccessor, from world.BlockCoord, opts Options, buf []edge) []edge {
	hFrom := StandingHeight(w, from)
	for _, dir := range cardinalDirections {
		buf = n.horizontalMoves(w, from, dir, hFrom, opts, buf, false)
	}
	if opts.Diagonal {
		for _, dir := range diagonalDirections {
			if !n.cornerClear(w, from, dir, hFrom) {
				continue
			}
			buf = n.horizontalMoves(w, from, dir, hFrom, opts, buf, true)
		}
	}
	return n.verticalMoves(w, from, opts, buf)
}

// horizontalMoves composes a walk, a step up, a drop or a gap jump in one
// horizontal direction.
func (n *Navigator) horizontalMoves(w WorldAccessor, from world.BlockCoord, dir direction, hFrom float64, opts Options, buf []edge, diagonal bool) []edge {
	target := from.Add(dir.dx, 0, dir.dz)
	if !n.Collider.BodyClear(w, target) {
		up := target.Up()
		hUp := StandingHeight(w, up)
		rise := hUp - hFrom
		if rise <= 0 || rise > n.Jumps.JumpHeight+collisionEpsilon {
			return buf
		}
		if n.Collider.Collides(w, CellCenter(from, hUp)) || !n.Collider.CanStand(w, up) {
			return buf
		}
		return n.appendEdge(w, buf, from, up, opts, rise > n.Collider.StepHeight+collisionEpsilon)
	}

	if n.supported(w, target) {
		rise := StandingHeight(w, target) - hFrom
		if rise > n.Jumps.JumpHeight+collisionEpsilon {
			return buf
		}
		return n.appendEdge(w, buf, from, target, opts, rise > n.Collider.StepHeight+collisionEpsilon)
	}

	buf = n.appendDrop(w, buf, from, target, hFrom, opts)
	if !diagonal {
		buf = n.appendGapJump(w, buf, from, dir, hFrom, opts)
	}
	return buf
}

// appendDrop scans down the column below target for the first landing.
// Unsafe falls are refused unless the landing is liquid.
func (n *Navigator) appendDrop(w WorldAccessor, buf []edge, from, target world.BlockCoord, hFrom float64, opts Options) []edge {
	for k := 1; k <= n.MaxDrop; k++ {
		landing := target.Add(0, -k, 0)
		cell := w.Cell(landing)
		if isLiquid(cell) {
			if n.Collider.BodyClear(w, landing) {
				return n.appendEdge(w, buf, from, landing, opts, false)
			}
			return buf
		}
		if n.Collider.CanStand(w, landing) || isClimbable(cell) {
			if n.Jumps.IsJumpSafe(hFrom - StandingHeight(w, landing)) {
				return n.appendEdge(w, buf, from, landing, opts, false)
			}
			return buf
		}
		if len(cell.Boxes()) > 0 {
			return buf
		}
	}
	return buf
}

// appendGapJump looks for a level landing beyond a run of unsupported cells
// no wider than the gap limit.
func (n *Navigator) appendGapJump(w WorldAccessor, buf []edge, from world.BlockCoord, dir direction, hFrom float64, opts Options) []edge {
	maxGap := n.Jumps.MaxGap(opts.AllowSprintJumps)
	for g := 2; g <= maxGap+1; g++ {
		if g > 2 {
			gap := from.Add(dir.dx*(g-1), 0, dir.dz*(g-1))
			if n.supported(w, gap) || n.Collider.Collides(w, CellCenter(gap, hFrom)) {
				return buf
			}
		}
		landing := from.Add(dir.dx*g, 0, dir.dz*g)
		if !n.Collider.CanStand(w, landing) {
			continue
		}
		hLanding := StandingHeight(w, landing)
		if hLanding-hFrom > n.Collider.StepHeight+collisionEpsilon || !n.Jumps.IsJumpSafe(hFrom-hLanding) {
			return buf
		}
		return n.appendEdge(w, buf, from, landing, opts, true)
	}
	return buf
}

// verticalMoves climbs or swims straight up or down.
func (n *Navigator) verticalMoves(w WorldAccessor, from world.BlockCoord, opts Options, buf []edge) []edge {
	here := w.Cell(from)
	if isClimbable(here) || isLiquid(here) {
		up := from.Up()
		if n.Collider.BodyClear(w, up) && n.supported(w, up) {
			buf = n.appendEdge(w, buf, from, up, opts, false)
		}
	}
	down := from.Down()
	below := w.Cell(down)
	if (isClimbable(below) || isLiquid(below)) && n.Collider.BodyClear(w, down) {
		buf = n.appendEdge(w, buf, from, down, opts, false)
	}
	return buf
}

// cornerClear rejects diagonal moves that would clip the corner of a block.
func (n *Navigator) cornerClear(w WorldAccessor, from world.BlockCoord, dir direction, hFrom float64) bool {
	if n.Collider.Collides(w, CellCenter(from.Add(dir.dx, 0, 0), hFrom)) {
		return false
	}
	return !n.Collider.Collides(w, CellCenter(from.Add(0, 0, dir.dz), hFrom))
}

func (n *Navigator) flyingMoves(w WorldAccessor, from world.BlockCoord, opts Options, buf []edge) []edge {
	for _, o := range faceOffsets {
		to := from.Add(o.dx, o.dy, o.dz)
		if n.flyClear(w, to) {
			buf = n.appendEdge(w, buf, from, to, opts, false)
		}
	}
	if !opts.Diagonal {
		return buf
	}
	for _, o := range edgeOffsets {
		to := from.Add(o.dx, o.dy, o.dz)
		if !n.flyClear(w, to) {
			continue
		}
		if o.dx != 0 && !n.flyClear(w, from.Add(o.dx, 0, 0)) {
			continue
		}
		if o.dy != 0 && !n.flyClear(w, from.Add(0, o.dy, 0)) {
			continue
		}
		if o.dz != 0 && !n.flyClear(w, from.Add(0, 0, o.dz)) {
			continue
		}
		buf = n.appendEdge(w, buf, from, to, opts, false)
	}
	return buf
}

func (n *Navigator) flyClear(w WorldAccessor, c world.BlockCoord) bool {
	if !w.Cell(c).Loaded {
		return false
	}
	return !n.Collider.Collides(w, CellCenter(c, float64(c.Y)))
}

func (n *Navigator) appendEdge(w WorldAccessor, buf []edge, from, to world.BlockCoord, opts Options, jump bool) []edge {
	multiplier, ok := Classify(w, to).CostMultiplier(opts.Mode)
	if !ok {
		return buf
	}
	cost := baseLength(to.X-from.X, to.Y-from.Y, to.Z-from.Z, opts.Diagonal) * multiplier
	if jump {
		cost += n.JumpPenalty
	}
	return append(buf, edge{to: to, cost: cost, jump: jump})
}

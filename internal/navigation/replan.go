package navigation

import (
	"context"
	"math"
	"time"

	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

// Reason explains why a route needs replacing.
type Reason uint8

const (
	ReasonNone Reason = iota
	// ReasonBlocked means geometry now fills an upcoming node.
	ReasonBlocked
	// ReasonHeadroom means the node is free but something above it no longer
	// leaves room for the body.
	ReasonHeadroom
	ReasonUnsupported
	ReasonDrift
	ReasonStuck
)

var reasonNames = [...]string{
	ReasonNone:        "none",
	ReasonBlocked:     "blocked",
	ReasonHeadroom:    "headroom",
	ReasonUnsupported: "unsupported",
	ReasonDrift:       "drift",
	ReasonStuck:       "stuck",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

type ReplanSettings struct {
	CooldownTicks  int64
	Lookahead      int
	DriftThreshold float64
	// MaxNodes and Timeout bound the full re-search.
	MaxNodes int
	Timeout  time.Duration
}

func DefaultReplanSettings() ReplanSettings {
	return ReplanSettings{
		CooldownTicks:  20,
		Lookahead:      3,
		DriftThreshold: 2.0,
		MaxNodes:       20_000,
		Timeout:        250 * time.Millisecond,
	}
}

// Monitor watches a route under execution for invalidation and produces
// replacement routes. It keeps cooldown state, so each executor owns one.
type Monitor struct {
	Navigator *pathfinding.Navigator
	Options   pathfinding.Options
	Settings  ReplanSettings
	// Refine, when set, post-processes routes produced by a full re-search.
	Refine func(pathfinding.WorldAccessor, pathfinding.Route) pathfinding.Route
	// Shortcut, when set, validates route segments that are not single
	// search edges, as left behind by compression.
	Shortcut func(w pathfinding.WorldAccessor, a, b world.BlockCoord, mode pathfinding.Mode) bool

	lastTrigger int64
	triggered   bool
}

func NewMonitor(nav *pathfinding.Navigator, opts pathfinding.Options, settings ReplanSettings) *Monitor {
	if settings.Lookahead <= 0 {
		settings.Lookahead = 1
	}
	return &Monitor{Navigator: nav, Options: opts, Settings: settings}
}

// CoolingDown reports whether a positive answer was given less than
// CooldownTicks before tick.
func (m *Monitor) CoolingDown(tick int64) bool {
	return m.triggered && tick-m.lastTrigger < m.Settings.CooldownTicks
}

// NeedsReplan inspects the route ahead of cursor. At most one positive
// answer is given per cooldown window.
func (m *Monitor) NeedsReplan(w pathfinding.WorldAccessor, route pathfinding.Route, cursor int, state pathfinding.ActorState, tick int64) (bool, Reason) {
	if !route.Found() || m.CoolingDown(tick) {
		return false, ReasonNone
	}
	reason := m.Inspect(w, route, cursor, state)
	if reason == ReasonNone {
		return false, ReasonNone
	}
	m.lastTrigger = tick
	m.triggered = true
	return true, reason
}

// Inspect reports the first problem with the lookahead window or the actor's
// position, ignoring the cooldown.
func (m *Monitor) Inspect(w pathfinding.WorldAccessor, route pathfinding.Route, cursor int, state pathfinding.ActorState) Reason {
	steps := route.Steps
	if len(steps) == 0 {
		return ReasonNone
	}
	cursor = clampIndex(cursor, len(steps))
	end := cursor + m.Settings.Lookahead
	if end > len(steps) {
		end = len(steps)
	}
	opts := m.options(route)
	for i := cursor; i < end; i++ {
		if reason := m.stepReason(w, steps[i], route.Mode); reason != ReasonNone {
			return reason
		}
		if i > 0 && !m.segmentValid(w, steps[i-1], steps[i], opts) {
			return ReasonBlocked
		}
	}
	if m.drift(w, steps, cursor, state.Position, route.Mode) > m.Settings.DriftThreshold {
		return ReasonDrift
	}
	return ReasonNone
}

func (m *Monitor) stepReason(w pathfinding.WorldAccessor, c world.BlockCoord, mode pathfinding.Mode) Reason {
	if mode == pathfinding.ModeFlying {
		if m.Navigator.Occupiable(w, c, pathfinding.ModeFlying) {
			return ReasonNone
		}
		return ReasonBlocked
	}
	if !m.Navigator.Collider.BodyClear(w, c) {
		if pathfinding.IsSolid(w, c) {
			return ReasonBlocked
		}
		return ReasonHeadroom
	}
	if !m.Navigator.Occupiable(w, c, pathfinding.ModeGround) {
		return ReasonUnsupported
	}
	return ReasonNone
}

// segmentValid accepts neighbouring cells, single search edges and clear
// shortcuts.
func (m *Monitor) segmentValid(w pathfinding.WorldAccessor, a, b world.BlockCoord, opts pathfinding.Options) bool {
	if abs(b.X-a.X) <= 1 && abs(b.Y-a.Y) <= 1 && abs(b.Z-a.Z) <= 1 {
		return true
	}
	if _, ok := m.Navigator.Traversable(w, a, b, opts); ok {
		return true
	}
	return m.Shortcut != nil && m.Shortcut(w, a, b, opts.Mode)
}

// drift is the distance from pos to the segment the actor should be on.
func (m *Monitor) drift(w pathfinding.WorldAccessor, steps []world.BlockCoord, cursor int, pos pathfinding.Vec3, mode pathfinding.Mode) float64 {
	target := nodePosition(w, steps[cursor], mode)
	if cursor == 0 {
		return pos.Sub(target).Len()
	}
	from := nodePosition(w, steps[cursor-1], mode)
	return pointSegmentDistance(pos, from, target)
}

// Replan returns a replacement for route from the actor's position onward.
// The unvisited suffix is kept when the actor can rejoin it and at most one
// blocked node can be swapped for a face neighbour; otherwise a bounded
// search runs from the actor to the goal. Stuck actors always get a fresh
// search.
func (m *Monitor) Replan(ctx context.Context, w pathfinding.WorldAccessor, route pathfinding.Route, cursor int, state pathfinding.ActorState, reason Reason) (pathfinding.Route, bool) {
	goal, ok := route.Goal()
	if !ok {
		return pathfinding.Route{}, false
	}
	cursor = clampIndex(cursor, len(route.Steps))
	opts := m.options(route)
	start := m.syntheticStart(w, route, cursor, state, opts.Mode)

	if reason != ReasonStuck {
		if patched, ok := m.patch(w, route, cursor, start, opts); ok {
			return patched, true
		}
	}

	if m.Settings.MaxNodes > 0 {
		opts.MaxNodes = m.Settings.MaxNodes
	}
	if m.Settings.Timeout > 0 {
		opts.Timeout = m.Settings.Timeout
	}
	fresh := m.Navigator.FindRoute(ctx, w, start, goal, opts)
	if !fresh.Found() {
		return fresh, false
	}
	if m.Refine != nil {
		fresh = m.Refine(w, fresh)
	}
	return fresh, true
}

// options are the monitor's search options in the route's own mode.
func (m *Monitor) options(route pathfinding.Route) pathfinding.Options {
	opts := m.Options
	opts.Mode = route.Mode
	return opts
}

// syntheticStart is the actor's own cell, or the last reached node while the
// actor is airborne or otherwise somewhere it cannot rest.
func (m *Monitor) syntheticStart(w pathfinding.WorldAccessor, route pathfinding.Route, cursor int, state pathfinding.ActorState, mode pathfinding.Mode) world.BlockCoord {
	cell := pathfinding.CellOf(state.Position)
	if m.Navigator.Occupiable(w, cell, mode) {
		return cell
	}
	if cursor > 0 {
		return route.Steps[cursor-1]
	}
	return route.Steps[0]
}

func (m *Monitor) patch(w pathfinding.WorldAccessor, route pathfinding.Route, cursor int, start world.BlockCoord, opts pathfinding.Options) (pathfinding.Route, bool) {
	suffix := append([]world.BlockCoord(nil), route.Steps[cursor:]...)
	blocked := -1
	for i, c := range suffix {
		if m.stepReason(w, c, opts.Mode) == ReasonNone {
			continue
		}
		if blocked >= 0 {
			return pathfinding.Route{}, false
		}
		blocked = i
	}

	if blocked >= 0 {
		if blocked == len(suffix)-1 {
			return pathfinding.Route{}, false
		}
		prev := start
		if blocked > 0 {
			prev = suffix[blocked-1]
		}
		bypass, ok := m.bypass(w, prev, suffix[blocked], suffix[blocked+1], opts)
		if !ok {
			return pathfinding.Route{}, false
		}
		suffix[blocked] = bypass
	}

	steps := suffix
	if start != suffix[0] {
		if !m.rejoins(w, route, cursor, start, suffix[0], opts) {
			return pathfinding.Route{}, false
		}
		steps = append([]world.BlockCoord{start}, suffix...)
	}
	steps = dedupe(steps)
	for i := 1; i < len(steps); i++ {
		if !m.segmentValid(w, steps[i-1], steps[i], opts) {
			return pathfinding.Route{}, false
		}
	}
	return pathfinding.Route{
		Steps:   steps,
		Cost:    m.routeCost(w, steps, opts),
		Outcome: pathfinding.OutcomeFound,
		Mode:    route.Mode,
	}, true
}

// bypass finds a face neighbour of blocked joining prev and next with
// single search edges. Joining prev to next directly is tried first.
func (m *Monitor) bypass(w pathfinding.WorldAccessor, prev, blocked, next world.BlockCoord, opts pathfinding.Options) (world.BlockCoord, bool) {
	if _, ok := m.Navigator.Traversable(w, prev, next, opts); ok {
		return next, true
	}
	for _, candidate := range pathfinding.FaceNeighbors(blocked) {
		if candidate == prev || candidate == next {
			continue
		}
		if !m.Navigator.Occupiable(w, candidate, opts.Mode) {
			continue
		}
		if _, ok := m.Navigator.Traversable(w, prev, candidate, opts); !ok {
			continue
		}
		if _, ok := m.Navigator.Traversable(w, candidate, next, opts); !ok {
			continue
		}
		return candidate, true
	}
	return world.BlockCoord{}, false
}

// rejoins reports whether an actor in start can continue to head. Leaving
// the previous node toward head counts as being on the route.
func (m *Monitor) rejoins(w pathfinding.WorldAccessor, route pathfinding.Route, cursor int, start, head world.BlockCoord, opts pathfinding.Options) bool {
	if cursor > 0 && route.Steps[cursor-1] == start {
		return true
	}
	_, ok := m.Navigator.Traversable(w, start, head, opts)
	return ok
}

// routeCost sums edge costs, falling back to straight-line length for
// compressed segments that are not single edges.
func (m *Monitor) routeCost(w pathfinding.WorldAccessor, steps []world.BlockCoord, opts pathfinding.Options) float64 {
	total := 0.0
	for i := 1; i < len(steps); i++ {
		if cost, ok := m.Navigator.Traversable(w, steps[i-1], steps[i], opts); ok {
			total += cost
			continue
		}
		a, b := steps[i-1], steps[i]
		dx, dy, dz := float64(b.X-a.X), float64(b.Y-a.Y), float64(b.Z-a.Z)
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total
}

func dedupe(steps []world.BlockCoord) []world.BlockCoord {
	out := steps[:0]
	for i, c := range steps {
		if i > 0 && out[len(out)-1] == c {
			continue
		}
		out = append(out, c)
	}
	return out
}

// nodePosition is where the actor's feet rest when centred in c.
func nodePosition(w pathfinding.WorldAccessor, c world.BlockCoord, mode pathfinding.Mode) pathfinding.Vec3 {
	if mode == pathfinding.ModeFlying {
		return pathfinding.CellCenter(c, float64(c.Y))
	}
	return pathfinding.CellCenter(c, pathfinding.StandingHeight(w, c))
}

func pointSegmentDistance(p, a, b pathfinding.Vec3) float64 {
	ab := b.Sub(a)
	lengthSq := ab.X*ab.X + ab.Y*ab.Y + ab.Z*ab.Z
	if lengthSq == 0 {
		return p.Sub(a).Len()
	}
	ap := p.Sub(a)
	t := (ap.X*ab.X + ap.Y*ab.Y + ap.Z*ab.Z) / lengthSq
	t = math.Max(0, math.Min(1, t))
	return p.Sub(a.Add(ab.Scale(t))).Len()
}

func clampIndex(i, length int) int {
	if i < 0 {
		return 0
	}
	if i >= length {
		return length - 1
	}
	return i
}

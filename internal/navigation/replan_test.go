package navigation

import (
	"context"
	"math"
	"testing"

	"voxelnav/internal/catalog"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

func lineRoute(from, to int) pathfinding.Route {
	steps := make([]world.BlockCoord, 0, to-from+1)
	for x := from; x <= to; x++ {
		steps = append(steps, bc(x, 0, 0))
	}
	return pathfinding.Route{Steps: steps, Cost: float64(to - from), Outcome: pathfinding.OutcomeFound}
}

func standingAt(x, y, z float64) pathfinding.ActorState {
	return pathfinding.ActorState{Position: pathfinding.Vec3{X: x, Y: y, Z: z}, Grounded: true}
}

func newTestMonitor() *Monitor {
	return NewMonitor(pathfinding.DefaultNavigator(), pathfinding.DefaultOptions(), DefaultReplanSettings())
}

func contains(steps []world.BlockCoord, c world.BlockCoord) bool {
	for _, s := range steps {
		if s == c {
			return true
		}
	}
	return false
}

func TestNeedsReplanHonoursCooldown(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	m := newTestMonitor()
	route := lineRoute(0, 10)
	state := standingAt(0.5, 0, 0.5)

	if need, reason := m.NeedsReplan(w, route, 1, state, 10); need {
		t.Fatalf("clear route flagged for replan: %s", reason)
	}

	w.set(bc(2, 0, 0), catalog.Stone)
	need, reason := m.NeedsReplan(w, route, 1, state, 11)
	if !need || reason != ReasonBlocked {
		t.Fatalf("expected blocked replan, got %v %s", need, reason)
	}

	w.set(bc(3, 0, 0), catalog.Stone)
	if need, _ := m.NeedsReplan(w, route, 1, state, 20); need {
		t.Fatalf("second obstruction inside the cooldown must not trigger")
	}
	if !m.CoolingDown(30) || m.CoolingDown(31) {
		t.Fatalf("unexpected cooldown window")
	}
	if need, _ := m.NeedsReplan(w, route, 1, state, 31); !need {
		t.Fatalf("expected replan once the cooldown elapsed")
	}
}

func TestInspectReasons(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *fakeWorld)
		state  pathfinding.ActorState
		want   Reason
	}{
		{name: "clear", state: standingAt(0.8, 0, 0.5), want: ReasonNone},
		{
			name:   "blocked",
			mutate: func(w *fakeWorld) { w.set(bc(2, 0, 0), catalog.Stone) },
			state:  standingAt(0.5, 0, 0.5),
			want:   ReasonBlocked,
		},
		{
			name:   "headroom",
			mutate: func(w *fakeWorld) { w.set(bc(2, 1, 0), catalog.Stone) },
			state:  standingAt(0.5, 0, 0.5),
			want:   ReasonHeadroom,
		},
		{
			name:   "unsupported",
			mutate: func(w *fakeWorld) { w.set(bc(2, -1, 0), catalog.Air) },
			state:  standingAt(0.5, 0, 0.5),
			want:   ReasonUnsupported,
		},
		{
			name:   "lava floor",
			mutate: func(w *fakeWorld) { w.set(bc(3, -1, 0), catalog.Lava) },
			state:  standingAt(0.5, 0, 0.5),
			want:   ReasonUnsupported,
		},
		{name: "drift", state: standingAt(1.0, 0, 3.0), want: ReasonDrift},
		{
			name:   "beyond lookahead",
			mutate: func(w *fakeWorld) { w.set(bc(6, 0, 0), catalog.Stone) },
			state:  standingAt(0.5, 0, 0.5),
			want:   ReasonNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newFloorWorld(-2, 12, -3, 3)
			if tt.mutate != nil {
				tt.mutate(w)
			}
			if got := newTestMonitor().Inspect(w, lineRoute(0, 10), 1, tt.state); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestInspectCompressedSegments(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	route := pathfinding.Route{
		Steps:   []world.BlockCoord{bc(0, 0, 0), bc(8, 0, 0), bc(10, 0, 0)},
		Outcome: pathfinding.OutcomeFound,
	}
	state := standingAt(0.5, 0, 0.5)

	m := newTestMonitor()
	if got := m.Inspect(w, route, 1, state); got != ReasonBlocked {
		t.Fatalf("shortcuts must be rejected without a shortcut check, got %s", got)
	}
	m.Shortcut = pathfinding.DefaultCompressor().ShortcutClear
	if got := m.Inspect(w, route, 1, state); got != ReasonNone {
		t.Fatalf("expected clear shortcut, got %s", got)
	}
	w.set(bc(4, 0, 0), catalog.Stone)
	if got := m.Inspect(w, route, 1, state); got != ReasonBlocked {
		t.Fatalf("expected obstruction between nodes to block, got %s", got)
	}
}

func TestReplanPatchesAroundBlockedNode(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	m := newTestMonitor()
	route := lineRoute(0, 10)
	w.set(bc(3, 0, 0), catalog.Stone)

	patched, ok := m.Replan(context.Background(), w, route, 1, standingAt(1.5, 0, 0.5), ReasonBlocked)
	if !ok {
		t.Fatalf("expected patched route")
	}
	if patched.Expanded != 0 {
		t.Fatalf("a local patch must not search, expanded %d", patched.Expanded)
	}
	if patched.Steps[0] != bc(1, 0, 0) {
		t.Fatalf("expected route to start in the actor's cell, got %v", patched.Steps[0])
	}
	if goal, _ := patched.Goal(); goal != bc(10, 0, 0) {
		t.Fatalf("patched route changed goal to %v", goal)
	}
	if contains(patched.Steps, bc(3, 0, 0)) || !contains(patched.Steps, bc(3, 1, 0)) {
		t.Fatalf("expected the blocked node to be replaced by the cell on top, got %v", patched.Steps)
	}
	cost, ok := m.Navigator.PathCost(w, patched.Steps, m.Options)
	if !ok || math.Abs(cost-patched.Cost) > 1e-9 {
		t.Fatalf("expected cost %.4f to match edge costs %.4f (%v)", patched.Cost, cost, ok)
	}
	if len(route.Steps) != 11 || route.Steps[3] != bc(3, 0, 0) {
		t.Fatalf("replan must not modify the input route")
	}
}

func TestReplanSearchesWhenBypassFails(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.fill(3, 3, 0, 1, -3, 3, catalog.Stone)
	w.fill(3, 3, 0, 1, 2, 2, catalog.Air)
	m := newTestMonitor()

	fresh, ok := m.Replan(context.Background(), w, lineRoute(0, 10), 1, standingAt(1.5, 0, 0.5), ReasonBlocked)
	if !ok {
		t.Fatalf("expected a route through the gap, got %s", fresh.Outcome)
	}
	if fresh.Expanded == 0 || fresh.Steps[0] != bc(1, 0, 0) || !contains(fresh.Steps, bc(3, 0, 2)) {
		t.Fatalf("expected full search through (3,0,2), got %+v", fresh)
	}
}

func TestReplanStuckAlwaysSearches(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	m := newTestMonitor()
	refined := 0
	m.Refine = func(_ pathfinding.WorldAccessor, r pathfinding.Route) pathfinding.Route {
		refined++
		return r
	}

	fresh, ok := m.Replan(context.Background(), w, lineRoute(0, 10), 4, standingAt(3.5, 0, 1.5), ReasonStuck)
	if !ok || fresh.Expanded == 0 {
		t.Fatalf("expected a searched route, got %+v", fresh)
	}
	if fresh.Steps[0] != bc(3, 0, 1) || refined != 1 {
		t.Fatalf("expected refined route from the actor's cell, got start %v refined %d", fresh.Steps[0], refined)
	}
}

func TestReplanStartsFromLastNodeWhileAirborne(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	m := newTestMonitor()
	airborne := pathfinding.ActorState{Position: pathfinding.Vec3{X: 2.5, Y: 1.6, Z: 0.5}}

	patched, ok := m.Replan(context.Background(), w, lineRoute(0, 10), 3, airborne, ReasonDrift)
	if !ok {
		t.Fatalf("expected patched route")
	}
	if patched.Steps[0] != bc(2, 0, 0) || patched.Steps[1] != bc(3, 0, 0) {
		t.Fatalf("expected route to resume from the last reached node, got %v", patched.Steps[:2])
	}
}

func TestReplanReportsUnreachableGoal(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	for _, c := range []world.BlockCoord{bc(9, 0, 0), bc(11, 0, 0), bc(10, 0, 1), bc(10, 0, -1)} {
		w.set(c, catalog.Stone)
		w.set(c.Up(), catalog.Stone)
	}
	m := newTestMonitor()

	fresh, ok := m.Replan(context.Background(), w, lineRoute(0, 10), 1, standingAt(0.5, 0, 0.5), ReasonBlocked)
	if ok || fresh.Outcome != pathfinding.OutcomeUnreachable {
		t.Fatalf("expected unreachable goal, got %v %s", ok, fresh.Outcome)
	}
}

func TestReasonString(t *testing.T) {
	if ReasonHeadroom.String() != "headroom" || Reason(42).String() != "unknown" {
		t.Fatalf("unexpected reason names")
	}
}

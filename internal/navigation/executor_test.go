package navigation

import (
	"context"
	"testing"

	"voxelnav/internal/catalog"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

// fakeActor records the inputs it receives. Its position only changes when a
// test moves it.
type fakeActor struct {
	state    pathfinding.ActorState
	yaw      float64
	forward  bool
	sprint   bool
	jumps    int
	vertical int
}

func newFakeActor(x, y, z float64) *fakeActor {
	return &fakeActor{state: standingAt(x, y, z)}
}

func (a *fakeActor) State() pathfinding.ActorState {
	s := a.state
	s.Yaw = a.yaw
	s.Sprinting = a.sprint
	return s
}

func (a *fakeActor) SetHeading(yaw float64)  { a.yaw = yaw }
func (a *fakeActor) SetForward(forward bool) { a.forward = forward }
func (a *fakeActor) SetSprint(sprint bool)   { a.sprint = sprint }
func (a *fakeActor) Jump()                   { a.jumps++ }
func (a *fakeActor) SetVertical(dir int)     { a.vertical = dir }

func (a *fakeActor) moveTo(x, y, z float64) {
	a.state.Position = pathfinding.Vec3{X: x, Y: y, Z: z}
}

type eventLog struct {
	events []Event
}

func (l *eventLog) record(ev Event) { l.events = append(l.events, ev) }

func (l *eventLog) count(kind EventKind) int {
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) last() Event {
	if len(l.events) == 0 {
		return Event{}
	}
	return l.events[len(l.events)-1]
}

func newTestExecutor(actor pathfinding.Actor, settings ExecutorSettings) (*Executor, *eventLog) {
	advisor := pathfinding.NewJumpAdvisor(pathfinding.DefaultCollider(), pathfinding.DefaultJumpRules(), 10, 0.5)
	e := NewExecutor(actor, advisor, newTestMonitor(), settings, nil)
	log := &eventLog{}
	e.SetEventHook(log.record)
	return e, log
}

func manualRoute(steps ...world.BlockCoord) pathfinding.Route {
	return pathfinding.Route{Steps: steps, Outcome: pathfinding.OutcomeFound}
}

func TestExecuteRefusesMissingRoutes(t *testing.T) {
	e, log := newTestExecutor(newFakeActor(0.5, 0, 0.5), DefaultExecutorSettings())
	for _, route := range []pathfinding.Route{
		{Outcome: pathfinding.OutcomeUnreachable},
		{Outcome: pathfinding.OutcomeFound},
	} {
		if e.Execute(route) {
			t.Fatalf("expected %+v to be refused", route)
		}
	}
	if e.Status() != StatusIdle || e.IsExecuting() || e.CurrentIndex() != -1 || len(log.events) != 0 {
		t.Fatalf("refused routes must leave the executor idle")
	}
	if _, ok := e.CurrentRoute(); ok {
		t.Fatalf("idle executor reported a route")
	}
}

func TestExecuteSingleStepRouteArrives(t *testing.T) {
	actor := newFakeActor(0.5, 0, 0.5)
	e, log := newTestExecutor(actor, DefaultExecutorSettings())

	if !e.Execute(manualRoute(bc(0, 0, 0))) {
		t.Fatalf("expected route to be accepted")
	}
	if e.Status() != StatusArrived || e.IsExecuting() || actor.forward {
		t.Fatalf("expected immediate arrival, got %s", e.Status())
	}
	if len(log.events) != 2 || log.events[0].Kind != EventStarted || log.events[1].Kind != EventArrived {
		t.Fatalf("unexpected events %+v", log.events)
	}
}

func TestExecutorFollowsRoute(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	actor := newFakeActor(0.5, 0, 0.5)
	e, log := newTestExecutor(actor, DefaultExecutorSettings())
	ctx := context.Background()

	e.Execute(lineRoute(0, 10))
	e.Tick(ctx, w)
	if e.CurrentIndex() != 1 || !actor.forward || actor.yaw != 0 {
		t.Fatalf("expected to head for step 1 along +x, index %d forward %v yaw %v", e.CurrentIndex(), actor.forward, actor.yaw)
	}
	if !actor.sprint {
		t.Fatalf("expected sprinting with a long route ahead")
	}

	for x := 1; x <= 7; x++ {
		actor.moveTo(float64(x)+0.5, 0, 0.5)
		e.Tick(ctx, w)
	}
	if e.CurrentIndex() != 8 || actor.sprint {
		t.Fatalf("expected walking toward step 8, index %d sprint %v", e.CurrentIndex(), actor.sprint)
	}
	if route, ok := e.CurrentRoute(); !ok || len(route.Steps) != 11 {
		t.Fatalf("expected the executing route, got %+v", route)
	}

	for x := 8; x <= 10; x++ {
		actor.moveTo(float64(x)+0.5, 0, 0.5)
		e.Tick(ctx, w)
	}
	if e.Status() != StatusArrived || e.IsExecuting() || actor.forward {
		t.Fatalf("expected arrival with controls released, got %s", e.Status())
	}
	if log.count(EventAdvanced) != 10 || log.last().Kind != EventArrived || log.last().Status != StatusArrived {
		t.Fatalf("unexpected events %+v", log.events)
	}
	if e.Ticks() != 11 {
		t.Fatalf("expected 11 ticks, got %d", e.Ticks())
	}
}

func TestExecutorStopReleasesControls(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	actor := newFakeActor(0.5, 0, 0.5)
	e, log := newTestExecutor(actor, DefaultExecutorSettings())
	ctx := context.Background()

	e.Execute(lineRoute(0, 10))
	e.Tick(ctx, w)
	e.Stop()
	if actor.forward || actor.sprint || e.IsExecuting() || e.Status() != StatusStopped {
		t.Fatalf("stop must release every control")
	}
	if _, ok := e.CurrentRoute(); ok || e.CurrentIndex() != -1 {
		t.Fatalf("stop must clear the route")
	}
	events := len(log.events)
	e.Stop()
	e.Tick(ctx, w)
	if len(log.events) != events || actor.forward {
		t.Fatalf("idle executor emitted events or input")
	}
}

func TestExecuteReplacesRunningRoute(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	actor := newFakeActor(0.5, 0, 0.5)
	e, log := newTestExecutor(actor, DefaultExecutorSettings())

	e.Execute(lineRoute(0, 10))
	e.Tick(context.Background(), w)
	e.Execute(manualRoute(bc(0, 0, 0), bc(0, 0, 1), bc(0, 0, 2)))
	route, ok := e.CurrentRoute()
	if !ok || len(route.Steps) != 3 || e.CurrentIndex() != 0 {
		t.Fatalf("expected the new route to replace the old one, got %+v", route)
	}
	if log.count(EventStarted) != 2 {
		t.Fatalf("expected two started events, got %+v", log.events)
	}
}

func TestExecutorJumpsOntoStep(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	w.set(bc(2, 0, 0), catalog.Stone)
	actor := newFakeActor(0.5, 0, 0.5)
	e, log := newTestExecutor(actor, DefaultExecutorSettings())
	ctx := context.Background()

	e.Execute(manualRoute(bc(0, 0, 0), bc(1, 0, 0), bc(2, 1, 0)))
	e.Tick(ctx, w)
	if actor.jumps != 0 {
		t.Fatalf("jumped too early")
	}

	actor.moveTo(1.69, 0, 0.5)
	e.Tick(ctx, w)
	if e.CurrentIndex() != 2 || actor.jumps != 1 || log.count(EventJumped) != 1 {
		t.Fatalf("expected a jump toward the step, index %d jumps %d", e.CurrentIndex(), actor.jumps)
	}
	e.Tick(ctx, w)
	if actor.jumps != 1 {
		t.Fatalf("jump cooldown ignored")
	}
}

func TestExecutorClimbsWithVerticalInput(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	for y := 0; y <= 2; y++ {
		w.set(bc(2, y, 0), catalog.Ladder)
	}
	actor := newFakeActor(2.5, 0, 0.5)
	e, _ := newTestExecutor(actor, DefaultExecutorSettings())
	ctx := context.Background()

	e.Execute(manualRoute(bc(2, 0, 0), bc(2, 1, 0), bc(2, 2, 0)))
	e.Tick(ctx, w)
	if actor.vertical != 1 || actor.forward {
		t.Fatalf("expected a straight climb, vertical %d forward %v", actor.vertical, actor.forward)
	}

	actor.moveTo(2.5, 1, 0.5)
	e.Tick(ctx, w)
	if e.CurrentIndex() != 2 || actor.vertical != 1 {
		t.Fatalf("expected to keep climbing toward step 2, index %d", e.CurrentIndex())
	}

	actor.moveTo(2.5, 2, 0.5)
	e.Tick(ctx, w)
	if e.Status() != StatusArrived || actor.vertical != 0 {
		t.Fatalf("expected arrival with vertical input released, got %s %d", e.Status(), actor.vertical)
	}
}

func TestExecutorReplansAroundNewObstacle(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	actor := newFakeActor(0.5, 0, 0.5)
	e, log := newTestExecutor(actor, DefaultExecutorSettings())
	ctx := context.Background()

	e.Execute(lineRoute(0, 10))
	e.Tick(ctx, w)
	w.set(bc(2, 0, 0), catalog.Stone)
	e.Tick(ctx, w)

	if log.count(EventReplanned) != 1 {
		t.Fatalf("expected one replan, got %+v", log.events)
	}
	ev := log.events[len(log.events)-1]
	if ev.Kind != EventReplanned || ev.Reason != ReasonBlocked {
		t.Fatalf("expected blocked replan event, got %+v", ev)
	}
	route, ok := e.CurrentRoute()
	if !ok || contains(route.Steps, bc(2, 0, 0)) {
		t.Fatalf("replacement route still crosses the obstacle: %v", route.Steps)
	}
	if route.Steps[0] != bc(0, 0, 0) || e.CurrentIndex() != 1 || e.Status() != StatusFollowing {
		t.Fatalf("unexpected state after replan: start %v index %d status %s", route.Steps[0], e.CurrentIndex(), e.Status())
	}
}

func TestExecutorFailsAfterRepeatedReplanFailures(t *testing.T) {
	w := newFloorWorld(-2, 12, -3, 3)
	actor := newFakeActor(0.5, 0, 0.5)
	settings := DefaultExecutorSettings()
	settings.StuckTicks = 5
	settings.MaxReplanAttempts = 2
	e, log := newTestExecutor(actor, settings)
	ctx := context.Background()

	e.Execute(lineRoute(0, 8))
	for _, c := range []world.BlockCoord{bc(7, 0, 0), bc(9, 0, 0), bc(8, 0, 1), bc(8, 0, -1)} {
		w.set(c, catalog.Stone)
		w.set(c.Up(), catalog.Stone)
	}
	for i := 0; i < 30 && e.IsExecuting(); i++ {
		e.Tick(ctx, w)
	}

	if e.Status() != StatusFailed || e.IsExecuting() || actor.forward {
		t.Fatalf("expected failure with controls released, got %s", e.Status())
	}
	if log.count(EventReplanned) != 2 || log.count(EventFailed) != 1 {
		t.Fatalf("expected two failed replans then failure, got %+v", log.events)
	}
	if last := log.last(); last.Reason != ReasonStuck || e.Ticks() != 16 {
		t.Fatalf("expected stuck failure on tick 16, got %+v after %d ticks", last, e.Ticks())
	}
}

package navigation

import (
	"context"
	"log"
	"math"
	"sync"

	"voxelnav/internal/catalog"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusFollowing Status = "following"
	StatusArrived   Status = "arrived"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventAdvanced  EventKind = "advanced"
	EventJumped    EventKind = "jumped"
	EventReplanned EventKind = "replanned"
	EventArrived   EventKind = "arrived"
	EventStopped   EventKind = "stopped"
	EventFailed    EventKind = "failed"
)

// Event reports one executor state change.
type Event struct {
	Kind   EventKind
	Status Status
	Tick   int64
	Index  int
	Steps  int
	Reason Reason
	Cost   float64
}

type ExecutorSettings struct {
	// ArrivalThreshold is the horizontal distance at which a node counts as
	// reached.
	ArrivalThreshold float64
	// SprintDistance is the remaining route length above which the actor
	// sprints.
	SprintDistance    float64
	StuckTicks        int64
	MaxReplanAttempts int
}

func DefaultExecutorSettings() ExecutorSettings {
	return ExecutorSettings{ArrivalThreshold: 0.35, SprintDistance: 5, StuckTicks: 40, MaxReplanAttempts: 3}
}

// VerticalActor is implemented by actors that can be told to climb, swim or
// fly up and down.
type VerticalActor interface {
	SetVertical(direction int)
}

// progressEpsilon is the distance the actor must close on its target to
// count as progress.
const progressEpsilon = 0.05

// Executor steers one actor along a route, one tick at a time.
type Executor struct {
	mu       sync.Mutex
	actor    pathfinding.Actor
	advisor  *pathfinding.JumpAdvisor
	monitor  *Monitor
	settings ExecutorSettings
	logger   *log.Logger
	onEvent  func(Event)

	route    pathfinding.Route
	cursor   int
	running  bool
	status   Status
	tick     int64
	failures int

	lastProgress int64
	bestDistance float64
}

func NewExecutor(actor pathfinding.Actor, advisor *pathfinding.JumpAdvisor, monitor *Monitor, settings ExecutorSettings, logger *log.Logger) *Executor {
	if settings.ArrivalThreshold <= 0 {
		settings.ArrivalThreshold = DefaultExecutorSettings().ArrivalThreshold
	}
	return &Executor{
		actor:    actor,
		advisor:  advisor,
		monitor:  monitor,
		settings: settings,
		logger:   logger,
		status:   StatusIdle,
	}
}

// SetEventHook registers fn to receive events. fn runs on the ticking
// goroutine after the executor lock is released.
func (e *Executor) SetEventHook(fn func(Event)) {
	e.mu.Lock()
	e.onEvent = fn
	e.mu.Unlock()
}

// Execute takes ownership of route and starts following it. A route of one
// step completes immediately. Routes without steps are refused.
func (e *Executor) Execute(route pathfinding.Route) bool {
	if !route.Found() {
		return false
	}
	e.mu.Lock()
	e.halt()
	e.route = route.Clone()
	e.cursor = 0
	e.failures = 0
	e.lastProgress = e.tick
	e.bestDistance = math.Inf(1)
	e.running = true
	e.status = StatusFollowing
	events := []Event{e.event(EventStarted, ReasonNone)}
	if len(route.Steps) == 1 {
		events = append(events, e.finish(StatusArrived, EventArrived))
	}
	hook := e.onEvent
	e.mu.Unlock()

	emit(hook, events)
	return true
}

// Stop clears the route. No movement input is issued after it returns.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running && e.route.Steps == nil {
		e.mu.Unlock()
		return
	}
	ev := e.finish(StatusStopped, EventStopped)
	hook := e.onEvent
	e.mu.Unlock()

	emit(hook, []Event{ev})
}

func (e *Executor) IsExecuting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CurrentRoute returns a copy of the route being followed.
func (e *Executor) CurrentRoute() (pathfinding.Route, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return pathfinding.Route{}, false
	}
	return e.route.Clone(), true
}

// CurrentIndex is the index of the step being approached, or -1 when idle.
func (e *Executor) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return -1
	}
	return e.cursor
}

func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Ticks returns how many ticks the executor has processed.
func (e *Executor) Ticks() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Tick advances the executor by one simulation step.
func (e *Executor) Tick(ctx context.Context, w pathfinding.WorldAccessor) {
	e.mu.Lock()
	e.tick++
	if !e.running {
		e.mu.Unlock()
		return
	}
	events := e.step(ctx, w)
	hook := e.onEvent
	e.mu.Unlock()

	emit(hook, events)
}

func (e *Executor) step(ctx context.Context, w pathfinding.WorldAccessor) []Event {
	var events []Event
	state := e.actor.State()
	mode := e.route.Mode

	for e.cursor < len(e.route.Steps) && e.arrived(w, state.Position, e.route.Steps[e.cursor]) {
		e.cursor++
		e.lastProgress = e.tick
		e.bestDistance = math.Inf(1)
		if e.cursor < len(e.route.Steps) {
			events = append(events, e.event(EventAdvanced, ReasonNone))
		}
	}
	if e.cursor >= len(e.route.Steps) {
		return append(events, e.finish(StatusArrived, EventArrived))
	}

	reason := ReasonNone
	if e.settings.StuckTicks > 0 && e.tick-e.lastProgress >= e.settings.StuckTicks {
		reason = ReasonStuck
	} else if e.monitor != nil {
		if need, why := e.monitor.NeedsReplan(w, e.route, e.cursor, state, e.tick); need {
			reason = why
		}
	}
	if reason != ReasonNone {
		ev, ok := e.replan(ctx, w, state, reason)
		events = append(events, ev)
		if !ok {
			return events
		}
	}

	target := e.route.Steps[e.cursor]
	targetPos := nodePosition(w, target, mode)
	dx, dz := targetPos.X-state.Position.X, targetPos.Z-state.Position.Z
	e.actor.SetHeading(math.Atan2(dz, dx))
	// Straight climbs and flights only need the vertical input.
	e.actor.SetForward(math.Hypot(dx, dz) > e.settings.ArrivalThreshold/2)
	e.actor.SetSprint(e.remaining(w, state.Position) > e.settings.SprintDistance || e.gapAhead())
	if vertical, ok := e.actor.(VerticalActor); ok {
		vertical.SetVertical(verticalIntent(w, pathfinding.CellOf(state.Position), target, mode))
	}

	if distance := state.Position.Sub(targetPos).Len(); distance < e.bestDistance-progressEpsilon {
		e.bestDistance = distance
		e.lastProgress = e.tick
	}

	if mode == pathfinding.ModeGround && e.advisor != nil {
		current := pathfinding.CellOf(state.Position)
		if e.advisor.ShouldJump(w, current, target, state, e.tick) {
			e.advisor.Jump(e.actor, e.tick)
			events = append(events, e.event(EventJumped, ReasonNone))
		}
	}
	return events
}

// replan swaps in a replacement route. Too many consecutive failures stop
// the executor with StatusFailed.
func (e *Executor) replan(ctx context.Context, w pathfinding.WorldAccessor, state pathfinding.ActorState, reason Reason) (Event, bool) {
	e.lastProgress = e.tick
	e.bestDistance = math.Inf(1)
	if e.monitor == nil {
		return e.fail(reason), false
	}
	route, ok := e.monitor.Replan(ctx, w, e.route, e.cursor, state, reason)
	if !ok {
		e.failures++
		if e.logger != nil {
			e.logger.Printf("replan failed (%s) attempt %d/%d: %s", reason, e.failures, e.settings.MaxReplanAttempts, route.Outcome)
		}
		if e.failures > e.settings.MaxReplanAttempts {
			return e.fail(reason), false
		}
		ev := e.event(EventReplanned, reason)
		ev.Steps = 0
		return ev, true
	}

	e.failures = 0
	e.route = route
	e.cursor = 0
	if len(route.Steps) > 1 {
		e.cursor = 1
	}
	if e.logger != nil {
		e.logger.Printf("replanned (%s): %d steps, cost %.2f", reason, len(route.Steps), route.Cost)
	}
	return e.event(EventReplanned, reason), true
}

func (e *Executor) fail(reason Reason) Event {
	if e.logger != nil {
		e.logger.Printf("navigation failed after %d replan attempts (%s)", e.failures, reason)
	}
	ev := e.finish(StatusFailed, EventFailed)
	ev.Reason = reason
	return ev
}

// finish releases the actor's controls and clears the route.
func (e *Executor) finish(status Status, kind EventKind) Event {
	ev := e.event(kind, ReasonNone)
	e.halt()
	e.route = pathfinding.Route{}
	e.cursor = 0
	e.status = status
	ev.Status = status
	return ev
}

func (e *Executor) halt() {
	if !e.running {
		return
	}
	e.running = false
	e.actor.SetForward(false)
	e.actor.SetSprint(false)
	if vertical, ok := e.actor.(VerticalActor); ok {
		vertical.SetVertical(0)
	}
}

func (e *Executor) event(kind EventKind, reason Reason) Event {
	return Event{
		Kind:   kind,
		Status: e.status,
		Tick:   e.tick,
		Index:  e.cursor,
		Steps:  len(e.route.Steps),
		Reason: reason,
		Cost:   e.route.Cost,
	}
}

func (e *Executor) arrived(w pathfinding.WorldAccessor, pos pathfinding.Vec3, node world.BlockCoord) bool {
	target := nodePosition(w, node, e.route.Mode)
	if pos.HorizontalDist(target) >= e.settings.ArrivalThreshold {
		return false
	}
	return math.Abs(pos.Y-target.Y) < 1
}

// remaining is the horizontal length left along the route from pos.
func (e *Executor) remaining(w pathfinding.WorldAccessor, pos pathfinding.Vec3) float64 {
	steps := e.route.Steps
	prev := pos
	total := 0.0
	for i := e.cursor; i < len(steps); i++ {
		next := nodePosition(w, steps[i], e.route.Mode)
		total += prev.HorizontalDist(next)
		prev = next
	}
	return total
}

// gapAhead reports whether the segment being walked spans more cells than a
// walking jump can clear.
func (e *Executor) gapAhead() bool {
	if e.cursor == 0 || e.advisor == nil {
		return false
	}
	a, b := e.route.Steps[e.cursor-1], e.route.Steps[e.cursor]
	span := max(abs(b.X-a.X), abs(b.Z-a.Z))
	return span > e.advisor.MaxGap(false)+1
}

func verticalIntent(w pathfinding.WorldAccessor, current, target world.BlockCoord, mode pathfinding.Mode) int {
	if target.Y == current.Y {
		return 0
	}
	if mode != pathfinding.ModeFlying {
		surface := w.Cell(current).Def.Surface
		if !surface.Liquid() && surface != catalog.SurfaceClimbable {
			return 0
		}
	}
	if target.Y > current.Y {
		return 1
	}
	return -1
}

func emit(hook func(Event), events []Event) {
	if hook == nil {
		return
	}
	for _, ev := range events {
		hook(ev)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

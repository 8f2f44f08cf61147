package pathfinding

import (
	"container/heap"
	"context"
	"math"
	"strings"
	"time"

	"voxelnav/internal/world"
)

type Mode int

const (
	ModeGround Mode = iota
	ModeFlying
)

// ModeFromString parses a textual traversal mode label.
func ModeFromString(value string) Mode {
	switch strings.ToLower(value) {
	case "flying":
		return ModeFlying
	default:
		return ModeGround
	}
}

func (m Mode) String() string {
	if m == ModeFlying {
		return "flying"
	}
	return "ground"
}

// Outcome is the result class of a search. Everything except OutcomeFound
// means there is no route.
type Outcome uint8

const (
	OutcomeFound Outcome = iota
	OutcomeUnreachable
	OutcomeBudgetExhausted
	OutcomeCancelled
	OutcomeInvalidEndpoint
)

var outcomeNames = [...]string{
	OutcomeFound:           "found",
	OutcomeUnreachable:     "unreachable",
	OutcomeBudgetExhausted: "budget-exhausted",
	OutcomeCancelled:       "cancelled",
	OutcomeInvalidEndpoint: "invalid-endpoint",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Options tune a single search.
type Options struct {
	Mode             Mode
	Diagonal         bool
	MaxNodes         int
	Timeout          time.Duration
	AllowSprintJumps bool
}

const (
	defaultMaxNodes = 50_000
	// budgetCheckInterval is how many expansions pass between clock checks.
	budgetCheckInterval = 64
)

func DefaultOptions() Options {
	return Options{Mode: ModeGround, Diagonal: true, MaxNodes: defaultMaxNodes, Timeout: 500 * time.Millisecond}
}

// Route is an immutable search result. Steps is empty unless Outcome is
// OutcomeFound.
type Route struct {
	Steps    []world.BlockCoord
	Cost     float64
	Outcome  Outcome
	Expanded int
	Mode     Mode
}

// Found reports whether the route leads somewhere.
func (r Route) Found() bool {
	return r.Outcome == OutcomeFound && len(r.Steps) > 0
}

// Goal returns the final step.
func (r Route) Goal() (world.BlockCoord, bool) {
	if len(r.Steps) == 0 {
		return world.BlockCoord{}, false
	}
	return r.Steps[len(r.Steps)-1], true
}

// Clone returns a copy that shares no step storage with r.
func (r Route) Clone() Route {
	out := r
	out.Steps = append([]world.BlockCoord(nil), r.Steps...)
	return out
}

// Navigator performs A* search over world cells for one body type. It holds
// no per-search state and may be shared between goroutines.
type Navigator struct {
	Collider    Collider
	Jumps       JumpRules
	JumpPenalty float64
	MaxDrop     int
}

func NewNavigator(collider Collider, rules JumpRules, jumpPenalty float64, maxDrop int) *Navigator {
	return &Navigator{Collider: collider, Jumps: rules, JumpPenalty: jumpPenalty, MaxDrop: maxDrop}
}

func DefaultNavigator() *Navigator {
	return NewNavigator(DefaultCollider(), DefaultJumpRules(), 1.0, 3)
}

// FindRouteWithStats runs FindRoute with a private metrics set and returns
// its snapshot alongside the route.
func (n *Navigator) FindRouteWithStats(ctx context.Context, w WorldAccessor, start, goal world.BlockCoord, opts Options) (Route, MetricsSnapshot) {
	metrics := &NavigatorMetrics{}
	route := n.FindRoute(ContextWithProfiler(ctx, metrics.Profiler()), w, start, goal, opts)
	return route, metrics.Snapshot()
}

// FindRoute locates the cheapest route from start to goal. Failure is
// reported through Route.Outcome; the search stops at the node budget, the
// timeout, or when ctx is done.
func (n *Navigator) FindRoute(ctx context.Context, w WorldAccessor, start, goal world.BlockCoord, opts Options) Route {
	profiler := profilerFromContext(ctx)
	startedAt := time.Now()
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = defaultMaxNodes
	}

	route := n.search(ctx, w, start, goal, opts, startedAt)
	if profiler != nil {
		profiler.RecordSearch(route.Outcome, time.Since(startedAt))
	}
	return route
}

func (n *Navigator) search(ctx context.Context, w WorldAccessor, start, goal world.BlockCoord, opts Options, startedAt time.Time) Route {
	profiler := profilerFromContext(ctx)
	route := Route{Mode: opts.Mode}
	if !n.endpointValid(w, start, opts, false) || !n.endpointValid(w, goal, opts, true) {
		route.Outcome = OutcomeInvalidEndpoint
		return route
	}
	if start == goal {
		route.Steps = []world.BlockCoord{start}
		route.Outcome = OutcomeFound
		return route
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = startedAt.Add(opts.Timeout)
	}

	arena := newNodeArena(256)
	open := &openSet{arena: arena}
	root, _ := arena.lookup(start)
	arena.node(root).h = n.heuristic(start, goal, opts)
	heap.Push(open, root)

	var moves []edge
	for open.Len() > 0 {
		if route.Expanded%budgetCheckInterval == 0 {
			if ctx.Err() != nil {
				route.Outcome = OutcomeCancelled
				return route
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				route.Outcome = OutcomeBudgetExhausted
				return route
			}
		}
		if route.Expanded >= opts.MaxNodes {
			route.Outcome = OutcomeBudgetExhausted
			return route
		}

		idx := heap.Pop(open).(int)
		current := arena.node(idx)
		current.closed = true
		route.Expanded++
		if profiler != nil {
			profiler.RecordNodeExpanded()
		}
		if current.coord == goal {
			route.Steps = arena.path(idx)
			route.Cost = current.g
			route.Outcome = OutcomeFound
			return route
		}

		coord, g := current.coord, current.g
		moves = n.moves(w, coord, opts, moves[:0])
		if profiler != nil {
			profiler.RecordNeighborGeneration(len(moves))
		}
		for _, move := range moves {
			next, created := arena.lookup(move.to)
			neighbor := arena.node(next)
			if neighbor.closed {
				continue
			}
			tentative := g + move.cost
			if !created && tentative >= neighbor.g {
				continue
			}
			neighbor.parent = idx
			neighbor.g = tentative
			if created {
				neighbor.h = n.heuristic(move.to, goal, opts)
				if profiler != nil {
					profiler.RecordHeuristicEvaluation()
				}
			}
			if neighbor.heapIndex >= 0 {
				heap.Fix(open, neighbor.heapIndex)
			} else {
				heap.Push(open, next)
			}
		}
	}

	route.Outcome = OutcomeUnreachable
	return route
}

// Traversable reports whether a single search edge leads from one cell to
// the other and what it costs.
func (n *Navigator) Traversable(w WorldAccessor, from, to world.BlockCoord, opts Options) (float64, bool) {
	for _, move := range n.moves(w, from, opts, nil) {
		if move.to == to {
			return move.cost, true
		}
	}
	return 0, false
}

// PathCost sums the edge costs along steps, failing on the first pair that
// is not a search edge.
func (n *Navigator) PathCost(w WorldAccessor, steps []world.BlockCoord, opts Options) (float64, bool) {
	total := 0.0
	for i := 1; i < len(steps); i++ {
		cost, ok := n.Traversable(w, steps[i-1], steps[i], opts)
		if !ok {
			return 0, false
		}
		total += cost
	}
	return total, true
}

// Occupiable reports whether the body can rest in c: standing, swimming or
// climbing on the ground, or simply fitting when flying.
func (n *Navigator) Occupiable(w WorldAccessor, c world.BlockCoord, mode Mode) bool {
	return n.endpointValid(w, c, Options{Mode: mode}, true)
}

// Heuristic exposes the search estimate for diagnostics and tests.
func (n *Navigator) Heuristic(a, b world.BlockCoord, opts Options) float64 {
	return n.heuristic(a, b, opts)
}

func (n *Navigator) heuristic(a, b world.BlockCoord, opts Options) float64 {
	return baseLength(b.X-a.X, b.Y-a.Y, b.Z-a.Z, opts.Diagonal) * minMultiplier
}

// baseLength is the Euclidean length of a displacement when diagonal moves
// are enabled and the Manhattan length otherwise.
func baseLength(dx, dy, dz int, diagonal bool) float64 {
	if diagonal {
		return math.Sqrt(float64(dx*dx + dy*dy + dz*dz))
	}
	return float64(absInt(dx) + absInt(dy) + absInt(dz))
}

func (n *Navigator) endpointValid(w WorldAccessor, c world.BlockCoord, opts Options, requireSupport bool) bool {
	if !w.Cell(c).Loaded {
		return false
	}
	if opts.Mode == ModeFlying {
		return !n.Collider.Collides(w, CellCenter(c, float64(c.Y)))
	}
	if !n.Collider.BodyClear(w, c) {
		return false
	}
	return !requireSupport || n.supported(w, c)
}

// supported reports whether a ground actor can occupy the cell: standing,
// swimming or climbing.
func (n *Navigator) supported(w WorldAccessor, c world.BlockCoord) bool {
	cell := w.Cell(c)
	if isLiquid(cell) || isClimbable(cell) {
		return true
	}
	return n.Collider.CanStand(w, c)
}

package navigation

import (
	"context"
	"log"

	"voxelnav/internal/config"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

// WorldSource returns a world view valid for one search or one tick.
type WorldSource func(ctx context.Context) pathfinding.WorldAccessor

// Settings collects the tunables of every engine component.
type Settings struct {
	Collider    pathfinding.Collider
	Jumps       pathfinding.JumpRules
	JumpPenalty float64
	MaxDrop     int
	Search      pathfinding.Options

	JumpCooldownTicks int64
	EdgeTiming        float64

	Replan   ReplanSettings
	Executor ExecutorSettings

	Compress   bool
	Compressor pathfinding.Compressor
}

func DefaultSettings() Settings {
	return Settings{
		Collider:          pathfinding.DefaultCollider(),
		Jumps:             pathfinding.DefaultJumpRules(),
		JumpPenalty:       1.0,
		MaxDrop:           3,
		Search:            pathfinding.DefaultOptions(),
		JumpCooldownTicks: 10,
		EdgeTiming:        0.5,
		Replan:            DefaultReplanSettings(),
		Executor:          DefaultExecutorSettings(),
		Compress:          true,
		Compressor:        pathfinding.DefaultCompressor(),
	}
}

// SettingsFromConfig maps the actor, search, jump, replan, executor and
// compressor sections of cfg onto engine settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	collider := pathfinding.Collider{
		Width:      cfg.Actor.Width,
		Height:     cfg.Actor.Height,
		StepHeight: cfg.Actor.StepHeight,
	}
	return Settings{
		Collider: collider,
		Jumps: pathfinding.JumpRules{
			JumpHeight:   cfg.Jump.JumpHeight,
			MaxSafeFall:  cfg.Jump.MaxSafeFall,
			MaxGapWalk:   cfg.Jump.MaxGapWalk,
			MaxGapSprint: cfg.Jump.MaxGapSprint,
		},
		JumpPenalty: cfg.Search.JumpPenalty,
		MaxDrop:     cfg.Search.MaxDrop,
		Search: pathfinding.Options{
			Mode:             pathfinding.ModeFromString(cfg.Search.Mode),
			Diagonal:         cfg.Search.Diagonal,
			MaxNodes:         cfg.Search.MaxNodes,
			Timeout:          cfg.Search.Timeout.Duration(),
			AllowSprintJumps: cfg.Search.AllowSprintJumps,
		},
		JumpCooldownTicks: int64(cfg.Jump.CooldownTicks),
		EdgeTiming:        cfg.Jump.EdgeTiming,
		Replan: ReplanSettings{
			CooldownTicks:  int64(cfg.Replan.CooldownTicks),
			Lookahead:      cfg.Replan.Lookahead,
			DriftThreshold: cfg.Replan.DriftThreshold,
			MaxNodes:       cfg.Replan.MaxNodes,
			Timeout:        cfg.Replan.Timeout.Duration(),
		},
		Executor: ExecutorSettings{
			ArrivalThreshold:  cfg.Executor.ArrivalThreshold,
			SprintDistance:    cfg.Executor.SprintDistance,
			StuckTicks:        int64(cfg.Executor.StuckTicks),
			MaxReplanAttempts: cfg.Executor.MaxReplanAttempts,
		},
		Compress: cfg.Compressor.Enabled,
		Compressor: pathfinding.Compressor{
			Collider:    collider,
			MaxShortcut: cfg.Compressor.MaxShortcut,
			MinSpacing:  cfg.Compressor.MinSpacing,
			SampleStep:  cfg.Compressor.SampleStep,
		},
	}
}

// Engine bundles the search, smoothing and execution components driving a
// single actor.
type Engine struct {
	navigator *pathfinding.Navigator
	settings  Settings
	actor     pathfinding.Actor
	world     WorldSource
	executor  *Executor
}

func NewEngine(actor pathfinding.Actor, source WorldSource, settings Settings, logger *log.Logger) *Engine {
	nav := pathfinding.NewNavigator(settings.Collider, settings.Jumps, settings.JumpPenalty, settings.MaxDrop)
	advisor := pathfinding.NewJumpAdvisor(settings.Collider, settings.Jumps, settings.JumpCooldownTicks, settings.EdgeTiming)
	monitor := NewMonitor(nav, settings.Search, settings.Replan)
	e := &Engine{
		navigator: nav,
		settings:  settings,
		actor:     actor,
		world:     source,
	}
	monitor.Refine = e.refine
	monitor.Shortcut = settings.Compressor.ShortcutClear
	e.executor = NewExecutor(actor, advisor, monitor, settings.Executor, logger)
	return e
}

func (e *Engine) Navigator() *pathfinding.Navigator { return e.navigator }

// Options returns the default search options of this engine.
func (e *Engine) Options() pathfinding.Options { return e.settings.Search }

// FindRoute searches with the engine's default options.
func (e *Engine) FindRoute(ctx context.Context, start, goal world.BlockCoord) pathfinding.Route {
	return e.FindRouteWith(ctx, start, goal, e.settings.Search)
}

// FindRouteWith searches with explicit options. Found routes are compressed
// when compression is enabled.
func (e *Engine) FindRouteWith(ctx context.Context, start, goal world.BlockCoord, opts pathfinding.Options) pathfinding.Route {
	w := e.world(ctx)
	route := e.navigator.FindRoute(ctx, w, start, goal, opts)
	if !route.Found() {
		return route
	}
	return e.refine(w, route)
}

func (e *Engine) refine(w pathfinding.WorldAccessor, route pathfinding.Route) pathfinding.Route {
	if !e.settings.Compress {
		return route
	}
	return e.settings.Compressor.Compress(w, route)
}

// Navigate searches from the actor's current cell to goal and starts
// executing the result when one is found.
func (e *Engine) Navigate(ctx context.Context, goal world.BlockCoord, opts pathfinding.Options) pathfinding.Route {
	start := pathfinding.CellOf(e.actor.State().Position)
	route := e.FindRouteWith(ctx, start, goal, opts)
	if route.Found() {
		e.executor.Execute(route)
	}
	return route
}

func (e *Engine) Execute(route pathfinding.Route) bool { return e.executor.Execute(route) }

func (e *Engine) Stop() { e.executor.Stop() }

func (e *Engine) IsExecuting() bool { return e.executor.IsExecuting() }

func (e *Engine) CurrentRoute() (pathfinding.Route, bool) { return e.executor.CurrentRoute() }

func (e *Engine) CurrentIndex() int { return e.executor.CurrentIndex() }

func (e *Engine) Status() Status { return e.executor.Status() }

func (e *Engine) SetEventHook(fn func(Event)) { e.executor.SetEventHook(fn) }

// Tick advances the executor against a fresh world view.
func (e *Engine) Tick(ctx context.Context) {
	e.executor.Tick(ctx, e.world(ctx))
}

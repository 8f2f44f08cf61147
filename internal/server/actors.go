package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voxelnav/internal/catalog"
	"voxelnav/internal/entities"
	"voxelnav/internal/journal"
	"voxelnav/internal/navigation"
	"voxelnav/internal/network"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/world"
)

type actor struct {
	entity *entities.Entity
	engine *navigation.Engine
	flying bool
}

func (s *Server) actor(id entities.ID) (*actor, bool) {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()
	a, ok := s.actors[id]
	return a, ok
}

// Spawn registers a simulated actor. Without a position the actor is placed
// on the terrain surface at the centre of the region.
func (s *Server) Spawn(req network.SpawnRequest) (network.SpawnReply, error) {
	id := entities.ID(strings.TrimSpace(req.ActorID))
	if id == "" {
		return network.SpawnReply{}, fmt.Errorf("%w: actor id must be set", network.ErrInvalidRequest)
	}
	position, err := s.spawnPosition(req.Position)
	if err != nil {
		return network.SpawnReply{}, err
	}

	s.actorsMu.Lock()
	defer s.actorsMu.Unlock()
	if _, exists := s.actors[id]; exists {
		return network.SpawnReply{}, fmt.Errorf("%w: %s", network.ErrActorExists, id)
	}

	physics := s.physics
	settings := s.settings
	flying := req.Flying || settings.Search.Mode == pathfinding.ModeFlying
	if flying {
		physics.Flying = true
		settings.Search.Mode = pathfinding.ModeFlying
	}
	name := req.Name
	if name == "" {
		name = string(id)
	}
	ent := entities.NewEntity(id, name, position, physics)
	if err := s.entities.Add(ent); err != nil {
		return network.SpawnReply{}, err
	}
	engine := navigation.NewEngine(ent, s.view, settings, s.logger)
	engine.SetEventHook(s.eventRecorder(id))
	s.actors[id] = &actor{entity: ent, engine: engine, flying: flying}

	s.logger.Printf("spawned actor %s at (%.2f, %.2f, %.2f)", id, position.X, position.Y, position.Z)
	return network.SpawnReply{ActorID: string(id), Created: true}, nil
}

func (s *Server) spawnPosition(values []float64) (pathfinding.Vec3, error) {
	switch len(values) {
	case 3:
		return pathfinding.Vec3{X: values[0], Y: values[1], Z: values[2]}, nil
	case 0:
	default:
		return pathfinding.Vec3{}, fmt.Errorf("%w: position needs 3 components, got %d", network.ErrInvalidRequest, len(values))
	}
	bounds := s.world.Region().BlockBounds()
	x := (bounds.Min.X + bounds.Max.X) / 2
	z := (bounds.Min.Z + bounds.Max.Z) / 2
	top := s.terrain.SurfaceHeight(x, z)
	if top < bounds.Min.Y {
		top = bounds.Min.Y
	}
	return pathfinding.Vec3{X: float64(x) + 0.5, Y: float64(top + 1), Z: float64(z) + 0.5}, nil
}

// Despawn stops and removes an actor.
func (s *Server) Despawn(actorID string) error {
	id := entities.ID(actorID)
	s.actorsMu.Lock()
	a, ok := s.actors[id]
	if ok {
		delete(s.actors, id)
	}
	s.actorsMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", network.ErrUnknownActor, actorID)
	}
	a.engine.Stop()
	s.entities.Remove(id)
	return nil
}

func (s *Server) stopAll() {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()
	for _, a := range s.actors {
		a.engine.Stop()
	}
}

// FindRoute answers a route query without moving any actor.
func (s *Server) FindRoute(ctx context.Context, req network.RouteRequest) (network.RouteResponse, error) {
	opts, err := applyOverrides(s.settings.Search, req.Search)
	if err != nil {
		return network.RouteResponse{}, err
	}
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	started := time.Now()
	from, to := req.From.Coord(), req.To.Coord()
	var route pathfinding.Route
	if req.Raw {
		route = s.planner.Navigator().FindRoute(ctx, s.view(ctx), from, to, opts)
	} else {
		route = s.planner.FindRouteWith(ctx, from, to, opts)
	}
	elapsed := time.Since(started)
	s.recordRoute("", from, to, route, elapsed)

	return network.RouteResponse{
		RequestID: req.RequestID,
		Outcome:   route.Outcome.String(),
		Cost:      route.Cost,
		Expanded:  route.Expanded,
		Steps:     network.StepsFromCoords(route.Steps),
		ElapsedMs: float64(elapsed.Microseconds()) / 1000,
	}, nil
}

// Execute searches from the actor's current cell to the goal and starts
// following the result.
func (s *Server) Execute(ctx context.Context, req network.ExecuteRequest) (network.ExecuteReply, error) {
	a, ok := s.actor(entities.ID(req.ActorID))
	if !ok {
		return network.ExecuteReply{}, fmt.Errorf("%w: %s", network.ErrUnknownActor, req.ActorID)
	}
	opts, err := applyOverrides(a.engine.Options(), req.Search)
	if err != nil {
		return network.ExecuteReply{}, err
	}
	if a.flying {
		opts.Mode = pathfinding.ModeFlying
	}
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	started := time.Now()
	start := pathfinding.CellOf(a.entity.State().Position)
	goal := req.Goal.Coord()
	route := a.engine.Navigate(ctx, goal, opts)
	s.recordRoute(req.ActorID, start, goal, route, time.Since(started))

	return network.ExecuteReply{
		ActorID:  req.ActorID,
		Accepted: route.Found(),
		Outcome:  route.Outcome.String(),
		Steps:    network.StepsFromCoords(route.Steps),
	}, nil
}

// Stop halts the actor's executor and returns its resulting status.
func (s *Server) Stop(actorID string) (network.ActorStatus, error) {
	a, ok := s.actor(entities.ID(actorID))
	if !ok {
		return network.ActorStatus{}, fmt.Errorf("%w: %s", network.ErrUnknownActor, actorID)
	}
	a.engine.Stop()
	return statusOf(a), nil
}

func (s *Server) Status(actorID string) (network.ActorStatus, error) {
	a, ok := s.actor(entities.ID(actorID))
	if !ok {
		return network.ActorStatus{}, fmt.Errorf("%w: %s", network.ErrUnknownActor, actorID)
	}
	return statusOf(a), nil
}

// Statuses returns the status of every actor ordered by ID.
func (s *Server) Statuses() []network.ActorStatus {
	snapshots := s.entities.Snapshots()
	out := make([]network.ActorStatus, 0, len(snapshots))
	for _, snap := range snapshots {
		if a, ok := s.actor(snap.ID); ok {
			out = append(out, statusOf(a))
		}
	}
	return out
}

func statusOf(a *actor) network.ActorStatus {
	snap := a.entity.Snapshot()
	status := network.ActorStatus{
		ActorID:   string(snap.ID),
		Status:    string(a.engine.Status()),
		Index:     a.engine.CurrentIndex(),
		Position:  []float64{snap.Position.X, snap.Position.Y, snap.Position.Z},
		Velocity:  []float64{snap.Velocity.X, snap.Velocity.Y, snap.Velocity.Z},
		Grounded:  snap.Grounded,
		Sprinting: snap.Sprinting,
		Tick:      snap.Ticks,
	}
	if route, ok := a.engine.CurrentRoute(); ok {
		status.Steps = len(route.Steps)
	}
	return status
}

// EditBlock replaces a block, or toggles an openable block when Open is set.
func (s *Server) EditBlock(ctx context.Context, req network.BlockEdit) (network.BlockEditAck, error) {
	coord := world.BlockCoord{X: req.X, Y: req.Y, Z: req.Z}
	if _, ok := s.world.Region().LocateBlock(coord); !ok {
		return network.BlockEditAck{}, fmt.Errorf("%w: block %v outside region", network.ErrInvalidRequest, coord)
	}

	var (
		change world.BlockChange
		err    error
	)
	switch {
	case req.Open != nil:
		change, err = s.world.SetOpen(ctx, coord, *req.Open)
	default:
		material := req.Material
		if material == "" {
			material = catalog.Air
		}
		if _, known := s.catalog.Known(material); !known && material != catalog.Air {
			return network.BlockEditAck{}, fmt.Errorf("%w: unknown material %q", network.ErrInvalidRequest, material)
		}
		change, err = s.world.SetBlock(ctx, coord, world.Block{Material: material})
	}
	if err != nil {
		return network.BlockEditAck{}, fmt.Errorf("%w: %v", network.ErrInvalidRequest, err)
	}
	return network.BlockEditAck{
		X:        coord.X,
		Y:        coord.Y,
		Z:        coord.Z,
		Material: change.Current.Material,
		Open:     change.Current.Open,
		Version:  s.world.Version(),
	}, nil
}

func (s *Server) RecentRoutes(ctx context.Context, actorID string, limit int) ([]journal.RouteRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.RecentRoutes(ctx, actorID, limit)
}

func (s *Server) RecentEvents(ctx context.Context, actorID string, limit int) ([]journal.EventRecord, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.RecentEvents(ctx, actorID, limit)
}

func (s *Server) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.cfg.Network.RequestTimeout.Duration(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) recordRoute(actorID string, start, goal world.BlockCoord, route pathfinding.Route, elapsed time.Duration) {
	s.journal.RecordRoute(journal.RouteRecord{
		Actor:    actorID,
		Start:    [3]int{start.X, start.Y, start.Z},
		Goal:     [3]int{goal.X, goal.Y, goal.Z},
		Mode:     route.Mode.String(),
		Outcome:  route.Outcome.String(),
		Cost:     route.Cost,
		Steps:    len(route.Steps),
		Expanded: route.Expanded,
		Elapsed:  elapsed,
	})
}

func (s *Server) eventRecorder(id entities.ID) func(navigation.Event) {
	return func(ev navigation.Event) {
		if ev.Kind == navigation.EventFailed {
			s.logger.Printf("actor %s failed at step %d/%d: %s", id, ev.Index, ev.Steps, ev.Reason)
		}
		s.journal.RecordEvent(journal.EventRecord{
			Actor:  string(id),
			Kind:   string(ev.Kind),
			Status: string(ev.Status),
			Reason: ev.Reason.String(),
			Tick:   ev.Tick,
			Index:  ev.Index,
			Steps:  ev.Steps,
			Cost:   ev.Cost,
		})
	}
}

// applyOverrides layers per-request search settings over base.
func applyOverrides(base pathfinding.Options, o network.SearchOverrides) (pathfinding.Options, error) {
	opts := base
	switch strings.ToLower(o.Mode) {
	case "":
	case "ground":
		opts.Mode = pathfinding.ModeGround
	case "flying":
		opts.Mode = pathfinding.ModeFlying
	default:
		return opts, fmt.Errorf("%w: unknown search mode %q", network.ErrInvalidRequest, o.Mode)
	}
	if o.Diagonal != nil {
		opts.Diagonal = *o.Diagonal
	}
	if o.AllowSprintJumps != nil {
		opts.AllowSprintJumps = *o.AllowSprintJumps
	}
	if o.MaxNodes < 0 || o.TimeoutMs < 0 {
		return opts, fmt.Errorf("%w: search budgets cannot be negative", network.ErrInvalidRequest)
	}
	if o.MaxNodes > 0 {
		opts.MaxNodes = o.MaxNodes
	}
	if o.TimeoutMs > 0 {
		opts.Timeout = time.Duration(o.TimeoutMs) * time.Millisecond
	}
	return opts, nil
}

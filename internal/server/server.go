package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"voxelnav/internal/catalog"
	"voxelnav/internal/config"
	"voxelnav/internal/entities"
	"voxelnav/internal/httpapi"
	"voxelnav/internal/journal"
	"voxelnav/internal/navigation"
	"voxelnav/internal/network"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/terrain"
	"voxelnav/internal/world"
)

// Server owns the world, the simulated actors and the request surfaces of one
// navigation process.
type Server struct {
	cfg      *config.Config
	catalog  *catalog.Catalog
	world    *world.Manager
	terrain  *terrain.NoiseGenerator
	entities *entities.Manager
	net      *network.Server
	journal  *journal.Journal
	logger   *log.Logger
	settings navigation.Settings
	physics  entities.Physics
	planner  *navigation.Engine

	movementWorkers int

	actorsMu sync.RWMutex
	actors   map[entities.ID]*actor

	closeOnce sync.Once
}

var _ httpapi.Service = (*Server)(nil)

func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	logger := log.New(log.Writer(), "nav-server ", log.LstdFlags|log.Lmicroseconds)

	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load block catalog: %w", err)
	}

	region := world.NewServerRegion(cfg)
	provider, err := world.NewStorageProvider(cfg.Storage.Kind, cfg.Storage.Path, region)
	if err != nil {
		return nil, fmt.Errorf("storage provider: %w", err)
	}
	world.SetStorageProvider(provider)

	generator := terrain.NewNoiseGenerator(cfg.Terrain)
	worldManager := world.NewManager(region, generator)

	var nav *journal.Journal
	if cfg.Journal.Path != "" {
		nav, err = journal.Open(cfg.Journal.Path, cfg.Journal.BufferSize, cfg.Journal.FlushInterval.Duration(), nil)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
	}

	netSrv, err := network.Listen(cfg.Network.ListenUDP, logger, cfg.Network.MaxDatagramSizeBytes)
	if err != nil {
		_ = nav.Close()
		return nil, err
	}

	workers := cfg.Server.MovementWorkers
	if workers <= 0 {
		workers = 1
	}

	srv := &Server{
		cfg:             cfg,
		catalog:         cat,
		world:           worldManager,
		terrain:         generator,
		entities:        entities.NewManager(cfg.Server.MaxActors),
		net:             netSrv,
		journal:         nav,
		logger:          logger,
		settings:        navigation.SettingsFromConfig(cfg),
		physics:         entities.PhysicsFromConfig(cfg),
		movementWorkers: workers,
		actors:          make(map[entities.ID]*actor),
	}
	// The planner answers actor-less route queries and never executes.
	srv.planner = navigation.NewEngine(nil, srv.view, srv.settings, logger)
	srv.registerHandlers()
	return srv, nil
}

// Addr returns the bound UDP address.
func (s *Server) Addr() string {
	return s.net.LocalAddr().String()
}

func (s *Server) view(ctx context.Context) pathfinding.WorldAccessor {
	return pathfinding.NewWorldView(ctx, s.world, s.catalog)
}

// Run serves requests and ticks actors until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := s.net.Serve(ctx); err != nil && ctx.Err() == nil {
			s.logger.Printf("network server stopped: %v", err)
			cancel()
		}
	}()

	var (
		httpSrv *http.Server
		api     *httpapi.API
	)
	if s.cfg.HTTP.Listen != "" {
		api = httpapi.New(s, s.cfg.Server.StatusStreamRate.Duration(), s.logger)
		httpSrv = &http.Server{Addr: s.cfg.HTTP.Listen, Handler: api.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Printf("http server stopped: %v", err)
				cancel()
			}
		}()
		s.logger.Printf("http api listening on %s", s.cfg.HTTP.Listen)
	}

	movement := newMovementEngine(s, s.cfg.Server.TickRate.Duration(), s.movementWorkers)
	movement.Start(ctx)
	defer movement.Wait()

	s.logger.Printf("navigation server %s listening on %s", s.cfg.Server.ID, s.Addr())
	<-ctx.Done()

	if httpSrv != nil {
		api.Close()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("http shutdown: %v", err)
		}
		stop()
	}
	return ctx.Err()
}

func (s *Server) shutdown() {
	s.closeOnce.Do(func() {
		s.stopAll()
		if err := s.net.Close(); err != nil {
			s.logger.Printf("close udp listener: %v", err)
		}
		if err := s.journal.Close(); err != nil {
			s.logger.Printf("close journal: %v", err)
		}
		if err := s.world.Close(); err != nil {
			s.logger.Printf("close world storage: %v", err)
		}
	})
}

// Close releases resources of a server whose Run was never called.
func (s *Server) Close() error {
	s.shutdown()
	return nil
}

// advance runs steps simulation ticks. Each tick lets every executor steer
// its actor and then moves the actor's body one step.
func (s *Server) advance(ctx context.Context, steps, workers int) {
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			return
		}
		s.entities.ApplyConcurrent(workers, func(ent *entities.Entity) {
			a, ok := s.actor(ent.ID)
			if !ok {
				return
			}
			a.engine.Tick(ctx)
			ent.Step(s.view(ctx))
		})
	}
}

// Hello describes the region served by this process.
func (s *Server) Hello() network.Hello {
	region := s.world.Region()
	var msg network.Hello
	msg.ServerID = s.cfg.Server.ID
	msg.Region.OriginX = region.Origin.X
	msg.Region.OriginZ = region.Origin.Z
	msg.Region.Size = region.ChunksPerAxis
	msg.Region.MinY = region.MinY
	msg.Region.Height = region.ChunkDimension.Height
	return msg
}

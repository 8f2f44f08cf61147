package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"voxelnav/internal/catalog"
	"voxelnav/internal/config"
	"voxelnav/internal/journal"
	"voxelnav/internal/navigation"
	"voxelnav/internal/pathfinding"
	"voxelnav/internal/terrain"
	"voxelnav/internal/world"
)

type countingGenerator struct {
	base  world.Generator
	loads atomic.Int64
}

func newCountingGenerator(base world.Generator) *countingGenerator {
	return &countingGenerator{base: base}
}

func (g *countingGenerator) Generate(ctx context.Context, coord world.ChunkCoord, bounds world.Bounds, dim world.Dimensions) (*world.Chunk, error) {
	chunk, err := g.base.Generate(ctx, coord, bounds, dim)
	if err == nil {
		g.loads.Add(1)
	}
	return chunk, err
}

func (g *countingGenerator) LoadCount() int64 {
	return g.loads.Load()
}

type pathJob struct {
	start world.BlockCoord
	goal  world.BlockCoord
}

func main() {
	var (
		totalRequests = flag.Int("requests", 2000, "number of route requests to issue")
		concurrency   = flag.Int("concurrency", runtime.NumCPU(), "number of concurrent workers")
		chunksPerAxis = flag.Int("chunks", 3, "chunks per axis to include in the region")
		chunkSize     = flag.Int("chunkSize", 32, "chunk width and depth in blocks")
		modeFlag      = flag.String("mode", "ground", "search mode: ground or flying")
		diagonal      = flag.Bool("diagonal", true, "allow diagonal moves")
		sprintJumps   = flag.Bool("sprintJumps", false, "allow sprint gap jumps")
		maxNodes      = flag.Int("maxNodes", 50_000, "node budget per search")
		timeout       = flag.Duration("timeout", 250*time.Millisecond, "per-request timeout")
		maxSpan       = flag.Int("maxSpan", 0, "maximum horizontal distance between start and goal (0 is unbounded)")
		compress      = flag.Bool("compress", false, "run the path compressor on found routes")
		seed          = flag.Int64("seed", 1337, "random seed for start/goal selection")
		terrainSeed   = flag.Int64("terrainSeed", 1337, "terrain seed")
		journalPath   = flag.String("journal", "", "sqlite file to record every search into (empty disables)")
	)
	flag.Parse()

	if *totalRequests <= 0 {
		fail("requests must be positive")
	}
	if *concurrency <= 0 {
		fail("concurrency must be positive")
	}
	if *chunksPerAxis <= 0 || *chunkSize <= 0 {
		fail("chunks and chunkSize must be positive")
	}
	if *modeFlag != "ground" && *modeFlag != "flying" {
		fail("mode must be ground or flying")
	}

	cfg := config.Default()
	cfg.Chunk.Width = *chunkSize
	cfg.Chunk.Depth = *chunkSize
	cfg.Chunk.ChunksPerAxis = *chunksPerAxis
	cfg.Terrain.Seed = *terrainSeed
	if err := cfg.Validate(); err != nil {
		fail(fmt.Sprintf("config: %v", err))
	}

	cat := catalog.Default()
	region := world.NewServerRegion(cfg)
	noise := terrain.NewNoiseGenerator(cfg.Terrain)
	generator := newCountingGenerator(noise)
	manager := world.NewManager(region, generator)
	defer manager.Close()

	settings := navigation.SettingsFromConfig(cfg)
	navigator := pathfinding.NewNavigator(settings.Collider, settings.Jumps, settings.JumpPenalty, settings.MaxDrop)
	opts := pathfinding.Options{
		Mode:             pathfinding.ModeFromString(*modeFlag),
		Diagonal:         *diagonal,
		MaxNodes:         *maxNodes,
		Timeout:          *timeout,
		AllowSprintJumps: *sprintJumps,
	}

	var nav *journal.Journal
	if *journalPath != "" {
		var err error
		nav, err = journal.Open(*journalPath, 4096, 100*time.Millisecond, nil)
		if err != nil {
			fail(fmt.Sprintf("open journal: %v", err))
		}
		defer nav.Close()
	}

	ctx := context.Background()
	candidates := collectStandingCells(ctx, manager, cat, navigator, noise, region, opts.Mode)
	if len(candidates) < 2 {
		fail("not enough standing cells to profile")
	}

	jobs := make(chan pathJob)
	go func() {
		defer close(jobs)
		rng := rand.New(rand.NewSource(*seed))
		for i := 0; i < *totalRequests; i++ {
			start := candidates[rng.Intn(len(candidates))]
			goal := candidates[rng.Intn(len(candidates))]
			for tries := 0; goal == start || (tries < 1000 && !withinSpan(start, goal, *maxSpan)); tries++ {
				goal = candidates[rng.Intn(len(candidates))]
			}
			jobs <- pathJob{start: start, goal: goal}
		}
	}()

	var (
		wg                 sync.WaitGroup
		mu                 sync.Mutex
		outcomes           = make(map[pathfinding.Outcome]int64)
		totalNodes         atomic.Int64
		totalHeuristics    atomic.Int64
		totalHits          atomic.Int64
		totalMisses        atomic.Int64
		totalSuccessLength atomic.Int64
		totalCompressed    atomic.Int64
		totalRouteDuration atomic.Int64
	)

	compressor := settings.Compressor

	worker := func() {
		defer wg.Done()
		for job := range jobs {
			view := pathfinding.NewWorldView(ctx, manager, cat)
			startTime := time.Now()
			route, stats := navigator.FindRouteWithStats(ctx, view, job.start, job.goal, opts)
			duration := time.Since(startTime)

			totalNodes.Add(stats.NodesExpanded)
			totalHeuristics.Add(stats.HeuristicEvaluations)
			totalHits.Add(stats.CacheHits)
			totalMisses.Add(stats.CacheMisses)
			totalRouteDuration.Add(int64(duration))

			mu.Lock()
			outcomes[route.Outcome]++
			mu.Unlock()

			if route.Found() {
				totalSuccessLength.Add(int64(len(route.Steps) - 1))
				if *compress {
					totalCompressed.Add(int64(len(compressor.Compress(view, route).Steps) - 1))
				}
			}

			nav.RecordRoute(journal.RouteRecord{
				Actor:    "pathprofile",
				Start:    [3]int{job.start.X, job.start.Y, job.start.Z},
				Goal:     [3]int{job.goal.X, job.goal.Y, job.goal.Z},
				Mode:     route.Mode.String(),
				Outcome:  route.Outcome.String(),
				Cost:     route.Cost,
				Steps:    len(route.Steps),
				Expanded: route.Expanded,
				Elapsed:  duration,
				At:       time.Now().UTC(),
			})
		}
	}

	wg.Add(*concurrency)
	for i := 0; i < *concurrency; i++ {
		go worker()
	}

	startWall := time.Now()
	wg.Wait()
	wallDuration := time.Since(startWall)

	requests := int64(*totalRequests)
	hits, misses := totalHits.Load(), totalMisses.Load()
	hitRatio := 0.0
	if hits+misses > 0 {
		hitRatio = float64(hits) / float64(hits+misses) * 100
	}
	found := outcomes[pathfinding.OutcomeFound]
	avgPathLength, avgCompressed := 0.0, 0.0
	if found > 0 {
		avgPathLength = float64(totalSuccessLength.Load()) / float64(found)
		avgCompressed = float64(totalCompressed.Load()) / float64(found)
	}

	fmt.Println("== Voxel Route Profile ==")
	fmt.Printf("Region: %d x %d chunks of %dx%dx%d\n", *chunksPerAxis, *chunksPerAxis, cfg.Chunk.Width, cfg.Chunk.Depth, cfg.Chunk.Height)
	fmt.Printf("Standing cells: %d\n", len(candidates))
	fmt.Printf("Mode: %s, diagonal: %t, sprint jumps: %t\n", opts.Mode, opts.Diagonal, opts.AllowSprintJumps)
	fmt.Printf("Requests: %d, concurrency: %d\n", requests, *concurrency)
	printOutcomes(outcomes)
	fmt.Printf("Average route length (steps): %.2f\n", avgPathLength)
	if *compress {
		fmt.Printf("Average compressed length (steps): %.2f\n", avgCompressed)
	}
	fmt.Printf("Average per-route duration: %s\n", time.Duration(totalRouteDuration.Load()/requests))
	fmt.Printf("Wall clock duration: %s\n", wallDuration)
	fmt.Printf("Average nodes expanded: %.2f\n", float64(totalNodes.Load())/float64(requests))
	fmt.Printf("Average heuristic evaluations: %.2f\n", float64(totalHeuristics.Load())/float64(requests))
	fmt.Printf("Cache hit ratio: %.2f%% (%d hits, %d misses)\n", hitRatio, hits, misses)
	fmt.Printf("Chunks generated: %d\n", generator.LoadCount())

	if nav != nil {
		syncCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := nav.Sync(syncCtx); err != nil {
			fail(fmt.Sprintf("flush journal: %v", err))
		}
		counts, err := nav.OutcomeCounts(syncCtx)
		if err != nil {
			fail(fmt.Sprintf("query journal: %v", err))
		}
		fmt.Printf("Journal %s: %v (dropped %d)\n", *journalPath, counts, nav.Dropped())
	}
}

// collectStandingCells returns the cell above each column's surface that the
// navigator accepts as an endpoint.
func collectStandingCells(ctx context.Context, manager *world.Manager, cat *catalog.Catalog, navigator *pathfinding.Navigator, noise *terrain.NoiseGenerator, region world.ServerRegion, mode pathfinding.Mode) []world.BlockCoord {
	view := pathfinding.NewWorldView(ctx, manager, cat)
	bounds := region.BlockBounds()
	coords := make([]world.BlockCoord, 0, (bounds.Max.X-bounds.Min.X+1)*(bounds.Max.Z-bounds.Min.Z+1))
	for x := bounds.Min.X; x <= bounds.Max.X; x++ {
		for z := bounds.Min.Z; z <= bounds.Max.Z; z++ {
			c := world.BlockCoord{X: x, Y: noise.SurfaceHeight(x, z) + 1, Z: z}
			if c.Y > bounds.Max.Y {
				continue
			}
			if navigator.Occupiable(view, c, mode) {
				coords = append(coords, c)
			}
		}
	}
	return coords
}

func withinSpan(a, b world.BlockCoord, span int) bool {
	if span <= 0 {
		return true
	}
	return abs(a.X-b.X) <= span && abs(a.Z-b.Z) <= span
}

func printOutcomes(outcomes map[pathfinding.Outcome]int64) {
	keys := make([]pathfinding.Outcome, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		fmt.Printf("  %-17s %d\n", k.String()+":", outcomes[k])
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

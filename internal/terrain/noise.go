package terrain

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"

	"voxelnav/internal/catalog"
	"voxelnav/internal/config"
	"voxelnav/internal/world"
)

// headroom is the number of layers kept free above the highest surface so
// actors can always stand on it.
const headroom = 4

// NoiseGenerator creates repeatable terrain using hashed value noise.
type NoiseGenerator struct {
	cfg  config.TerrainConfig
	seed int64
}

func NewNoiseGenerator(cfg config.TerrainConfig) *NoiseGenerator {
	return &NoiseGenerator{cfg: cfg, seed: cfg.Seed}
}

// SurfaceHeight returns the y of the topmost terrain block of column (x, z)
// before features are applied. Actors stand at SurfaceHeight+1.
func (g *NoiseGenerator) SurfaceHeight(x, z int) int {
	noise := g.fractalNoise(float64(x), float64(z))
	return g.cfg.BaseHeight + int(math.Round(noise*g.cfg.Amplitude))
}

func (g *NoiseGenerator) columnHeight(bounds world.Bounds, x, z int) int {
	return clampInt(g.SurfaceHeight(x, z), bounds.Min.Y, bounds.Max.Y-headroom)
}

func (g *NoiseGenerator) Generate(ctx context.Context, coord world.ChunkCoord, bounds world.Bounds, dim world.Dimensions) (*world.Chunk, error) {
	chunk := world.NewChunk(coord, bounds, dim)

	totalColumns := dim.Width * dim.Depth
	if totalColumns <= 0 {
		log.Printf("chunk %v generation progress: 100%%", coord)
		return chunk, nil
	}

	log.Printf("chunk %v generation progress: 0%%", coord)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	buffer := newChunkWriteBuffer(chunk, dim)

	type columnTask struct {
		localX int
		localZ int
	}

	type columnResult struct {
		localX  int
		localZ  int
		surface int
		column  []world.Block
		err     error
	}

	workers := g.workerCount(totalColumns)
	tasks := make(chan columnTask, workers)
	results := make(chan columnResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if err := ctx.Err(); err != nil {
					select {
					case results <- columnResult{err: err}:
					default:
					}
					return
				}

				globalX := bounds.Min.X + task.localX
				globalZ := bounds.Min.Z + task.localZ
				surface := g.columnHeight(bounds, globalX, globalZ)
				column := g.populateColumn(bounds, dim, globalX, globalZ, surface)

				select {
				case results <- columnResult{localX: task.localX, localZ: task.localZ, surface: surface, column: column}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(tasks)
		for x := 0; x < dim.Width; x++ {
			for z := 0; z < dim.Depth; z++ {
				select {
				case <-ctx.Done():
					return
				case tasks <- columnTask{localX: x, localZ: z}:
				}
			}
		}
	}()

	generatedColumns := 0
	nextLogPercent := 10
	loggedComplete := false

	for result := range results {
		if result.err != nil {
			cancel()
			return nil, result.err
		}

		buffer.Store(result.localX, result.localZ, result.surface, result.column)

		generatedColumns++
		progress := generatedColumns * 100 / totalColumns
		if progress >= nextLogPercent {
			log.Printf("chunk %v generation progress: %d%%", coord, progress)
			if progress >= 100 {
				loggedComplete = true
				nextLogPercent = 110
			} else {
				nextLogPercent = ((progress / 10) + 1) * 10
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if generatedColumns != totalColumns {
		return nil, fmt.Errorf("chunk %v generated %d of %d columns", coord, generatedColumns, totalColumns)
	}

	g.placeLadders(buffer, bounds, dim)

	if err := buffer.Flush(); err != nil {
		return nil, err
	}

	if !loggedComplete {
		log.Printf("chunk %v generation progress: 100%%", coord)
	}

	return chunk, nil
}

// populateColumn lays out stone, two layers of dirt and a grass top at
// surface, floods everything up to the water level and then decorates the
// column. Index 0 is the region's lowest layer.
func (g *NoiseGenerator) populateColumn(bounds world.Bounds, dim world.Dimensions, x, z, surface int) []world.Block {
	top := surface - bounds.Min.Y
	if top < 0 {
		return nil
	}
	waterTop := g.cfg.WaterLevel - bounds.Min.Y
	height := top + 1
	if waterTop >= height {
		height = waterTop + 1
	}
	if height > dim.Height {
		height = dim.Height
	}

	column := make([]world.Block, height, dim.Height)
	fillBlockRange(column, 0, top-3, world.Block{Material: catalog.Stone})
	fillBlockRange(column, top-2, top-1, world.Block{Material: catalog.Dirt})
	if surface <= g.cfg.WaterLevel {
		column[top] = world.Block{Material: catalog.Sand}
	} else {
		column[top] = world.Block{Material: catalog.Grass}
	}
	fillBlockRange(column, top+1, waterTop, world.Block{Material: catalog.Water})

	if surface >= g.cfg.WaterLevel {
		column = g.decorateColumn(column, top, x, z)
	}
	return column
}

type chunkWriteBuffer struct {
	chunk    *world.Chunk
	dim      world.Dimensions
	columns  map[int][]world.Block
	surfaces map[int]int
}

func newChunkWriteBuffer(chunk *world.Chunk, dim world.Dimensions) *chunkWriteBuffer {
	return &chunkWriteBuffer{
		chunk:    chunk,
		dim:      dim,
		columns:  make(map[int][]world.Block),
		surfaces: make(map[int]int),
	}
}

func (b *chunkWriteBuffer) Store(localX, localZ, surface int, column []world.Block) {
	idx := b.index(localX, localZ)
	b.columns[idx] = column
	b.surfaces[idx] = surface
}

func (b *chunkWriteBuffer) Flush() error {
	for idx, column := range b.columns {
		localX := idx % b.dim.Width
		localZ := idx / b.dim.Width
		if ok := b.chunk.SetColumnBlocks(localX, localZ, column); !ok {
			return fmt.Errorf("chunk %v failed to persist column (%d,%d)", b.chunk.Key, localX, localZ)
		}
	}
	b.columns = make(map[int][]world.Block)
	return nil
}

func (b *chunkWriteBuffer) index(localX, localZ int) int {
	return localZ*b.dim.Width + localX
}

func (b *chunkWriteBuffer) column(localX, localZ int) ([]world.Block, bool) {
	column, ok := b.columns[b.index(localX, localZ)]
	return column, ok
}

func (b *chunkWriteBuffer) surface(localX, localZ int) (int, bool) {
	if localX < 0 || localZ < 0 || localX >= b.dim.Width || localZ >= b.dim.Depth {
		return 0, false
	}
	s, ok := b.surfaces[b.index(localX, localZ)]
	return s, ok
}

func (b *chunkWriteBuffer) setColumn(localX, localZ int, column []world.Block) {
	b.columns[b.index(localX, localZ)] = column
}

func fillBlockRange(column []world.Block, start, end int, value world.Block) {
	if len(column) == 0 {
		return
	}
	if start < 0 {
		start = 0
	}
	if end >= len(column) {
		end = len(column) - 1
	}
	for i := start; i <= end; i++ {
		column[i] = value
	}
}

func (g *NoiseGenerator) fractalNoise(x, z float64) float64 {
	frequency := g.cfg.Frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < g.cfg.Octaves; i++ {
		noise := g.valueNoise(x*frequency, z*frequency)
		noiseSum += noise * amplitude
		maxAmplitude += amplitude
		amplitude *= g.cfg.Persistence
		frequency *= g.cfg.Lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func (g *NoiseGenerator) valueNoise(x, z float64) float64 {
	x0 := int(math.Floor(x))
	z0 := int(math.Floor(z))
	x1 := x0 + 1
	z1 := z0 + 1

	sx := smooth(x - float64(x0))
	sz := smooth(z - float64(z0))

	n0 := random2D(x0, z0, g.seed)
	n1 := random2D(x1, z0, g.seed)
	ix0 := lerp(n0, n1, sx)

	n2 := random2D(x0, z1, g.seed)
	n3 := random2D(x1, z1, g.seed)
	ix1 := lerp(n2, n3, sx)

	return lerp(ix0, ix1, sz)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func random2D(x, z int, seed int64) float64 {
	return float64(hash3(x, z, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (g *NoiseGenerator) workerCount(totalColumns int) int {
	workers := g.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 2
	}
	if workers > totalColumns {
		workers = totalColumns
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}

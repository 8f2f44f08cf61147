package terrain

import (
	"voxelnav/internal/catalog"
	"voxelnav/internal/world"
)

// Feature salts keep the per-column rolls independent of each other.
const (
	saltHazard = iota + 1
	saltFeature
	saltFoliage
	saltLadder
)

// ladderChance is the share of cliff faces that receive a ladder.
const ladderChance = 0.35

// maxLadderClimb is the tallest cliff a generated ladder covers.
const maxLadderClimb = 6

var (
	hazardKinds   = []string{catalog.Lava, catalog.Magma, catalog.Fire, catalog.BerryBush, catalog.Cactus}
	obstacleKinds = []string{catalog.Slab, catalog.Fence, catalog.Wall, catalog.Carpet, catalog.Cobweb, catalog.Barricade}
	floorKinds    = []string{catalog.Ice, catalog.SoulSand, catalog.Honey, catalog.Farmland}
	foliageKinds  = []string{catalog.TallGrass, catalog.Flower, catalog.Wheat}
	// replacesTop lists materials that take the place of the top block instead
	// of sitting on it.
	replacesTop = map[string]bool{
		catalog.Lava:     true,
		catalog.Magma:    true,
		catalog.Ice:      true,
		catalog.SoulSand: true,
		catalog.Honey:    true,
		catalog.Farmland: true,
	}
)

// decorateColumn adds at most one hazard, obstacle or foliage block to a dry
// column whose top block sits at index top.
func (g *NoiseGenerator) decorateColumn(column []world.Block, top, x, z int) []world.Block {
	if top+1 >= cap(column) {
		return column
	}
	if roll(x, z, g.seed, saltHazard) < g.cfg.HazardRate {
		return place(column, top, pick(hazardKinds, x, z, g.seed, saltHazard))
	}
	if roll(x, z, g.seed, saltFeature) < g.cfg.FeatureRate {
		if variant := hash3(x, z, int(g.seed)+saltFeature) % 3; variant == 0 {
			return place(column, top, pick(floorKinds, x, z, g.seed, saltFeature))
		}
		return place(column, top, pick(obstacleKinds, x, z, g.seed, saltFeature))
	}
	if roll(x, z, g.seed, saltFoliage) < g.cfg.FeatureRate*4 {
		return place(column, top, pick(foliageKinds, x, z, g.seed, saltFoliage))
	}
	return column
}

// place puts material on top of the column or swaps the top block for it.
func place(column []world.Block, top int, material string) []world.Block {
	block := world.Block{Material: material}
	if replacesTop[material] {
		column[top] = block
		return column
	}
	return setAt(column, top+1, block)
}

// placeLadders hangs ladders on cliff faces two or more blocks tall so ground
// actors can climb between terrain levels. Only columns fully inside the
// chunk are considered.
func (g *NoiseGenerator) placeLadders(buffer *chunkWriteBuffer, bounds world.Bounds, dim world.Dimensions) {
	for localX := 0; localX < dim.Width; localX++ {
		for localZ := 0; localZ < dim.Depth; localZ++ {
			surface, ok := buffer.surface(localX, localZ)
			if !ok || surface < g.cfg.WaterLevel {
				continue
			}
			column, ok := buffer.column(localX, localZ)
			top := surface - bounds.Min.Y
			if !ok || len(column) != top+1 {
				continue
			}
			globalX, globalZ := bounds.Min.X+localX, bounds.Min.Z+localZ
			if roll(globalX, globalZ, g.seed, saltLadder) >= ladderChance {
				continue
			}
			cliff := 0
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				neighbour, ok := buffer.surface(localX+d[0], localZ+d[1])
				if !ok {
					continue
				}
				if rise := neighbour - surface; rise >= 2 && rise <= maxLadderClimb && rise > cliff {
					cliff = rise
				}
			}
			if cliff == 0 || top+cliff >= dim.Height {
				continue
			}
			for y := 1; y <= cliff; y++ {
				column = setAt(column, top+y, world.Block{Material: catalog.Ladder})
			}
			buffer.setColumn(localX, localZ, column)
		}
	}
}

// setAt stores block at index i, growing the column with air as needed.
func setAt(column []world.Block, i int, block world.Block) []world.Block {
	for len(column) <= i {
		column = append(column, world.Block{})
	}
	column[i] = block
	return column
}

func roll(x, z int, seed int64, salt int) float64 {
	return float64(hash3(x, z, int(seed)*31+salt)&0xFFFF) / 0x10000
}

func pick(kinds []string, x, z int, seed int64, salt int) string {
	rng := newDeterministicRNG(x, z, seed+int64(salt))
	return kinds[rng.nextInt(len(kinds))]
}

type deterministicRNG struct {
	state uint64
}

func newDeterministicRNG(x, z int, seed int64) *deterministicRNG {
	state := uint64(uint32(x))<<32 ^ uint64(uint32(z))<<1 ^ uint64(seed)
	if state == 0 {
		state = 0x9e3779b97f4a7c15
	}
	return &deterministicRNG{state: state}
}

func (r *deterministicRNG) next() uint64 {
	r.state ^= r.state << 7
	r.state ^= r.state >> 9
	r.state ^= r.state << 8
	return r.state
}

func (r *deterministicRNG) nextInt(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

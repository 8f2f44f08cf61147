package pathfinding

import (
	"voxelnav/internal/catalog"
	"voxelnav/internal/world"
)

type fakeBlock struct {
	name string
	open bool
}

// fakeWorld is a map-backed WorldAccessor. Cells outside bounds are unloaded.
type fakeWorld struct {
	catalog *catalog.Catalog
	bounds  world.Bounds
	blocks  map[world.BlockCoord]fakeBlock
}

func newFakeWorld(min, max world.BlockCoord) *fakeWorld {
	return &fakeWorld{
		catalog: catalog.Default(),
		bounds:  world.Bounds{Min: min, Max: max},
		blocks:  make(map[world.BlockCoord]fakeBlock),
	}
}

// newFloorWorld builds a stone floor at y=-1 over the given horizontal span
// with room up to y=4.
func newFloorWorld(minX, maxX, minZ, maxZ int) *fakeWorld {
	w := newFakeWorld(
		world.BlockCoord{X: minX, Y: -3, Z: minZ},
		world.BlockCoord{X: maxX, Y: 4, Z: maxZ},
	)
	w.fill(minX, maxX, -1, -1, minZ, maxZ, catalog.Stone)
	return w
}

func (f *fakeWorld) Cell(c world.BlockCoord) Cell {
	if !f.bounds.Contains(c) {
		return Cell{}
	}
	b := f.blocks[c]
	return Cell{Def: f.catalog.Lookup(b.name), Open: b.open, Loaded: true}
}

func (f *fakeWorld) set(c world.BlockCoord, name string) {
	if name == "" || name == catalog.Air {
		delete(f.blocks, c)
		return
	}
	f.blocks[c] = fakeBlock{name: name}
}

func (f *fakeWorld) setOpen(c world.BlockCoord, open bool) {
	b := f.blocks[c]
	b.open = open
	f.blocks[c] = b
}

func (f *fakeWorld) fill(x0, x1, y0, y1, z0, z1 int, name string) {
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			for z := z0; z <= z1; z++ {
				f.set(world.BlockCoord{X: x, Y: y, Z: z}, name)
			}
		}
	}
}

func bc(x, y, z int) world.BlockCoord {
	return world.BlockCoord{X: x, Y: y, Z: z}
}

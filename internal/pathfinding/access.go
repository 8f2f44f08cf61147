package pathfinding

import (
	"context"
	"math"
	"time"

	"voxelnav/internal/catalog"
	"voxelnav/internal/world"
)

// Cell is the navigation view of one voxel. Cells that could not be read
// report Loaded=false and behave as full solid cubes.
type Cell struct {
	Def    catalog.Definition
	Open   bool
	Loaded bool
}

var solidBoxes = catalog.ShapeFull.Boxes(false)

// Boxes returns the cell-local collision boxes of the cell.
func (c Cell) Boxes() []catalog.Box {
	if !c.Loaded {
		return solidBoxes
	}
	return c.Def.Shape.Boxes(c.Open)
}

// Top returns the highest collision surface in cell-local units.
func (c Cell) Top() float64 {
	if !c.Loaded {
		return 1
	}
	return c.Def.Shape.Top(c.Open)
}

func (c Cell) surface() catalog.Surface {
	if !c.Loaded {
		return catalog.SurfacePlain
	}
	return c.Def.Surface
}

// WorldAccessor is the read-only world query surface used by the engine.
type WorldAccessor interface {
	Cell(coord world.BlockCoord) Cell
}

// IsSolid reports whether the cell carries any collision geometry.
func IsSolid(w WorldAccessor, coord world.BlockCoord) bool {
	return len(w.Cell(coord).Boxes()) > 0
}

// ShapeAt returns the registered shape of a cell. Unreadable cells are full.
func ShapeAt(w WorldAccessor, coord world.BlockCoord) catalog.Shape {
	cell := w.Cell(coord)
	if !cell.Loaded {
		return catalog.ShapeFull
	}
	return cell.Def.Shape
}

// IsOpen reports whether an openable block at coord is currently open.
func IsOpen(w WorldAccessor, coord world.BlockCoord) bool {
	cell := w.Cell(coord)
	return cell.Loaded && cell.Def.Shape.Openable() && cell.Open
}

// WorldView adapts the chunk manager to WorldAccessor. A view caches chunk
// handles and is meant to live for one search or one tick.
type WorldView struct {
	ctx     context.Context
	manager *world.Manager
	catalog *catalog.Catalog
	region  world.ServerRegion
	chunks  map[world.ChunkCoord]*world.Chunk
	// generate allows the view to populate chunks that are not resident yet.
	generate bool
}

// NewWorldView returns a view that generates missing chunks on demand.
func NewWorldView(ctx context.Context, manager *world.Manager, cat *catalog.Catalog) *WorldView {
	return newWorldView(ctx, manager, cat, true)
}

// NewResidentView returns a view that treats non-resident chunks as unloaded.
func NewResidentView(ctx context.Context, manager *world.Manager, cat *catalog.Catalog) *WorldView {
	return newWorldView(ctx, manager, cat, false)
}

func newWorldView(ctx context.Context, manager *world.Manager, cat *catalog.Catalog, generate bool) *WorldView {
	if cat == nil {
		cat = catalog.Default()
	}
	v := &WorldView{
		ctx:      ctx,
		manager:  manager,
		catalog:  cat,
		chunks:   make(map[world.ChunkCoord]*world.Chunk),
		generate: generate,
	}
	if manager != nil {
		v.region = manager.Region()
	}
	return v
}

func (v *WorldView) Cell(coord world.BlockCoord) Cell {
	block, ok := v.blockAt(coord)
	if !ok {
		return Cell{}
	}
	return Cell{Def: v.catalog.Lookup(block.Material), Open: block.Open, Loaded: true}
}

func (v *WorldView) blockAt(coord world.BlockCoord) (world.Block, bool) {
	if v.manager == nil {
		return world.Block{}, false
	}
	chunkCoord, ok := v.region.LocateBlock(coord)
	if !ok {
		return world.Block{}, false
	}
	profiler := profilerFromContext(v.ctx)
	chunk, ok := v.chunks[chunkCoord]
	if !ok {
		if profiler != nil {
			profiler.RecordCacheMiss()
		}
		if v.generate {
			start := time.Now()
			ch, err := v.manager.Chunk(v.ctx, chunkCoord)
			if err != nil {
				return world.Block{}, false
			}
			if profiler != nil {
				profiler.RecordChunkLoad(time.Since(start))
			}
			chunk = ch
		} else {
			ch, ok := v.manager.LoadedChunk(chunkCoord)
			if !ok {
				return world.Block{}, false
			}
			chunk = ch
		}
		v.chunks[chunkCoord] = chunk
	} else if profiler != nil {
		profiler.RecordCacheHit()
	}
	return chunk.Block(coord)
}

// Vec3 is a point or direction in block space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// HorizontalDist is the distance between two points ignoring the vertical axis.
func (v Vec3) HorizontalDist(o Vec3) float64 {
	return math.Hypot(v.X-o.X, v.Z-o.Z)
}

// ActorState is a snapshot of the actor as seen by the engine.
type ActorState struct {
	Position  Vec3
	Velocity  Vec3
	Yaw       float64
	Grounded  bool
	Sprinting bool
}

// Actor is the controllable body driven by the executor. Yaw is measured in
// radians from +X toward +Z, so a heading of atan2(dz, dx) faces (dx, dz).
type Actor interface {
	State() ActorState
	SetHeading(yaw float64)
	SetForward(forward bool)
	SetSprint(sprint bool)
	Jump()
}

// CellOf returns the cell whose space contains the actor's feet.
func CellOf(pos Vec3) world.BlockCoord {
	return world.BlockCoord{
		X: int(math.Floor(pos.X)),
		Y: int(math.Floor(pos.Y + 0.01)),
		Z: int(math.Floor(pos.Z)),
	}
}

// CellCenter returns the horizontal centre of a cell at the given height.
func CellCenter(c world.BlockCoord, height float64) Vec3 {
	return Vec3{X: float64(c.X) + 0.5, Y: height, Z: float64(c.Z) + 0.5}
}

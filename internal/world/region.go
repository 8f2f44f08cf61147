package world

import (
	"fmt"

	"voxelnav/internal/config"
)

// ChunkCoord identifies a chunk column in global chunk space. Chunks span the
// full vertical range of the region, so only the horizontal axes are indexed.
type ChunkCoord struct {
	X int
	Z int
}

// LocalChunkIndex represents a chunk index relative to the owning region.
type LocalChunkIndex struct {
	X int
	Z int
}

// BlockCoord describes a block position in global block space. Y is vertical.
type BlockCoord struct {
	X int
	Y int
	Z int
}

// Add returns the coordinate offset by the given deltas.
func (c BlockCoord) Add(dx, dy, dz int) BlockCoord {
	return BlockCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Up returns the coordinate directly above.
func (c BlockCoord) Up() BlockCoord { return BlockCoord{X: c.X, Y: c.Y + 1, Z: c.Z} }

// Down returns the coordinate directly below.
func (c BlockCoord) Down() BlockCoord { return BlockCoord{X: c.X, Y: c.Y - 1, Z: c.Z} }

func (c BlockCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Dimensions defines the size of a chunk in blocks.
type Dimensions struct {
	Width  int
	Depth  int
	Height int
}

// Bounds is an axis-aligned bounding box represented by inclusive min/max corners in block space.
type Bounds struct {
	Min BlockCoord
	Max BlockCoord
}

// Contains reports whether the coordinate lies inside the bounds.
func (b Bounds) Contains(c BlockCoord) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// ServerRegion delineates the contiguous grid of chunks owned by this server.
// MinY is the lowest block layer; the region spans MinY..MinY+Height-1.
type ServerRegion struct {
	Origin         ChunkCoord
	ChunksPerAxis  int
	ChunkDimension Dimensions
	MinY           int
}

func NewServerRegion(cfg *config.Config) ServerRegion {
	return ServerRegion{
		Origin: ChunkCoord{
			X: cfg.Server.GlobalChunkOrigin.X,
			Z: cfg.Server.GlobalChunkOrigin.Z,
		},
		ChunksPerAxis: cfg.Chunk.ChunksPerAxis,
		ChunkDimension: Dimensions{
			Width:  cfg.Chunk.Width,
			Depth:  cfg.Chunk.Depth,
			Height: cfg.Chunk.Height,
		},
		MinY: cfg.Chunk.MinY,
	}
}

func (r ServerRegion) ContainsGlobalChunk(coord ChunkCoord) bool {
	return coord.X >= r.Origin.X &&
		coord.Z >= r.Origin.Z &&
		coord.X < r.Origin.X+r.ChunksPerAxis &&
		coord.Z < r.Origin.Z+r.ChunksPerAxis
}

func (r ServerRegion) LocalToGlobalChunk(local LocalChunkIndex) (ChunkCoord, error) {
	if local.X < 0 || local.Z < 0 || local.X >= r.ChunksPerAxis || local.Z >= r.ChunksPerAxis {
		return ChunkCoord{}, fmt.Errorf("local chunk index %v out of range", local)
	}
	return ChunkCoord{
		X: r.Origin.X + local.X,
		Z: r.Origin.Z + local.Z,
	}, nil
}

func (r ServerRegion) GlobalToLocalChunk(global ChunkCoord) (LocalChunkIndex, error) {
	if !r.ContainsGlobalChunk(global) {
		return LocalChunkIndex{}, fmt.Errorf("global chunk %v not owned by region", global)
	}
	return LocalChunkIndex{
		X: global.X - r.Origin.X,
		Z: global.Z - r.Origin.Z,
	}, nil
}

func (r ServerRegion) ChunkBounds(global ChunkCoord) (Bounds, error) {
	if !r.ContainsGlobalChunk(global) {
		return Bounds{}, fmt.Errorf("chunk %v outside region", global)
	}

	min := BlockCoord{
		X: global.X * r.ChunkDimension.Width,
		Y: r.MinY,
		Z: global.Z * r.ChunkDimension.Depth,
	}
	max := BlockCoord{
		X: min.X + r.ChunkDimension.Width - 1,
		Y: r.MinY + r.ChunkDimension.Height - 1,
		Z: min.Z + r.ChunkDimension.Depth - 1,
	}
	return Bounds{Min: min, Max: max}, nil
}

// BlockBounds returns the block-space bounds of the whole region.
func (r ServerRegion) BlockBounds() Bounds {
	return Bounds{
		Min: BlockCoord{
			X: r.Origin.X * r.ChunkDimension.Width,
			Y: r.MinY,
			Z: r.Origin.Z * r.ChunkDimension.Depth,
		},
		Max: BlockCoord{
			X: (r.Origin.X+r.ChunksPerAxis)*r.ChunkDimension.Width - 1,
			Y: r.MinY + r.ChunkDimension.Height - 1,
			Z: (r.Origin.Z+r.ChunksPerAxis)*r.ChunkDimension.Depth - 1,
		},
	}
}

func (r ServerRegion) LocateBlock(block BlockCoord) (ChunkCoord, bool) {
	if block.Y < r.MinY || block.Y >= r.MinY+r.ChunkDimension.Height {
		return ChunkCoord{}, false
	}
	chunk := ChunkCoord{
		X: floorDiv(block.X, r.ChunkDimension.Width),
		Z: floorDiv(block.Z, r.ChunkDimension.Depth),
	}
	return chunk, r.ContainsGlobalChunk(chunk)
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

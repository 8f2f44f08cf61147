package world

import (
	"log"
	"sync"
)

// Block is a single stored voxel. Material names a catalog entry; Open marks
// doors, gates and hatches that currently let the actor through.
type Block struct {
	Material string
	Open     bool
}

// IsAir reports whether the block stores empty space.
func (b Block) IsAir() bool {
	return blockIsAir(b)
}

// Chunk stores the block columns of one chunk. Columns grow upward from the
// region's lowest layer and are trimmed of trailing air.
type Chunk struct {
	Key       ChunkCoord
	Bounds    Bounds
	mu        sync.RWMutex
	store     BlockStorage
	dimension Dimensions
}

func NewChunk(key ChunkCoord, bounds Bounds, dim Dimensions) *Chunk {
	store, err := getStorageProvider().NewStorage(key, bounds, dim)
	if err != nil {
		log.Printf("chunk storage unavailable for %v: %v", key, err)
		store, _ = newMemoryStorageProvider().NewStorage(key, bounds, dim)
	}
	return &Chunk{
		Key:       key,
		Bounds:    bounds,
		store:     store,
		dimension: dim,
	}
}

func (c *Chunk) columnIndex(localX, localZ int) int {
	return localZ*c.dimension.Width + localX
}

func blockIsAir(block Block) bool {
	return block.Material == "" || block.Material == "air"
}

func trimColumn(column []Block) []Block {
	end := len(column)
	for end > 0 && blockIsAir(column[end-1]) {
		end--
	}
	return column[:end]
}

func (c *Chunk) inLocalBounds(localX, localY, localZ int) bool {
	return localX >= 0 && localY >= 0 && localZ >= 0 &&
		localX < c.dimension.Width && localY < c.dimension.Height && localZ < c.dimension.Depth
}

func (c *Chunk) GlobalToLocal(coord BlockCoord) (int, int, int, bool) {
	if !c.Bounds.Contains(coord) {
		return 0, 0, 0, false
	}
	return coord.X - c.Bounds.Min.X,
		coord.Y - c.Bounds.Min.Y,
		coord.Z - c.Bounds.Min.Z, true
}

// Block returns the block stored at a global coordinate.
func (c *Chunk) Block(coord BlockCoord) (Block, bool) {
	x, y, z, ok := c.GlobalToLocal(coord)
	if !ok {
		return Block{}, false
	}
	return c.LocalBlock(x, y, z)
}

func (c *Chunk) LocalBlock(localX, localY, localZ int) (Block, bool) {
	if !c.inLocalBounds(localX, localY, localZ) {
		return Block{}, false
	}
	idx := c.columnIndex(localX, localZ)
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()
	if store == nil {
		return Block{}, false
	}
	column, ok, err := store.LoadColumn(idx)
	if err != nil {
		log.Printf("chunk %v load column %d: %v", c.Key, idx, err)
		return Block{}, false
	}
	if !ok || localY >= len(column) || blockIsAir(column[localY]) {
		return Block{Material: "air"}, true
	}
	return column[localY], true
}

func (c *Chunk) SetLocalBlock(localX, localY, localZ int, block Block) bool {
	if !c.inLocalBounds(localX, localY, localZ) {
		return false
	}
	idx := c.columnIndex(localX, localZ)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return false
	}
	column, ok, err := c.store.LoadColumn(idx)
	if err != nil {
		log.Printf("chunk %v load column %d: %v", c.Key, idx, err)
		return false
	}
	if !ok {
		column = make([]Block, localY+1)
	} else if localY >= len(column) {
		expanded := make([]Block, localY+1)
		copy(expanded, column)
		column = expanded
	}
	if blockIsAir(block) {
		column[localY] = Block{}
	} else {
		column[localY] = block
	}
	column = trimColumn(column)
	if len(column) == 0 {
		err = c.store.Delete(idx)
	} else {
		err = c.store.SaveColumn(idx, column)
	}
	if err != nil {
		log.Printf("chunk %v persist column %d: %v", c.Key, idx, err)
		return false
	}
	return true
}

func (c *Chunk) ClearLocalBlock(localX, localY, localZ int) bool {
	return c.SetLocalBlock(localX, localY, localZ, Block{})
}

// ForEachBlock iterates over non-air blocks, invoking fn with global coordinates.
func (c *Chunk) ForEachBlock(fn func(global BlockCoord, block Block) bool) {
	c.mu.RLock()
	store := c.store
	bounds := c.Bounds
	dim := c.dimension
	c.mu.RUnlock()

	if store == nil {
		return
	}

	if err := store.ForEach(func(idx int, column []Block) bool {
		localX := idx % dim.Width
		localZ := idx / dim.Width
		for localY, block := range column {
			if blockIsAir(block) {
				continue
			}
			global := BlockCoord{
				X: bounds.Min.X + localX,
				Y: bounds.Min.Y + localY,
				Z: bounds.Min.Z + localZ,
			}
			if !fn(global, block) {
				return false
			}
		}
		return true
	}); err != nil {
		log.Printf("chunk %v iterate blocks: %v", c.Key, err)
	}
}

func (c *Chunk) Dimensions() Dimensions {
	return c.dimension
}

// HasStoredBlocks reports whether the chunk already has any persisted block data.
func (c *Chunk) HasStoredBlocks() bool {
	hasBlocks := false
	c.ForEachBlock(func(BlockCoord, Block) bool {
		hasBlocks = true
		return false
	})
	return hasBlocks
}

// SetColumnBlocks replaces the entire vertical column at the given local coordinates.
func (c *Chunk) SetColumnBlocks(localX, localZ int, blocks []Block) bool {
	if localX < 0 || localZ < 0 || localX >= c.dimension.Width || localZ >= c.dimension.Depth {
		return false
	}
	if len(blocks) > c.dimension.Height {
		blocks = blocks[:c.dimension.Height]
	}
	idx := c.columnIndex(localX, localZ)
	column := make([]Block, len(blocks))
	copy(column, blocks)
	column = trimColumn(column)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return false
	}
	var err error
	if len(column) == 0 {
		err = c.store.Delete(idx)
	} else {
		err = c.store.SaveColumn(idx, column)
	}
	if err != nil {
		log.Printf("chunk %v persist column %d: %v", c.Key, idx, err)
		return false
	}
	return true
}

// Close releases any resources held by the chunk's underlying storage.
func (c *Chunk) Close() error {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Close()
}

package world

import (
	"context"
	"fmt"
	"sync"
)

// Generator describes terrain population for chunks.
type Generator interface {
	Generate(ctx context.Context, coord ChunkCoord, bounds Bounds, dim Dimensions) (*Chunk, error)
}

// BlockChange records one edit applied through the manager.
type BlockChange struct {
	Coord    BlockCoord
	Previous Block
	Current  Block
}

// ChangeListener observes block edits. Listeners run synchronously on the
// editing goroutine and must not call back into the manager's edit methods.
type ChangeListener func(BlockChange)

// Manager keeps the authoritative chunk state for this server.
type Manager struct {
	region    ServerRegion
	generator Generator

	mu     sync.RWMutex
	chunks map[ChunkCoord]*Chunk

	listenersMu  sync.RWMutex
	listeners    map[int]ChangeListener
	nextListener int
	version      uint64
}

func NewManager(region ServerRegion, generator Generator) *Manager {
	return &Manager{
		region:    region,
		generator: generator,
		chunks:    make(map[ChunkCoord]*Chunk),
		listeners: make(map[int]ChangeListener),
	}
}

func (m *Manager) Region() ServerRegion {
	return m.region
}

// Chunk returns the chunk at coord, generating it on first access.
func (m *Manager) Chunk(ctx context.Context, coord ChunkCoord) (*Chunk, error) {
	if !m.region.ContainsGlobalChunk(coord) {
		return nil, fmt.Errorf("chunk %v outside server region", coord)
	}

	m.mu.RLock()
	ch, ok := m.chunks[coord]
	m.mu.RUnlock()
	if ok {
		return ch, nil
	}

	bounds, err := m.region.ChunkBounds(coord)
	if err != nil {
		return nil, err
	}
	if m.generator == nil {
		return nil, fmt.Errorf("chunk %v not loaded and no generator configured", coord)
	}

	ch, err = m.generator.Generate(ctx, coord, bounds, m.region.ChunkDimension)
	if err != nil {
		return nil, fmt.Errorf("generate chunk %v: %w", coord, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.chunks[coord]; ok {
		return existing, nil
	}
	m.chunks[coord] = ch
	return ch, nil
}

// LoadedChunk returns a chunk only if it is already resident.
func (m *Manager) LoadedChunk(coord ChunkCoord) (*Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.chunks[coord]
	return ch, ok
}

// LoadedChunks returns the coordinates of every resident chunk.
func (m *Manager) LoadedChunks() []ChunkCoord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coords := make([]ChunkCoord, 0, len(m.chunks))
	for coord := range m.chunks {
		coords = append(coords, coord)
	}
	return coords
}

func (m *Manager) ChunkForBlock(ctx context.Context, block BlockCoord) (*Chunk, error) {
	chunkCoord, ok := m.region.LocateBlock(block)
	if !ok {
		return nil, fmt.Errorf("block %v outside region bounds", block)
	}
	return m.Chunk(ctx, chunkCoord)
}

// Block reads one block, generating its chunk when needed.
func (m *Manager) Block(ctx context.Context, coord BlockCoord) (Block, error) {
	chunk, err := m.ChunkForBlock(ctx, coord)
	if err != nil {
		return Block{}, err
	}
	block, ok := chunk.Block(coord)
	if !ok {
		return Block{}, fmt.Errorf("block %v outside chunk %v", coord, chunk.Key)
	}
	return block, nil
}

// SetBlock writes one block and notifies listeners.
func (m *Manager) SetBlock(ctx context.Context, coord BlockCoord, block Block) (BlockChange, error) {
	chunk, err := m.ChunkForBlock(ctx, coord)
	if err != nil {
		return BlockChange{}, err
	}
	x, y, z, ok := chunk.GlobalToLocal(coord)
	if !ok {
		return BlockChange{}, fmt.Errorf("block %v outside chunk %v", coord, chunk.Key)
	}
	previous, _ := chunk.LocalBlock(x, y, z)
	if !chunk.SetLocalBlock(x, y, z, block) {
		return BlockChange{}, fmt.Errorf("persist block %v", coord)
	}
	if blockIsAir(block) {
		block = Block{Material: "air"}
	}
	change := BlockChange{Coord: coord, Previous: previous, Current: block}
	m.publish(change)
	return change, nil
}

// SetOpen toggles the open flag of an existing block.
func (m *Manager) SetOpen(ctx context.Context, coord BlockCoord, open bool) (BlockChange, error) {
	current, err := m.Block(ctx, coord)
	if err != nil {
		return BlockChange{}, err
	}
	if current.IsAir() {
		return BlockChange{}, fmt.Errorf("block %v is air", coord)
	}
	current.Open = open
	return m.SetBlock(ctx, coord, current)
}

// Subscribe registers a change listener and returns a function removing it.
func (m *Manager) Subscribe(fn ChangeListener) func() {
	if fn == nil {
		return func() {}
	}
	m.listenersMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.listenersMu.Unlock()
	return func() {
		m.listenersMu.Lock()
		delete(m.listeners, id)
		m.listenersMu.Unlock()
	}
}

// Version increments on every edit.
func (m *Manager) Version() uint64 {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	return m.version
}

func (m *Manager) publish(change BlockChange) {
	m.listenersMu.Lock()
	m.version++
	listeners := make([]ChangeListener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(change)
	}
}

// Close releases chunk storage.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for coord, ch := range m.chunks {
		if err := ch.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close chunk %v: %w", coord, err)
		}
	}
	return firstErr
}

package world

import (
	"sort"
	"sync"
)

type memoryStorageProvider struct{}

func newMemoryStorageProvider() StorageProvider {
	return memoryStorageProvider{}
}

func (memoryStorageProvider) NewStorage(ChunkCoord, Bounds, Dimensions) (BlockStorage, error) {
	return &memoryBlockStorage{columns: make(map[int][]Block)}, nil
}

// memoryBlockStorage keeps columns in a map; callers always receive copies.
type memoryBlockStorage struct {
	mu      sync.RWMutex
	columns map[int][]Block
}

func (m *memoryBlockStorage) LoadColumn(index int) ([]Block, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	column, ok := m.columns[index]
	if !ok {
		return nil, false, nil
	}
	return cloneColumn(column), true, nil
}

func (m *memoryBlockStorage) SaveColumn(index int, blocks []Block) error {
	column := cloneColumn(blocks)
	m.mu.Lock()
	m.columns[index] = column
	m.mu.Unlock()
	return nil
}

func (m *memoryBlockStorage) Delete(index int) error {
	m.mu.Lock()
	delete(m.columns, index)
	m.mu.Unlock()
	return nil
}

// ForEach visits columns in index order so iteration is deterministic.
func (m *memoryBlockStorage) ForEach(fn func(index int, blocks []Block) bool) error {
	m.mu.RLock()
	indices := make([]int, 0, len(m.columns))
	for idx := range m.columns {
		indices = append(indices, idx)
	}
	m.mu.RUnlock()
	sort.Ints(indices)

	for _, idx := range indices {
		column, ok, _ := m.LoadColumn(idx)
		if !ok {
			continue
		}
		if !fn(idx, column) {
			break
		}
	}
	return nil
}

func (m *memoryBlockStorage) Close() error {
	return nil
}

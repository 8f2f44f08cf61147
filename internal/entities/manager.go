package entities

import (
	"fmt"
	"sort"
	"sync"
)

type Manager struct {
	mu       sync.RWMutex
	entities map[ID]*Entity
	limit    int
}

// NewManager returns a registry holding at most limit entities. A limit of
// zero means unbounded.
func NewManager(limit int) *Manager {
	return &Manager{
		entities: make(map[ID]*Entity),
		limit:    limit,
	}
}

func (m *Manager) Add(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("nil entity")
	}
	if entity.ID == "" {
		return fmt.Errorf("entity missing id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[entity.ID]; exists {
		return fmt.Errorf("entity %s already registered", entity.ID)
	}
	if m.limit > 0 && len(m.entities) >= m.limit {
		return fmt.Errorf("entity limit %d reached", m.limit)
	}
	m.entities[entity.ID] = entity
	return nil
}

func (m *Manager) Remove(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[id]; !ok {
		return false
	}
	delete(m.entities, id)
	return true
}

func (m *Manager) Entity(id ID) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ent, ok := m.entities[id]
	return ent, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Snapshots returns the state of every entity ordered by ID.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.entities))
	for _, ent := range m.entities {
		out = append(out, ent.Snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Apply executes fn for every entity and returns snapshots of those that became dirty.
func (m *Manager) Apply(fn func(*Entity)) []Snapshot {
	return m.ApplyConcurrent(1, fn)
}

// ApplyConcurrent executes fn for every entity, partitioning work across the requested number of workers.
// It returns snapshots of entities that became dirty during processing.
func (m *Manager) ApplyConcurrent(workers int, fn func(*Entity)) []Snapshot {
	m.mu.RLock()
	entities := make([]*Entity, 0, len(m.entities))
	for _, ent := range m.entities {
		entities = append(entities, ent)
	}
	m.mu.RUnlock()

	count := len(entities)
	if count == 0 {
		return nil
	}

	if workers <= 1 {
		workers = 1
	}
	if workers > count {
		workers = count
	}

	results := make([][]Snapshot, workers)
	var wg sync.WaitGroup
	chunkSize := (count + workers - 1) / workers
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		if start >= count {
			break
		}
		end := start + chunkSize
		if end > count {
			end = count
		}
		wg.Add(1)
		go func(idx int, subset []*Entity) {
			defer wg.Done()
			dirty := make([]Snapshot, 0, len(subset))
			for _, ent := range subset {
				fn(ent)
				if ent.IsDirty() {
					dirty = append(dirty, ent.Snapshot())
					ent.MarkClean()
				}
			}
			results[idx] = dirty
		}(i, entities[start:end])
	}
	wg.Wait()

	var out []Snapshot
	for _, res := range results {
		out = append(out, res...)
	}
	return out
}

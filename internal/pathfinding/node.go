package pathfinding

import (
	"voxelnav/internal/world"
)

const noParent = -1

// searchNode is one arena slot. Parents are slot indices, so the whole
// working set is discarded with the arena when a search returns.
type searchNode struct {
	coord  world.BlockCoord
	parent int
	g      float64
	h      float64
	closed bool
	// heapIndex is the position in the open set, or -1 when not queued.
	heapIndex int
}

func (n *searchNode) f() float64 {
	return n.g + n.h
}

type nodeArena struct {
	nodes []searchNode
	slots map[world.BlockCoord]int
}

func newNodeArena(capacity int) *nodeArena {
	return &nodeArena{
		nodes: make([]searchNode, 0, capacity),
		slots: make(map[world.BlockCoord]int, capacity),
	}
}

// lookup returns the slot for coord, creating an unvisited node when needed.
func (a *nodeArena) lookup(coord world.BlockCoord) (int, bool) {
	if idx, ok := a.slots[coord]; ok {
		return idx, false
	}
	idx := len(a.nodes)
	a.nodes = append(a.nodes, searchNode{coord: coord, parent: noParent, heapIndex: -1})
	a.slots[coord] = idx
	return idx, true
}

func (a *nodeArena) node(idx int) *searchNode {
	return &a.nodes[idx]
}

// path walks parent links from idx back to the root.
func (a *nodeArena) path(idx int) []world.BlockCoord {
	length := 0
	for i := idx; i != noParent; i = a.nodes[i].parent {
		length++
	}
	out := make([]world.BlockCoord, length)
	for i := idx; i != noParent; i = a.nodes[i].parent {
		length--
		out[length] = a.nodes[i].coord
	}
	return out
}

// openSet is a binary heap of arena slots ordered by f, then h.
type openSet struct {
	arena *nodeArena
	items []int
}

func (q *openSet) Len() int { return len(q.items) }

func (q *openSet) Less(i, j int) bool {
	a := q.arena.node(q.items[i])
	b := q.arena.node(q.items[j])
	fa, fb := a.f(), b.f()
	if fa != fb {
		return fa < fb
	}
	return a.h < b.h
}

func (q *openSet) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.arena.node(q.items[i]).heapIndex = i
	q.arena.node(q.items[j]).heapIndex = j
}

func (q *openSet) Push(x any) {
	idx := x.(int)
	q.arena.node(idx).heapIndex = len(q.items)
	q.items = append(q.items, idx)
}

func (q *openSet) Pop() any {
	old := q.items
	n := len(old)
	idx := old[n-1]
	q.items = old[:n-1]
	q.arena.node(idx).heapIndex = -1
	return idx
}

package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// NodeID is a dense graph vertex index.
type NodeID uint32

// Graph is an adjacency list over dense ids. Absent vertices keep their slot
// but take no part in sorting or condensation.
type Graph struct {
	Edges   [][]NodeID // Edges[from] = []to, sorted and unique after Freeze
	Indeg   []int      // in-degree counted over present vertices only
	Present []bool
}

// NewGraph allocates n present vertices.
func NewGraph(n int) Graph {
	g := Graph{
		Edges:   make([][]NodeID, n),
		Indeg:   make([]int, n),
		Present: make([]bool, n),
	}
	for i := range g.Present {
		g.Present[i] = true
	}
	return g
}

// AddEdge records from -> to. Duplicates are dropped by Freeze.
func (g *Graph) AddEdge(from, to NodeID) {
	g.Edges[from] = append(g.Edges[from], to)
}

// Freeze sorts and deduplicates adjacency lists and recomputes in-degrees.
func (g *Graph) Freeze() {
	for i := range g.Indeg {
		g.Indeg[i] = 0
	}
	for from := range g.Edges {
		if len(g.Edges[from]) > 1 {
			slices.Sort(g.Edges[from])
			g.Edges[from] = slices.Compact(g.Edges[from])
		}
		if !g.Present[from] {
			continue
		}
		for _, to := range g.Edges[from] {
			if g.Present[to] {
				g.Indeg[to]++
			}
		}
	}
}

// Len returns the number of vertex slots.
func (g *Graph) Len() int { return len(g.Edges) }

// ToID converts a dense index to a NodeID, panicking on overflow.
func ToID(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("dag node id overflow: %w", err))
	}
	return id
}

package dag

import (
	"fmt"
	"slices"
)

// Condensation collapses the strongly connected components of a graph.
type Condensation struct {
	// Components lists the members of each component, sorted by id.
	Components [][]NodeID
	// ComponentOf maps a vertex to its component, -1 for absent vertices.
	ComponentOf []int
	// DAG has one vertex per component and an edge wherever the original
	// graph crosses components.
	DAG Graph
	// Order lists component indices sources first.
	Order []NodeID

	selfLoop []bool
}

// Condense runs Tarjan's algorithm with an explicit work stack.
func Condense(g Graph) *Condensation {
	n := len(g.Edges)
	index := make([]int, n) // 0 = unvisited
	low := make([]int, n)
	onStack := make([]bool, n)
	compOf := make([]int, n)
	for i := range compOf {
		compOf[i] = -1
	}
	var (
		stack   []NodeID
		comps   [][]NodeID
		counter int
	)
	type frame struct {
		v    NodeID
		next int
	}
	visit := func(v NodeID) {
		counter++
		index[v], low[v] = counter, counter
		stack = append(stack, v)
		onStack[v] = true
	}

	for root := range n {
		if !g.Present[root] || index[root] != 0 {
			continue
		}
		visit(ToID(root))
		work := []frame{{v: ToID(root)}}
		for len(work) > 0 {
			top := &work[len(work)-1]
			v := top.v
			if top.next < len(g.Edges[v]) {
				w := g.Edges[v][top.next]
				top.next++
				if !g.Present[w] {
					continue
				}
				if index[w] == 0 {
					visit(w)
					work = append(work, frame{v: w})
				} else if onStack[w] {
					low[v] = min(low[v], index[w])
				}
				continue
			}
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].v
				low[parent] = min(low[parent], low[v])
			}
			if low[v] != index[v] {
				continue
			}
			var members []NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				compOf[w] = len(comps)
				members = append(members, w)
				if w == v {
					break
				}
			}
			slices.Sort(members)
			comps = append(comps, members)
		}
	}

	c := &Condensation{
		Components:  comps,
		ComponentOf: compOf,
		DAG:         NewGraph(len(comps)),
		selfLoop:    make([]bool, len(comps)),
	}
	for from := range n {
		if !g.Present[from] {
			continue
		}
		cf := compOf[from]
		for _, to := range g.Edges[from] {
			if !g.Present[to] {
				continue
			}
			ct := compOf[to]
			if cf == ct {
				if len(comps[cf]) == 1 {
					c.selfLoop[cf] = true
				}
				continue
			}
			c.DAG.AddEdge(ToID(cf), ToID(ct))
		}
	}
	c.DAG.Freeze()
	topo := ToposortKahn(c.DAG)
	if topo.Cyclic {
		panic(fmt.Errorf("condensation is cyclic: components %v", topo.Cycles))
	}
	c.Order = topo.Order
	return c
}

// Recursive reports whether component i contains a cycle.
func (c *Condensation) Recursive(i int) bool {
	return len(c.Components[i]) > 1 || c.selfLoop[i]
}

// ReverseOrder lists component indices sinks first.
func (c *Condensation) ReverseOrder() []NodeID {
	out := slices.Clone(c.Order)
	slices.Reverse(out)
	return out
}

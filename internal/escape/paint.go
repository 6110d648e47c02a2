package escape

import (
	"slices"

	"golang.org/x/tools/container/intsets"

	"esca/internal/ir"
)

// nodeSet is an insertion-ordered set of graph nodes.
type nodeSet struct {
	members []*ptNode
	ids     intsets.Sparse
}

func (s *nodeSet) add(n *ptNode) {
	if s.ids.Insert(n.id) {
		s.members = append(s.members, n)
	}
}

func (s *nodeSet) has(n *ptNode) bool { return s.ids.Has(n.id) }

func (s *nodeSet) removeAll(drop []*ptNode) {
	for _, n := range drop {
		s.ids.Remove(n.id)
	}
	s.members = slices.DeleteFunc(s.members, func(n *ptNode) bool { return !s.ids.Has(n.id) })
}

func (s *nodeSet) leadsInto(d *ptNode) bool {
	for _, e := range d.edges {
		if s.has(e.to.drain) {
			return true
		}
	}
	return false
}

func (g *pointsToGraph) drainSuccessors(d *ptNode) []*ptNode {
	out := make([]*ptNode, 0, len(d.edges))
	for _, e := range d.edges {
		if e.isAssignment() {
			g.fatalf("drain %d has an outgoing assignment edge", d.id)
		}
		out = append(out, e.to.drain)
	}
	return out
}

// interestingDrains returns the drains reachable from a parameter or the
// return value through field edges, minus the ones that carry nothing a
// caller could observe.
func (g *pointsToGraph) interestingDrains() *nodeSet {
	set := &nodeSet{}
	for _, p := range g.params {
		preorder(p.drain, &set.ids, g.drainSuccessors, func(d *ptNode) {
			set.members = append(set.members, d)
		})
	}

	type incoming struct {
		from *ptNode
		to   *ptNode
	}
	reversed := make(map[*ptNode][]incoming, len(set.members))
	for _, d := range set.members {
		for _, e := range d.edges {
			reversed[e.to.drain] = append(reversed[e.to.drain], incoming{from: d, to: e.to})
		}
	}
	paramDrains := make(map[*ptNode]bool, len(g.params))
	for _, p := range g.params {
		paramDrains[p.drain] = true
	}

	for {
		var drop []*ptNode
		for _, d := range set.members {
			if set.leadsInto(d) {
				continue
			}
			in := reversed[d]
			if len(in) == 0 {
				if !paramDrains[d] {
					g.fatalf("drain %d has no incoming edges", d.id)
				}
				escaping := false
				for _, p := range g.params {
					if p.drain == d && p.depth == depthEscapes {
						escaping = true
						break
					}
				}
				if !escaping {
					drop = append(drop, d)
				}
				continue
			}
			if paramDrains[d] {
				continue
			}
			if len(in) == 1 && (in[0].from.depth == depthEscapes || in[0].to.depth != depthEscapes) {
				drop = append(drop, d)
			}
		}
		if len(drop) == 0 {
			break
		}
		set.removeAll(drop)
	}
	return set
}

// paint walks field edges from start into interesting drains and names every
// node reached after root plus the field path taken. Drains of reached
// non-drain nodes that still matter are collected in seen for the next front.
// A node reached a second time gets an aliasing synthetic node instead of a
// second name.
func (g *pointsToGraph) paint(start *ptNode, root CompressedNode, interesting *nodeSet,
	ids map[*ptNode]CompressedNode, seen *nodeSet,
) {
	type frame struct {
		edges []ptEdge
	}
	var (
		stack []frame
		path  []ir.Field
	)
	enter := func(n *ptNode) bool {
		d := n.drain
		if n != d {
			if _, painted := ids[d]; !painted && (interesting.leadsInto(d) || !d.synthetic()) {
				seen.add(d)
			}
			return false
		}
		stack = append(stack, frame{edges: d.edges})
		return true
	}
	enter(start)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.edges) == 0 {
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				path = path[:len(stack)-1]
			}
			continue
		}
		e := top.edges[0]
		top.edges = top.edges[1:]
		next := e.to
		if !interesting.has(next.drain) {
			continue
		}
		if _, ok := ids[next]; ok {
			// next already has a name from another path (field edges
			// closing a cycle between drains). Name the new path on an
			// alias that points at next.
			alias := g.newSynthetic()
			alias.drain = next.drain
			alias.addAssignment(next)
			ids[alias] = CompressedNode{Kind: root.Kind, Index: root.Index, Path: append(slices.Clone(path), e.field)}
			continue
		}
		path = append(path, e.field)
		ids[next] = CompressedNode{Kind: root.Kind, Index: root.Index, Path: slices.Clone(path)}
		if !enter(next) {
			path = path[:len(path)-1]
		}
	}
}

// summarize compresses the collapsed graph. The closure edges and shared
// drains it adds stay in g and are ordinary nodes to later rounds.
func (g *pointsToGraph) summarize() *FunctionResult {
	interesting := g.interestingDrains()
	ids := make(map[*ptNode]CompressedNode)
	for i, p := range g.params {
		ids[p] = slotNode(i, len(g.params))
	}

	drains := 0
	front := slices.Clone(g.params)
	for len(front) > 0 {
		seen := &nodeSet{}
		for _, n := range front {
			g.paint(n, ids[n].Root(), interesting, ids, seen)
		}
		front = nil
		for _, d := range seen.members {
			if _, ok := ids[d]; !ok {
				front = append(front, d)
			}
		}
		for _, d := range front {
			ids[d] = DrainNode(drains)
			drains++
		}
	}

	g.closePainted(ids)
	drains = g.addSharedDrains(ids, interesting, drains)

	var (
		edges   []CompressedEdge
		escapes []CompressedNode
	)
	for _, n := range g.all {
		from, ok := ids[n]
		if !ok {
			continue
		}
		if n.depth == depthEscapes {
			escapes = append(escapes, from)
		}
		for _, e := range n.edges {
			if !e.isAssignment() {
				continue
			}
			if to, ok := ids[e.to]; ok {
				edges = append(edges, CompressedEdge{From: from, To: to})
			}
		}
	}
	return NewFunctionResult(drains, edges, escapes)
}

// closePainted gives every painted node a direct assignment edge to each
// painted node it reaches through assignment edges.
func (g *pointsToGraph) closePainted(ids map[*ptNode]CompressedNode) {
	for _, n := range g.all {
		if _, ok := ids[n]; !ok {
			continue
		}
		direct := assignmentTargets(n)
		for _, r := range reachable(n)[1:] {
			if slices.Contains(direct, r) {
				continue
			}
			if _, ok := ids[r]; ok {
				n.addAssignment(r)
			}
		}
	}
}

// addSharedDrains looks for pairs of painted nodes that reach a common
// unpainted node while neither points at the other, and gives each pair an
// explicit drain so the caller still sees them as possibly aliased.
func (g *pointsToGraph) addSharedDrains(ids map[*ptNode]CompressedNode, interesting *nodeSet, drains int) int {
	painted := func(n *ptNode) bool {
		_, ok := ids[n]
		return ok
	}
	connected := make(map[[2]int]bool)
	nodes := g.all
	for _, n := range nodes {
		if painted(n) {
			continue
		}
		d := n.drain
		if !interesting.has(d) || painted(d) {
			continue
		}
		refs := referencing(n)
		for i, a := range refs {
			if !painted(a) {
				continue
			}
			for _, b := range refs[i+1:] {
				if !painted(b) {
					continue
				}
				if connected[[2]int{a.id, b.id}] || a.pointsAt(b) || b.pointsAt(a) {
					continue
				}
				x := g.newSynthetic()
				makeDrain(x)
				x.depth = min(a.depth, b.depth)
				a.addAssignment(x)
				b.addAssignment(x)
				ids[x] = DrainNode(drains)
				drains++
				connected[[2]int{a.id, b.id}] = true
				connected[[2]int{b.id, a.id}] = true
			}
		}
	}
	return drains
}

package escape

import (
	"slices"

	"golang.org/x/tools/container/intsets"

	"esca/internal/ir"
)

// buildClosure collapses g into drains, propagates depths and compresses the
// result into a summary.
func (g *pointsToGraph) buildClosure() *FunctionResult {
	g.collapse()
	g.propagateDepths()
	return g.summarize()
}

// fieldGroup is the set of targets one drain reaches through one field.
type fieldGroup struct {
	field   ir.Field
	targets []*ptNode
}

// groupByField groups the field edges of a drain, keeping first-seen order of
// fields and targets. A repeated identical edge counts once.
func (g *pointsToGraph) groupByField(drain *ptNode) []fieldGroup {
	var groups []fieldGroup
	index := make(map[ir.Field]int)
	for _, e := range drain.edges {
		if e.isAssignment() {
			g.fatalf("drain %d has an outgoing assignment edge", drain.id)
		}
		i, ok := index[e.field]
		if !ok {
			i = len(groups)
			index[e.field] = i
			groups = append(groups, fieldGroup{field: e.field})
		}
		if !slices.Contains(groups[i].targets, e.to) {
			groups[i].targets = append(groups[i].targets, e.to)
		}
	}
	return groups
}

// collapse reduces every assignment-connected component to one drain owning
// all field edges of the component, then merges drains until each drain has
// at most one target per field. Afterwards every non-drain node has an
// assignment edge to its drain.
func (g *pointsToGraph) collapse() {
	var created intsets.Sparse
	newDrain := func() *ptNode {
		d := g.newSynthetic()
		makeDrain(d)
		created.Insert(d.id)
		return d
	}

	// Components of the undirected assignment relation.
	var (
		visited intsets.Sparse
		drains  []*ptNode
	)
	// Drains created inside the loop are not in the ranged slice.
	for _, n := range g.all {
		if visited.Has(n.id) {
			continue
		}
		var comp []*ptNode
		preorder(n, &visited, assignmentNeighbours, func(m *ptNode) { comp = append(comp, m) })
		drain := selectDrain(comp)
		if drain == nil {
			drain = newDrain()
		} else {
			makeDrain(drain)
		}
		drains = append(drains, drain)
		for _, m := range comp {
			if m == drain {
				continue
			}
			attach(m, drain)
			kept := m.edges[:0]
			for _, e := range m.edges {
				if e.isAssignment() {
					kept = append(kept, e)
				} else {
					drain.edges = append(drain.edges, e)
				}
			}
			clear(m.edges[len(kept):])
			m.edges = kept
		}
	}

	// Two targets of the same field of one drain must share a drain.
	for len(drains) > 0 {
		type pair struct{ a, b *ptNode }
		var toMerge []pair
		for _, d := range drains {
			for _, grp := range g.groupByField(d) {
				if len(grp.targets) < 2 {
					continue
				}
				for i, a := range grp.targets {
					b := grp.targets[(i+1)%len(grp.targets)]
					if g.find(a) != g.find(b) {
						toMerge = append(toMerge, pair{a, b})
					}
				}
			}
		}
		if len(toMerge) == 0 {
			break
		}
		var possible []*ptNode
		for _, p := range toMerge {
			a, b := g.find(p.a), g.find(p.b)
			switch {
			case a == b:
				continue
			case created.Has(a.id):
				g.union(a, b)
				possible = append(possible, a)
			case created.Has(b.id):
				g.union(b, a)
				possible = append(possible, b)
			default:
				// A fresh drain keeps either side from constraining the other.
				d := newDrain()
				g.union(d, a)
				g.union(d, b)
				possible = append(possible, d)
			}
		}
		drains = drains[:0]
		for _, d := range possible {
			if d.drain == d {
				drains = append(drains, d)
			}
		}
	}

	drains = drains[:0]
	for _, n := range g.all {
		if g.find(n) == n {
			drains = append(drains, n)
		}
	}
	for _, d := range drains {
		for _, grp := range g.groupByField(d) {
			first := g.find(grp.targets[0])
			for _, t := range grp.targets[1:] {
				if g.find(t) != first {
					g.fatalf("drain %d: targets of field %s were not merged", d.id, grp.field)
				}
			}
		}
	}

	// Replace multi-edges with a single merge node aliasing every target.
	for _, d := range drains {
		owner := g.find(d)
		groups := g.groupByField(owner)
		owner.edges = nil
		var rebuilt []ptEdge
		for _, grp := range groups {
			if len(grp.targets) == 1 {
				rebuilt = append(rebuilt, ptEdge{to: grp.targets[0], field: grp.field})
				continue
			}
			var next *ptNode
			for _, t := range grp.targets {
				if g.find(t) != t {
					continue
				}
				if next != nil {
					g.fatalf("drain %d: field %s reaches two drains", owner.id, grp.field)
				}
				next = t
			}
			if next != nil {
				// next is about to gain assignment edges.
				nd := g.newSynthetic()
				makeDrain(nd)
				g.union(nd, next)
			}
			merged := g.newSynthetic()
			for _, t := range grp.targets {
				merged.addAssignment(t)
				t.addAssignment(merged)
			}
			attach(merged, g.find(grp.targets[0]))
			rebuilt = append(rebuilt, ptEdge{to: merged, field: grp.field})
		}
		holder := g.find(owner)
		holder.edges = append(holder.edges, rebuilt...)
	}

	for _, n := range g.all {
		d := g.find(n)
		if n != d {
			n.addAssignment(d)
		}
	}
}

// selectDrain returns the first member of comp without outgoing assignment
// edges that is reached backwards by the whole component, or nil.
func selectDrain(comp []*ptNode) *ptNode {
	for _, n := range comp {
		if n.hasAssignment() {
			continue
		}
		if len(referencing(n)) == len(comp) {
			return n
		}
	}
	return nil
}

// propagateDepths lowers every node to the smallest depth of a node reaching
// it. Sources are taken in increasing depth order, so a node is settled the
// first time it is reached.
func (g *pointsToGraph) propagateDepths() {
	order := slices.Clone(g.all)
	slices.SortStableFunc(order, func(a, b *ptNode) int { return a.depth - b.depth })
	var visited intsets.Sparse
	var stack []*ptNode
	for _, start := range order {
		if !visited.Insert(start.id) {
			continue
		}
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range n.edges {
				m := e.to
				if visited.Has(m.id) || m.depth < n.depth {
					continue
				}
				m.depth = n.depth
				visited.Insert(m.id)
				stack = append(stack, m)
			}
		}
	}
}

package escape

// Drains form a disjoint-set forest over graph nodes: every node points at a
// drain, and a drain points at itself. find and union are the only places
// that move drain pointers once a closure build has started.

// find returns the representative drain of n, compressing the path.
func (g *pointsToGraph) find(n *ptNode) *ptNode {
	root := n
	for {
		if root.drain == nil {
			g.fatalf("node %d has no drain", root.id)
		}
		if root.drain == root {
			break
		}
		root = root.drain
	}
	for n != root {
		next := n.drain
		n.drain = root
		n = next
	}
	return root
}

// makeDrain turns n into the representative of its own set.
func makeDrain(n *ptNode) {
	n.drain = n
}

// attach makes drain the representative of member without moving edges.
func attach(member, drain *ptNode) {
	member.drain = drain
}

// union makes into the representative of from and moves every outgoing edge
// of from onto into. Both must be representatives, and drains own field
// edges only.
func (g *pointsToGraph) union(into, from *ptNode) {
	if into.drain != into || from.drain != from {
		g.fatalf("union of non-representative nodes %d and %d", into.id, from.id)
	}
	if into == from {
		return
	}
	for _, e := range from.edges {
		if e.isAssignment() {
			g.fatalf("drain %d has an outgoing assignment edge", from.id)
		}
	}
	from.drain = into
	into.edges = append(into.edges, from.edges...)
	from.edges = nil
}

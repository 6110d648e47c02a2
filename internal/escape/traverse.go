package escape

import "golang.org/x/tools/container/intsets"

// preorder visits every node reachable from start through succ, in the order
// a recursive depth-first walk would, skipping nodes already in seen. Visited
// nodes are added to seen.
func preorder(start *ptNode, seen *intsets.Sparse, succ func(*ptNode) []*ptNode, visit func(*ptNode)) {
	type frame struct {
		next []*ptNode
	}
	if !seen.Insert(start.id) {
		return
	}
	visit(start)
	stack := []frame{{next: succ(start)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.next) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		n := top.next[0]
		top.next = top.next[1:]
		if !seen.Insert(n.id) {
			continue
		}
		visit(n)
		stack = append(stack, frame{next: succ(n)})
	}
}

func assignmentTargets(n *ptNode) []*ptNode {
	var out []*ptNode
	for _, e := range n.edges {
		if e.isAssignment() {
			out = append(out, e.to)
		}
	}
	return out
}

func assignmentSources(n *ptNode) []*ptNode {
	out := make([]*ptNode, 0, len(n.reversed))
	for _, e := range n.reversed {
		out = append(out, e.to)
	}
	return out
}

func assignmentNeighbours(n *ptNode) []*ptNode {
	return append(assignmentTargets(n), assignmentSources(n)...)
}

// referencing returns n and every node that reaches n through assignment
// edges, in discovery order.
func referencing(n *ptNode) []*ptNode {
	var seen intsets.Sparse
	var out []*ptNode
	preorder(n, &seen, assignmentSources, func(m *ptNode) { out = append(out, m) })
	return out
}

// reachable returns n and every node n reaches through assignment edges.
func reachable(n *ptNode) []*ptNode {
	var seen intsets.Sparse
	var out []*ptNode
	preorder(n, &seen, assignmentTargets, func(m *ptNode) { out = append(out, m) })
	return out
}

package escape

import (
	"errors"
	"testing"

	"esca/internal/ir"
)

func bareGraph(n int) (*pointsToGraph, []*ptNode) {
	g := &pointsToGraph{name: "t", nodes: map[ir.NodeID]*ptNode{}, returnValues: map[*ptNode]bool{}}
	nodes := make([]*ptNode, n)
	for i := range nodes {
		nodes[i] = g.newSynthetic()
		nodes[i].depth = i
		nodes[i].baseDepth = i
	}
	return g, nodes
}

func fieldEdge(from, to *ptNode, f ir.Field) {
	from.edges = append(from.edges, ptEdge{to: to, field: f})
}

func checkCollapsed(t *testing.T, g *pointsToGraph) {
	t.Helper()
	for _, n := range g.all {
		if n.drain == nil {
			t.Fatalf("node %d has no drain", n.id)
		}
		if n.drain.drain != n.drain {
			t.Fatalf("node %d: drain %d is not a representative", n.id, n.drain.id)
		}
		if n.drain != n {
			if !n.pointsAt(n.drain) {
				t.Fatalf("node %d has no assignment edge to its drain %d", n.id, n.drain.id)
			}
			continue
		}
		seen := map[ir.Field]bool{}
		for _, e := range n.edges {
			if e.isAssignment() {
				t.Fatalf("drain %d owns an assignment edge to %d", n.id, e.to.id)
			}
			if seen[e.field] {
				t.Fatalf("drain %d has two edges for field %s", n.id, e.field)
			}
			seen[e.field] = true
		}
	}
}

func TestCollapseCycleAndMultiEdges(t *testing.T) {
	x, y := ir.NewField("x"), ir.NewField("y")
	g, n := bareGraph(6)
	a, b, c, d, e, f := n[0], n[1], n[2], n[3], n[4], n[5]
	a.addAssignment(b)
	b.addAssignment(a)
	fieldEdge(a, c, x)
	fieldEdge(b, d, x)
	fieldEdge(c, e, y)
	fieldEdge(d, f, y)

	g.collapse()
	checkCollapsed(t, g)

	if a.drain != b.drain {
		t.Fatalf("a and b are one component but have drains %d and %d", a.drain.id, b.drain.id)
	}
	if a.drain == a || a.drain == b {
		t.Fatalf("a cycle without a sink needs a synthetic drain")
	}
	if c.drain != d.drain {
		t.Fatalf("targets of the same field must share a drain")
	}
	if e.drain != f.drain {
		t.Fatalf("merging must propagate through fields")
	}
}

func TestCollapsePicksSinkAsDrain(t *testing.T) {
	g, n := bareGraph(3)
	a, b, c := n[0], n[1], n[2]
	a.addAssignment(c)
	b.addAssignment(c)
	fieldEdge(a, b, ir.NewField("f"))

	g.collapse()
	checkCollapsed(t, g)
	if a.drain != c || c.drain != c {
		t.Fatalf("c is reached by the whole component and should be its drain")
	}
	if len(c.edges) != 1 || c.edges[0].field.IsNone() {
		t.Fatalf("field edge of a should have moved to c, got %+v", c.edges)
	}
}

func TestCollapseIsRepeatable(t *testing.T) {
	x := ir.NewField("x")
	g, n := bareGraph(5)
	n[0].addAssignment(n[1])
	fieldEdge(n[1], n[2], x)
	fieldEdge(n[1], n[3], x)
	n[3].addAssignment(n[4])
	n[4].addAssignment(n[3])

	g.collapse()
	checkCollapsed(t, g)
	n[2].addAssignment(n[0])
	g.collapse()
	checkCollapsed(t, g)
}

func TestPropagateDepthsTakesMinimum(t *testing.T) {
	g, n := bareGraph(4)
	n[3].addAssignment(n[2])
	fieldEdge(n[2], n[1], ir.NewField("f"))
	n[0].addAssignment(n[3])
	n[3].depth = depthEscapes

	g.propagateDepths()
	for _, i := range []int{1, 2, 3} {
		if n[i].depth != depthEscapes {
			t.Fatalf("node %d depth = %d, want %d", i, n[i].depth, depthEscapes)
		}
	}
	if n[0].depth != 0 {
		t.Fatalf("depth must not flow backwards, got %d", n[0].depth)
	}
	if n[3].kind() != reachEscapes || n[0].kind() != reachStack {
		t.Fatalf("kinds = %s %s", n[3].kind(), n[0].kind())
	}
}

func TestUnionRejectsAssignmentEdges(t *testing.T) {
	g, n := bareGraph(3)
	makeDrain(n[0])
	makeDrain(n[1])
	n[1].addAssignment(n[2])

	var err error
	func() {
		defer recoverInvariant(&err)
		g.union(n[0], n[1])
	}()
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
}

func TestFindCompressesPaths(t *testing.T) {
	g, n := bareGraph(4)
	makeDrain(n[3])
	attach(n[2], n[3])
	attach(n[1], n[2])
	attach(n[0], n[1])
	if g.find(n[0]) != n[3] {
		t.Fatalf("find returned the wrong root")
	}
	for i := range 3 {
		if n[i].drain != n[3] {
			t.Fatalf("node %d not compressed", i)
		}
	}
}

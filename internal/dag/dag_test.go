package dag

import (
	"slices"
	"testing"
)

func graphOf(n int, edges ...[2]NodeID) Graph {
	g := NewGraph(n)
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	g.Freeze()
	return g
}

func TestToposortKahnBatches(t *testing.T) {
	// 0 -> 1 -> 3, 0 -> 2 -> 3
	g := graphOf(4, [2]NodeID{0, 1}, [2]NodeID{0, 2}, [2]NodeID{1, 3}, [2]NodeID{2, 3}, [2]NodeID{0, 1})
	topo := ToposortKahn(g)
	if topo.Cyclic {
		t.Fatalf("unexpected cycle: %v", topo.Cycles)
	}
	want := [][]NodeID{{0}, {1, 2}, {3}}
	if len(topo.Batches) != len(want) {
		t.Fatalf("batches = %v, want %v", topo.Batches, want)
	}
	for i := range want {
		if !slices.Equal(topo.Batches[i], want[i]) {
			t.Fatalf("batch[%d] = %v, want %v", i, topo.Batches[i], want[i])
		}
	}
	if g.Indeg[3] != 2 {
		t.Fatalf("duplicate edge counted: indeg[3] = %d", g.Indeg[3])
	}
}

func TestToposortKahnCycle(t *testing.T) {
	g := graphOf(3, [2]NodeID{0, 1}, [2]NodeID{1, 2}, [2]NodeID{2, 1})
	topo := ToposortKahn(g)
	if !topo.Cyclic || !slices.Equal(topo.Cycles, []NodeID{1, 2}) {
		t.Fatalf("cyclic = %v cycles = %v, want [1 2]", topo.Cyclic, topo.Cycles)
	}
}

func TestCondense(t *testing.T) {
	// main(0) -> f(1) <-> g(2) -> leaf(3); rec(4) -> rec(4); main -> rec
	g := graphOf(5,
		[2]NodeID{0, 1},
		[2]NodeID{1, 2},
		[2]NodeID{2, 1},
		[2]NodeID{2, 3},
		[2]NodeID{4, 4},
		[2]NodeID{0, 4},
	)
	c := Condense(g)
	if len(c.Components) != 4 {
		t.Fatalf("components = %v, want 4", c.Components)
	}
	fg := c.ComponentOf[1]
	if c.ComponentOf[2] != fg || !slices.Equal(c.Components[fg], []NodeID{1, 2}) {
		t.Fatalf("f and g not merged: %v", c.Components)
	}
	if !c.Recursive(fg) || !c.Recursive(c.ComponentOf[4]) || c.Recursive(c.ComponentOf[3]) {
		t.Fatalf("recursion flags wrong")
	}

	pos := make(map[int]int)
	for i, comp := range c.Order {
		pos[int(comp)] = i
	}
	for from := range g.Edges {
		for _, to := range g.Edges[from] {
			cf, ct := c.ComponentOf[from], c.ComponentOf[int(to)]
			if cf != ct && pos[cf] > pos[ct] {
				t.Fatalf("edge %d->%d goes backwards in %v", from, to, c.Order)
			}
		}
	}
	rev := c.ReverseOrder()
	if rev[0] != c.Order[len(c.Order)-1] {
		t.Fatalf("ReverseOrder = %v for order %v", rev, c.Order)
	}
}

func TestCondenseSkipsAbsent(t *testing.T) {
	g := NewGraph(3)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.Present[1] = false
	g.Freeze()
	c := Condense(g)
	if c.ComponentOf[1] != -1 {
		t.Fatalf("absent vertex got component %d", c.ComponentOf[1])
	}
	if len(c.Components) != 2 {
		t.Fatalf("components = %v, want 2", c.Components)
	}
}

func TestCondenseDeepChain(t *testing.T) {
	const n = 100000
	g := NewGraph(n)
	for i := range n - 1 {
		g.AddEdge(ToID(i), ToID(i+1))
	}
	g.AddEdge(ToID(n-1), 0)
	g.Freeze()
	c := Condense(g)
	if len(c.Components) != 1 || len(c.Components[0]) != n {
		t.Fatalf("expected one component of %d vertices", n)
	}
}

func TestToIDPanicsOnOverflow(t *testing.T) {
	if got := ToID(7); got != 7 {
		t.Fatalf("ToID(7) = %d", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("ToID(-1) did not panic")
		}
	}()
	ToID(-1)
}

// Package callgraph builds the call graph the escape pass iterates over and
// splits it into strongly connected components.
package callgraph

import (
	"fmt"
	"slices"

	"esca/internal/dag"
	"esca/internal/ir"
)

// CallSite is one call or constructor invocation inside a body.
type CallSite struct {
	Call    ir.NodeID
	Callee  ir.FuncID
	Virtual bool
}

// Node is a function with a body and its call sites in scope order.
type Node struct {
	Func      ir.FuncID
	CallSites []CallSite
}

// Graph holds direct edges for every function with a body and the reverse
// relation restricted to non-virtual calls between such functions.
type Graph struct {
	Module        *ir.Module
	DirectEdges   map[ir.FuncID]*Node
	ReversedEdges map[ir.FuncID][]ir.FuncID

	funcs []ir.FuncID
	dense map[ir.FuncID]dag.NodeID
}

// Build collects call sites of every body of m.
func Build(m *ir.Module) *Graph {
	g := &Graph{
		Module:        m,
		DirectEdges:   make(map[ir.FuncID]*Node, len(m.Funcs)),
		ReversedEdges: make(map[ir.FuncID][]ir.FuncID),
		funcs:         m.Bodies(),
		dense:         make(map[ir.FuncID]dag.NodeID, len(m.Funcs)),
	}
	for i, id := range g.funcs {
		g.dense[id] = dag.ToID(i)
	}
	for _, id := range g.funcs {
		fn := m.Funcs[id]
		node := &Node{Func: id}
		fn.Walk(func(nid ir.NodeID, _ int) {
			n := fn.Node(nid)
			if !n.IsCall() {
				return
			}
			node.CallSites = append(node.CallSites, CallSite{
				Call:    nid,
				Callee:  n.Call.Callee,
				Virtual: n.Call.Virtual,
			})
		})
		g.DirectEdges[id] = node
	}
	for _, caller := range g.funcs {
		for _, cs := range g.DirectEdges[caller].CallSites {
			if cs.Virtual || !g.Has(cs.Callee) {
				continue
			}
			g.ReversedEdges[cs.Callee] = append(g.ReversedEdges[cs.Callee], caller)
		}
	}
	for callee, callers := range g.ReversedEdges {
		slices.Sort(callers)
		g.ReversedEdges[callee] = slices.Compact(callers)
	}
	return g
}

// Has reports whether id has a body in this graph.
func (g *Graph) Has(id ir.FuncID) bool {
	_, ok := g.DirectEdges[id]
	return ok
}

// Funcs lists the functions of the graph in id order.
func (g *Graph) Funcs() []ir.FuncID { return g.funcs }

// Component is a strongly connected set of functions.
type Component struct {
	Index     int
	Funcs     []ir.FuncID
	Recursive bool
}

// Components condenses the graph and returns its components callers first:
// for every non-virtual call between bodies the caller's component comes no
// later than the callee's.
func (g *Graph) Components() ([]Component, error) {
	dg := dag.NewGraph(len(g.funcs))
	for _, caller := range g.funcs {
		from := g.dense[caller]
		for _, cs := range g.DirectEdges[caller].CallSites {
			if cs.Virtual {
				continue
			}
			if to, ok := g.dense[cs.Callee]; ok {
				dg.AddEdge(from, to)
			}
		}
	}
	dg.Freeze()
	cond := dag.Condense(dg)

	out := make([]Component, 0, len(cond.Order))
	priority := make(map[ir.FuncID]int, len(g.funcs))
	for pos, ci := range cond.Order {
		comp := Component{Index: pos, Recursive: cond.Recursive(int(ci))}
		for _, member := range cond.Components[ci] {
			fn := g.funcs[member]
			comp.Funcs = append(comp.Funcs, fn)
			priority[fn] = pos
		}
		out = append(out, comp)
	}

	for _, caller := range g.funcs {
		for _, cs := range g.DirectEdges[caller].CallSites {
			if cs.Virtual || !g.Has(cs.Callee) {
				continue
			}
			if priority[caller] > priority[cs.Callee] {
				return nil, fmt.Errorf("call graph order broken: %s (component %d) calls %s (component %d)",
					g.Module.FuncName(caller), priority[caller],
					g.Module.FuncName(cs.Callee), priority[cs.Callee])
			}
		}
	}
	return out, nil
}

package ir

import (
	"esca/internal/source"
)

// EscapeBits is the compact summary form a symbol may publish. Bit i of
// Escapes marks slot i as escaping; PointsTo[i] packs one 4-bit edge kind per
// target slot. Slot NumParams is the return value.
type EscapeBits struct {
	Escapes  uint32
	PointsTo []uint32
}

// FuncSymbol describes a callable, with or without a body.
type FuncSymbol struct {
	ID        FuncID
	Name      string
	NumParams int
	External  bool
	Bits      *EscapeBits
	Span      source.Span
}

// Function is a body: a node arena whose element 0 is the root scope.
type Function struct {
	Sym     FuncID
	Nodes   []Node
	Root    NodeID
	Returns []NodeID
	Throws  []NodeID
}

// Node returns the node with the given id or nil.
func (f *Function) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(f.Nodes) {
		return nil
	}
	return &f.Nodes[id]
}

// Walk visits every non-scope node reachable from the root scope in scope
// order. depth is the scope nesting level: 0 for direct members of the root.
// Scopes are transparent and not visited themselves.
func (f *Function) Walk(visit func(id NodeID, depth int)) {
	type frame struct {
		scope NodeID
		next  int
		depth int
	}
	root := f.Node(f.Root)
	if root == nil || root.Kind != NodeScope {
		return
	}
	stack := []frame{{scope: f.Root, depth: 0}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		members := f.Nodes[top.scope].Scope.Nodes
		if top.next >= len(members) {
			stack = stack[:len(stack)-1]
			continue
		}
		id := members[top.next]
		top.next++
		n := f.Node(id)
		if n == nil {
			continue
		}
		if n.Kind == NodeScope {
			stack = append(stack, frame{scope: id, depth: top.depth + 1})
			continue
		}
		visit(id, top.depth)
	}
}

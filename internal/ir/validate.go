package ir

import (
	"errors"
	"fmt"
)

// Validate checks module invariants the escape pass relies on.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for i := range m.Symbols {
		if err := validateSymbol(&m.Symbols[i]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range m.Bodies() {
		fn := m.Funcs[id]
		if err := validateFunc(m, fn); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", m.FuncName(id), err))
		}
	}
	return errors.Join(errs...)
}

func validateSymbol(sym *FuncSymbol) error {
	if sym.Bits == nil {
		return nil
	}
	slots := sym.NumParams + 1
	if slots > 32 {
		return fmt.Errorf("function %s: escape bits cover at most 31 parameters, have %d", sym.Name, sym.NumParams)
	}
	if len(sym.Bits.PointsTo) > slots {
		return fmt.Errorf("function %s: %d points-to masks for %d slots", sym.Name, len(sym.Bits.PointsTo), slots)
	}
	if sym.Bits.Escapes>>uint(slots) != 0 {
		return fmt.Errorf("function %s: escapes mask %#x sets bits beyond slot %d", sym.Name, sym.Bits.Escapes, slots-1)
	}
	for i, mask := range sym.Bits.PointsTo {
		for j := range slots {
			if kind := (mask >> (4 * uint(j))) & 15; kind > 4 {
				return fmt.Errorf("function %s: points-to[%d] slot %d has kind %d", sym.Name, i, j, kind)
			}
		}
	}
	return nil
}

func validateFunc(m *Module, fn *Function) error {
	var errs []error
	sym := m.Symbol(fn.Sym)
	root := fn.Node(fn.Root)
	if root == nil || root.Kind != NodeScope {
		return fmt.Errorf("root %d is not a scope", fn.Root)
	}

	owner := make(map[NodeID]NodeID, len(fn.Nodes))
	for i := range fn.Nodes {
		n := &fn.Nodes[i]
		if n.ID != NodeID(i) {
			errs = append(errs, fmt.Errorf("node %d: id mismatch %d", i, n.ID))
		}
		if n.Kind == NodeInvalid || n.Kind > NodeScope {
			errs = append(errs, fmt.Errorf("node %d: invalid kind %d", i, n.Kind))
			continue
		}
		for _, op := range n.Operands() {
			if fn.Node(op) == nil {
				errs = append(errs, fmt.Errorf("node %d (%s): operand %d out of range", i, n.Kind, op))
			}
		}
		if n.Kind == NodeScope {
			for _, member := range n.Scope.Nodes {
				if prev, dup := owner[member]; dup {
					errs = append(errs, fmt.Errorf("node %d belongs to scopes %d and %d", member, prev, i))
					continue
				}
				owner[member] = NodeID(i)
			}
		}
		if err := validateNode(m, sym, fn, n); err != nil {
			errs = append(errs, fmt.Errorf("node %d (%s): %w", i, n.Kind, err))
		}
	}
	if _, owned := owner[fn.Root]; owned {
		errs = append(errs, fmt.Errorf("root scope is nested in another scope"))
	}

	// every scope must hang off the root exactly once
	reached := map[NodeID]bool{fn.Root: true}
	stack := []NodeID{fn.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, member := range fn.Nodes[id].Scope.Nodes {
			if reached[member] {
				continue
			}
			reached[member] = true
			if mn := fn.Node(member); mn != nil && mn.Kind == NodeScope {
				stack = append(stack, member)
			}
		}
	}
	for i := range fn.Nodes {
		if id := NodeID(i); !reached[id] && fn.Nodes[i].Kind == NodeParameter {
			errs = append(errs, fmt.Errorf("parameter node %d is not in any scope", id))
		}
	}

	seenParam := make(map[int]bool)
	for _, id := range fn.Nodes[fn.Root].Scope.Nodes {
		if n := fn.Node(id); n != nil && n.Kind == NodeParameter {
			seenParam[n.Parameter.Index] = true
		}
	}
	for i := range fn.Nodes {
		n := &fn.Nodes[i]
		if n.Kind == NodeParameter && owner[n.ID] != fn.Root {
			errs = append(errs, fmt.Errorf("parameter %d must be in the root scope", n.Parameter.Index))
		}
	}
	if len(seenParam) > sym.NumParams {
		errs = append(errs, fmt.Errorf("%d parameter nodes for %d parameters", len(seenParam), sym.NumParams))
	}

	for _, list := range []struct {
		what string
		ids  []NodeID
	}{{"return", fn.Returns}, {"throw", fn.Throws}} {
		for _, id := range list.ids {
			if !reached[id] {
				errs = append(errs, fmt.Errorf("%s of node %d outside the body", list.what, id))
			}
		}
	}
	return errors.Join(errs...)
}

func validateNode(m *Module, sym *FuncSymbol, fn *Function, n *Node) error {
	switch n.Kind {
	case NodeParameter:
		if n.Parameter.Index < 0 || n.Parameter.Index >= sym.NumParams {
			return fmt.Errorf("parameter index %d out of range [0,%d)", n.Parameter.Index, sym.NumParams)
		}
	case NodeCall:
		callee := m.Symbol(n.Call.Callee)
		if callee == nil {
			return fmt.Errorf("unknown callee %d", n.Call.Callee)
		}
		if len(n.Call.Args) != callee.NumParams {
			return fmt.Errorf("call to %s with %d arguments, want %d", callee.Name, len(n.Call.Args), callee.NumParams)
		}
	case NodeNewObject:
		typ := m.Type(n.NewObject.Type)
		if typ == nil {
			return fmt.Errorf("unknown type %d", n.NewObject.Type)
		}
		if typ.IsArray && len(n.Call.Args) == 0 {
			return fmt.Errorf("array allocation of %s without a length", typ.Name)
		}
		if n.Call.Callee != NoFuncID {
			ctor := m.Symbol(n.Call.Callee)
			if ctor == nil {
				return fmt.Errorf("unknown constructor %d", n.Call.Callee)
			}
			if len(n.Call.Args)+1 != ctor.NumParams {
				return fmt.Errorf("constructor %s takes %d parameters including the receiver, got %d arguments",
					ctor.Name, ctor.NumParams, len(n.Call.Args))
			}
		}
	case NodeFieldRead:
		if n.FieldRead.Field.IsNone() {
			return fmt.Errorf("field read without a field")
		}
	case NodeFieldWrite:
		if n.FieldWrite.Field.IsNone() {
			return fmt.Errorf("field write without a field")
		}
		if n.FieldWrite.Value == NoNodeID {
			return fmt.Errorf("field write without a value")
		}
	case NodeSingleton:
		if m.Type(n.Singleton.Type) == nil {
			return fmt.Errorf("unknown type %d", n.Singleton.Type)
		}
	case NodeArrayRead:
		if n.ArrayRead.Array == NoNodeID {
			return fmt.Errorf("array read without an array")
		}
	case NodeArrayWrite:
		if n.ArrayWrite.Array == NoNodeID || n.ArrayWrite.Value == NoNodeID {
			return fmt.Errorf("array write without an array or value")
		}
	}
	return nil
}

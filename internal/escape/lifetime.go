package escape

import (
	"fmt"
	"strings"

	"esca/internal/diag"
	"esca/internal/ir"
)

// Lifetime is the allocation class published for an IR element.
type Lifetime uint8

const (
	// LifetimeStack values never outlive the scope that creates them.
	LifetimeStack Lifetime = iota
	// LifetimeLocal values outlive their scope but not the function.
	LifetimeLocal
	// LifetimeReturnValue values are returned directly to the caller.
	LifetimeReturnValue
	LifetimeGlobal
)

var lifetimeNames = [...]string{
	LifetimeStack:       "STACK",
	LifetimeLocal:       "LOCAL",
	LifetimeReturnValue: "RETURN_VALUE",
	LifetimeGlobal:      "GLOBAL",
}

func (l Lifetime) String() string {
	if int(l) < len(lifetimeNames) {
		return lifetimeNames[l]
	}
	return fmt.Sprintf("Lifetime(%d)", l)
}

// ParseLifetime is the inverse of Lifetime.String, case-insensitive.
func ParseLifetime(s string) (Lifetime, error) {
	for i, name := range lifetimeNames {
		if strings.EqualFold(name, s) {
			return Lifetime(i), nil //nolint:gosec // index of a 4-element table
		}
	}
	return 0, fmt.Errorf("unknown lifetime %q", s)
}

// DefaultStackArrayLimit is the largest array length placed on the stack
// when array stack allocation is enabled.
const DefaultStackArrayLimit = 64

// Policy decides which lifetimes the code generator can act on. The zero
// value is the conservative policy: LOCAL and array STACK become GLOBAL.
type Policy struct {
	// AllowLocal keeps LOCAL results; otherwise they are published as GLOBAL.
	AllowLocal bool
	// AllowArrayStack keeps STACK for array allocations whose length is a
	// known constant no larger than StackArrayLimit.
	AllowArrayStack bool
	StackArrayLimit int
}

// DefaultPolicy is the conservative policy with the default array limit.
func DefaultPolicy() Policy {
	return Policy{StackArrayLimit: DefaultStackArrayLimit}
}

func (g *pointsToGraph) lifetimeOf(n *ptNode) Lifetime {
	switch n.kind() {
	case reachStack:
		return LifetimeStack
	case reachLocal:
		return LifetimeLocal
	case reachReturnValue:
		if g.isReturned(n) {
			return LifetimeReturnValue
		}
		return LifetimeGlobal
	}
	return LifetimeGlobal
}

// publishLifetimes writes the lifetime of every node of g that carries an IR
// element into out. An element is written at most once.
func (g *pointsToGraph) publishLifetimes(m *ir.Module, pol Policy, out map[ir.ElementID]Lifetime, rep diag.Reporter) {
	body := g.roles.Body
	for _, id := range g.roles.Order {
		n := body.Node(id)
		if !n.CarriesLifetime() {
			continue
		}
		lt := g.lifetimeOf(g.node(id))
		if lt == LifetimeStack && n.Kind == ir.NodeNewObject {
			if t := m.Type(n.NewObject.Type); t != nil && t.IsArray {
				lt = pol.arrayLifetime(body, n, g.name, rep)
			}
		}
		if lt == LifetimeLocal && !pol.AllowLocal {
			lt = LifetimeGlobal
		}
		if _, dup := out[n.Elem]; dup {
			g.fatalf("lifetime of element %d published twice", n.Elem)
		}
		out[n.Elem] = lt
	}
}

// arrayLifetime is the lifetime of an array allocation that would otherwise
// live on the stack. Arrays of unknown or large size fall back to LOCAL.
func (p Policy) arrayLifetime(body *ir.Function, n *ir.Node, fn string, rep diag.Reporter) Lifetime {
	if !p.AllowArrayStack {
		return LifetimeGlobal
	}
	limit := p.StackArrayLimit
	if limit <= 0 {
		limit = DefaultStackArrayLimit
	}
	if len(n.Call.Args) > 0 {
		if size, ok := arraySize(body, n.Call.Args[0]); ok && size >= 0 && size <= int64(limit) {
			return LifetimeStack
		}
	}
	if rep != nil {
		diag.ReportInfo(rep, diag.EscArrayTooLarge, n.Span,
			fmt.Sprintf("%s: array allocation kept off the stack (limit %d)", fn, limit)).Emit()
	}
	return LifetimeLocal
}

// arraySize resolves a length operand through single-valued variables down
// to a constant.
func arraySize(body *ir.Function, id ir.NodeID) (int64, bool) {
	for range len(body.Nodes) {
		n := body.Node(id)
		if n == nil {
			return 0, false
		}
		switch n.Kind {
		case ir.NodeConst:
			return n.Const.Value, true
		case ir.NodeVariable:
			if len(n.Variable.Values) != 1 {
				return 0, false
			}
			id = n.Variable.Values[0]
		default:
			return 0, false
		}
	}
	return 0, false
}

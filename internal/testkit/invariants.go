package testkit

import (
	"errors"
	"fmt"

	"esca/internal/escape"
	"esca/internal/ir"
)

// CheckSummaryInvariants checks the shape every summary must have:
// 1) Escapes and PointsTo are strictly increasing (sorted, no duplicates)
// 2) parameter roots are below numParams, drain roots below NumberOfDrains
// 3) every drain index is used by at least one edge or escape
// 4) no path contains the empty field
func CheckSummaryInvariants(name string, numParams int, r *escape.FunctionResult) error {
	if r == nil {
		return fmt.Errorf("%s: nil summary", name)
	}
	used := make([]bool, r.NumberOfDrains)
	check := func(n escape.CompressedNode) error {
		switch n.Kind {
		case escape.KindParam:
			if n.Index < 0 || n.Index >= numParams {
				return fmt.Errorf("%s: %s: parameter out of range [0,%d)", name, n, numParams)
			}
		case escape.KindDrain:
			if n.Index < 0 || n.Index >= r.NumberOfDrains {
				return fmt.Errorf("%s: %s: drain out of range [0,%d)", name, n, r.NumberOfDrains)
			}
			used[n.Index] = true
		case escape.KindReturn:
		default:
			return fmt.Errorf("%s: node kind %d", name, n.Kind)
		}
		for _, f := range n.Path {
			if f.IsNone() {
				return fmt.Errorf("%s: %s: empty field in path", name, n)
			}
		}
		return nil
	}

	for i, n := range r.Escapes {
		if err := check(n); err != nil {
			return err
		}
		if i > 0 && escape.CompareNodes(r.Escapes[i-1], n) >= 0 {
			return fmt.Errorf("%s: escapes not canonical at %d: %s after %s", name, i, n, r.Escapes[i-1])
		}
	}
	for i, e := range r.PointsTo {
		if err := check(e.From); err != nil {
			return err
		}
		if err := check(e.To); err != nil {
			return err
		}
		if i > 0 && escape.CompareEdges(r.PointsTo[i-1], e) >= 0 {
			return fmt.Errorf("%s: edges not canonical at %d: %s after %s", name, i, e, r.PointsTo[i-1])
		}
	}
	for i, ok := range used {
		if !ok {
			return fmt.Errorf("%s: drain %d is never referenced", name, i)
		}
	}
	return nil
}

// CheckLifetimesComplete checks that every element of every body that
// carries a lifetime received one, and that res holds nothing else.
func CheckLifetimesComplete(m *ir.Module, res *escape.Result) error {
	want := 0
	var errs []error
	for _, id := range m.Bodies() {
		fn := m.Funcs[id]
		for i := range fn.Nodes {
			n := &fn.Nodes[i]
			if !n.CarriesLifetime() {
				continue
			}
			want++
			if _, ok := res.Lifetime(n.Elem); !ok {
				errs = append(errs, fmt.Errorf("%s: node %d (element %d) has no lifetime", m.FuncName(id), n.ID, n.Elem))
			}
		}
	}
	if len(res.Lifetimes) != want {
		errs = append(errs, fmt.Errorf("%d lifetimes published for %d elements", len(res.Lifetimes), want))
	}
	return errors.Join(errs...)
}

// CheckResult runs every check over an analysis result.
func CheckResult(m *ir.Module, res *escape.Result) error {
	var errs []error
	for _, id := range m.Bodies() {
		sym := m.Symbol(id)
		r, ok := res.Summaries[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: no summary", sym.Name))
			continue
		}
		if err := CheckSummaryInvariants(sym.Name, sym.NumParams, r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := CheckLifetimesComplete(m, res); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

package summary

import (
	"fmt"
	"slices"
	"strings"

	"esca/internal/escape"
)

// ChangeKind classifies one entry of a Diff.
type ChangeKind uint8

const (
	Added ChangeKind = iota
	Removed
	Changed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	}
	return "?"
}

// Change describes how one function differs between two summary sets. For
// Changed entries Detail lists the differing parts.
type Change struct {
	Name   string
	Kind   ChangeKind
	Detail []string
}

func (c Change) String() string {
	if len(c.Detail) == 0 {
		return fmt.Sprintf("%s %s", c.Kind, c.Name)
	}
	return fmt.Sprintf("%s %s: %s", c.Kind, c.Name, strings.Join(c.Detail, "; "))
}

// Diff compares prev against next, ordered by function name.
func Diff(prev, next *escape.Summaries) []Change {
	names := append(prev.Names(), next.Names()...)
	slices.Sort(names)
	names = slices.Compact(names)

	var out []Change
	for _, name := range names {
		a, b := prev.Get(name), next.Get(name)
		switch {
		case a == nil:
			out = append(out, Change{Name: name, Kind: Added})
		case b == nil:
			out = append(out, Change{Name: name, Kind: Removed})
		default:
			if detail := compare(a, b); len(detail) > 0 {
				out = append(out, Change{Name: name, Kind: Changed, Detail: detail})
			}
		}
	}
	return out
}

func compare(a, b *escape.Summary) []string {
	var detail []string
	if a.NumParams != b.NumParams {
		detail = append(detail, fmt.Sprintf("params %d -> %d", a.NumParams, b.NumParams))
	}
	if a.Result.NumberOfDrains != b.Result.NumberOfDrains {
		detail = append(detail, fmt.Sprintf("drains %d -> %d", a.Result.NumberOfDrains, b.Result.NumberOfDrains))
	}
	for _, n := range missingNodes(a.Result.Escapes, b.Result.Escapes) {
		detail = append(detail, "-escapes "+n.String())
	}
	for _, n := range missingNodes(b.Result.Escapes, a.Result.Escapes) {
		detail = append(detail, "+escapes "+n.String())
	}
	for _, e := range missingEdges(a.Result.PointsTo, b.Result.PointsTo) {
		detail = append(detail, "-edge "+e.String())
	}
	for _, e := range missingEdges(b.Result.PointsTo, a.Result.PointsTo) {
		detail = append(detail, "+edge "+e.String())
	}
	return detail
}

// missingNodes returns the members of xs absent from the sorted ys.
func missingNodes(xs, ys []escape.CompressedNode) []escape.CompressedNode {
	var out []escape.CompressedNode
	for _, x := range xs {
		if _, ok := slices.BinarySearchFunc(ys, x, escape.CompareNodes); !ok {
			out = append(out, x)
		}
	}
	return out
}

func missingEdges(xs, ys []escape.CompressedEdge) []escape.CompressedEdge {
	var out []escape.CompressedEdge
	for _, x := range xs {
		if _, ok := slices.BinarySearchFunc(ys, x, escape.CompareEdges); !ok {
			out = append(out, x)
		}
	}
	return out
}

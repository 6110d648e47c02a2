package escape

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"esca/internal/ir"
)

// CompressedKind is the root of a compressed node.
type CompressedKind uint8

const (
	KindReturn CompressedKind = iota
	KindParam
	KindDrain
)

func (k CompressedKind) String() string {
	switch k {
	case KindReturn:
		return "RET"
	case KindParam:
		return "P"
	case KindDrain:
		return "D"
	}
	return "?"
}

// CompressedNode addresses a location in a summary: a root followed by a
// field path. Index is meaningful for KindParam and KindDrain.
type CompressedNode struct {
	Kind  CompressedKind
	Index int
	Path  []ir.Field
}

// ReturnNode, ParamNode and DrainNode build path-less nodes.
func ReturnNode() CompressedNode {
	return CompressedNode{Kind: KindReturn}
}

func ParamNode(i int) CompressedNode {
	return CompressedNode{Kind: KindParam, Index: i}
}

func DrainNode(i int) CompressedNode {
	return CompressedNode{Kind: KindDrain, Index: i}
}

// Root drops the field path of n.
func (n CompressedNode) Root() CompressedNode {
	return CompressedNode{Kind: n.Kind, Index: n.Index}
}

// slotNode maps summary slot i of total to Param(i), the last slot to Return.
func slotNode(i, total int) CompressedNode {
	if i == total-1 {
		return ReturnNode()
	}
	return ParamNode(i)
}

// Field appends f to the path of n.
func (n CompressedNode) Field(f ir.Field) CompressedNode {
	path := make([]ir.Field, len(n.Path), len(n.Path)+1)
	copy(path, n.Path)
	return CompressedNode{Kind: n.Kind, Index: n.Index, Path: append(path, f)}
}

// rank orders roots: parameters first, then the return value, then drains.
func (n CompressedNode) rank() int {
	switch n.Kind {
	case KindParam:
		return -1_000_000 + n.Index
	case KindDrain:
		return n.Index + 1
	}
	return 0
}

// CompareNodes orders by root rank, then by field path hashes; a proper
// prefix sorts first.
func CompareNodes(a, b CompressedNode) int {
	if c := cmp.Compare(a.rank(), b.rank()); c != 0 {
		return c
	}
	for i := range a.Path {
		if i >= len(b.Path) {
			return 1
		}
		if c := cmp.Compare(a.Path[i].Hash, b.Path[i].Hash); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a.Path), len(b.Path))
}

func (n CompressedNode) Equal(o CompressedNode) bool {
	return CompareNodes(n, o) == 0
}

func (n CompressedNode) String() string {
	var b strings.Builder
	switch n.Kind {
	case KindReturn:
		b.WriteString("RET")
	default:
		fmt.Fprintf(&b, "%s%d", n.Kind, n.Index)
	}
	for _, f := range n.Path {
		b.WriteByte('.')
		if f.Name != "" {
			b.WriteString(f.Name)
		} else {
			fmt.Fprintf(&b, "<field@%d>", f.Hash)
		}
	}
	return b.String()
}

// CompressedEdge states that From may point at whatever To points at.
type CompressedEdge struct {
	From, To CompressedNode
}

func CompareEdges(a, b CompressedEdge) int {
	if c := CompareNodes(a.From, b.From); c != 0 {
		return c
	}
	return CompareNodes(a.To, b.To)
}

func (e CompressedEdge) String() string {
	return e.From.String() + " -> " + e.To.String()
}

func canonicalNodes(nodes []CompressedNode) []CompressedNode {
	slices.SortStableFunc(nodes, CompareNodes)
	return slices.CompactFunc(nodes, CompressedNode.Equal)
}

func canonicalEdges(edges []CompressedEdge) []CompressedEdge {
	slices.SortStableFunc(edges, CompareEdges)
	return slices.CompactFunc(edges, func(a, b CompressedEdge) bool { return CompareEdges(a, b) == 0 })
}

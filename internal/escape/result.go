package escape

import (
	"fmt"
	"slices"
	"strings"

	"esca/internal/ir"
)

// FunctionResult is the compressed, caller-independent summary of a function.
// PointsTo and Escapes are kept sorted and free of duplicates; Equal relies
// on that.
type FunctionResult struct {
	NumberOfDrains int
	PointsTo       []CompressedEdge
	Escapes        []CompressedNode
}

// NewFunctionResult canonicalizes edges and escapes. The slices are taken
// over by the result.
func NewFunctionResult(drains int, edges []CompressedEdge, escapes []CompressedNode) *FunctionResult {
	return &FunctionResult{
		NumberOfDrains: drains,
		PointsTo:       canonicalEdges(edges),
		Escapes:        canonicalNodes(escapes),
	}
}

// Optimistic is the empty summary every function starts from.
func Optimistic() *FunctionResult {
	return &FunctionResult{}
}

// Pessimistic marks every parameter and the return value as escaping.
func Pessimistic(numParams int) *FunctionResult {
	escapes := make([]CompressedNode, 0, numParams+1)
	for i := 0; i <= numParams; i++ {
		escapes = append(escapes, slotNode(i, numParams+1))
	}
	return NewFunctionResult(0, nil, escapes)
}

// Nibble values of the points-to bit encoding.
const (
	bitsDirect       = 1 // p1 -> p2
	bitsToContents   = 2 // p1 -> p2.contents
	bitsFromContents = 3 // p1.contents -> p2
	bitsBothContents = 4 // p1.contents -> p2.contents
)

// FromBits decodes the compact encoding: bit i of escapes marks slot i, and
// nibble j of pointsTo[i] is the edge kind from slot i to slot j. The number
// of slots is len(pointsTo), the last being the return value.
func FromBits(escapes uint32, pointsTo []uint32) (*FunctionResult, error) {
	total := len(pointsTo)
	var (
		edges []CompressedEdge
		esc   []CompressedNode
	)
	for p1 := range total {
		if p1 < 32 && escapes&(1<<uint(p1)) != 0 {
			esc = append(esc, slotNode(p1, total))
		}
		for p2 := range total {
			kind := (pointsTo[p1] >> (4 * uint(p2))) & 0xF
			if kind == 0 {
				continue
			}
			if kind > bitsBothContents {
				return nil, fmt.Errorf("%w: points-to kind %d from slot %d to slot %d", ErrInvariant, kind, p1, p2)
			}
			from, to := slotNode(p1, total), slotNode(p2, total)
			if kind >= bitsFromContents {
				from = from.Field(ir.ArrayContents)
			}
			if kind == bitsToContents || kind == bitsBothContents {
				to = to.Field(ir.ArrayContents)
			}
			edges = append(edges, CompressedEdge{From: from, To: to})
		}
	}
	return NewFunctionResult(0, edges, esc), nil
}

// ToBits encodes r for a function with numParams parameters. It reports
// false when r uses drains or paths the bit encoding cannot express.
func (r *FunctionResult) ToBits(numParams int) (*ir.EscapeBits, bool) {
	total := numParams + 1
	if r.NumberOfDrains != 0 || total > 8 {
		return nil, false
	}
	slot := func(n CompressedNode) (int, bool, bool) {
		var idx int
		switch n.Kind {
		case KindParam:
			idx = n.Index
		case KindReturn:
			idx = numParams
		default:
			return 0, false, false
		}
		switch {
		case len(n.Path) == 0:
			return idx, false, true
		case len(n.Path) == 1 && n.Path[0].Hash == ir.ArrayContents.Hash:
			return idx, true, true
		}
		return 0, false, false
	}
	bits := &ir.EscapeBits{PointsTo: make([]uint32, total)}
	for _, n := range r.Escapes {
		i, contents, ok := slot(n)
		if !ok || contents {
			return nil, false
		}
		bits.Escapes |= 1 << uint(i)
	}
	for _, e := range r.PointsTo {
		from, fromContents, ok1 := slot(e.From)
		to, toContents, ok2 := slot(e.To)
		if !ok1 || !ok2 {
			return nil, false
		}
		kind := uint32(bitsDirect)
		if fromContents {
			kind += 2
		}
		if toContents {
			kind++
		}
		shift := 4 * uint(to)
		if bits.PointsTo[from]>>shift&0xF != 0 {
			return nil, false
		}
		bits.PointsTo[from] |= kind << shift
	}
	return bits, true
}

// Equal compares the canonical edge and escape lists.
func (r *FunctionResult) Equal(o *FunctionResult) bool {
	if r == nil || o == nil {
		return r == o
	}
	return slices.EqualFunc(r.Escapes, o.Escapes, CompressedNode.Equal) &&
		slices.EqualFunc(r.PointsTo, o.PointsTo, func(a, b CompressedEdge) bool { return CompareEdges(a, b) == 0 })
}

// EscapesSlot reports whether the root n, without a path, is in Escapes.
func (r *FunctionResult) EscapesSlot(n CompressedNode) bool {
	_, found := slices.BinarySearchFunc(r.Escapes, n, CompareNodes)
	return found
}

func (r *FunctionResult) String() string {
	var b strings.Builder
	b.WriteString("PointsTo:")
	for _, e := range r.PointsTo {
		b.WriteString("\n    ")
		b.WriteString(e.String())
	}
	b.WriteString("\nEscapes:")
	for _, n := range r.Escapes {
		b.WriteByte(' ')
		b.WriteString(n.String())
	}
	return b.String()
}

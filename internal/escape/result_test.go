package escape_test

import (
	"errors"
	"slices"
	"testing"

	"esca/internal/escape"
	"esca/internal/ir"
)

func TestCompareNodesOrder(t *testing.T) {
	f := ir.NewField("f")
	want := []escape.CompressedNode{
		escape.ParamNode(0),
		escape.ParamNode(0).Field(f),
		escape.ParamNode(1),
		escape.ReturnNode(),
		escape.ReturnNode().Field(ir.ReturnValue),
		escape.DrainNode(0),
		escape.DrainNode(0).Field(ir.ArrayContents),
		escape.DrainNode(0).Field(ir.ArrayContents).Field(ir.ReturnValue),
		escape.DrainNode(3),
	}
	got := slices.Clone(want)
	slices.Reverse(got)
	slices.SortFunc(got, escape.CompareNodes)
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNewFunctionResultCanonicalizes(t *testing.T) {
	p0, ret := escape.ParamNode(0), escape.ReturnNode()
	r := escape.NewFunctionResult(0,
		[]escape.CompressedEdge{{From: ret, To: p0}, {From: p0, To: ret}, {From: ret, To: p0}},
		[]escape.CompressedNode{ret, p0, ret},
	)
	if len(r.PointsTo) != 2 || !r.PointsTo[0].From.Equal(p0) {
		t.Fatalf("edges not canonical: %v", r.PointsTo)
	}
	if len(r.Escapes) != 2 || !r.Escapes[0].Equal(p0) {
		t.Fatalf("escapes not canonical: %v", r.Escapes)
	}
	if !r.EscapesSlot(ret) || r.EscapesSlot(escape.ParamNode(1)) {
		t.Fatalf("EscapesSlot wrong for %s", r)
	}
}

func TestPessimisticCoversEverySlot(t *testing.T) {
	r := escape.Pessimistic(2)
	for _, n := range []escape.CompressedNode{escape.ParamNode(0), escape.ParamNode(1), escape.ReturnNode()} {
		if !r.EscapesSlot(n) {
			t.Fatalf("%s does not escape in %s", n, r)
		}
	}
	if len(r.PointsTo) != 0 || r.NumberOfDrains != 0 {
		t.Fatalf("pessimistic summary has edges: %s", r)
	}
	if !escape.Optimistic().Equal(escape.NewFunctionResult(0, nil, nil)) {
		t.Fatalf("optimistic summary is not empty")
	}
}

func TestFromBits(t *testing.T) {
	tests := []struct {
		name    string
		escapes uint32
		masks   []uint32
		edges   []string
		escaped []string
	}{
		{
			name:  "direct",
			masks: []uint32{0x10, 0},
			edges: []string{"P0 -> RET"},
		},
		{
			name:  "into contents",
			masks: []uint32{0, 0x2},
			edges: []string{"RET -> P0.inte$tines"},
		},
		{
			name:  "from contents",
			masks: []uint32{0x300, 0, 0},
			edges: []string{"P0.inte$tines -> RET"},
		},
		{
			name:  "both contents",
			masks: []uint32{0x40, 0, 0},
			edges: []string{"P0.inte$tines -> P1.inte$tines"},
		},
		{
			name:    "escapes",
			escapes: 0b101,
			masks:   []uint32{0, 0, 0},
			escaped: []string{"P0", "RET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := escape.FromBits(tt.escapes, tt.masks)
			if err != nil {
				t.Fatalf("FromBits: %v", err)
			}
			var edges, escaped []string
			for _, e := range r.PointsTo {
				edges = append(edges, e.String())
			}
			for _, n := range r.Escapes {
				escaped = append(escaped, n.String())
			}
			if !slices.Equal(edges, tt.edges) {
				t.Fatalf("edges = %v, want %v", edges, tt.edges)
			}
			if !slices.Equal(escaped, tt.escaped) {
				t.Fatalf("escapes = %v, want %v", escaped, tt.escaped)
			}
		})
	}
}

func TestFromBitsRejectsUnknownKind(t *testing.T) {
	_, err := escape.FromBits(0, []uint32{0x5, 0})
	if !errors.Is(err, escape.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
}

func TestBitsRoundTrip(t *testing.T) {
	masks := []uint32{0x0010, 0x0400, 0x0023}
	r, err := escape.FromBits(0b010, masks)
	if err != nil {
		t.Fatalf("FromBits: %v", err)
	}
	bits, ok := r.ToBits(2)
	if !ok {
		t.Fatalf("ToBits refused %s", r)
	}
	if bits.Escapes != 0b010 || !slices.Equal(bits.PointsTo, masks) {
		t.Fatalf("round trip = %#x %#x, want %#x %#x", bits.Escapes, bits.PointsTo, 0b010, masks)
	}

	withDrain := escape.NewFunctionResult(1, []escape.CompressedEdge{{From: escape.ParamNode(0), To: escape.DrainNode(0)}}, nil)
	if _, ok := withDrain.ToBits(1); ok {
		t.Fatalf("a summary with drains has no bit encoding")
	}
}

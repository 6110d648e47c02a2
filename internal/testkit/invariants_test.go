package testkit

import (
	"context"
	"strings"
	"testing"

	"esca/internal/escape"
	"esca/internal/ir"
)

func TestCheckResultOnAnalyzedModule(t *testing.T) {
	m := ir.NewModule("kit")
	typ := m.AddType("Node", false)
	next := ir.NewField("next")

	push, _ := m.Declare("push", 2)
	b, err := m.Define(push)
	if err != nil {
		t.Fatal(err)
	}
	cell := b.New(typ, ir.NoFuncID)
	b.WriteField(cell, next, b.Param(1))
	b.WriteField(b.Param(0), next, cell)
	b.Return(b.ReadField(b.Param(0), next))

	main, _ := m.Declare("main", 0)
	mb, err := m.Define(main)
	if err != nil {
		t.Fatal(err)
	}
	head := mb.New(typ, ir.NoFuncID)
	mb.Call(push, head, mb.New(typ, ir.NoFuncID))
	mb.WriteGlobal(ir.NewField("root"), mb.Call(push, head, mb.Const(1)))

	if err := ir.Validate(m); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	res, err := escape.Analyze(context.Background(), m, escape.Options{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := CheckResult(m, res); err != nil {
		t.Fatalf("CheckResult: %v", err)
	}
}

func TestCheckSummaryInvariantsRejects(t *testing.T) {
	f := ir.NewField("f")
	tests := []struct {
		name string
		r    *escape.FunctionResult
		want string
	}{
		{
			name: "parameter range",
			r:    &escape.FunctionResult{Escapes: []escape.CompressedNode{escape.ParamNode(3)}},
			want: "parameter out of range",
		},
		{
			name: "drain range",
			r: &escape.FunctionResult{PointsTo: []escape.CompressedEdge{
				{From: escape.ParamNode(0), To: escape.DrainNode(0)},
			}},
			want: "drain out of range",
		},
		{
			name: "unused drain",
			r:    &escape.FunctionResult{NumberOfDrains: 1},
			want: "never referenced",
		},
		{
			name: "order",
			r: &escape.FunctionResult{Escapes: []escape.CompressedNode{
				escape.ReturnNode(), escape.ParamNode(0),
			}},
			want: "not canonical",
		},
		{
			name: "duplicate edge",
			r: &escape.FunctionResult{PointsTo: []escape.CompressedEdge{
				{From: escape.ParamNode(0).Field(f), To: escape.ReturnNode()},
				{From: escape.ParamNode(0).Field(f), To: escape.ReturnNode()},
			}},
			want: "not canonical",
		},
		{
			name: "empty field",
			r:    &escape.FunctionResult{Escapes: []escape.CompressedNode{escape.ParamNode(0).Field(ir.NoField)}},
			want: "empty field",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSummaryInvariants("f", 1, tt.r)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if err := CheckSummaryInvariants("f", 2, escape.Pessimistic(2)); err != nil {
		t.Fatalf("pessimistic summary rejected: %v", err)
	}
}

func TestCheckLifetimesCompleteReportsGaps(t *testing.T) {
	m := ir.NewModule("gap")
	typ := m.AddType("T", false)
	fn, _ := m.Declare("f", 0)
	b, err := m.Define(fn)
	if err != nil {
		t.Fatal(err)
	}
	b.New(typ, ir.NoFuncID)
	res := &escape.Result{Lifetimes: map[ir.ElementID]escape.Lifetime{}}
	if err := CheckLifetimesComplete(m, res); err == nil {
		t.Fatalf("missing lifetime not reported")
	}
}

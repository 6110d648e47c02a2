package ir_test

import (
	"strings"
	"testing"

	"esca/internal/ir"
)

const holderProgram = `
module = "holder"

[[type]]
name = "Holder"

[[type]]
name = "Bytes"
array = true

[[func]]
name = "Holder.<init>"
params = ["this", "payload"]
external = true
escapes = 0
points_to = [0x2, 0]

[[func]]
name = "wrap"
params = ["p"]
returns = ["h"]

  [[func.node]]
  id = "h"
  kind = "new"
  type = "Holder"
  ctor = "Holder.<init>"
  args = ["p"]
  line = 4

  [[func.node]]
  id = "inner"
  kind = "scope"

  [[func.node]]
  id = "n"
  kind = "const"
  const = 16
  scope = "inner"

  [[func.node]]
  id = "buf"
  kind = "new"
  type = "Bytes"
  args = ["n"]
  scope = "inner"

  [[func.node]]
  id = "v"
  kind = "var"
  values = ["h", "buf"]
`

func TestParseProgram(t *testing.T) {
	m, err := ir.ParseProgram("holder.toml", holderProgram)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	if m.Name != "holder" {
		t.Fatalf("Name = %q, want holder", m.Name)
	}
	ctor, ok := m.Lookup("Holder.<init>")
	if !ok {
		t.Fatalf("constructor not declared")
	}
	sym := m.Symbol(ctor)
	if !sym.External || sym.Bits == nil || sym.Bits.PointsTo[0] != 0x2 {
		t.Fatalf("constructor symbol = %+v", sym)
	}
	wrap, _ := m.Lookup("wrap")
	fn := m.Funcs[wrap]
	if fn == nil {
		t.Fatalf("wrap has no body")
	}

	type visit struct {
		kind  ir.NodeKind
		depth int
	}
	var got []visit
	fn.Walk(func(id ir.NodeID, depth int) {
		got = append(got, visit{fn.Node(id).Kind, depth})
	})
	want := []visit{
		{ir.NodeParameter, 0},
		{ir.NodeNewObject, 0},
		{ir.NodeConst, 1},
		{ir.NodeNewObject, 1},
		{ir.NodeVariable, 0},
	}
	if len(got) != len(want) {
		t.Fatalf("walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walk[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(fn.Returns) != 1 || fn.Node(fn.Returns[0]).Kind != ir.NodeNewObject {
		t.Fatalf("returns = %v", fn.Returns)
	}
	v := fn.Node(fn.Nodes[len(fn.Nodes)-1].ID)
	if v.Kind != ir.NodeVariable || len(v.Variable.Values) != 2 {
		t.Fatalf("variable = %+v", v)
	}
	if h := fn.Node(fn.Returns[0]); h.Span.Line != 4 || !h.CarriesLifetime() {
		t.Fatalf("allocation span/elem = %v/%d", h.Span, h.Elem)
	}
}

func TestParseProgramErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "unknown key",
			text: "[[func]]\nname = \"f\"\nbogus = 1\n",
			want: "unknown keys",
		},
		{
			name: "unknown node",
			text: "[[func]]\nname = \"f\"\nreturns = [\"x\"]\n",
			want: "unknown node \"x\"",
		},
		{
			name: "unknown callee",
			text: "[[func]]\nname = \"f\"\n[[func.node]]\nid = \"c\"\nkind = \"call\"\ncallee = \"g\"\n",
			want: "unknown function \"g\"",
		},
		{
			name: "arity",
			text: "[[func]]\nname = \"g\"\nparams = [\"a\"]\n[[func]]\nname = \"f\"\n[[func.node]]\nid = \"c\"\nkind = \"call\"\ncallee = \"g\"\n",
			want: "with 0 arguments, want 1",
		},
		{
			name: "bad nibble",
			text: "[[func]]\nname = \"g\"\nexternal = true\nparams = [\"a\"]\npoints_to = [0x7]\n",
			want: "has kind 7",
		},
		{
			name: "external body",
			text: "[[func]]\nname = \"g\"\nexternal = true\n[[func.node]]\nid = \"c\"\nkind = \"const\"\n",
			want: "has a body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ir.ParseProgram("bad.toml", tt.text)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestNewFieldIsStableAndNormalized(t *testing.T) {
	composed := ir.NewField("caf\u00e9")
	decomposed := ir.NewField("cafe\u0301")
	if composed != decomposed {
		t.Fatalf("NFC variants differ: %+v vs %+v", composed, decomposed)
	}
	if ir.NewField("next") != ir.NewField("next") {
		t.Fatalf("NewField is not deterministic")
	}
	for _, name := range []string{"a", "b", "next", "payload", ""} {
		h := ir.NewField(name).Hash
		if h >= 0 && h < 3 {
			t.Fatalf("NewField(%q) produced reserved hash %d", name, h)
		}
	}
	if ir.CompareFields(ir.ArrayContents, ir.ReturnValue) >= 0 {
		t.Fatalf("ArrayContents must order before ReturnValue")
	}
}

func TestValidateRejectsSharedMembership(t *testing.T) {
	m := ir.NewModule("t")
	f, _ := m.Declare("f", 0)
	b, err := m.Define(f)
	if err != nil {
		t.Fatalf("Define: %v", err)
	}
	c := b.Const(1)
	s := b.BeginScope()
	b.EndScope()
	fn := b.Func()
	fn.Nodes[s].Scope.Nodes = append(fn.Nodes[s].Scope.Nodes, c)
	err = ir.Validate(m)
	if err == nil || !strings.Contains(err.Error(), "belongs to scopes") {
		t.Fatalf("Validate = %v, want shared membership error", err)
	}
}

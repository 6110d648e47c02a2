package trace

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGatesScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelError, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeComponent, false},
		{LevelDetail, ScopeComponent, true},
		{LevelDetail, ScopeFunction, false},
		{LevelDebug, ScopeFunction, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v, want %v", tt.level, tt.scope, got, tt.want)
		}
	}
}

func TestStreamSpanNesting(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDetail, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pass := Begin(tr, ScopePass, "escape", 0)
	comp := Begin(tr, ScopeComponent, "component 0", pass.ID())
	fn := Begin(tr, ScopeFunction, "f", comp.ID())
	if fn.ID() != comp.ID() {
		t.Fatalf("filtered span id = %d, want parent %d", fn.ID(), comp.ID())
	}
	fn.End("")
	comp.WithExtra("functions", "2").End("")
	pass.End("done")

	out := buf.String()
	if got := strings.Count(out, "\n"); got != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", got, out)
	}
	if !strings.Contains(out, "{functions=2}") || !strings.Contains(out, "(done)") {
		t.Fatalf("missing extra or detail:\n%s", out)
	}
}

func TestRingKeepsNewest(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeFunction, name, "", 0)
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestNDJSONSuffixSelectsFormat(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPhase, Output: &buf, OutputPath: "x.ndjson"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Begin(tr, ScopeDriver, "analyze", 0).End("")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}

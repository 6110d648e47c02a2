package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	if err := tm.Time("load", func() (string, error) { return "3 functions", nil }); err != nil {
		t.Fatalf("Time: %v", err)
	}
	boom := errors.New("boom")
	if err := tm.Time("solve", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("Time err = %v, want boom", err)
	}
	tm.End(42, "ignored")

	rep := tm.Report()
	if len(rep.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(rep.Phases))
	}
	if rep.Phases[0].Note != "3 functions" || rep.Phases[1].Note != "failed" {
		t.Fatalf("notes = %q, %q", rep.Phases[0].Note, rep.Phases[1].Note)
	}
	if s := tm.Summary(); !strings.Contains(s, "load") || !strings.Contains(s, "total") {
		t.Fatalf("summary missing rows:\n%s", s)
	}
}

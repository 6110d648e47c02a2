package diag

import (
	"testing"

	"esca/internal/source"
)

func TestBagLimitAndSort(t *testing.T) {
	bag := NewBag(3)
	r := BagReporter{Bag: bag}
	ReportWarning(r, EscUnresolvedArgument, source.Span{File: 1, Line: 9}, "late").Emit()
	ReportInfo(r, EscExternalPessimistic, source.Span{File: 1, Line: 2}, "early").Emit()
	ReportError(r, IRUnknownNode, source.Span{File: 1, Line: 2}, "same line").Emit()
	ReportError(r, IRUnknownNode, source.Span{File: 1, Line: 1}, "dropped").Emit()

	if bag.Len() != 3 {
		t.Fatalf("Len = %d, want 3", bag.Len())
	}
	bag.Sort()
	items := bag.Items()
	if items[0].Message != "same line" || items[1].Message != "early" || items[2].Message != "late" {
		t.Fatalf("unexpected order: %q %q %q", items[0].Message, items[1].Message, items[2].Message)
	}
	if !bag.HasErrors() {
		t.Fatalf("HasErrors = false, want true")
	}
}

func TestBuilderEmitsOnce(t *testing.T) {
	bag := NewBag(10)
	b := ReportWarning(BagReporter{Bag: bag}, EscNotConverged, source.Span{}, "f").
		WithNote(source.Span{Line: 3}, "second refinement differed")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Fatalf("Len = %d, want 1", bag.Len())
	}
	if got := bag.Items()[0].Notes; len(got) != 1 {
		t.Fatalf("notes = %v, want one", got)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for range 3 {
		r.Report(EscUnresolvedArgument, SevWarning, source.Span{Line: 1}, "P3", nil)
	}
	r.Report(EscUnresolvedArgument, SevWarning, source.Span{Line: 2}, "P3", nil)
	if bag.Len() != 2 {
		t.Fatalf("Len = %d, want 2", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	tests := map[Code]string{
		IRBadProgram:          "IR1001",
		EscUnresolvedArgument: "ESC2001",
		SumCorrupt:            "SUM3002",
		ProjBadManifest:       "PRJ5001",
		UnknownCode:           "E0000",
	}
	for code, want := range tests {
		if got := code.ID(); got != want {
			t.Errorf("%d.ID() = %q, want %q", code, got, want)
		}
	}
}

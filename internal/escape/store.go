package escape

import (
	"fmt"
	"slices"

	"esca/internal/ir"
)

// Summary is a FunctionResult together with the symbol it describes.
type Summary struct {
	Name      string
	NumParams int
	Result    *FunctionResult
}

// SummaryReader supplies summaries of functions compiled separately. A
// missing summary is reported as (nil, nil).
type SummaryReader interface {
	ReadSummary(name string) (*Summary, error)
}

// Summaries is an in-memory summary table keyed by symbol name.
type Summaries struct {
	byName map[string]*Summary
}

func NewSummaries() *Summaries {
	return &Summaries{byName: make(map[string]*Summary)}
}

// Put stores s, replacing any summary with the same name.
func (s *Summaries) Put(sum *Summary) {
	s.byName[sum.Name] = sum
}

func (s *Summaries) Get(name string) *Summary {
	if s == nil {
		return nil
	}
	return s.byName[name]
}

func (s *Summaries) ReadSummary(name string) (*Summary, error) {
	return s.Get(name), nil
}

func (s *Summaries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}

// Names returns the stored names in lexical order.
func (s *Summaries) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Export collects the summaries of every body of m from res.
func (res *Result) Export(m *ir.Module) *Summaries {
	out := NewSummaries()
	for _, id := range m.Bodies() {
		r, ok := res.Summaries[id]
		if !ok {
			continue
		}
		sym := m.Symbol(id)
		out.Put(&Summary{Name: sym.Name, NumParams: sym.NumParams, Result: r})
	}
	return out
}

// chainReader consults its readers in order.
type chainReader []SummaryReader

// ChainReaders combines readers; the first one holding a name wins. Nil
// readers are skipped.
func ChainReaders(readers ...SummaryReader) SummaryReader {
	var out chainReader
	for _, r := range readers {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (c chainReader) ReadSummary(name string) (*Summary, error) {
	for i, r := range c {
		sum, err := r.ReadSummary(name)
		if err != nil {
			return nil, fmt.Errorf("summary source %d: %w", i, err)
		}
		if sum != nil {
			return sum, nil
		}
	}
	return nil, nil
}

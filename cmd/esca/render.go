package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"esca/internal/escape"
	"esca/internal/ir"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Faint(true)

	lifetimeColors = map[escape.Lifetime]*color.Color{
		escape.LifetimeStack:       color.New(color.FgGreen),
		escape.LifetimeLocal:       color.New(color.FgCyan),
		escape.LifetimeReturnValue: color.New(color.FgYellow),
		escape.LifetimeGlobal:      color.New(color.FgRed, color.Bold),
	}
)

// report is the format-independent view of one analysis run.
type report struct {
	Module    string           `json:"module"`
	Functions []functionReport `json:"functions"`
}

type functionReport struct {
	Name        string           `json:"name"`
	Params      int              `json:"params"`
	Drains      int              `json:"drains"`
	PointsTo    []string         `json:"points_to"`
	Escapes     []string         `json:"escapes"`
	Runs        int              `json:"runs"`
	Pessimistic bool             `json:"pessimistic,omitempty"`
	Lifetimes   []lifetimeReport `json:"lifetimes,omitempty"`
}

type lifetimeReport struct {
	Element  int32           `json:"element"`
	Kind     string          `json:"kind"`
	At       string          `json:"at"`
	Lifetime escape.Lifetime `json:"-"`
	Name     string          `json:"lifetime"`
}

func buildReport(m *ir.Module, res *escape.Result) *report {
	rep := &report{Module: m.Name}
	for _, id := range m.Bodies() {
		sym := m.Symbol(id)
		sum := res.Summaries[id]
		fr := functionReport{
			Name:        sym.Name,
			Params:      sym.NumParams,
			Drains:      sum.NumberOfDrains,
			PointsTo:    make([]string, 0, len(sum.PointsTo)),
			Escapes:     make([]string, 0, len(sum.Escapes)),
			Runs:        res.Stats[id].Runs,
			Pessimistic: res.Stats[id].Pessimistic,
		}
		for _, e := range sum.PointsTo {
			fr.PointsTo = append(fr.PointsTo, e.String())
		}
		for _, n := range sum.Escapes {
			fr.Escapes = append(fr.Escapes, n.String())
		}
		fn := m.Funcs[id]
		for i := range fn.Nodes {
			n := &fn.Nodes[i]
			lt, ok := res.Lifetime(n.Elem)
			if n.Elem == ir.NoElementID || !ok {
				continue
			}
			fr.Lifetimes = append(fr.Lifetimes, lifetimeReport{
				Element:  int32(n.Elem),
				Kind:     n.Kind.String(),
				At:       m.Files.Format(n.Span),
				Lifetime: lt,
				Name:     lt.String(),
			})
		}
		slices.SortFunc(fr.Lifetimes, func(a, b lifetimeReport) int { return cmp.Compare(a.Element, b.Element) })
		rep.Functions = append(rep.Functions, fr)
	}
	return rep
}

func renderJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func styled(s lipgloss.Style, text string) string {
	if color.NoColor {
		return text
	}
	return s.Render(text)
}

func renderPretty(out io.Writer, rep *report) {
	for i, fr := range rep.Functions {
		if i > 0 {
			fmt.Fprintln(out)
		}
		title := fmt.Sprintf("%s/%d", fr.Name, fr.Params)
		if fr.Pessimistic {
			title += " (pessimistic)"
		}
		fmt.Fprintln(out, styled(headerStyle, title))
		renderSummaryLines(out, fr.Drains, fr.PointsTo, fr.Escapes)
		if len(fr.Lifetimes) == 0 {
			continue
		}
		width := 0
		for _, lt := range fr.Lifetimes {
			width = max(width, runewidth.StringWidth(lt.Kind+" "+lt.At))
		}
		for _, lt := range fr.Lifetimes {
			label := runewidth.FillRight(lt.Kind+" "+lt.At, width)
			fmt.Fprintf(out, "  #%-4d %s  %s\n", lt.Element, label, lifetimeColors[lt.Lifetime].Sprint(lt.Name))
		}
	}
}

func renderSummaryLines(out io.Writer, drains int, pointsTo, escapes []string) {
	if drains > 0 {
		fmt.Fprintln(out, styled(dimStyle, fmt.Sprintf("  drains: %d", drains)))
	}
	for _, e := range pointsTo {
		fmt.Fprintf(out, "  %s\n", e)
	}
	if len(escapes) > 0 {
		fmt.Fprintf(out, "  escapes: %s\n", strings.Join(escapes, " "))
	}
	if len(pointsTo) == 0 && len(escapes) == 0 {
		fmt.Fprintln(out, styled(dimStyle, "  (no effects)"))
	}
}

func renderSummary(out io.Writer, sum *escape.Summary) {
	fmt.Fprintln(out, styled(headerStyle, fmt.Sprintf("%s/%d", sum.Name, sum.NumParams)))
	var pointsTo, escapes []string
	for _, e := range sum.Result.PointsTo {
		pointsTo = append(pointsTo, e.String())
	}
	for _, n := range sum.Result.Escapes {
		escapes = append(escapes, n.String())
	}
	renderSummaryLines(out, sum.Result.NumberOfDrains, pointsTo, escapes)
	if bits, ok := sum.Result.ToBits(sum.NumParams); ok {
		fmt.Fprintln(out, styled(dimStyle, fmt.Sprintf("  bits: escapes=%#x points_to=%#x", bits.Escapes, bits.PointsTo)))
	}
}

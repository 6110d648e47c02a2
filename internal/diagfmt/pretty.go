package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"esca/internal/diag"
	"esca/internal/source"
)

var severityColors = map[diag.Severity]*color.Color{
	diag.SevInfo:    color.New(color.FgBlue, color.Bold),
	diag.SevWarning: color.New(color.FgYellow, color.Bold),
	diag.SevError:   color.New(color.FgRed, color.Bold),
}

// Pretty writes one line per diagnostic,
//
//	<path>:<line>[:<col>]: <severity>[<code>]: <message>
//
// followed by its notes when opts.ShowNotes is set. bag should be sorted.
func Pretty(w io.Writer, bag *diag.Bag, files *source.Files, opts PrettyOpts) {
	for _, d := range bag.Items() {
		if d.Severity < opts.MinSeverity {
			continue
		}
		sev := strings.ToLower(d.Severity.String())
		if opts.Color {
			c := *severityColors[d.Severity]
			c.EnableColor()
			sev = c.Sprint(sev)
		}
		fmt.Fprintf(w, "%s: %s[%s]: %s\n", location(d.Primary, files, opts), sev, d.Code.ID(), d.Message)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  note: %s: %s\n", location(n.Span, files, opts), n.Msg)
		}
	}
}

func location(span source.Span, files *source.Files, opts PrettyOpts) string {
	loc := makeLocation(span, files, opts.PathMode, opts.BaseDir)
	switch {
	case loc.Line == 0:
		return "<unknown>"
	case loc.File == "":
		return fmt.Sprintf("<input>:%d", loc.Line)
	case loc.Col == 0:
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
}

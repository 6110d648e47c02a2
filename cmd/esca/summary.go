package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"esca/internal/escape"
	"esca/internal/summary"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <store> [name...]",
	Short: "Print summaries held in a summary store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type summaryPayload struct {
	Name     string   `json:"name"`
	Params   int      `json:"params"`
	Drains   int      `json:"drains"`
	PointsTo []string `json:"points_to"`
	Escapes  []string `json:"escapes"`
}

func runSummary(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	store, err := openStore(args[0])
	if err != nil {
		return err
	}

	var sums []*escape.Summary
	if len(args) == 1 {
		if sums, err = store.List(); err != nil {
			return err
		}
	} else {
		for _, name := range args[1:] {
			sum, err := store.ReadSummary(name)
			if err != nil {
				return err
			}
			if sum == nil {
				return fmt.Errorf("%s: no summary for %s", args[0], name)
			}
			sums = append(sums, sum)
		}
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		payload := make([]summaryPayload, 0, len(sums))
		for _, sum := range sums {
			p := summaryPayload{
				Name:     sum.Name,
				Params:   sum.NumParams,
				Drains:   sum.Result.NumberOfDrains,
				PointsTo: make([]string, 0, len(sum.Result.PointsTo)),
				Escapes:  make([]string, 0, len(sum.Result.Escapes)),
			}
			for _, e := range sum.Result.PointsTo {
				p.PointsTo = append(p.PointsTo, e.String())
			}
			for _, n := range sum.Result.Escapes {
				p.Escapes = append(p.Escapes, n.String())
			}
			payload = append(payload, p)
		}
		return renderJSON(out, payload)
	}
	for i, sum := range sums {
		if i > 0 {
			fmt.Fprintln(out)
		}
		renderSummary(out, sum)
	}
	return nil
}

// openStore opens a store that must already exist.
func openStore(dir string) (*summary.DiskStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a summary store", dir)
	}
	return summary.OpenDiskStore(dir)
}

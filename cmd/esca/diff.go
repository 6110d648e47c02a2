package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"esca/internal/escape"
	"esca/internal/summary"
)

var errStoresDiffer = errors.New("summary stores differ")

var diffCmd = &cobra.Command{
	Use:   "diff <old-store> <new-store>",
	Short: "Compare two summary stores",
	Long:  `diff lists the functions whose summaries differ between two stores and fails when there is any difference`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var changeColors = map[summary.ChangeKind]*color.Color{
	summary.Added:   color.New(color.FgGreen),
	summary.Removed: color.New(color.FgRed),
	summary.Changed: color.New(color.FgYellow),
}

func runDiff(cmd *cobra.Command, args []string) error {
	prev, err := loadStore(args[0])
	if err != nil {
		return err
	}
	next, err := loadStore(args[1])
	if err != nil {
		return err
	}
	changes := summary.Diff(prev, next)
	out := cmd.OutOrStdout()
	for _, c := range changes {
		fmt.Fprintf(out, "%s %s\n", changeColors[c.Kind].Sprintf("%-8s", c.Kind), c.Name)
		for _, d := range c.Detail {
			fmt.Fprintf(out, "    %s\n", d)
		}
	}
	if len(changes) > 0 {
		return fmt.Errorf("%w: %d functions", errStoresDiffer, len(changes))
	}
	if !quiet(cmd) {
		fmt.Fprintln(out, "no differences")
	}
	return nil
}

func loadStore(dir string) (*escape.Summaries, error) {
	store, err := openStore(dir)
	if err != nil {
		return nil, err
	}
	sums, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return sums, nil
}

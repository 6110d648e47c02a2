package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"esca/internal/diag"
	"esca/internal/diagfmt"
	"esca/internal/escape"
	"esca/internal/ir"
	"esca/internal/observ"
	"esca/internal/prof"
	"esca/internal/project"
	"esca/internal/source"
	"esca/internal/summary"
	"esca/internal/testkit"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <program.toml>",
	Short: "Analyze a program and print lifetimes and summaries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	analyzeCmd.Flags().StringArray("import", nil, "summary store to resolve external callees from (repeatable)")
	analyzeCmd.Flags().String("export", "", "summary store to write the module's summaries to")
	analyzeCmd.Flags().Bool("allow-local", false, "keep LOCAL lifetimes instead of widening them to GLOBAL")
	analyzeCmd.Flags().Bool("allow-array-stack", false, "allow small constant-size arrays on the stack")
	analyzeCmd.Flags().Int("stack-array-limit", escape.DefaultStackArrayLimit, "largest array size kept on the stack")
	analyzeCmd.Flags().Int("jobs", 0, "parallel role extraction workers (0 = unbounded)")
	analyzeCmd.Flags().String("dot", "", "write the Graphviz points-to graph of every function to this directory")
	analyzeCmd.Flags().Bool("verify", false, "check summary and lifetime invariants after the analysis")
	analyzeCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	analyzeCmd.Flags().String("diag-format", "pretty", "diagnostics format (pretty|json)")
	analyzeCmd.Flags().String("cpu-profile", "", "write a CPU profile to this file")
	analyzeCmd.Flags().String("mem-profile", "", "write a heap profile to this file")
	analyzeCmd.Flags().String("runtime-trace", "", "write a Go runtime trace to this file")
}

type analyzeSettings struct {
	format     string
	diagFormat string
	imports    []string
	export     string
	dotDir     string
	verify     bool
	maxDiags   int
	profiles   prof.Paths
	opts       escape.Options
}

// resolveAnalyzeSettings merges flags over the manifest; a flag the user set
// always wins.
func resolveAnalyzeSettings(cmd *cobra.Command, manifest *project.Manifest) (*analyzeSettings, error) {
	flags := cmd.Flags()
	s := &analyzeSettings{}
	var err error
	if s.format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	s.format = strings.ToLower(s.format)
	if s.format != "pretty" && s.format != "json" {
		return nil, fmt.Errorf("unsupported format %q (must be pretty or json)", s.format)
	}
	if s.diagFormat, err = flags.GetString("diag-format"); err != nil {
		return nil, err
	}
	s.diagFormat = strings.ToLower(s.diagFormat)
	if s.diagFormat != "pretty" && s.diagFormat != "json" {
		return nil, fmt.Errorf("unsupported diagnostics format %q (must be pretty or json)", s.diagFormat)
	}
	if s.profiles.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, err
	}
	if s.profiles.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, err
	}
	if s.profiles.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, err
	}
	if s.dotDir, err = flags.GetString("dot"); err != nil {
		return nil, err
	}
	if s.verify, err = flags.GetBool("verify"); err != nil {
		return nil, err
	}
	if s.maxDiags, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, err
	}

	pol := manifest.Policy()
	jobs := 0
	if manifest != nil {
		jobs = manifest.Config.Analysis.Jobs
	}
	s.imports = manifest.ImportDirs()
	s.export = manifest.ExportDir()

	if flags.Changed("allow-local") {
		if pol.AllowLocal, err = flags.GetBool("allow-local"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("allow-array-stack") {
		if pol.AllowArrayStack, err = flags.GetBool("allow-array-stack"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("stack-array-limit") {
		if pol.StackArrayLimit, err = flags.GetInt("stack-array-limit"); err != nil {
			return nil, err
		}
		if pol.StackArrayLimit <= 0 {
			return nil, fmt.Errorf("--stack-array-limit must be positive")
		}
	}
	if flags.Changed("jobs") {
		if jobs, err = flags.GetInt("jobs"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("import") {
		if s.imports, err = flags.GetStringArray("import"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("export") {
		if s.export, err = flags.GetString("export"); err != nil {
			return nil, err
		}
	}
	s.opts = escape.Options{Policy: pol, Jobs: jobs}
	return s, nil
}

func runAnalyze(cmd *cobra.Command, args []string) (err error) {
	path := args[0]
	manifest, _, err := project.Load(filepath.Dir(path))
	if err != nil {
		return err
	}
	settings, err := resolveAnalyzeSettings(cmd, manifest)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, manifest)
	if err != nil {
		return err
	}
	defer cleanup()
	session, err := prof.Start(settings.profiles)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := session.Stop(); err == nil && stopErr != nil {
			err = fmt.Errorf("writing profiles: %w", stopErr)
		}
	}()

	bag := diag.NewBag(settings.maxDiags)
	reporter := diag.BagReporter{Bag: bag}

	timer := observ.NewTimer()
	var (
		m        *ir.Module
		problems error
	)
	err = timer.Time("load", func() (string, error) {
		var err error
		if m, err = ir.LoadProgram(path); err != nil {
			return "", err
		}
		if problems = ir.Validate(m); problems != nil {
			return "", errInvalidProgram
		}
		return fmt.Sprintf("%d functions", len(m.Symbols)), nil
	})
	if errors.Is(err, errInvalidProgram) {
		if quiet(cmd) {
			return fmt.Errorf("%s: %w:\n%w", path, errInvalidProgram, problems)
		}
		n := reportInvalid(reporter, m, path, problems)
		if err := reportDiagnostics(cmd, settings, m, bag); err != nil {
			return err
		}
		return fmt.Errorf("%s: %w (%d problems)", path, errInvalidProgram, n)
	}
	if err != nil {
		return err
	}

	var readers []escape.SummaryReader
	for _, dir := range settings.imports {
		store, err := summary.OpenDiskStore(dir)
		if err != nil {
			return err
		}
		readers = append(readers, store)
	}
	opts := settings.opts
	if len(readers) > 0 {
		opts.Imports = escape.ChainReaders(readers...)
	}
	opts.Reporter = reporter

	var dotErrs []error
	if settings.dotDir != "" {
		if err := os.MkdirAll(settings.dotDir, 0o755); err != nil {
			return err
		}
		opts.Graph = func(fn string, dot []byte) {
			name := summary.DigestOf(fn).String()[:16] + ".dot"
			if err := os.WriteFile(filepath.Join(settings.dotDir, name), dot, 0o644); err != nil {
				dotErrs = append(dotErrs, fmt.Errorf("%s: %w", fn, err))
			}
		}
	}

	var res *escape.Result
	err = timer.Time("analyze", func() (string, error) {
		var err error
		res, err = escape.Analyze(cmd.Context(), m, opts)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d lifetimes", len(res.Lifetimes)), nil
	})
	if err != nil {
		return err
	}
	if err := errors.Join(dotErrs...); err != nil {
		return fmt.Errorf("writing graphs: %w", err)
	}

	if settings.verify {
		if err := timer.Time("verify", func() (string, error) {
			return "", testkit.CheckResult(m, res)
		}); err != nil {
			return fmt.Errorf("verification failed:\n%w", err)
		}
	}

	if settings.export != "" {
		err = timer.Time("export", func() (string, error) {
			store, err := summary.OpenDiskStore(settings.export)
			if err != nil {
				return "", err
			}
			sums := res.Export(m)
			if err := store.PutAll(sums); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d summaries", sums.Len()), nil
		})
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	rep := buildReport(m, res)
	if settings.format == "json" {
		if err := renderJSON(out, rep); err != nil {
			return err
		}
	} else {
		renderPretty(out, rep)
	}
	if !quiet(cmd) {
		if err := reportDiagnostics(cmd, settings, m, bag); err != nil {
			return err
		}
	}
	if showTimings(cmd) {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	return nil
}

var errInvalidProgram = errors.New("invalid program")

// reportInvalid emits one error diagnostic per validation failure, anchored
// at the start of the program file, and returns how many it emitted.
func reportInvalid(rep diag.Reporter, m *ir.Module, path string, problems error) int {
	span := source.Span{File: m.Files.Add(path), Line: 1}
	errs := []error{problems}
	if joined, ok := problems.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		diag.ReportError(rep, diag.IRBadProgram, span, e.Error()).Emit()
	}
	return len(errs)
}

func reportDiagnostics(cmd *cobra.Command, settings *analyzeSettings, m *ir.Module, bag *diag.Bag) error {
	bag.Sort()
	if settings.diagFormat == "json" {
		return diagfmt.JSON(cmd.ErrOrStderr(), bag, m.Files, diagfmt.JSONOpts{
			PathMode:     diagfmt.PathModeAsIs,
			IncludeNotes: true,
		})
	}
	if bag.Len() == 0 {
		return nil
	}
	diagfmt.Pretty(cmd.ErrOrStderr(), bag, m.Files, diagfmt.PrettyOpts{
		Color:     !color.NoColor,
		ShowNotes: true,
	})
	return nil
}

func showTimings(cmd *cobra.Command) bool {
	t, err := cmd.Root().PersistentFlags().GetBool("timings")
	return err == nil && t
}

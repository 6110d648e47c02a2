// Package project locates and decodes the esca.toml manifest that carries
// analysis defaults for a tree of programs.
package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"esca/internal/escape"
	"esca/internal/trace"
)

// Manifest is a decoded esca.toml. Relative paths in it are resolved
// against Root.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

type Config struct {
	Analysis  AnalysisConfig  `toml:"analysis"`
	Summaries SummariesConfig `toml:"summaries"`
	Trace     TraceConfig     `toml:"trace"`
}

type AnalysisConfig struct {
	AllowLocal      bool `toml:"allow_local"`
	AllowArrayStack bool `toml:"allow_array_stack"`
	StackArrayLimit int  `toml:"stack_array_limit"`
	Jobs            int  `toml:"jobs"`
}

type SummariesConfig struct {
	Import []string `toml:"import"`
	Export string   `toml:"export"`
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
	Mode   string `toml:"mode"`
}

// Load finds and decodes the manifest governing startDir. ok is false when
// there is none.
func Load(startDir string) (*Manifest, bool, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, true, nil
}

// LoadConfig decodes and checks one manifest file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("analysis", "stack_array_limit") && cfg.Analysis.StackArrayLimit <= 0 {
		return Config{}, fmt.Errorf("%s: [analysis].stack_array_limit must be positive", path)
	}
	if cfg.Analysis.Jobs < 0 {
		return Config{}, fmt.Errorf("%s: [analysis].jobs must not be negative", path)
	}
	if _, err := trace.ParseLevel(cfg.Trace.Level); err != nil {
		return Config{}, fmt.Errorf("%s: [trace].level: %w", path, err)
	}
	if _, err := trace.ParseMode(cfg.Trace.Mode); err != nil {
		return Config{}, fmt.Errorf("%s: [trace].mode: %w", path, err)
	}
	return cfg, nil
}

// Policy returns the lifetime policy the manifest selects.
func (m *Manifest) Policy() escape.Policy {
	pol := escape.DefaultPolicy()
	if m == nil {
		return pol
	}
	a := m.Config.Analysis
	pol.AllowLocal = a.AllowLocal
	pol.AllowArrayStack = a.AllowArrayStack
	if a.StackArrayLimit > 0 {
		pol.StackArrayLimit = a.StackArrayLimit
	}
	return pol
}

// ImportDirs returns the summary stores to import, resolved against Root.
func (m *Manifest) ImportDirs() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Config.Summaries.Import))
	for _, dir := range m.Config.Summaries.Import {
		out = append(out, m.resolve(dir))
	}
	return out
}

// ExportDir returns the store to export to, or "".
func (m *Manifest) ExportDir() string {
	if m == nil || m.Config.Summaries.Export == "" {
		return ""
	}
	return m.resolve(m.Config.Summaries.Export)
}

func (m *Manifest) resolve(p string) string {
	p = filepath.FromSlash(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, p)
}

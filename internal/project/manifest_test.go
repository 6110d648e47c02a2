package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[analysis]
allow_local = true
stack_array_limit = 16
jobs = 4

[summaries]
import = ["deps/core", "/abs/store"]
export = "out"

[trace]
level = "phase"
mode = "ring"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, ok, err := Load(nested)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if m.Root != root {
		t.Fatalf("Root = %q, want %q", m.Root, root)
	}
	pol := m.Policy()
	if !pol.AllowLocal || pol.AllowArrayStack || pol.StackArrayLimit != 16 {
		t.Fatalf("policy = %+v", pol)
	}
	if m.Config.Analysis.Jobs != 4 {
		t.Fatalf("jobs = %d", m.Config.Analysis.Jobs)
	}
	imports := m.ImportDirs()
	if len(imports) != 2 || imports[0] != filepath.Join(root, "deps", "core") || imports[1] != "/abs/store" {
		t.Fatalf("imports = %v", imports)
	}
	if got := m.ExportDir(); got != filepath.Join(root, "out") {
		t.Fatalf("export = %q", got)
	}
}

func TestLoadWithoutManifest(t *testing.T) {
	m, ok, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		// Some CI hosts keep a manifest above the temp dir.
		t.Skip("manifest found above temp dir")
	}
	if m.Policy().StackArrayLimit != 64 || m.ExportDir() != "" || m.ImportDirs() != nil {
		t.Fatalf("nil manifest must yield defaults")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[analysis\n", "failed to parse TOML"},
		{"unknown key", "[analysis]\nallow_heap = true\n", "unknown keys"},
		{"zero limit", "[analysis]\nstack_array_limit = 0\n", "stack_array_limit"},
		{"negative jobs", "[analysis]\njobs = -1\n", "jobs"},
		{"bad level", "[trace]\nlevel = \"loud\"\n", "[trace].level"},
		{"bad mode", "[trace]\nmode = \"tape\"\n", "[trace].mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, t.TempDir(), tt.body)
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

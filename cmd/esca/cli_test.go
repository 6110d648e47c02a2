package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const listProgram = `
module = "list"

[[type]]
name = "Cell"

[[func]]
name = "push"
params = ["list", "value"]

  [[func.node]]
  id = "c"
  kind = "new"
  type = "Cell"
  line = 3

  [[func.node]]
  id = "w1"
  kind = "field_write"
  receiver = "c"
  field = "value"
  value = "value"

  [[func.node]]
  id = "w2"
  kind = "field_write"
  receiver = "list"
  field = "head"
  value = "c"

[[func]]
name = "main"

  [[func.node]]
  id = "l"
  kind = "new"
  type = "Cell"
  line = 10

  [[func.node]]
  id = "v"
  kind = "new"
  type = "Cell"
  line = 11

  [[func.node]]
  id = "call"
  kind = "call"
  callee = "push"
  args = ["l", "v"]

  [[func.node]]
  id = "g"
  kind = "field_write"
  field = "root"
  value = "l"
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeWithStderr(t, args...)
	return out, err
}

func executeWithStderr(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAnalyzeExportSummaryDiff(t *testing.T) {
	dir := t.TempDir()
	prog := filepath.Join(dir, "list.toml")
	if err := os.WriteFile(prog, []byte(listProgram), 0o644); err != nil {
		t.Fatal(err)
	}
	store := filepath.Join(dir, "store")

	out, err := execute(t, "analyze", "--color", "off", "--format", "json", "--verify", "--export", store, prog)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var rep report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("analyze output is not JSON: %v\n%s", err, out)
	}
	if rep.Module != "list" || len(rep.Functions) != 2 {
		t.Fatalf("report = %+v", rep)
	}
	lifetimes := map[string]string{}
	for _, fr := range rep.Functions {
		for _, lt := range fr.Lifetimes {
			lifetimes[lt.At] = lt.Name
		}
	}
	// Writing l to a global makes everything reachable from it global too.
	for _, line := range []string{":3", ":10", ":11"} {
		found := false
		for at, lt := range lifetimes {
			if strings.HasSuffix(at, line) {
				found = true
				if lt != "GLOBAL" {
					t.Fatalf("allocation at %s is %s, want GLOBAL", at, lt)
				}
			}
		}
		if !found {
			t.Fatalf("no lifetime reported at line %s: %v", line, lifetimes)
		}
	}

	out, err = execute(t, "summary", store, "push")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "push/2") || !strings.Contains(out, "P0.head") {
		t.Fatalf("summary output:\n%s", out)
	}

	if _, err := execute(t, "diff", store, store); err != nil {
		t.Fatalf("diff of a store with itself: %v", err)
	}

	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	out, err = execute(t, "diff", store, empty)
	if !errors.Is(err, errStoresDiffer) {
		t.Fatalf("diff err = %v, want errStoresDiffer", err)
	}
	if !strings.Contains(out, "removed") {
		t.Fatalf("diff output:\n%s", out)
	}
}

const arityProgram = `
module = "arity"

[[type]]
name = "Cell"

[[func]]
name = "push"
params = ["list", "value"]

[[func]]
name = "main"

  [[func.node]]
  id = "x"
  kind = "new"
  type = "Cell"

  [[func.node]]
  id = "call"
  kind = "call"
  callee = "push"
  args = ["x"]
`

func TestAnalyzeReportsInvalidProgram(t *testing.T) {
	prog := filepath.Join(t.TempDir(), "arity.toml")
	if err := os.WriteFile(prog, []byte(arityProgram), 0o644); err != nil {
		t.Fatal(err)
	}
	_, stderr, err := executeWithStderr(t, "analyze", "--color", "off", "--diag-format", "json", prog)
	if !errors.Is(err, errInvalidProgram) {
		t.Fatalf("err = %v, want errInvalidProgram", err)
	}
	var got struct {
		Diagnostics []struct {
			Severity string `json:"severity"`
			Code     string `json:"code"`
			Message  string `json:"message"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal([]byte(stderr), &got); err != nil {
		t.Fatalf("diagnostics are not JSON: %v\n%s", err, stderr)
	}
	if len(got.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v", got.Diagnostics)
	}
	d := got.Diagnostics[0]
	if d.Severity != "ERROR" || d.Code != "IR1001" || !strings.Contains(d.Message, "1 arguments, want 2") {
		t.Fatalf("diagnostic = %+v", d)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out)
	}
	if payload.Tool != "esca" || payload.SummarySchema == 0 {
		t.Fatalf("payload = %+v", payload)
	}
}

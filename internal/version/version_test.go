package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestSplitVersion(t *testing.T) {
	tests := []struct {
		in   string
		want [4]string
	}{
		{"0.3.0-dev", [4]string{"0", "3", "0", "-dev"}},
		{"1.12.7", [4]string{"1", "12", "7", ""}},
		{"10.0.1+build.5", [4]string{"10", "0", "1", "+build.5"}},
	}
	for _, tt := range tests {
		if got := splitVersion(tt.in); got != tt.want {
			t.Errorf("splitVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrettyWithoutColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	orig := Version
	defer func() { Version = orig }()
	Version = "1.2.3-rc1"
	if got := Pretty(); got != "1.2.3-rc1" {
		t.Fatalf("Pretty() = %q, want 1.2.3-rc1", got)
	}
}

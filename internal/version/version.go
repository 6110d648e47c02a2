package version

import "github.com/fatih/color"

// Version information for the esca CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.3.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// SummarySchema is the version of the portable summary encoding written by
// this build. Stores written with a different schema are rejected.
const SummarySchema uint16 = 2

// Pretty returns Version with its major, minor and patch parts colored.
func Pretty() string {
	parts := splitVersion(Version)
	if parts[0] == "" || parts[2] == "" {
		return Version
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + parts[3]
}

// splitVersion cuts "1.2.3-dev" into "1", "2", "3", "-dev".
func splitVersion(v string) [4]string {
	var out [4]string
	field := 0
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '.' && field < 2:
			field++
		case (c < '0' || c > '9') && field == 2:
			out[3] = v[i:]
			return out
		default:
			out[field] += string(c)
		}
	}
	return out
}

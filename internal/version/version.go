package version

import "fmt"

// Version is the release version reported by health.check and the CLI.
// Set at build time with
// -ldflags "-X github.com/oukeidos/fictra/internal/version.Version=2.0.0".
var Version = "2.0.0"

// Commit and BuildDate are filled the same way (…/version.Commit,
// …/version.BuildDate).
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns a multi-line version string for CLI output.
func Info() string {
	return fmt.Sprintf("fictra %s\ncommit: %s\nbuild: %s", Version, Commit, BuildDate)
}

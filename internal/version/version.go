// Package version carries the txdash build metadata stamped in with -ldflags
// "-X tx-dashboard/internal/version.Version=...".
package version

import "fmt"

// Name is the binary name reported in logs and by `txdash version`.
const Name = "txdash"

var (
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// String renders the one-line build banner, e.g. "txdash dev (commit unknown, built unknown)".
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, Commit, BuildDate)
}

// Package version exposes the build metadata stamped into the binary.
package version

// Set at build time via
// -ldflags "-X .../internal/version.Version=... -X .../internal/version.Commit=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

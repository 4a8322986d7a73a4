// Package version exposes build metadata for the tutor binaries.
//
// Overridden at release time:
//
//	go build -ldflags "-X github.com/physical-ai/tutor-api/internal/version.Version=v1.2.0"
package version

//nolint:revive // Set via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

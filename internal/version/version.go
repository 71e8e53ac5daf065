// Package version carries build metadata for the poolwatch binaries.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/flexifi/poolwatch/internal/version.Version=0.3.0 \
//	                   -X github.com/flexifi/poolwatch/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "runtime/debug"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the short git hash. Falls back to the VCS stamp Go embeds.
	Commit = "unknown"
)

// Build is the JSON form reported by /health and `deployer version`.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// Get returns the build metadata.
func Get() Build {
	b := Build{Version: Version, Commit: Commit}
	if info, ok := debug.ReadBuildInfo(); ok {
		b.GoVersion = info.GoVersion
		if b.Commit == "unknown" {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					b.Commit = s.Value[:7]
				}
			}
		}
	}
	return b
}

// String returns a formatted version string.
func String() string {
	b := Get()
	return b.Version + " (" + b.Commit + ")"
}

package version

import (
	"fmt"
	"strings"
)

// Version is the service current released version.
// This value can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/hrygo/gridsense/internal/version.Version=v0.3.0"
var Version = "0.0.0-dev"

// DevVersion is the service current development version.
var DevVersion = Version

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

func GetCurrentVersion(mode string) string {
	if mode == "dev" || mode == "demo" {
		return DevVersion
	}
	return Version
}

// String returns the version string with optional commit hash.
func String() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s-%s", Version, shortCommit(GitCommit))
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return strings.TrimSpace(commit)
}

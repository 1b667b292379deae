// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"runtime/debug"
	"strings"
)

// Name is the service name reported by /api/health and the CLI.
const Name = "SabPaisa Developer Portal"

const unknown = "unknown"

// Set at build time: -ldflags "-X .../internal/version.GitCommit=..."
var (
	Version   = "1.0.0"
	BuildTime = unknown
	GitCommit = unknown
)

// Info is the build metadata served to clients.
type Info struct {
	Name      string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the build metadata. When ldflags left the commit or build time
// unset, the VCS stamps the Go toolchain embeds are used instead.
func Get() Info {
	info := Info{Name: Name, Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if info.GitCommit != unknown && info.BuildTime != unknown {
		return info
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.GitCommit == unknown && s.Value != "":
			info.GitCommit = shortCommit(s.Value)
		case s.Key == "vcs.time" && info.BuildTime == unknown && s.Value != "":
			info.BuildTime = s.Value
		}
	}
	return info
}

// Full renders Info as "1.0.0 (commit: abc1234, built: 2024-01-01)", or just
// the version when either stamp is missing.
func Full() string {
	i := Get()
	if i.GitCommit == unknown || i.BuildTime == unknown {
		return i.Version
	}
	var b strings.Builder
	b.WriteString(i.Version)
	b.WriteString(" (commit: ")
	b.WriteString(i.GitCommit)
	b.WriteString(", built: ")
	b.WriteString(i.BuildTime)
	b.WriteString(")")
	return b.String()
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

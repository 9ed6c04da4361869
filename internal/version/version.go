package version

import (
	"runtime/debug"
	"sync"
)

// Version information for smaliref
var (
	// Version is the current semantic version of smaliref
	Version = "0.3.0"

	// BuildDate is set during build time (use -ldflags)
	BuildDate = "development"

	// GitCommit is set during build time (use -ldflags)
	GitCommit = "unknown"
)

// Info returns version information as a string
func Info() string {
	return Version
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "smaliref " + Version + " (commit: " + Commit() + ", built: " + BuildDate + ")"
}

var (
	commit     string
	commitOnce sync.Once
)

// Commit returns GitCommit, falling back to the VCS revision recorded by the
// Go toolchain when the binary was built without -ldflags.
func Commit() string {
	commitOnce.Do(func() {
		commit = GitCommit
		if commit != "unknown" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				commit = s.Value[:12]
			}
		}
	})
	return commit
}

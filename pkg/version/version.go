// Package version holds memvault build metadata.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at link time:
//
//	-ldflags "-X github.com/memvault/memvault/pkg/version.Version=v1.2.0"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(info)
	}
}

// fromBuildInfo fills values the linker did not set from the module
// version and VCS stamps the go tool embeds.
func fromBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && GitCommit == "unknown":
			GitCommit = s.Value
			if len(GitCommit) > 12 {
				GitCommit = GitCommit[:12]
			}
		case s.Key == "vcs.time" && BuildTime == "unknown":
			BuildTime = s.Value
		case s.Key == "vcs.modified" && s.Value == "true" && GitCommit != "unknown":
			GitCommit += "-dirty"
		}
	}
}

// Info returns the build metadata keyed for JSON output.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
		"go_version": GoVersion,
	}
}

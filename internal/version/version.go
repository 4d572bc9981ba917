// Package version reports the build version of apsta binaries.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Version and Commit can be set at build time:
//
//	go build -ldflags="-X github.com/muurk/apsta/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/apsta/internal/version.Commit=abc1234"
//
// Unset values are filled from the module build info, then from a dev stamp.
var (
	Version = ""
	Commit  = ""
)

// Info is the version block reported by the status server.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			fillFromSettings(info.Settings)
		}
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fillFromSettings copies VCS details from build settings into the unset
// package variables.
func fillFromSettings(settings []debug.BuildSetting) {
	values := make(map[string]string, len(settings))
	for _, s := range settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			values[s.Key] = s.Value
		}
	}

	if rev := values["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if values["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}

	if Version == "" && values["vcs.time"] != "" {
		if t, err := time.Parse(time.RFC3339, values["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Current returns the resolved version information.
func Current() Info {
	return Info{Version: Version, Commit: Commit}
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

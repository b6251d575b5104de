// Package misc keeps build information and small helpers which do not belong
// anywhere else.
package misc

import "runtime/debug"

const appName = "rib"

var (
	version = "development"
	gitHash = "unknown"
)

// GetAppName returns short program name used for logging and temporary files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version set at build time, falling back on
// module information when built with "go install".
func GetVersion() string {
	if version != "development" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// GetGitHash returns vcs revision recorded at build time.
func GetGitHash() string {
	if gitHash != "unknown" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return gitHash
}

package version

import (
	"fmt"
	"runtime/debug"
)

// Set via -ldflags at release build time; development builds fall back
// to whatever debug.ReadBuildInfo can recover.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// GetVersion returns the bare version string.
func GetVersion() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "development"
}

// GetFullVersion returns the version annotated with the commit and build
// date when they are known.
func GetFullVersion() string {
	commit := buildSetting("vcs.revision", Commit)
	if commit == "unknown" || len(commit) <= 7 {
		return GetVersion()
	}
	if date := buildSetting("vcs.time", Date); date != "unknown" {
		return fmt.Sprintf("%s (%s, built %s)", GetVersion(), commit[:7], date)
	}
	return fmt.Sprintf("%s (%s)", GetVersion(), commit[:7])
}

// buildSetting prefers the ldflags-injected value and falls back to the
// named build info setting.
func buildSetting(key, injected string) string {
	if injected != "unknown" && injected != "" {
		return injected
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == key {
				return setting.Value
			}
		}
	}
	return "unknown"
}

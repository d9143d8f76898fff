package version

import (
	"strings"
	"testing"
)

func TestGetVersionPrefersInjected(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v1.2.3"
	if got := GetVersion(); got != "v1.2.3" {
		t.Errorf("GetVersion() = %q, want injected version", got)
	}

	Version = "dev"
	if got := GetVersion(); got == "" {
		t.Error("GetVersion() empty for development build")
	}
}

func TestGetFullVersionAnnotatesCommit(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })

	Version = "v1.2.3"
	Commit = "0123456789abcdef"
	Date = "2026-01-01T00:00:00Z"

	got := GetFullVersion()
	if !strings.Contains(got, "v1.2.3") || !strings.Contains(got, "0123456") {
		t.Errorf("GetFullVersion() = %q, want version and short commit", got)
	}
	if strings.Contains(got, "0123456789abcdef") {
		t.Errorf("GetFullVersion() = %q, commit not shortened", got)
	}

	Commit = "unknown"
	Date = "unknown"
	if got := GetFullVersion(); got != "v1.2.3" {
		t.Errorf("GetFullVersion() without commit = %q, want bare version", got)
	}
}

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version == "" {
		t.Error("expected non-empty version")
	}
	if info.GoVersion == "" {
		t.Error("expected non-empty go version")
	}
	if !strings.Contains(info.Platform, runtime.GOOS) {
		t.Errorf("expected platform to contain %s, got %s", runtime.GOOS, info.Platform)
	}
}

func TestString(t *testing.T) {
	s := String()

	if !strings.Contains(s, "histreamer") {
		t.Errorf("expected string to contain 'histreamer', got %s", s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("expected string to contain version %q, got %s", Version, s)
	}
}

func TestShort_FallsBackToVersionWithoutCommit(t *testing.T) {
	if got := Short(); got == "" {
		t.Error("expected non-empty short version string")
	}
	if Commit == "unknown" {
		if got := Short(); got != Version {
			t.Errorf("expected Short() to fall back to %q without a commit, got %q", Version, got)
		}
	}
}

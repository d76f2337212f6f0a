package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" {
		t.Error("version must not be empty")
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Errorf("unexpected Go version %q", info.GoVersion)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("unexpected platform %q", info.Platform)
	}
}

func TestShortRevision(t *testing.T) {
	if got := shortRevision("3f2a9c1d8e7b"); got != "3f2a9c1" {
		t.Errorf("shortRevision = %q", got)
	}
	if got := shortRevision("abc"); got != "abc" {
		t.Errorf("shortRevision = %q", got)
	}
}

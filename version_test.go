package ulet

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	if !strings.HasPrefix(v, "ulet ") {
		t.Errorf("Expected version string to start with 'ulet ', got %q", v)
	}
	if !strings.Contains(v, Version) {
		t.Errorf("Expected version string to contain %q, got %q", Version, v)
	}
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("Expected %q to be set", key)
		}
	}
	if info["version"] != Version {
		t.Errorf("Expected version %q, got %q", Version, info["version"])
	}
}

package info

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, "driftbase/") {
		t.Errorf("unexpected user agent: %q", ua)
	}
	if strings.Contains(ua, " ") {
		t.Errorf("user agent must not contain spaces: %q", ua)
	}
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	if info.Name == "" {
		t.Error("name must not be empty")
	}
	if info.Version == "" {
		t.Error("version must not be empty")
	}
	if info.Commit == "" {
		t.Error("commit must have a fallback value")
	}
}

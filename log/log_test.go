package log

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
)

// captureOutput redirects log output for the duration of fn. Tests share the
// package-level writer, so capture is serialized.
var captureLock sync.Mutex

func captureOutput(t *testing.T, level Severity, fn func()) string {
	t.Helper()
	captureLock.Lock()
	defer captureLock.Unlock()

	buf := &bytes.Buffer{}
	SetOutput(buf)
	previous := GetLogLevel()
	SetLogLevel(level)
	defer func() {
		SetLogLevel(previous)
		SetOutput(os.Stderr)
	}()

	fn()
	return buf.String()
}

func TestLevels(t *testing.T) {
	out := captureOutput(t, WarningLevel, func() {
		Debugf("quiet %d", 1)
		Infof("quiet %d", 2)
		Warningf("loud %d", 3)
		Errorf("loud %d", 4)
	})

	if strings.Contains(out, "quiet") {
		t.Errorf("suppressed levels leaked into output: %q", out)
	}
	if !strings.Contains(out, "loud 3") || !strings.Contains(out, "loud 4") {
		t.Errorf("enabled levels missing from output: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "ERRO") {
		t.Errorf("level tags missing from output: %q", out)
	}
}

func TestFormat(t *testing.T) {
	out := captureOutput(t, InfoLevel, func() {
		Info("hello")
	})

	if !strings.Contains(out, rightArrow) {
		t.Errorf("missing arrow: %q", out)
	}
	// Caller information points at this test file.
	if !strings.Contains(out, "log_test:") {
		t.Errorf("missing caller info: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Severity{
		"trace":    TraceLevel,
		"debug":    DebugLevel,
		"info":     InfoLevel,
		"Warning":  WarningLevel,
		"ERROR":    ErrorLevel,
		"critical": CriticalLevel,
		"bogus":    0,
		"":         0,
	}
	for name, expected := range cases {
		if got := ParseLevel(name); got != expected {
			t.Errorf("ParseLevel(%q) = %d, expected %d", name, got, expected)
		}
	}
}

func TestMute(t *testing.T) {
	out := captureOutput(t, InfoLevel, func() {
		Mute()
		Error("should not appear")
		Unmute()
		Error("should appear")
	})

	if strings.Contains(out, "should not appear") {
		t.Errorf("muted output leaked: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("unmuted output missing: %q", out)
	}
}

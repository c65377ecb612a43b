package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(LevelInfo)
	defer SetLevel(LevelInfo)

	Debug("hidden debug line", "k", 1)
	Info("visible info line", "frames", 3)
	Error("visible error line", errors.New("boom"), "range", "0-3")

	out := buf.String()
	if strings.Contains(out, "hidden debug line") {
		t.Errorf("debug line written at INFO level:\n%s", out)
	}
	if !strings.Contains(out, "visible info line") || !strings.Contains(out, "frames=3") {
		t.Errorf("info line missing or lacks kv pairs:\n%s", out)
	}
	if !strings.Contains(out, "err=boom") {
		t.Errorf("error line lacks err attribute:\n%s", out)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible", "odd")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug line not written at DEBUG level: %q", buf.String())
	}
	if strings.Contains(buf.String(), "BADKEY") {
		t.Errorf("odd trailing value should be dropped: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"chatty", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

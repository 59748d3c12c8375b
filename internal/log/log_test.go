package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "info", true)
		l.Debug("hidden")
		l.Info("tick", "component", "control")

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
		}
		if rec["msg"] != "tick" || rec["component"] != "control" {
			t.Errorf("record = %v", rec)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf, "debug", false).Debug("shown")
		if !strings.Contains(buf.String(), "msg=shown") {
			t.Errorf("output = %q", buf.String())
		}
	})
}

func TestComponent(t *testing.T) {
	if Component("narration") == nil {
		t.Fatal("Component returned nil")
	}
}

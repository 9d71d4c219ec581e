package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	// Create a buffer to capture output
	var buf bytes.Buffer

	// Save original logger
	oldLogger := defaultLogger

	// Create a new logger that writes to the buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	// Execute function
	f()

	// Restore original logger
	defaultLogger = oldLogger

	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{"debug json", LevelDebug, FormatJSON},
		{"info text", LevelInfo, FormatText},
		{"warn json", LevelWarn, FormatJSON},
		{"error text", LevelError, FormatText},
		{"unknown level", Level(99), FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if GetLogger() == nil {
				t.Error("GetLogger() = nil after InitLogger")
			}
		})
	}

	// Restore defaults for other tests
	InitLogger(LevelInfo, FormatJSON)
}

func TestLogHelpers(t *testing.T) {
	out := captureLogOutput(func() {
		Debug("debug message", "k", "v")
		Info("info message")
		Warn("warn message")
		Error("error message")
	})

	for _, want := range []string{"debug message", "info message", "warn message", "error message"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestFileEvent(t *testing.T) {
	out := captureLogOutput(func() {
		FileEvent("create", "memvfs-test", "cool.db", "size", 4096)
	})

	for _, want := range []string{"file_event", `"event":"create"`, `"vfs":"memvfs-test"`, `"file":"cool.db"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q, got %s", want, out)
		}
	}
}

func TestStoreEvent(t *testing.T) {
	out := captureLogOutput(func() {
		StoreEvent("put", "db/3", "size", 65536)
	})

	for _, want := range []string{"store_event", `"event":"put"`, `"key":"db/3"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q, got %s", want, out)
		}
	}
}

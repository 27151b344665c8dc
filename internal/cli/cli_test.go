package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/vietddude/arbiter/internal/core/recovery"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		want  slog.Level
	}{
		{"", false, slog.LevelInfo},
		{"info", false, slog.LevelInfo},
		{"debug", false, slog.LevelDebug},
		{"warn", false, slog.LevelWarn},
		{"error", true, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := logLevel(tt.level, tt.debug); got != tt.want {
			t.Errorf("logLevel(%q, %v) = %v, want %v", tt.level, tt.debug, got, tt.want)
		}
	}
}

func TestPrintRecords(t *testing.T) {
	var buf bytes.Buffer
	printRecords(&buf, []recovery.Record{
		{Key: recovery.Key{Component: "TaskScheduler", Operation: "task_find_products"}, Count: 4},
		{Key: recovery.Key{Component: "System", Operation: "login"}, Count: 1},
	}, 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "find_products") || !strings.Contains(lines[1], "critical") {
		t.Errorf("unexpected first row: %q", lines[1])
	}
	if strings.Contains(lines[1], "task_find_products") {
		t.Errorf("task prefix not trimmed: %q", lines[1])
	}
	if !strings.Contains(lines[2], "degraded") {
		t.Errorf("unexpected second row: %q", lines[2])
	}
}

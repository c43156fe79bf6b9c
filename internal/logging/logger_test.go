package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{" Debug ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLogger_Filtering(t *testing.T) {
	tests := []struct {
		level              string
		trace, debug, info bool
	}{
		{"info", false, false, true},
		{"debug", false, true, true},
		{"trace", true, true, true},
		{"error", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)
			logger.Log(context.Background(), LevelTrace, "infection")
			logger.Debug("day complete")
			logger.Info("simulation starting")

			out := buf.String()
			if got := strings.Contains(out, "infection"); got != tt.trace {
				t.Errorf("trace visible = %v, want %v", got, tt.trace)
			}
			if got := strings.Contains(out, "day complete"); got != tt.debug {
				t.Errorf("debug visible = %v, want %v", got, tt.debug)
			}
			if got := strings.Contains(out, "simulation starting"); got != tt.info {
				t.Errorf("info visible = %v, want %v", got, tt.info)
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("trace", &buf).Log(context.Background(), LevelTrace, "infection", "day", 3)
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("output %q lacks level=TRACE", buf.String())
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLogger("trace", &buf).Log(context.Background(), LevelTrace, "infection", "day", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["level"] != "TRACE" || rec["msg"] != "infection" || rec["day"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
}

func TestNewDecisionLogger_InfoIsNil(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "info")
	if dl != nil {
		t.Fatal("NewDecisionLogger(info) != nil")
	}
	dl.Log(map[string]any{"event": "policy_open"})
	if dl.Count() != 0 || dl.Path() != "" {
		t.Error("nil logger reported activity")
	}
	if err := dl.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, DecisionsFile)); err == nil {
		t.Error("decision file created at info level")
	}
}

func readDecisions(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestDecisionLogger_Writes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	dl := NewDecisionLogger(dir, "debug")
	if dl == nil {
		t.Fatal("NewDecisionLogger(debug) = nil")
	}

	event := map[string]any{"event": "policy_restrict", "day": 15}
	dl.Log(event)
	dl.Log(map[string]any{"event": "policy_open", "day": 30})
	if _, ok := event["time"]; ok {
		t.Error("Log mutated the caller's map")
	}
	if dl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", dl.Count())
	}
	if err := dl.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	dl.Log(map[string]any{"event": "late"})

	lines := readDecisions(t, dl.Path())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["event"] != "policy_restrict" || lines[1]["day"] != float64(30) {
		t.Errorf("lines = %v", lines)
	}
	if _, ok := lines[0]["time"]; !ok {
		t.Error("time field missing")
	}

	info, err := os.Stat(dl.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestDecisionLogger_Concurrent(t *testing.T) {
	dl := NewDecisionLogger(t.TempDir(), "trace")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 25 {
				dl.Log(map[string]any{"worker": i, "n": j})
			}
		}()
	}
	wg.Wait()
	dl.Close()

	if got := len(readDecisions(t, dl.Path())); got != 200 {
		t.Errorf("got %d lines, want 200", got)
	}
}

func TestDecisionLogger_NilMap(t *testing.T) {
	dl := NewDecisionLogger(t.TempDir(), "debug")
	dl.Log(nil)
	dl.Close()
	lines := readDecisions(t, dl.Path())
	if len(lines) != 1 || len(lines[0]) != 1 {
		t.Errorf("lines = %v, want a single time field", lines)
	}
}

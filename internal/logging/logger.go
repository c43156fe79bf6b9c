// Package logging provides the two outputs of an episim run:
//   - a leveled slog.Logger on stderr for operational messages
//   - a DecisionLogger appending restriction policy decisions to
//     <output>/decisions.jsonl
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug. At this level every single infection is
// logged.
const LevelTrace = slog.LevelDebug - 4

// DecisionsFile is the name of the decision log inside the output dir.
const DecisionsFile = "decisions.jsonl"

// ParseLevel maps "trace", "debug", "info", "warn" and "error" (any case)
// to a slog.Level. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				a.Value = slog.StringValue("TRACE")
			}
			return a
		},
	}
}

// NewLogger creates a text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(level)))
}

// NewJSONLogger creates a logger writing one JSON object per record.
func NewJSONLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(level)))
}

// DecisionLogger appends policy decisions as JSON lines. It is safe for
// concurrent use, and a nil *DecisionLogger discards everything.
type DecisionLogger struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
	n    int
}

// NewDecisionLogger opens dir/decisions.jsonl for append when level is
// debug or more verbose. It returns nil at info level or when the file
// cannot be created.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil
	}
	path := filepath.Join(dir, DecisionsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil
	}
	return &DecisionLogger{f: f, enc: json.NewEncoder(f), path: path}
}

// Log writes one decision with a "time" field added. The caller's map is
// left untouched.
func (dl *DecisionLogger) Log(decision map[string]any) {
	if dl == nil {
		return
	}
	entry := maps.Clone(decision)
	if entry == nil {
		entry = make(map[string]any, 1)
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.f == nil {
		return
	}
	if err := dl.enc.Encode(entry); err == nil {
		dl.n++
	}
}

// Path returns the file written to, or "" for a nil logger.
func (dl *DecisionLogger) Path() string {
	if dl == nil {
		return ""
	}
	return dl.path
}

// Count returns the number of decisions written so far.
func (dl *DecisionLogger) Count() int {
	if dl == nil {
		return 0
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.n
}

// Close closes the file. Later calls to Log are dropped.
func (dl *DecisionLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.f == nil {
		return nil
	}
	err := dl.f.Close()
	dl.f = nil
	return err
}

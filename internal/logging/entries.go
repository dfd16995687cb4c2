// pattern: Functional Core

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Level is a normalized, upper-case log level name.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// rank orders levels so callers can filter by severity.
func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// AtLeast reports whether l is as severe as min.
func (l Level) AtLeast(min Level) bool {
	return l.rank() >= min.rank()
}

// LogEntry is one decoded log record as seen by in-process consumers
// (the TUI status line and tests).
type LogEntry struct {
	Time    time.Time
	Level   Level
	Scope   string
	Message string
	Fields  map[string]any
}

// String renders the entry on one line. Fields are sorted by key so the
// output is stable.
func (e LogEntry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %-5s [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Scope, e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, e.Fields[k])
	}
	return sb.String()
}

// InScope reports whether the entry belongs to scope or one of its
// children. Scopes are dot separated, so "stream" covers "stream.ab12"
// but not "streamer". An empty scope matches everything.
func (e LogEntry) InScope(scope string) bool {
	if scope == "" || e.Scope == scope {
		return true
	}
	return strings.HasPrefix(e.Scope, scope+".")
}

// ParseLevel maps zap/slog level spellings onto a Level.
// Unknown input is treated as INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "dpanic", "panic", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

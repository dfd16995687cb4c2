// pattern: Imperative Shell

package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// NopLogger returns a logger that discards all output.
func NopLogger() *ScopedLogger {
	return &ScopedLogger{}
}

// TestLogManager is a Provider for tests. Records go only to an in-memory
// channel, at debug level.
type TestLogManager struct {
	*registry
	sink *ChannelSink
}

// NewTestLogManager returns a TestLogManager buffering up to size entries.
func NewTestLogManager(size int) *TestLogManager {
	sink := NewChannelSink(size)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, zapcore.DebugLevel)
	return &TestLogManager{
		registry: newRegistry(core, zapcore.DebugLevel),
		sink:     sink,
	}
}

// For returns the cached logger for scope.
func (m *TestLogManager) For(scope string) *ScopedLogger {
	return m.get(scope)
}

// Channel returns the recorded entries.
func (m *TestLogManager) Channel() <-chan LogEntry {
	return m.sink.Entries()
}

// Drain returns every entry buffered so far without blocking.
func (m *TestLogManager) Drain() []LogEntry {
	var out []LogEntry
	for {
		select {
		case e, ok := <-m.sink.Entries():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

// WaitFor blocks until an entry with msg arrives or timeout passes.
func (m *TestLogManager) WaitFor(msg string, timeout time.Duration) (LogEntry, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-m.sink.Entries():
			if !ok {
				return LogEntry{}, false
			}
			if e.Message == msg {
				return e, true
			}
		case <-deadline:
			return LogEntry{}, false
		}
	}
}

// Close closes the underlying channel.
func (m *TestLogManager) Close() error {
	return m.sink.Close()
}

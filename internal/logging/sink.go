// pattern: Imperative Shell

package logging

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSinkClosed is returned by ChannelSink.Write after Close.
var ErrSinkClosed = errors.New("channel sink closed")

// ChannelSink is a zapcore.WriteSyncer that decodes each JSON record into a
// LogEntry and publishes it on a buffered channel. It never blocks the
// logger: when the buffer is full the oldest entry is discarded.
type ChannelSink struct {
	mu      sync.Mutex
	ch      chan LogEntry
	closed  bool
	dropped atomic.Int64
}

// NewChannelSink returns a sink buffering up to size entries.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 1
	}
	return &ChannelSink{ch: make(chan LogEntry, size)}
}

// Write implements io.Writer.
func (s *ChannelSink) Write(p []byte) (int, error) {
	entry, ok := decodeEntry(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSinkClosed
	}
	if ok {
		s.publish(entry)
	}
	return len(p), nil
}

// Send publishes an already decoded entry.
func (s *ChannelSink) Send(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.publish(entry)
	}
}

// publish must be called with s.mu held.
func (s *ChannelSink) publish(entry LogEntry) {
	for {
		select {
		case s.ch <- entry:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns how many entries were discarded because the buffer was full.
func (s *ChannelSink) Dropped() int64 {
	return s.dropped.Load()
}

// Sync implements zapcore.WriteSyncer.
func (s *ChannelSink) Sync() error { return nil }

// Close closes the entry channel. Repeated calls are no-ops.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Entries returns the receive side of the sink.
func (s *ChannelSink) Entries() <-chan LogEntry {
	return s.ch
}

// decodeEntry turns one line of zap JSON output into a LogEntry.
// Keys are the ones configured in encoderConfig.
func decodeEntry(p []byte) (LogEntry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return LogEntry{}, false
	}

	entry := LogEntry{
		Time:  time.Now(),
		Level: LevelInfo,
		Scope: "app",
	}
	if v, ok := raw["msg"].(string); ok {
		entry.Message = v
	}
	if v, ok := raw["level"].(string); ok {
		entry.Level = ParseLevel(v)
	}
	if v, ok := raw["logger"].(string); ok && v != "" {
		entry.Scope = v
	}
	if v, ok := raw["ts"].(float64); ok {
		sec := int64(v)
		entry.Time = time.Unix(sec, int64((v-float64(sec))*1e9))
	}

	for _, k := range []string{"msg", "level", "logger", "ts", "caller", "stacktrace"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}

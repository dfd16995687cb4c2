// pattern: Imperative Shell

package logging

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures a Manager.
type Config struct {
	Path       string // log file, rotated by lumberjack
	Level      string // debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	BufferSize int // entries kept for in-process consumers
}

func (c *Config) applyDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 5
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 14
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
}

// Provider hands out scoped loggers. Manager and TestLogManager both
// satisfy it.
type Provider interface {
	For(scope string) *ScopedLogger
}

// ScopedLogger is the logger handed to components. The zero value and the
// result of NopLogger discard everything.
type ScopedLogger struct {
	slog  *slog.Logger
	scope string
}

func (l *ScopedLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *ScopedLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *ScopedLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *ScopedLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *ScopedLogger) log(level slog.Level, msg string, args []any) {
	if l == nil || l.slog == nil {
		return
	}
	l.slog.Log(context.Background(), level, msg, args...)
}

// With returns a logger that adds args to every record.
func (l *ScopedLogger) With(args ...any) *ScopedLogger {
	if l == nil || l.slog == nil {
		return l
	}
	return &ScopedLogger{slog: l.slog.With(args...), scope: l.scope}
}

// Scope returns the dotted scope the logger was created for.
func (l *ScopedLogger) Scope() string {
	if l == nil {
		return ""
	}
	return l.scope
}

// registry caches one ScopedLogger per scope on top of a zap core.
type registry struct {
	base  *zap.Logger
	level zapcore.Level

	mu      sync.RWMutex
	loggers map[string]*ScopedLogger
}

func newRegistry(core zapcore.Core, level zapcore.Level) *registry {
	return &registry{
		base:    zap.New(core),
		level:   level,
		loggers: make(map[string]*ScopedLogger),
	}
}

func (r *registry) get(scope string) *ScopedLogger {
	r.mu.RLock()
	l, ok := r.loggers[scope]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loggers[scope]; ok {
		return l
	}
	named := r.base.Named(scope)
	l = &ScopedLogger{
		slog:  slog.New(&zapHandler{zap: named, level: r.level}),
		scope: scope,
	}
	r.loggers[scope] = l
	return l
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}

// Manager writes JSON records to a rotating file and mirrors them onto a
// ChannelSink for in-process consumers.
type Manager struct {
	*registry
	file *lumberjack.Logger
	sink *ChannelSink
}

// NewManager opens the log file described by cfg.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, errors.New("logging: path is required")
	}
	cfg.applyDefaults()

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = zapcore.InfoLevel
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	sink := NewChannelSink(cfg.BufferSize)
	enc := encoderConfig()

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, level),
	)

	return &Manager{
		registry: newRegistry(core, level),
		file:     file,
		sink:     sink,
	}, nil
}

// For returns the cached logger for scope.
func (m *Manager) For(scope string) *ScopedLogger {
	return m.get(scope)
}

// Entries exposes the mirrored records.
func (m *Manager) Entries() <-chan LogEntry {
	return m.sink.Entries()
}

// Sync flushes buffered records.
func (m *Manager) Sync() error {
	return m.base.Sync()
}

// Close flushes and releases the log file.
func (m *Manager) Close() error {
	_ = m.Sync()
	_ = m.sink.Close()
	return m.file.Close()
}

// zapHandler lets slog records flow into a zap logger.
type zapHandler struct {
	zap   *zap.Logger
	level zapcore.Level
	attrs []zap.Field
}

func (h *zapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return zapLevel(level) >= h.level
}

func (h *zapHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]zap.Field, 0, len(h.attrs)+r.NumAttrs())
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, attrField(a))
		return true
	})
	if ce := h.zap.Check(zapLevel(r.Level), r.Message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]zap.Field, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	for _, a := range attrs {
		next = append(next, attrField(a))
	}
	return &zapHandler{zap: h.zap, level: h.level, attrs: next}
}

func (h *zapHandler) WithGroup(name string) slog.Handler {
	return &zapHandler{zap: h.zap.Named(name), level: h.level, attrs: h.attrs}
}

func attrField(a slog.Attr) zap.Field {
	if err, ok := a.Value.Any().(error); ok {
		return zap.String(a.Key, err.Error())
	}
	return zap.Any(a.Key, a.Value.Any())
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

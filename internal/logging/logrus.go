// pattern: Imperative Shell

package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// CaptureLogrus routes the global logrus logger into l. The compose loader
// reports deprecations through logrus, which would otherwise write to
// stderr underneath the TUI.
func CaptureLogrus(l *ScopedLogger) {
	logrus.SetOutput(io.Discard)
	logrus.AddHook(&logrusHook{log: l})
}

type logrusHook struct {
	log *ScopedLogger
}

func (h *logrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *logrusHook) Fire(e *logrus.Entry) error {
	args := make([]any, 0, 2*len(e.Data))
	for k, v := range e.Data {
		args = append(args, k, v)
	}
	switch {
	case e.Level <= logrus.ErrorLevel:
		h.log.Error(e.Message, args...)
	case e.Level == logrus.WarnLevel:
		h.log.Warn(e.Message, args...)
	case e.Level == logrus.InfoLevel:
		h.log.Info(e.Message, args...)
	default:
		h.log.Debug(e.Message, args...)
	}
	return nil
}

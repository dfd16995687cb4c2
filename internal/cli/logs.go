// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bunshinctl/internal/api"
	"bunshinctl/internal/controller"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/stream"
)

// LogsConfig configures StreamLogs.
type LogsConfig struct {
	Stack     string
	Container string // empty selects the first container
	NoColor   bool
	Writer    io.Writer
	ErrWriter io.Writer
	Log       *logging.ScopedLogger
}

// StreamLogs follows the log stream of one container and writes each frame
// as a line. It blocks until the context is cancelled or the server ends the
// stream. Returns nil on clean exit (context cancel, normal close, no
// containers) and the transport error otherwise.
func StreamLogs(ctx context.Context, client *api.Client, dialer stream.Dialer, cfg LogsConfig) error {
	if cfg.Log == nil {
		cfg.Log = logging.NopLogger()
	}
	sink := &lineSink{out: cfg.Writer, errOut: cfg.ErrWriter, noColor: cfg.NoColor, log: cfg.Log}
	f := newFollower(client, dialer, cfg.Log, sink, nil)
	defer f.ctrl.Teardown()

	opened, err := f.open(ctx, controller.TabLogs, cfg.Stack, cfg.Container)
	if err != nil {
		return fmt.Errorf("open log stream: %w", err)
	}
	if !opened {
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-f.ended:
		if err != nil {
			return fmt.Errorf("log stream: %w", err)
		}
		return nil
	}
}

// lineSink prints log frames. Failures are returned by StreamLogs rather
// than printed.
type lineSink struct {
	out     io.Writer
	errOut  io.Writer
	noColor bool
	log     *logging.ScopedLogger
}

func (s *lineSink) Connecting(epoch, connID string) {}

func (s *lineSink) Line(connID string, frame []byte) {
	line := string(frame)
	if s.noColor {
		line = StripANSI(line)
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := io.WriteString(s.out, line); err != nil {
		s.log.Warn("write log line failed", "conn", connID, "error", err)
	}
}

func (s *lineSink) Failed(connID string, err error) {}

func (s *lineSink) NoContainers(epoch string) {
	fmt.Fprintln(s.errOut, "No containers available.")
}

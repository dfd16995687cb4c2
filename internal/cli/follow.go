// pattern: Imperative Shell
package cli

import (
	"context"

	"bunshinctl/internal/api"
	"bunshinctl/internal/controller"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/stream"
)

// follower drives one stream of one stack through a Controller, the same
// way the TUI does, for the logs and shell commands.
type follower struct {
	ctrl *controller.Controller
	// ended receives the end of the connection: nil for a normal close by
	// the server, the stream or dial error otherwise.
	ended chan error
}

func newFollower(client *api.Client, dialer stream.Dialer, log *logging.ScopedLogger, logs controller.LogSink, shell controller.ShellSink) *follower {
	f := &follower{ended: make(chan error, 1)}
	f.ctrl = controller.New(controller.Options{
		Backend: client,
		Dialer:  dialer,
		BaseURL: client.BaseURL(),
		Logs:    logs,
		Shell:   shell,
		Log:     log,
		OnEnd: func(_ stream.Kind, _ string, err error) {
			select {
			case f.ended <- err:
			default:
			}
		},
	})
	return f
}

// open selects the stack, aims tab's stream at container (the first one
// when empty or unknown) and shows tab. It reports whether a connection
// is open; false with a nil error means the stack has no containers.
func (f *follower) open(ctx context.Context, tab controller.Tab, stack, container string) (bool, error) {
	kind, _ := tab.Kind()
	if _, err := f.ctrl.SelectStack(ctx, stack); err != nil {
		return false, err
	}
	if container != "" {
		if err := f.ctrl.SelectContainer(ctx, kind, container); err != nil {
			return false, err
		}
	}
	if err := f.ctrl.SelectTab(ctx, tab); err != nil {
		return false, err
	}
	if f.ctrl.ConnID(kind) != "" {
		return true, nil
	}
	select {
	case err := <-f.ended:
		return false, err
	default:
		return false, nil
	}
}

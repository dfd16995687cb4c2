// pattern: Imperative Shell
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/x/term"

	"bunshinctl/internal/api"
	"bunshinctl/internal/logging"
)

// Delegate builds a REST client for the configured bunshin server and runs
// a command against it. It handles error classification (unreachable
// server vs other errors) and exit code logic.
type Delegate struct {
	// Server is the backend base URL.
	Server string

	// Timeout bounds each request. Defaults to 10 seconds.
	Timeout time.Duration

	// Log receives client diagnostics. Defaults to a no-op logger.
	Log *logging.ScopedLogger

	// ExitFunc is called to exit the process. Defaults to os.Exit.
	// Overridable for testing.
	ExitFunc func(int)

	// Stderr is where error messages are written. Defaults to os.Stderr.
	// Overridable for testing.
	Stderr io.Writer
}

func (d *Delegate) applyDefaults() {
	if d.ExitFunc == nil {
		d.ExitFunc = os.Exit
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.Timeout == 0 {
		d.Timeout = 10 * time.Second
	}
	if d.Log == nil {
		d.Log = logging.NopLogger()
	}
}

// Client returns a client for the server. On a malformed address it prints
// the error, calls ExitFunc(1) and returns nil.
func (d *Delegate) Client() *api.Client {
	d.applyDefaults()
	client, err := api.NewClient(d.Server, d.Timeout, d.Log)
	if err != nil {
		fmt.Fprintf(d.Stderr, "error: %v\n", err)
		d.ExitFunc(1)
		return nil
	}
	return client
}

// Run invokes fn with a client and a context bounded by Timeout.
//
// Exit codes:
// - 2: the server could not be reached
// - 1: any other error (bad address, non-2xx answer, fn failed)
// - 0: success (fn returned nil)
func (d *Delegate) Run(fn func(context.Context, *api.Client) error) {
	client := d.Client()
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()

	if err := fn(ctx, client); err != nil {
		d.Fail(err)
	}
}

// Fail reports err and exits with the code for its class.
func (d *Delegate) Fail(err error) {
	d.applyDefaults()
	fmt.Fprintf(d.Stderr, "error: %s\n", describe(err))
	d.ExitFunc(ExitCode(err))
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) {
		return 2
	}
	return 1
}

// describe prefers the server's own message for HTTP failures.
func describe(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Body != "" {
		return fmt.Sprintf("server returned %d: %s", se.Code, se.Body)
	}
	if ExitCode(err) == 2 {
		return fmt.Sprintf("cannot reach bunshin server: %v", err)
	}
	return err.Error()
}

// PrintJSON writes v as JSON to w. A terminal gets indented output.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && term.IsTerminal(f.Fd()) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

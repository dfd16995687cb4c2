// pattern: Imperative Shell
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"

	"bunshinctl/internal/api"
	"bunshinctl/internal/controller"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/stream"
)

// detachKey is ctrl+].
const detachKey = 0x1d

// ShellConfig configures AttachShell.
type ShellConfig struct {
	Stack     string
	Container string // empty selects the first container
	In        io.Reader
	Out       io.Writer
	Log       *logging.ScopedLogger
}

// AttachShell bridges In and Out to the shell stream of one container.
// Input is forwarded as read; ctrl+] or EOF on In detaches. Returns nil on
// detach, context cancel or a normal close by the server.
func AttachShell(ctx context.Context, client *api.Client, dialer stream.Dialer, cfg ShellConfig) error {
	f := newFollower(client, dialer, cfg.Log, nil, outputSink{out: cfg.Out})
	defer f.ctrl.Teardown()

	opened, err := f.open(ctx, controller.TabShell, cfg.Stack, cfg.Container)
	if err != nil {
		return fmt.Errorf("open shell: %w", err)
	}
	if !opened {
		return nil
	}

	input := make(chan []byte)
	detached := make(chan struct{})
	go readInput(cfg.In, input, detached)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-detached:
			return nil
		case data := <-input:
			f.ctrl.SendInput(data)
		case err := <-f.ended:
			if err != nil {
				return fmt.Errorf("shell stream: %w", err)
			}
			return nil
		}
	}
}

// outputSink gives every shell connection the same terminal: Out itself.
type outputSink struct{ out io.Writer }

func (s outputSink) NewTerminal(epoch, connID string, cols, rows int) controller.Terminal {
	return writerTerminal{s.out}
}

func (s outputSink) NoContainers(epoch string) {
	fmt.Fprintln(s.out, "No containers available.")
}

type writerTerminal struct{ w io.Writer }

func (t writerTerminal) Write(p []byte) { _, _ = t.w.Write(p) }

func (writerTerminal) Dispose() {}

// readInput forwards chunks of r until the detach key or EOF. The goroutine
// may stay blocked in Read after detaching; the process is about to exit
// in that case.
func readInput(r io.Reader, out chan<- []byte, detached chan<- struct{}) {
	defer close(detached)
	buf := make([]byte, 1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			i := bytes.IndexByte(chunk, detachKey)
			if i >= 0 {
				chunk = chunk[:i]
			}
			if len(chunk) > 0 {
				out <- bytes.Clone(chunk)
			}
			if i >= 0 {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// makeRaw puts in into raw mode when it is a terminal and returns the
// function restoring it.
func makeRaw(in io.Reader) func() {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return func() {}
	}
	state, err := term.MakeRaw(f.Fd())
	if err != nil {
		return func() {}
	}
	return func() { _ = term.Restore(f.Fd(), state) }
}

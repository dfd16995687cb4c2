// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"bunshinctl/internal/config"
	"bunshinctl/internal/instance"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/stream"
)

// Options carries what every command needs. Zero writers and ExitFunc
// fall back to the process streams and os.Exit.
type Options struct {
	Version   string
	ConfigDir string
	Config    config.Config
	Logs      logging.Provider
	// NoColor is the persisted no-color preference.
	NoColor bool

	// Dialer opens stream connections. Defaults to a WebSocket dialer.
	Dialer stream.Dialer

	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	ExitFunc func(int)
}

func (o *Options) applyDefaults() {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.ExitFunc == nil {
		o.ExitFunc = os.Exit
	}
	if o.Dialer == nil {
		o.Dialer = &stream.WSDialer{Log: o.logger("stream")}
	}
}

func (o Options) logger(scope string) *logging.ScopedLogger {
	if o.Logs == nil {
		return logging.NopLogger()
	}
	return o.Logs.For(scope)
}

func (o Options) delegate() *Delegate {
	return &Delegate{
		Server:   o.Config.Server,
		Timeout:  o.Config.RequestTimeout,
		Log:      o.logger("api"),
		ExitFunc: o.ExitFunc,
		Stderr:   o.Stderr,
	}
}

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(opts Options) *App {
	opts.applyDefaults()

	app := NewApp(opts.Version)
	app.Stderr = opts.Stderr
	app.ExitFunc = opts.ExitFunc

	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Print a container's log stream",
		Usage:   "Usage: bunshinctl logs <stack> [--container id] [--no-color]",
		Run: func(args []string) error {
			return runLogsCommand(opts, args)
		},
	})

	app.AddCommand(&Command{
		Name:    "shell",
		Summary: "Attach the terminal to a container shell",
		Usage:   "Usage: bunshinctl shell <stack> [--container id]  (ctrl+] detaches)",
		Run: func(args []string) error {
			return runShellCommand(opts, args)
		},
	})

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove a stale TUI lock file",
		Usage:   "Usage: bunshinctl cleanup",
		Run: func(args []string) error {
			return runCleanupCommand(opts)
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: bunshinctl version",
		Run: func(args []string) error {
			fmt.Fprintln(opts.Stdout, opts.Version)
			return nil
		},
	})

	stackGroup := app.AddGroup("stack", "Manage stacks")
	RegisterStackCommands(stackGroup, opts)

	return app
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runLogsCommand(opts Options, args []string) error {
	const usage = "usage: bunshinctl logs <stack> [--container id] [--no-color]"
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	container := fs.StringP("container", "c", "", "container id (default: first container)")
	noColor := fs.Bool("no-color", false, "strip ANSI color codes")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errors.New(usage)
	}

	d := opts.delegate()
	client := d.Client()
	if client == nil {
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	err := StreamLogs(ctx, client, opts.Dialer, LogsConfig{
		Stack:     fs.Arg(0),
		Container: *container,
		NoColor:   *noColor || opts.NoColor,
		Writer:    opts.Stdout,
		ErrWriter: opts.Stderr,
		Log:       opts.logger("controller"),
	})
	if err != nil {
		d.Fail(err)
	}
	return nil
}

func runShellCommand(opts Options, args []string) error {
	const usage = "usage: bunshinctl shell <stack> [--container id]"
	fs := flag.NewFlagSet("shell", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	container := fs.StringP("container", "c", "", "container id (default: first container)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errors.New(usage)
	}

	d := opts.delegate()
	client := d.Client()
	if client == nil {
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	restore := makeRaw(opts.Stdin)
	err := AttachShell(ctx, client, opts.Dialer, ShellConfig{
		Stack:     fs.Arg(0),
		Container: *container,
		In:        opts.Stdin,
		Out:       opts.Stdout,
		Log:       opts.logger("controller"),
	})
	restore()

	if err != nil {
		d.Fail(err)
	}
	return nil
}

// runCleanupCommand removes the lock file left by a crashed TUI.
func runCleanupCommand(opts Options) error {
	dataDir := config.Dir(opts.ConfigDir)

	// Try to acquire the lock to verify no instance is actually running
	fl, err := instance.Lock(dataDir)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "Error: a bunshinctl TUI appears to be running. Stop it first.\n")
		opts.ExitFunc(1)
		return nil
	}
	instance.Release(dataDir, fl)
	fmt.Fprintln(opts.Stdout, "Cleaned up stale lock file.")
	return nil
}

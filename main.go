// pattern: Imperative Shell
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"bunshinctl/internal/api"
	"bunshinctl/internal/cli"
	"bunshinctl/internal/config"
	"bunshinctl/internal/instance"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/prefs"
	"bunshinctl/internal/stream"
	"bunshinctl/internal/tui"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "config directory (default: ~/.config/bunshinctl)")
	server := flag.StringP("server", "s", "", "bunshin server address (overrides config and "+config.EnvServer+")")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")

	// Override flag.Usage before Parse so --help uses the CLI app's help
	flag.Usage = func() {
		app := cli.BuildApp(cli.Options{Version: version})
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	cfg, err := loadConfig(*configDir, *server, *logLevel, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dataDir := config.Dir(*configDir)
	logManager, err := newLogManager(dataDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	logging.CaptureLogrus(logManager.For("compose"))

	p, err := prefs.Load(prefs.Path(dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load preferences: %v\n", err)
	}

	app := cli.BuildApp(cli.Options{
		Version:   version,
		ConfigDir: *configDir,
		Config:    cfg,
		Logs:      logManager,
		NoColor:   p.NoColor,
	})

	launch := app.Execute(flag.Args())
	if launch {
		runTUI(cfg, dataDir, p, logManager)
	}
	_ = logManager.Close()
}

// loadConfig reads config.yaml and applies the environment and flag
// overrides, in that order.
func loadConfig(configDir, server, logLevel string, getenv func(string) string) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configDir != "" {
		cfg, err = config.LoadFromDir(configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	cfg.ApplyEnv(getenv)
	if server != "" {
		cfg.Server = server
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func newLogManager(dataDir, level string) (*logging.Manager, error) {
	return logging.NewManager(logging.Config{
		Path:       filepath.Join(dataDir, "bunshinctl.log"),
		Level:      level,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 7,
		BufferSize: 1000,
	})
}

// runTUI launches the interactive TUI.
func runTUI(cfg config.Config, dataDir string, p prefs.Prefs, logManager *logging.Manager) {
	appLogger := logManager.For("app")

	// Acquire single-instance lock
	fl, err := instance.Lock(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer instance.Release(dataDir, fl)
	if err := instance.WritePID(dataDir); err != nil {
		appLogger.Warn("failed to write pid file", "error", err)
	}

	client, err := api.NewClient(cfg.Server, cfg.RequestTimeout, logManager.For("api"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	templates, err := config.LoadTemplates(dataDir)
	if err != nil {
		appLogger.Warn("failed to load templates", "error", err)
	}

	appLogger.Info("application starting", "version", version, "server", cfg.Server)

	model := tui.NewModel(cfg, tui.Deps{
		Client:    client,
		Dialer:    &stream.WSDialer{Log: logManager.For("stream")},
		BaseURL:   client.BaseURL(),
		Logs:      logManager,
		Entries:   logManager.Entries(),
		Prefs:     p,
		PrefsPath: prefs.Path(dataDir),
		Templates: templates,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	final, runErr := program.Run()

	// Close whichever model the program ended with; both share the
	// controller and poller, only the prefs may differ.
	if m, ok := final.(tui.Model); ok {
		model = m
	}
	if err := model.Close(); err != nil {
		appLogger.Warn("failed to save preferences", "error", err)
	}

	if runErr != nil {
		appLogger.Error("application exited with error", "error", runErr)
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", runErr)
		instance.Release(dataDir, fl)
		_ = logManager.Close()
		os.Exit(1)
	}

	appLogger.Info("application stopped")
}

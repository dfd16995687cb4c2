package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName = "bunshinctl"

	// EnvServer overrides the configured backend URL.
	EnvServer = "BUNSHIN_SERVER"

	DefaultServer         = "http://127.0.0.1:8080"
	DefaultTheme          = "mocha"
	DefaultPollInterval   = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultTerminalCols   = 80
	DefaultTerminalRows   = 24
)

type Config struct {
	Server         string         `yaml:"server"`
	Theme          string         `yaml:"theme"`
	LogLevel       string         `yaml:"log_level"`
	PollInterval   time.Duration  `yaml:"poll_interval"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	Terminal       TerminalConfig `yaml:"terminal"`
}

// TerminalConfig is the fixed grid of the shell surface.
type TerminalConfig struct {
	Cols int `yaml:"cols"`
	Rows int `yaml:"rows"`
}

var validThemes = map[string]bool{
	"latte":     true,
	"frappe":    true,
	"macchiato": true,
	"mocha":     true,
}

func DefaultConfig() Config {
	return Config{
		Server:         DefaultServer,
		Theme:          DefaultTheme,
		LogLevel:       "info",
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		Terminal: TerminalConfig{
			Cols: DefaultTerminalCols,
			Rows: DefaultTerminalRows,
		},
	}
}

// Load reads config.yaml from the default config directory.
func Load() (Config, error) {
	return LoadFrom(filepath.Join(Dir(""), "config.yaml"))
}

// LoadFromDir reads config.yaml from dir.
func LoadFromDir(dir string) (Config, error) {
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads the file at configPath. A missing file yields the defaults.
// Zero values left by a partial file are filled from the defaults.
func LoadFrom(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", configPath, err)
	}

	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Server == "" {
		c.Server = def.Server
	}
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.Terminal.Cols <= 0 {
		c.Terminal.Cols = def.Terminal.Cols
	}
	if c.Terminal.Rows <= 0 {
		c.Terminal.Rows = def.Terminal.Rows
	}
}

// ApplyEnv applies environment overrides using getenv (os.Getenv in
// production).
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvServer)); v != "" {
		c.Server = v
	}
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("server: missing host in %q", c.Server))
	}

	if !validThemes[c.Theme] {
		errs = append(errs, fmt.Errorf("theme: unknown flavour %q", c.Theme))
	}

	return errors.Join(errs...)
}

// Dir returns override when set, otherwise the XDG config directory for
// bunshinctl.
func Dir(override string) string {
	if override != "" {
		return override
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName)
	}

	return filepath.Join(home, ".config", appName)
}

// Package prefs persists the UI toggles a user flips inside the TUI.
// They live next to config.yaml as prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds the persisted UI preferences.
type Prefs struct {
	// NoColor strips ANSI sequences from streamed log lines.
	NoColor bool `toml:"no_color"`
	// Theme overrides the configured catppuccin flavour when set.
	Theme string `toml:"theme,omitempty"`
	// LastStack is reselected on the next launch if it still exists.
	LastStack string `toml:"last_stack,omitempty"`
}

const fileName = "prefs.toml"

// Path returns the prefs file inside configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, fileName)
}

// Load reads preferences from path. A missing or unreadable file yields
// the zero Prefs; a malformed one is reported so the caller can log it,
// along with the zero Prefs.
func Load(path string) (Prefs, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return Prefs{}, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Prefs{}, nil
		}
		return Prefs{}, nil
	}

	var p Prefs
	if err := toml.Unmarshal(data, &p); err != nil {
		return Prefs{}, fmt.Errorf("parse prefs: %w", err)
	}
	p.Theme = strings.TrimSpace(p.Theme)
	return p, nil
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"bunshinctl/internal/api"
	"bunshinctl/internal/logging"
)

// DefaultDebounce is the quiet period WatchAndPush waits for after the
// last change before saving.
const DefaultDebounce = 300 * time.Millisecond

// PushConfig configures PushOnce and WatchAndPush.
type PushConfig struct {
	Name     string
	YAMLPath string
	EnvPath  string // optional
	Debounce time.Duration
	Save     func(ctx context.Context, def api.Definition) error
	Out      io.Writer
	Log      *logging.ScopedLogger

	// Ready is called once the watches are in place.
	Ready func()
}

func (c PushConfig) files() definitionFiles {
	return definitionFiles{yaml: c.YAMLPath, env: c.EnvPath}
}

// PushOnce reads the files and saves them.
func PushOnce(ctx context.Context, cfg PushConfig) error {
	def, err := cfg.files().read()
	if err != nil {
		return err
	}
	if err := cfg.Save(ctx, def); err != nil {
		return err
	}
	fmt.Fprintf(cfg.Out, "[%s] saved %s\n", pushTimestamp(), cfg.Name)
	return nil
}

// WatchAndPush saves once and then again after every burst of changes to
// either file, until ctx is cancelled. Failed saves after the first are
// reported and watching continues.
func WatchAndPush(ctx context.Context, cfg PushConfig) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Log == nil {
		cfg.Log = logging.NopLogger()
	}

	if err := PushOnce(ctx, cfg); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files by rename, so watch the directories and
	// filter by name.
	watched := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range []string{cfg.YAMLPath, cfg.EnvPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	cfg.Log.Info("watching definition files", "stack", cfg.Name, "yaml", cfg.YAMLPath, "env", cfg.EnvPath)
	if cfg.Ready != nil {
		cfg.Ready()
	}

	timer := time.NewTimer(cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			cfg.Log.Debug("definition file changed", "file", ev.Name, "op", ev.Op.String())
			timer.Reset(cfg.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.Log.Warn("watcher error", "error", err)

		case <-timer.C:
			if err := PushOnce(ctx, cfg); err != nil {
				cfg.Log.Error("push failed", "stack", cfg.Name, "error", err)
				fmt.Fprintf(cfg.Out, "[%s] save failed: %v\n", pushTimestamp(), err)
			}
		}
	}
}

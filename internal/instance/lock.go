// pattern: Imperative Shell
package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFileName = "bunshinctl.lock"
	pidFileName  = "bunshinctl.pid"
)

// Lock acquires an exclusive file lock so only one TUI runs per data
// directory. Returns the flock handle (caller must defer Release) or an
// error if another instance already holds the lock.
func Lock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		if pid, ok := ReadPID(dataDir); ok {
			return nil, fmt.Errorf("another bunshinctl TUI is already running (pid %d)", pid)
		}
		return nil, fmt.Errorf("another bunshinctl TUI is already running")
	}
	return fl, nil
}

// WritePID records the current process id next to the lock.
func WritePID(dataDir string) error {
	pidPath := filepath.Join(dataDir, pidFileName)
	return os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// ReadPID returns the recorded process id, if any.
func ReadPID(dataDir string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(dataDir, pidFileName))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Release removes the pid file and releases the file lock.
func Release(dataDir string, fl *flock.Flock) {
	_ = os.Remove(filepath.Join(dataDir, pidFileName))
	if fl != nil {
		_ = fl.Unlock()
	}
}

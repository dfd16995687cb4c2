//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"bunshinctl/internal/api"
	"bunshinctl/internal/cli"
	"bunshinctl/internal/config"
	"bunshinctl/internal/logging"
)

// serverEnv names the bunshin instance the suite runs against.
const serverEnv = "BUNSHIN_E2E_SERVER"

// SkipIfNoServer skips the test unless a live server is configured and
// returns its URL.
func SkipIfNoServer(t *testing.T) string {
	t.Helper()
	server := strings.TrimSpace(os.Getenv(serverEnv))
	if server == "" {
		t.Skipf("Skipping test: %s not set", serverEnv)
	}
	return server
}

// TestConfig returns a config pointed at server with generous timeouts.
func TestConfig(server string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Server = server
	cfg.RequestTimeout = 30 * time.Second
	return cfg
}

// UniqueStackName returns a stack name that will not collide with real
// stacks or earlier runs.
func UniqueStackName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// TestClient returns an API client for server.
func TestClient(t *testing.T, server string, logs logging.Provider) *api.Client {
	t.Helper()
	client, err := api.NewClient(server, 30*time.Second, logs.For("api"))
	if err != nil {
		t.Fatalf("NewClient(%q): %v", server, err)
	}
	return client
}

// StopStack stops a stack after a test. Failures are only logged.
func StopStack(t *testing.T, client *api.Client, name string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := client.Action(ctx, name, api.ActionStop); err != nil {
		t.Logf("Warning: failed to stop stack %s: %v", name, err)
	}
}

// CLIRunner drives the command-line app and captures its output.
type CLIRunner struct {
	t      *testing.T
	app    *cli.App
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	code   int
}

// NewCLIRunner builds the app against cfg. configDir holds user templates.
func NewCLIRunner(t *testing.T, cfg config.Config, configDir string, logs logging.Provider) *CLIRunner {
	r := &CLIRunner{
		t:      t,
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		code:   -1,
	}
	r.app = cli.BuildApp(cli.Options{
		Version:   "e2e",
		ConfigDir: configDir,
		Config:    cfg,
		Logs:      logs,
		Stdin:     strings.NewReader(""),
		Stdout:    r.stdout,
		Stderr:    r.stderr,
		ExitFunc:  func(code int) { r.code = code },
	})
	return r
}

// Run executes args and returns stdout. The test fails if the command
// exited with a non-zero code.
func (r *CLIRunner) Run(args ...string) string {
	r.t.Helper()
	r.stdout.Reset()
	r.stderr.Reset()
	r.code = -1
	r.app.Execute(args)
	if r.code > 0 {
		r.t.Fatalf("bunshinctl %s exited %d: %s", strings.Join(args, " "), r.code, r.stderr.String())
	}
	return r.stdout.String()
}

// WaitForStatus polls the stack status until it matches want.
func (r *CLIRunner) WaitForStatus(name, want string, timeout time.Duration) bool {
	r.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.TrimSpace(r.Run("stack", "status", name)) == want {
			return true
		}
		time.Sleep(time.Second)
	}
	return false
}

// lockedBuffer is a bytes.Buffer safe for one writer and a polling reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

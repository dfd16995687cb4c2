// pattern: Imperative Shell
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"bunshinctl/internal/api"
	"bunshinctl/internal/bunshintest"
)

// closedAddr returns an address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return "http://" + addr
}

func TestDelegate_Run_Unreachable_ExitsCode2(t *testing.T) {
	rec := &exitRecorder{code: -1}
	stderr := &bytes.Buffer{}

	d := Delegate{
		Server:   closedAddr(t),
		Timeout:  2 * time.Second,
		ExitFunc: rec.exit,
		Stderr:   stderr,
	}
	d.Run(func(ctx context.Context, client *api.Client) error {
		_, err := client.ListStacks(ctx)
		return err
	})

	if rec.code != 2 {
		t.Errorf("exit code = %d, want 2", rec.code)
	}
	if !strings.Contains(stderr.String(), "cannot reach bunshin server") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestDelegate_Run_Success(t *testing.T) {
	srv := bunshintest.NewServer(t)
	srv.AddStack("web", api.Definition{})

	rec := &exitRecorder{code: -1}
	d := Delegate{Server: srv.URL, ExitFunc: rec.exit, Stderr: &bytes.Buffer{}}

	var names []string
	d.Run(func(ctx context.Context, client *api.Client) error {
		var err error
		names, err = client.ListStacks(ctx)
		return err
	})

	if rec.called {
		t.Errorf("ExitFunc called with %d", rec.code)
	}
	if len(names) != 1 || names[0] != "web" {
		t.Errorf("names = %v, want [web]", names)
	}
}

func TestDelegate_Run_ServerError_ExitsCode1(t *testing.T) {
	srv := bunshintest.NewServer(t)
	srv.FailNext("/api/stacks", 1)

	rec := &exitRecorder{code: -1}
	stderr := &bytes.Buffer{}
	d := Delegate{Server: srv.URL, ExitFunc: rec.exit, Stderr: stderr}

	d.Run(func(ctx context.Context, client *api.Client) error {
		_, err := client.ListStacks(ctx)
		return err
	})

	if rec.code != 1 {
		t.Errorf("exit code = %d, want 1", rec.code)
	}
	if got := stderr.String(); got != "error: server returned 500: injected failure\n" {
		t.Errorf("stderr = %q", got)
	}
}

func TestDelegate_Client_BadAddress(t *testing.T) {
	rec := &exitRecorder{code: -1}
	stderr := &bytes.Buffer{}
	d := Delegate{Server: "  ", ExitFunc: rec.exit, Stderr: stderr}

	if d.Client() != nil {
		t.Error("Client() should return nil for an empty address")
	}
	if rec.code != 1 {
		t.Errorf("exit code = %d, want 1", rec.code)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"status", &api.StatusError{Code: 500}, 1},
		{"wrapped dial", fmt.Errorf("GET /api/stacks: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrintJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := PrintJSON(buf, api.Definition{YAML: "a", Env: "b"}); err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}
	if got := buf.String(); got != "{\"yaml\":\"a\",\"env\":\"b\"}\n" {
		t.Errorf("PrintJSON() = %q", got)
	}
}

package stream

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bunshinctl/internal/api"
	"bunshinctl/internal/bunshintest"
)

func TestURL(t *testing.T) {
	tests := []struct {
		base string
		kind Kind
		want string
	}{
		{"http://127.0.0.1:8080", KindLogs, "ws://127.0.0.1:8080/ws/logs?container=abc&name=web"},
		{"https://dash.example.com", KindShell, "wss://dash.example.com/ws/shell?container=abc&name=web"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			base, err := url.Parse(tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, URL(base, tt.kind, "web", "abc"))
		})
	}
}

func TestURL_EscapesQuery(t *testing.T) {
	base, _ := url.Parse("http://h")
	got := URL(base, KindLogs, "a&b", "c d")
	assert.Equal(t, "ws://h/ws/logs?container=c+d&name=a%26b", got)
}

func newBackend(t *testing.T) (*bunshintest.Server, *url.URL) {
	t.Helper()
	srv := bunshintest.NewServer(t)
	srv.AddStack("web", api.Definition{YAML: "services: {}"})
	srv.SetContainers("web", api.Container{ID: "c1", Name: "web_app"})
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return srv, base
}

func collect(t *testing.T, c Conn, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				return got
			}
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("timed out after %d of %d messages", len(got), n)
		}
	}
	return got
}

func TestWSDialer_LogsInOrder(t *testing.T) {
	srv, base := newBackend(t)
	srv.SetLogLines("c1", "line 1\n", "line 2\n", "\x1b[32mline 3\x1b[0m\n")

	d := &WSDialer{}
	c, err := d.Dial(context.Background(), URL(base, KindLogs, "web", "c1"))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.True(t, c.Open())
	assert.Equal(t, []string{"line 1\n", "line 2\n", "\x1b[32mline 3\x1b[0m\n"}, collect(t, c, 3))
}

func TestWSDialer_ServerNormalCloseHasNoError(t *testing.T) {
	srv, base := newBackend(t)
	srv.SetLogLines("c1", "only\n")
	srv.SetHoldLogs(false)

	c, err := (&WSDialer{}).Dial(context.Background(), URL(base, KindLogs, "web", "c1"))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, []string{"only\n"}, collect(t, c, 2))
	assert.False(t, c.Open())
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Send(context.Background(), []byte("x")), ErrNotOpen)
}

func TestWSDialer_AbruptEndReportsError(t *testing.T) {
	srv, base := newBackend(t)
	srv.SetContainers("web")

	c, err := (&WSDialer{}).Dial(context.Background(), URL(base, KindLogs, "web", "c1"))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Empty(t, collect(t, c, 1))
	assert.Error(t, c.Err())
	assert.False(t, c.Open())
}

func TestWSDialer_ShellEcho(t *testing.T) {
	srv, base := newBackend(t)

	c, err := (&WSDialer{}).Dial(context.Background(), URL(base, KindShell, "web", "c1"))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, []string{"/ # "}, collect(t, c, 1))
	require.NoError(t, c.Send(context.Background(), []byte("ls\r")))
	assert.Equal(t, []string{"ls\r"}, collect(t, c, 1))
	assert.Equal(t, [][]byte{[]byte("ls\r")}, srv.ShellInput())
}

func TestWSDialer_CloseIsIdempotentAndStopsDelivery(t *testing.T) {
	srv, base := newBackend(t)
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "x"
	}
	srv.SetLogLines("c1", lines...)

	c, err := (&WSDialer{}).Dial(context.Background(), URL(base, KindLogs, "web", "c1"))
	require.NoError(t, err)
	require.True(t, srv.WaitActive("logs", 1, 2*time.Second))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.Open())
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Send(context.Background(), []byte("x")), ErrNotOpen)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Messages():
			if !ok {
				assert.True(t, srv.WaitActive("logs", 0, 2*time.Second))
				return
			}
		case <-deadline:
			t.Fatal("Messages() not closed after Close()")
		}
	}
}

func TestWSDialer_DialFailure(t *testing.T) {
	srv, base := newBackend(t)
	srv.Close()

	_, err := (&WSDialer{}).Dial(context.Background(), URL(base, KindLogs, "web", "c1"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotOpen))
}

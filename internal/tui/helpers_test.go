package tui

import (
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"bunshinctl/internal/api"
	"bunshinctl/internal/bunshintest"
	"bunshinctl/internal/config"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/prefs"
	"bunshinctl/internal/stream"
)

type fakeClipboard struct {
	mu     sync.Mutex
	copied []string
}

func (c *fakeClipboard) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.copied = append(c.copied, s)
	return nil
}

type harness struct {
	srv       *bunshintest.Server
	clip      *fakeClipboard
	prefsPath string
	logs      *logging.TestLogManager
}

// newTestModel returns a model wired to a fake backend seeded with one
// stack, "web", holding two containers.
func newTestModel(t *testing.T) (Model, *harness) {
	t.Helper()
	srv := bunshintest.NewServer(t)
	srv.AddStack("web", api.Definition{YAML: "services:\n  app:\n    image: nginx", Env: "A=1"})
	srv.SetContainers("web",
		api.Container{ID: "aaa111", Name: "web_app"},
		api.Container{ID: "bbb222", Name: "web_db"},
	)

	lm := logging.NewTestLogManager(512)
	client, err := api.NewClient(srv.URL, 2*time.Second, lm.For("api"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	base, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Server = srv.URL
	cfg.PollInterval = 50 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second

	h := &harness{
		srv:       srv,
		clip:      &fakeClipboard{},
		prefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
		logs:      lm,
	}
	m := NewModel(cfg, Deps{
		Client:    client,
		Dialer:    &stream.WSDialer{Log: lm.For("stream")},
		BaseURL:   base,
		Logs:      lm,
		PrefsPath: h.prefsPath,
		Prefs:     prefs.Prefs{},
		Clipboard: h.clip.write,
	})
	t.Cleanup(func() {
		_ = m.Close()
		_ = lm.Close()
	})

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), h
}

// drive feeds queued events into the model until cond holds.
func drive(t *testing.T, m Model, cond func(Model) bool) Model {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond(m) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatal("condition not reached before deadline")
		}
		got := make(chan []any, 1)
		go func() {
			batch, _ := m.queue.Next()
			got <- batch
		}()
		select {
		case batch := <-got:
			updated, _ := m.Update(eventsMsg{batch: batch})
			m = updated.(Model)
		case <-time.After(remaining):
			t.Fatal("condition not reached before deadline")
		}
	}
	return m
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		updated, _ := m.Update(keyMsg(k))
		m = updated.(Model)
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+]":
		return tea.KeyMsg{Type: tea.KeyCtrlCloseBracket}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// openStack loads the stack list and selects name.
func openStack(t *testing.T, m Model, name string) Model {
	t.Helper()
	msg := m.loadStacks(name)()
	updated, _ := m.Update(msg)
	m = updated.(Model)
	return drive(t, m, func(m Model) bool { return m.stack == name && m.epoch != "" })
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

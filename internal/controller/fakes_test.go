package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bunshinctl/internal/api"
	"bunshinctl/internal/stream"
)

type fakeBackend struct {
	mu            sync.Mutex
	defs          map[string]api.Definition
	containers    map[string][]api.Container
	containersErr error
	calls         []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		defs:       map[string]api.Definition{},
		containers: map[string][]api.Container{},
	}
}

func (b *fakeBackend) note(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func (b *fakeBackend) ListStacks(context.Context) ([]string, error) { return nil, nil }

func (b *fakeBackend) GetStack(_ context.Context, name string) (api.Definition, error) {
	b.note("get " + name)
	b.mu.Lock()
	defer b.mu.Unlock()
	def, ok := b.defs[name]
	if !ok {
		return api.Definition{}, &api.StatusError{Code: 404}
	}
	return def, nil
}

func (b *fakeBackend) SaveStack(context.Context, string, api.Definition) error { return nil }
func (b *fakeBackend) Status(context.Context, string) (api.Status, error)    { return "", nil }
func (b *fakeBackend) Action(context.Context, string, api.Action) error      { return nil }

func (b *fakeBackend) Containers(_ context.Context, name string) ([]api.Container, error) {
	b.note("containers " + name)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.containersErr != nil {
		return nil, b.containersErr
	}
	return append([]api.Container(nil), b.containers[name]...), nil
}

type fakeConn struct {
	url    string
	msgs   chan []byte
	hold   bool
	open   atomic.Bool
	closes atomic.Int32

	mu   sync.Mutex
	err  error
	sent [][]byte
	once sync.Once
}

func (c *fakeConn) Messages() <-chan []byte { return c.msgs }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	if !c.open.Load() {
		return stream.ErrNotOpen
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Open() bool { return c.open.Load() }

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.open.Store(false)
	if !c.hold {
		c.end(nil)
	}
	return nil
}

// push delivers a frame regardless of close state, like a frame already in
// flight when the connection was closed.
func (c *fakeConn) push(data string) {
	c.msgs <- []byte(data)
}

// end simulates the server side going away.
func (c *fakeConn) end(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.open.Store(false)
		close(c.msgs)
	})
}

func (c *fakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, s := range c.sent {
		out[i] = string(s)
	}
	return out
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
	// hold keeps Messages open after Close so late frames can be injected.
	hold bool
}

func (d *fakeDialer) Dial(_ context.Context, url string) (stream.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	c := &fakeConn{url: url, msgs: make(chan []byte, 16), hold: d.hold}
	c.open.Store(true)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialed() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

func (d *fakeDialer) last() *fakeConn {
	conns := d.dialed()
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

// logEvent is one sink call. text holds the line or error, or the epoch
// for connecting and none.
type logEvent struct {
	kind   string
	connID string
	text   string
}

type recordingLogSink struct {
	mu     sync.Mutex
	events []logEvent
	signal chan struct{}
}

func newRecordingLogSink() *recordingLogSink {
	return &recordingLogSink{signal: make(chan struct{}, 64)}
}

func (s *recordingLogSink) add(e logEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *recordingLogSink) Connecting(epoch, id string) { s.add(logEvent{"connecting", id, epoch}) }
func (s *recordingLogSink) Line(id string, line []byte) { s.add(logEvent{"line", id, string(line)}) }
func (s *recordingLogSink) Failed(id string, err error) { s.add(logEvent{"failed", id, err.Error()}) }
func (s *recordingLogSink) NoContainers(epoch string)   { s.add(logEvent{"none", "", epoch}) }

func (s *recordingLogSink) Events() []logEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logEvent(nil), s.events...)
}

func (s *recordingLogSink) Lines() []string {
	var out []string
	for _, e := range s.Events() {
		if e.kind == "line" {
			out = append(out, e.text)
		}
	}
	return out
}

// waitFor polls cond until it holds or a second passes.
func (s *recordingLogSink) waitFor(cond func([]logEvent) bool) bool {
	deadline := time.After(time.Second)
	for {
		if cond(s.Events()) {
			return true
		}
		select {
		case <-s.signal:
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			return cond(s.Events())
		}
	}
}

type fakeTerminal struct {
	epoch    string
	id       string
	cols     int
	rows     int
	mu       sync.Mutex
	buf      strings.Builder
	disposed bool
}

func (t *fakeTerminal) Write(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
}

func (t *fakeTerminal) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposed = true
}

func (t *fakeTerminal) Content() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func (t *fakeTerminal) Disposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

func (t *fakeTerminal) waitContains(s string) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(t.Content(), s) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

type recordingShellSink struct {
	mu        sync.Mutex
	terminals []*fakeTerminal
	none      int
}

func (s *recordingShellSink) NewTerminal(epoch, id string, cols, rows int) Terminal {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTerminal{epoch: epoch, id: id, cols: cols, rows: rows}
	s.terminals = append(s.terminals, t)
	return t
}

func (s *recordingShellSink) NoContainers(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.none++
}

func (s *recordingShellSink) Terminals() []*fakeTerminal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeTerminal(nil), s.terminals...)
}

func (s *recordingShellSink) None() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.none
}

type recordingView struct {
	mu     sync.Mutex
	tabs   []Tab
	epochs []string
}

func (v *recordingView) TabChanged(epoch string, tab Tab) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tabs = append(v.tabs, tab)
	v.epochs = append(v.epochs, epoch)
}

func (v *recordingView) Epochs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.epochs...)
}

func (v *recordingView) Tabs() []Tab {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Tab(nil), v.tabs...)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

var errBoom = errors.New("boom")

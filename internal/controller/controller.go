// pattern: Imperative Shell

package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bunshinctl/internal/api"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/stream"
)

// ErrNoStack is returned by operations that need a selected stack.
var ErrNoStack = errors.New("no stack selected")

const sendTimeout = 5 * time.Second

// Options wires a Controller. Backend, Dialer and BaseURL are required.
type Options struct {
	Backend api.Backend
	Dialer  stream.Dialer
	BaseURL *url.URL

	Logs  LogSink
	Shell ShellSink
	View  View

	// Terminal grid for shell surfaces; defaults to 80x24.
	Cols, Rows int

	// OnEnd, if set, is called once for a connection that ends without
	// being closed: after its last frame, or when it fails to open. err is
	// nil for a normal end. It runs with internal locks held and must not
	// block or call back into the Controller.
	OnEnd func(kind stream.Kind, connID string, err error)

	Log   *logging.ScopedLogger
	NewID func() string
}

// Selection is the result of selecting a stack.
type Selection struct {
	Stack      string
	Epoch      string
	Definition api.Definition
}

// Controller owns the selected stack, its container list and targets, the
// visible tab, and at most one log and one shell connection. Operations
// are serialized on mu, so each observes the full effect of the previous
// one.
type Controller struct {
	backend api.Backend
	dialer  stream.Dialer
	baseURL *url.URL
	logs    LogSink
	shell   ShellSink
	view    View
	onEnd   func(kind stream.Kind, connID string, err error)
	cols    int
	rows    int
	log     *logging.ScopedLogger
	newID   func() string

	mu         sync.Mutex
	stack      string
	epoch      string
	tab        Tab
	containers []api.Container
	targets    map[stream.Kind]string
	conns      map[stream.Kind]*connection
	term       Terminal
	counters   Counters

	// shellConn is read by SendInput without taking mu.
	shellConn atomic.Pointer[connection]
}

// connection is one stream plus the sink state its pump writes to.
type connection struct {
	id        string
	kind      stream.Kind
	container string
	conn      stream.Conn
	term      Terminal

	// mu is held by the pump while delivering; closed flips under it so
	// no frame is delivered once close returns.
	mu     sync.Mutex
	closed bool
}

// New returns a Controller showing the definition tab with no stack.
func New(opts Options) *Controller {
	if opts.Log == nil {
		opts.Log = logging.NopLogger()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.View == nil {
		opts.View = nopView{}
	}
	if opts.OnEnd == nil {
		opts.OnEnd = func(stream.Kind, string, error) {}
	}
	if opts.Cols <= 0 {
		opts.Cols = 80
	}
	if opts.Rows <= 0 {
		opts.Rows = 24
	}
	return &Controller{
		backend:  opts.Backend,
		dialer:   opts.Dialer,
		baseURL:  opts.BaseURL,
		logs:     opts.Logs,
		shell:    opts.Shell,
		view:     opts.View,
		onEnd:    opts.OnEnd,
		cols:     opts.Cols,
		rows:     opts.Rows,
		log:      opts.Log,
		newID:    opts.NewID,
		tab:      TabDefinition,
		targets:  map[stream.Kind]string{},
		conns:    map[stream.Kind]*connection{},
		counters: Counters{Opened: map[stream.Kind]int{}, Closed: map[stream.Kind]int{}},
	}
}

// SelectStack makes name the current stack: both connections are closed,
// the terminal is disposed, the container list and targets are reset, a
// new epoch starts, and the definition tab is shown. The definition is
// fetched last; on error the selection still stands.
func (c *Controller) SelectStack(ctx context.Context, name string) (Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeAllLocked()
	c.disposeTerminalLocked()
	c.stack = name
	c.epoch = c.newID()
	c.containers = nil
	c.targets = map[stream.Kind]string{}
	c.setTabLocked(TabDefinition)

	c.log.Info("stack selected", "stack", name, "epoch", c.epoch)

	sel := Selection{Stack: name, Epoch: c.epoch}
	def, err := c.backend.GetStack(ctx, name)
	if err != nil {
		c.log.Error("load definition failed", "stack", name, "error", err)
		return sel, fmt.Errorf("load %s: %w", name, err)
	}
	sel.Definition = def
	return sel, nil
}

// SelectTab shows tab. Both connections are closed first; for the logs
// and shell tabs the container list is refreshed and a connection of that
// kind is opened to the selected container, or the first one. When the
// refresh fails and no earlier list is known, the failure is reported to
// the kind's sink and returned.
func (c *Controller) SelectTab(ctx context.Context, tab Tab) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setTabLocked(tab)
	c.closeAllLocked()

	kind, ok := tab.Kind()
	if !ok {
		return nil
	}
	if c.stack == "" {
		return ErrNoStack
	}

	if err := c.refreshContainersLocked(ctx); err != nil && len(c.containers) == 0 {
		err = fmt.Errorf("list containers: %w", err)
		c.failOpenLocked(kind, err)
		return err
	}
	return c.openLocked(ctx, kind)
}

// SelectContainer retargets kind to container id and reopens that kind's
// connection if its tab is showing. An id not in the list falls back to
// the first container.
func (c *Controller) SelectContainer(ctx context.Context, kind stream.Kind, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stack == "" {
		return ErrNoStack
	}
	c.closeLocked(kind)
	c.targets[kind] = id
	c.resolveTargetLocked(kind)

	if current, ok := c.tab.Kind(); !ok || current != kind {
		return nil
	}
	return c.openLocked(ctx, kind)
}

// RefreshContainers reloads the container list without touching
// connections. Targets that vanished fall back to the first container.
func (c *Controller) RefreshContainers(ctx context.Context) ([]api.Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stack == "" {
		return nil, ErrNoStack
	}
	if err := c.refreshContainersLocked(ctx); err != nil {
		return c.copyContainersLocked(), err
	}
	return c.copyContainersLocked(), nil
}

// Teardown closes both connections and disposes the terminal surface.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeAllLocked()
	c.disposeTerminalLocked()
}

// SendInput forwards keystrokes to the shell connection. It reports
// whether data was sent; input is dropped while the shell is not open.
func (c *Controller) SendInput(data []byte) bool {
	cn := c.shellConn.Load()
	if cn == nil || !cn.conn.Open() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := cn.conn.Send(ctx, data); err != nil {
		if !errors.Is(err, stream.ErrNotOpen) {
			c.log.Warn("shell input failed", "conn", cn.id, "error", err)
		}
		return false
	}
	return true
}

// Stack returns the selected stack name.
func (c *Controller) Stack() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stack
}

// Epoch identifies the current stack selection.
func (c *Controller) Epoch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Current reports whether epoch is still the live selection. Responses
// issued under an older epoch are discarded by callers.
func (c *Controller) Current(epoch string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return epoch != "" && epoch == c.epoch
}

// Tab returns the visible tab.
func (c *Controller) Tab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// Containers returns the last fetched container list.
func (c *Controller) Containers() []api.Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyContainersLocked()
}

// Target returns the container id kind is aimed at.
func (c *Controller) Target(kind stream.Kind) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targets[kind]
}

// ConnID returns the id of the open connection of kind, or "".
func (c *Controller) ConnID(kind stream.Kind) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cn := c.conns[kind]; cn != nil {
		return cn.id
	}
	return ""
}

// Counters returns a snapshot of connection counts.
func (c *Controller) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters.clone()
}

func (c *Controller) setTabLocked(tab Tab) {
	c.tab = tab
	c.view.TabChanged(c.epoch, tab)
}

func (c *Controller) copyContainersLocked() []api.Container {
	return append([]api.Container(nil), c.containers...)
}

// refreshContainersLocked keeps the previous list when the fetch fails.
func (c *Controller) refreshContainersLocked(ctx context.Context) error {
	list, err := c.backend.Containers(ctx, c.stack)
	if err != nil {
		c.log.Warn("list containers failed", "stack", c.stack, "error", err)
		return err
	}
	c.containers = list
	for kind := range c.targets {
		c.resolveTargetLocked(kind)
	}
	return nil
}

// resolveTargetLocked pins targets[kind] to an id present in the list.
func (c *Controller) resolveTargetLocked(kind stream.Kind) string {
	if len(c.containers) == 0 {
		return ""
	}
	want := c.targets[kind]
	for _, ct := range c.containers {
		if ct.ID == want {
			return want
		}
	}
	c.targets[kind] = c.containers[0].ID
	return c.targets[kind]
}

func (c *Controller) openLocked(ctx context.Context, kind stream.Kind) error {
	if len(c.containers) == 0 {
		c.log.Info("no containers", "stack", c.stack, "kind", kind)
		if kind == stream.KindLogs && c.logs != nil {
			c.logs.NoContainers(c.epoch)
		}
		if kind == stream.KindShell && c.shell != nil {
			c.shell.NoContainers(c.epoch)
		}
		return nil
	}

	target := c.resolveTargetLocked(kind)
	cn := c.startLocked(kind, target)
	log := c.log.With("conn", cn.id, "kind", kind, "stack", c.stack, "container", target)

	conn, err := c.dialer.Dial(ctx, stream.URL(c.baseURL, kind, c.stack, target))
	if err != nil {
		log.Warn("connection failed", "error", err)
		cn.end(c.logs, c.onEnd, err)
		return nil
	}
	cn.conn = conn
	c.conns[kind] = cn
	c.counters.Opened[kind]++
	if kind == stream.KindShell {
		c.shellConn.Store(cn)
	}
	log.Info("connection opened")

	go c.pump(cn, log)
	return nil
}

// startLocked announces a connection of kind to its sink: a log
// connection is marked connecting, a shell one gets a fresh terminal.
func (c *Controller) startLocked(kind stream.Kind, target string) *connection {
	cn := &connection{
		id:        c.newID(),
		kind:      kind,
		container: target,
	}
	switch kind {
	case stream.KindLogs:
		if c.logs != nil {
			c.logs.Connecting(c.epoch, cn.id)
		}
	case stream.KindShell:
		c.disposeTerminalLocked()
		if c.shell != nil {
			c.term = c.shell.NewTerminal(c.epoch, cn.id, c.cols, c.rows)
			cn.term = c.term
		}
	}
	return cn
}

// failOpenLocked reports err to the sink of kind in place of a connection.
func (c *Controller) failOpenLocked(kind stream.Kind, err error) {
	cn := c.startLocked(kind, "")
	c.log.Warn("connection not opened", "conn", cn.id, "kind", kind, "stack", c.stack, "error", err)
	cn.end(c.logs, c.onEnd, err)
}

// pump delivers frames of one connection until it ends or is closed.
func (c *Controller) pump(cn *connection, log *logging.ScopedLogger) {
	for data := range cn.conn.Messages() {
		if !cn.deliver(c.logs, data) {
			return
		}
	}
	err := cn.conn.Err()
	if err != nil {
		log.Warn("connection ended", "error", err)
	} else {
		log.Debug("connection ended")
	}
	cn.end(c.logs, c.onEnd, err)
}

func (cn *connection) deliver(logs LogSink, data []byte) bool {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return false
	}
	switch cn.kind {
	case stream.KindLogs:
		if logs != nil {
			logs.Line(cn.id, data)
		}
	case stream.KindShell:
		if cn.term != nil {
			cn.term.Write(data)
		}
	}
	return true
}

// end reports the end of a connection that was not closed. A non-nil err
// goes to the sink first.
func (cn *connection) end(logs LogSink, onEnd func(stream.Kind, string, error), err error) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return
	}
	if err != nil {
		switch cn.kind {
		case stream.KindLogs:
			if logs != nil {
				logs.Failed(cn.id, err)
			}
		case stream.KindShell:
			if cn.term != nil {
				cn.term.Write([]byte(ShellErrorText))
			}
		}
	}
	onEnd(cn.kind, cn.id, err)
}

func (c *Controller) closeLocked(kind stream.Kind) {
	cn := c.conns[kind]
	if cn == nil {
		return
	}
	delete(c.conns, kind)
	if kind == stream.KindShell {
		c.shellConn.CompareAndSwap(cn, nil)
	}

	cn.mu.Lock()
	cn.closed = true
	cn.mu.Unlock()
	_ = cn.conn.Close()

	c.counters.Closed[kind]++
	c.log.Info("connection closed", "conn", cn.id, "kind", kind)
}

func (c *Controller) closeAllLocked() {
	c.closeLocked(stream.KindLogs)
	c.closeLocked(stream.KindShell)
}

func (c *Controller) disposeTerminalLocked() {
	if c.term != nil {
		c.term.Dispose()
		c.term = nil
	}
}

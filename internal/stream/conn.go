// pattern: Imperative Shell

package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"bunshinctl/internal/logging"
)

// ErrNotOpen is returned by Send when the connection is not open.
var ErrNotOpen = errors.New("stream: connection not open")

const (
	defaultReadLimit = 1 << 20
	messageBuffer    = 64
	closeGrace       = 2 * time.Second
)

// Conn is one live stream.
type Conn interface {
	// Messages delivers inbound frames in transport order. It is closed
	// when the socket ends or Close is called.
	Messages() <-chan []byte
	// Err reports why the stream ended; nil while open, after Close, and
	// after a normal close by the server.
	Err() error
	// Send writes one text frame. It returns ErrNotOpen unless Open.
	Send(ctx context.Context, data []byte) error
	Open() bool
	// Close is idempotent. Frames not yet consumed are discarded.
	Close() error
}

// Dialer opens streams.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials with github.com/coder/websocket.
type WSDialer struct {
	HTTPClient *http.Client
	ReadLimit  int64
	Log        *logging.ScopedLogger
}

// Dial connects to url and starts the read pump.
func (d *WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	log := d.Log
	if log == nil {
		log = logging.NopLogger()
	}

	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: http.Header{"User-Agent": {"bunshinctl"}},
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	ws.SetReadLimit(limit)

	readCtx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		ws:     ws,
		msgs:   make(chan []byte, messageBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
		log:    log,
	}
	c.open.Store(true)
	go c.readLoop(readCtx)
	return c, nil
}

type wsConn struct {
	ws     *websocket.Conn
	msgs   chan []byte
	done   chan struct{}
	cancel context.CancelFunc
	log    *logging.ScopedLogger

	open      atomic.Bool
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func (c *wsConn) readLoop(ctx context.Context) {
	defer close(c.msgs)
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			c.finish(err)
			return
		}
		select {
		case c.msgs <- data:
		case <-c.done:
			return
		}
	}
}

// finish records the terminal error of a stream that ended on its own.
func (c *wsConn) finish(err error) {
	c.open.Store(false)
	select {
	case <-c.done:
		return
	default:
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		c.log.Debug("stream closed by server")
		return
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.log.Warn("stream read failed", "error", err)
}

func (c *wsConn) Messages() <-chan []byte { return c.msgs }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Open() bool { return c.open.Load() }

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	if !c.open.Load() {
		return ErrNotOpen
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("stream send: %w", err)
	}
	return nil
}

// Close stops delivery immediately; the close handshake finishes in the
// background so callers are never held up by a slow peer.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
			defer cancel()
			errc := make(chan error, 1)
			go func() { errc <- c.ws.Close(websocket.StatusNormalClosure, "") }()
			select {
			case <-errc:
			case <-ctx.Done():
				_ = c.ws.CloseNow()
			}
			c.cancel()
		}()
	})
	return nil
}

// pattern: Imperative Shell

package poller

import (
	"context"
	"sync"
	"time"

	"bunshinctl/internal/api"
	"bunshinctl/internal/logging"
)

// DefaultInterval is the status refresh cadence.
const DefaultInterval = 5 * time.Second

// Fetcher is the part of the backend the poller needs.
type Fetcher interface {
	Status(ctx context.Context, name string) (api.Status, error)
}

// Result is one poll outcome, tagged with the stack it was requested for.
type Result struct {
	Stack  string
	Status api.Status
	Err    error
	At     time.Time
}

// Poller refreshes one stack's status at a fixed interval. Restart swaps
// the stack; Stop ends polling. Neither returns while a poll of the old
// loop could still be delivered.
type Poller struct {
	fetch    Fetcher
	interval time.Duration
	deliver  func(Result)
	log      *logging.ScopedLogger

	mu  sync.Mutex
	cur *loop
}

type loop struct {
	stack  string
	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}
}

// New returns an idle Poller. deliver is called from the polling goroutine
// and must not call Restart or Stop.
func New(fetch Fetcher, interval time.Duration, deliver func(Result), log *logging.ScopedLogger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &Poller{fetch: fetch, interval: interval, deliver: deliver, log: log}
}

// Restart stops the current loop and, for a non-empty stack, starts a new
// one that polls immediately.
func (p *Poller) Restart(stack string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if stack == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{
		stack:  stack,
		cancel: cancel,
		done:   make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
	p.cur = l
	p.log.Debug("polling started", "stack", stack, "interval", p.interval.String())
	go p.run(ctx, l)
}

// PollNow asks the current loop for an extra poll, e.g. right after a
// start or stop action.
func (p *Poller) PollNow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return
	}
	select {
	case p.cur.kick <- struct{}{}:
	default:
	}
}

// Stop ends polling. No result is delivered after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Stack returns the stack being polled, or "".
func (p *Poller) Stack() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return ""
	}
	return p.cur.stack
}

func (p *Poller) stopLocked() {
	if p.cur == nil {
		return
	}
	p.cur.cancel()
	<-p.cur.done
	p.log.Debug("polling stopped", "stack", p.cur.stack)
	p.cur = nil
}

func (p *Poller) run(ctx context.Context, l *loop) {
	defer close(l.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx, l.stack)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-l.kick:
		}
	}
}

func (p *Poller) poll(ctx context.Context, stack string) {
	status, err := p.fetch.Status(ctx, stack)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.log.Warn("status poll failed", "stack", stack, "error", err)
	}
	p.deliver(Result{Stack: stack, Status: status, Err: err, At: time.Now()})
}

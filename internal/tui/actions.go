// pattern: Imperative Shell

package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"bunshinctl/internal/api"
	"bunshinctl/internal/controller"
	"bunshinctl/internal/events"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/prefs"
	"bunshinctl/internal/stack"
	"bunshinctl/internal/stream"
)

// Results of jobs run on the worker. Each carries what it was issued for
// so superseded results can be dropped.
type stacksLoadedMsg struct {
	names      []string
	selectName string
	err        error
}

type stackSelectedMsg struct {
	sel controller.Selection
	err error
}

type streamsMsg struct {
	epoch      string
	containers []api.Container
	targets    map[stream.Kind]string
	err        error
}

type savedMsg struct {
	stack string
	seq   int
	def   api.Definition
	err   error
}

type saveResetMsg struct{ seq int }

type checkedMsg struct {
	epoch  string
	report stack.Report
	err    error
}

type actionDoneMsg struct {
	stack  string
	action api.Action
	err    error
}

type stackCreatedMsg struct {
	name    string
	names   []string
	err     error
	listErr error
}

type formErrResetMsg struct{ seq int }

type copiedMsg struct {
	id  string
	err error
}

// eventsMsg is a batch drained from the event queue.
type eventsMsg struct{ batch []any }

type logEntryMsg struct{ entry logging.LogEntry }

// clearStatusMsg is sent after a timed delay to clear the status bar.
type clearStatusMsg struct{}

// waitForEvents delivers the next batch of queued messages. It returns
// nil once the queue is closed, which ends the loop.
func waitForEvents(q *events.Queue) tea.Cmd {
	return func() tea.Msg {
		batch, ok := q.Next()
		if !ok {
			return nil
		}
		return eventsMsg{batch: batch}
	}
}

// waitForLogEntry delivers the next diagnostic log entry.
func waitForLogEntry(ch <-chan logging.LogEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return nil
		}
		return logEntryMsg{entry: entry}
	}
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
}

// submit queues job on the worker. Results come back through the event
// queue.
func (m Model) submit(job events.Job) {
	if !m.worker.Submit(job) {
		m.logger.Debug("job dropped, worker closed")
	}
}

// loadStacks returns a command that lists stacks and optionally selects
// one afterwards.
func (m Model) loadStacks(selectName string) tea.Cmd {
	client := m.client
	timeout := m.cfg.RequestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		names, err := client.ListStacks(ctx)
		return stacksLoadedMsg{names: names, selectName: selectName, err: err}
	}
}

func (m Model) selectStackJob(name string) events.Job {
	ctrl, poll := m.ctrl, m.poller
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		poll.Restart(name)
		sel, err := ctrl.SelectStack(ctx, name)
		return stackSelectedMsg{sel: sel, err: err}
	}
}

func (m Model) selectTabJob(tab controller.Tab) events.Job {
	ctrl := m.ctrl
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		err := ctrl.SelectTab(ctx, tab)
		return snapshotStreams(ctrl, err)
	}
}

func (m Model) selectContainerJob(kind stream.Kind, id string) events.Job {
	ctrl := m.ctrl
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		err := ctrl.SelectContainer(ctx, kind, id)
		return snapshotStreams(ctrl, err)
	}
}

func snapshotStreams(ctrl *controller.Controller, err error) streamsMsg {
	return streamsMsg{
		epoch:      ctrl.Epoch(),
		containers: ctrl.Containers(),
		targets: map[stream.Kind]string{
			stream.KindLogs:  ctrl.Target(stream.KindLogs),
			stream.KindShell: ctrl.Target(stream.KindShell),
		},
		err: err,
	}
}

func (m Model) saveJob(name string, seq int, def api.Definition) events.Job {
	client := m.client
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		err := client.SaveStack(ctx, name, def)
		return savedMsg{stack: name, seq: seq, def: def, err: err}
	}
}

func (m Model) checkJob(epoch, name string, def api.Definition) events.Job {
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		report, err := stack.Check(ctx, name, def)
		return checkedMsg{epoch: epoch, report: report, err: err}
	}
}

func (m Model) actionJob(name string, action api.Action) events.Job {
	client, poll := m.client, m.poller
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		err := client.Action(ctx, name, action)
		poll.PollNow()
		return actionDoneMsg{stack: name, action: action, err: err}
	}
}

func (m Model) createStackJob(name string, def api.Definition) events.Job {
	client := m.client
	return func() any {
		ctx, cancel := m.requestContext()
		defer cancel()
		if err := client.SaveStack(ctx, name, def); err != nil {
			return stackCreatedMsg{name: name, err: err}
		}
		names, err := client.ListStacks(ctx)
		return stackCreatedMsg{name: name, names: names, listErr: err}
	}
}

func (m Model) copyContainerID(id string) tea.Cmd {
	write := m.clipboard
	return func() tea.Msg {
		return copiedMsg{id: id, err: write(id)}
	}
}

func (m Model) savePrefs() tea.Cmd {
	path, p, logger := m.prefsPath, m.prefs, m.logger
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		if err := prefs.Save(path, p); err != nil {
			logger.Warn("save prefs failed", "path", path, "error", err)
		}
		return nil
	}
}

func tickAfter(d time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msg })
}

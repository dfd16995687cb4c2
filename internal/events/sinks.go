// pattern: Imperative Shell

package events

import (
	"bunshinctl/internal/controller"
	"bunshinctl/internal/poller"
)

// Sinks bundles implementations of the controller's sink interfaces and
// the poller's deliver func, all publishing onto one Queue.
type Sinks struct {
	Logs   controller.LogSink
	Shell  controller.ShellSink
	View   controller.View
	Status func(poller.Result)
}

// NewSinks returns sinks publishing onto q.
func NewSinks(q *Queue) Sinks {
	return Sinks{
		Logs:  logSink{q},
		Shell: shellSink{q},
		View:  viewSink{q},
		Status: func(r poller.Result) {
			q.Push(StatusPolled{Result: r})
		},
	}
}

type logSink struct{ q *Queue }

func (s logSink) Connecting(epoch, connID string) {
	s.q.Push(LogConnecting{Epoch: epoch, ConnID: connID})
}

func (s logSink) Line(connID string, line []byte) {
	s.q.Push(LogLine{ConnID: connID, Line: clone(line)})
}

func (s logSink) Failed(connID string, err error) { s.q.Push(LogFailed{ConnID: connID, Err: err}) }

func (s logSink) NoContainers(epoch string) { s.q.Push(LogNoContainers{Epoch: epoch}) }

type shellSink struct{ q *Queue }

func (s shellSink) NewTerminal(epoch, connID string, cols, rows int) controller.Terminal {
	s.q.Push(ShellOpened{Epoch: epoch, ConnID: connID, Cols: cols, Rows: rows})
	return &terminal{q: s.q, connID: connID}
}

func (s shellSink) NoContainers(epoch string) { s.q.Push(ShellNoContainers{Epoch: epoch}) }

type viewSink struct{ q *Queue }

func (s viewSink) TabChanged(epoch string, tab controller.Tab) {
	s.q.Push(TabChanged{Epoch: epoch, Tab: tab})
}

// terminal forwards writes for one shell connection.
type terminal struct {
	q      *Queue
	connID string
}

func (t *terminal) Write(p []byte) {
	t.q.Push(ShellOutput{ConnID: t.connID, Data: clone(p)})
}

func (t *terminal) Dispose() {
	t.q.Push(ShellDisposed{ConnID: t.connID})
}

func clone(p []byte) []byte {
	return append([]byte(nil), p...)
}

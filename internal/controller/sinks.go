// pattern: Functional Core

package controller

import "bunshinctl/internal/stream"

// Tab is the visible panel of the stack view.
type Tab string

const (
	TabDefinition Tab = "definition"
	TabLogs       Tab = "logs"
	TabShell      Tab = "shell"
)

// Kind returns the stream kind a tab shows, if any.
func (t Tab) Kind() (stream.Kind, bool) {
	switch t {
	case TabLogs:
		return stream.KindLogs, true
	case TabShell:
		return stream.KindShell, true
	}
	return "", false
}

// ShellErrorText is written into the terminal when the shell stream fails.
const ShellErrorText = "\r\nError connecting to shell\r\n"

// Sinks receive output from the pump goroutines. Implementations must not
// call back into the Controller synchronously. Calls that start something
// carry the epoch of the selection they belong to.

// LogSink renders the log stream.
type LogSink interface {
	// Connecting is called when a log connection is being opened.
	Connecting(epoch, connID string)
	// Line is called once per inbound frame, in arrival order.
	Line(connID string, line []byte)
	// Failed is called once if the connection ends with an error.
	Failed(connID string, err error)
	// NoContainers is called instead of opening when the stack has none.
	NoContainers(epoch string)
}

// Terminal is one terminal surface.
type Terminal interface {
	Write(p []byte)
	Dispose()
}

// ShellSink creates terminal surfaces for shell connections.
type ShellSink interface {
	NewTerminal(epoch, connID string, cols, rows int) Terminal
	NoContainers(epoch string)
}

// View is told which tab is visible.
type View interface {
	TabChanged(epoch string, tab Tab)
}

// Counters tracks connections opened and closed per kind.
type Counters struct {
	Opened map[stream.Kind]int
	Closed map[stream.Kind]int
}

// Live is the number of connections of kind opened and not yet closed.
func (c Counters) Live(kind stream.Kind) int {
	return c.Opened[kind] - c.Closed[kind]
}

func (c Counters) clone() Counters {
	out := Counters{Opened: map[stream.Kind]int{}, Closed: map[stream.Kind]int{}}
	for k, v := range c.Opened {
		out.Opened[k] = v
	}
	for k, v := range c.Closed {
		out.Closed[k] = v
	}
	return out
}

type nopView struct{}

func (nopView) TabChanged(string, Tab) {}

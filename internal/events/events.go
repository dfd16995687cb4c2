// Package events carries messages from background goroutines (stream
// pumps, the status poller, the operation worker) into the TUI.
package events

import (
	"bunshinctl/internal/controller"
	"bunshinctl/internal/poller"
)

// LogConnecting is sent when a log connection starts opening.
type LogConnecting struct{ Epoch, ConnID string }

// LogLine is one inbound log frame.
type LogLine struct {
	ConnID string
	Line   []byte
}

// LogFailed is sent when a log connection ends with an error.
type LogFailed struct {
	ConnID string
	Err    error
}

// LogNoContainers is sent instead of LogConnecting when the stack has no
// containers.
type LogNoContainers struct{ Epoch string }

// ShellOpened is sent when a fresh terminal surface is created.
type ShellOpened struct {
	Epoch      string
	ConnID     string
	Cols, Rows int
}

// ShellOutput is data to write into the terminal surface of ConnID.
type ShellOutput struct {
	ConnID string
	Data   []byte
}

// ShellDisposed is sent when the terminal surface of ConnID goes away.
type ShellDisposed struct{ ConnID string }

// ShellNoContainers is sent instead of ShellOpened when the stack has no
// containers.
type ShellNoContainers struct{ Epoch string }

// TabChanged mirrors the controller's visible tab.
type TabChanged struct {
	Epoch string
	Tab   controller.Tab
}

// StatusPolled is one status poll result.
type StatusPolled struct{ Result poller.Result }

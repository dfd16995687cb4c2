// pattern: Functional Core

package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Container is one running container of a stack.
type Container struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ShortID returns the first 12 characters of the container id.
func (c Container) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// Label is the text shown in container selectors.
func (c Container) Label() string {
	if c.Name == "" {
		return c.ShortID()
	}
	return c.Name
}

// Definition is a stack's manifest and env file, stored verbatim.
type Definition struct {
	YAML string `json:"yaml"`
	Env  string `json:"env"`
}

// Status is the backend's textual stack status.
type Status string

const (
	StatusOperational Status = "Operational"
	StatusStopped     Status = "Stopped"
)

// ParseStatus maps the status body onto a Status. Only the exact text
// "Operational" (surrounding whitespace ignored) counts as running.
func ParseStatus(body string) Status {
	if strings.TrimSpace(body) == string(StatusOperational) {
		return StatusOperational
	}
	return StatusStopped
}

// Running reports whether the stack is up.
func (s Status) Running() bool {
	return s == StatusOperational
}

// Action is a lifecycle command accepted by /api/stack/action.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionUpdate Action = "update"
)

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionStop, ActionUpdate:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// extractErrorMessage prefers a JSON {"error": "..."} body and falls back
// to the trimmed raw text.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return strings.TrimSpace(string(body))
}

// pattern: Functional Core

package stack

import "bunshinctl/internal/api"

// ToggleAction is the action the start/stop control sends for the last
// known status: stop when Operational, start for anything else.
func ToggleAction(status api.Status) api.Action {
	if status.Running() {
		return api.ActionStop
	}
	return api.ActionStart
}

// pattern: Imperative Shell

package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// stackItem wraps a stack name for display in a list.
type stackItem struct {
	name string
}

// Title returns the stack name for display.
func (i stackItem) Title() string {
	return i.name
}

// Description is unused; stacks render on one line.
func (i stackItem) Description() string {
	return ""
}

// FilterValue returns the value to filter on.
func (i stackItem) FilterValue() string {
	return i.name
}

// stackDelegate renders stack names, marking the open stack.
type stackDelegate struct {
	styles  *Styles
	current string
}

// newStackDelegate creates a new stack delegate with the given styles.
func newStackDelegate(styles *Styles) stackDelegate {
	return stackDelegate{styles: styles}
}

// WithCurrent returns a delegate that highlights the open stack.
func (d stackDelegate) WithCurrent(name string) stackDelegate {
	d.current = name
	return d
}

// Height returns the height of a single item.
func (d stackDelegate) Height() int {
	return 1
}

// Spacing returns the spacing between items.
func (d stackDelegate) Spacing() int {
	return 0
}

// Update handles item-specific updates.
func (d stackDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// Render renders a single stack item.
func (d stackDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	si, ok := item.(stackItem)
	if !ok {
		return
	}

	isSelected := index == m.Index()
	isCurrent := si.name == d.current

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(d.styles.flavor.Text().Hex))
	if isCurrent {
		titleStyle = titleStyle.
			Bold(true).
			Foreground(lipgloss.Color(d.styles.flavor.Mauve().Hex))
	}

	indicator := "  "
	if isSelected {
		indicator = lipgloss.NewStyle().
			Foreground(lipgloss.Color(d.styles.flavor.Mauve().Hex)).
			Render("▸ ")
	}

	marker := " "
	if isCurrent {
		marker = lipgloss.NewStyle().
			Foreground(lipgloss.Color(d.styles.flavor.Teal().Hex)).
			Render("●")
	}

	_, _ = fmt.Fprintf(w, "%s%s %s", indicator, marker, titleStyle.Render(si.name))
}

// toListItems converts stack names to list items.
func toListItems(names []string) []list.Item {
	items := make([]list.Item, len(names))
	for i, n := range names {
		items[i] = stackItem{name: n}
	}
	return items
}

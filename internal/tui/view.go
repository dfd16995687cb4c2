// pattern: Imperative Shell

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"bunshinctl/internal/controller"
	"bunshinctl/internal/stream"
)

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading…"
	}

	layout := ComputeLayout(m.width, m.height)

	// Alert is a blocking modal overlay
	if m.alert != "" {
		return m.renderAlert()
	}

	sidebar := m.renderSidebar(layout)

	var main string
	if m.form.open {
		main = m.renderNewStackForm(layout)
	} else {
		main = lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(layout),
			m.renderTabs(layout),
			m.renderContent(layout),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	statusBar := lipgloss.NewStyle().Width(layout.StatusBar.Width).Render(m.renderStatusBar(layout.StatusBar.Width))
	return lipgloss.JoinVertical(lipgloss.Left, body, statusBar)
}

func (m Model) renderSidebar(layout Layout) string {
	title := m.styles.TitleStyle().Render("Stacks")
	var list string
	if len(m.stacks) == 0 {
		list = m.styles.SubtitleStyle().Render("No stacks")
	} else {
		list = m.stackList.View()
	}
	return m.styles.SidebarStyle().
		Width(layout.Sidebar.Width - 1).
		Height(layout.Sidebar.Height).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, "", list))
}

// renderHeader shows the stack title with its status and the toggle and
// save buttons.
func (m Model) renderHeader(layout Layout) string {
	if m.stack == "" {
		return lipgloss.NewStyle().Width(layout.Header.Width).Height(layout.Header.Height).
			Render(m.styles.SubtitleStyle().Render("Select a stack (enter) or create one (n)"))
	}

	title := m.styles.TitleStyle().Render(m.stack)

	statusText := "…"
	if m.statusKnown {
		statusText = string(m.status)
	}
	dot := m.styles.StatusDotStyle(m.statusKnown, m.status.Running()).Render("●")
	status := dot + " " + m.styles.InfoStyle().Render(statusText)

	buttons := m.styles.ButtonStyle(!m.actionPending).Render(m.toggleLabel()) + " " +
		m.styles.ButtonStyle(m.saveState == SaveIdle).Render(m.saveState.Label())

	top := title + "  " + status
	gap := layout.Header.Width - lipgloss.Width(top) - lipgloss.Width(buttons)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().Width(layout.Header.Width).Height(layout.Header.Height).
		Render(top + strings.Repeat(" ", gap) + buttons)
}

// toggleLabel is WAIT while an action is in flight, otherwise the action
// the toggle would run.
func (m Model) toggleLabel() string {
	if m.actionPending {
		return m.statusSpinner.View() + " WAIT"
	}
	if m.status.Running() {
		return "STOP"
	}
	return "START"
}

func (m Model) renderTabs(layout Layout) string {
	tabs := []struct {
		key string
		tab controller.Tab
	}{
		{"1", controller.TabDefinition},
		{"2", controller.TabLogs},
		{"3", controller.TabShell},
	}
	var parts []string
	for _, t := range tabs {
		label := fmt.Sprintf("%s %s", t.key, strings.ToUpper(string(t.tab[:1]))+string(t.tab[1:]))
		parts = append(parts, m.styles.TabStyle(m.tab == t.tab).Render(label))
	}
	return lipgloss.NewStyle().Width(layout.Tabs.Width).Render(strings.Join(parts, " "))
}

func (m Model) renderContent(layout Layout) string {
	var content string
	switch {
	case m.stack == "":
		content = ""
	case m.tab == controller.TabLogs:
		content = m.renderLogs(layout)
	case m.tab == controller.TabShell:
		content = m.renderShell(layout)
	default:
		content = m.renderDefinition(layout)
	}
	return lipgloss.NewStyle().
		Width(layout.Content.Width).
		Height(layout.Content.Height).
		MaxHeight(layout.Content.Height).
		Render(content)
}

// renderDefinition shows the two editors. Without editor focus the files
// are shown read-only with syntax highlighting.
func (m Model) renderDefinition(layout Layout) string {
	focused := m.focus == FocusEditor
	yamlLabel := m.styles.PanelHeaderStyle(focused && !m.editingEnv).Render("compose.yml")
	envLabel := m.styles.PanelHeaderStyle(focused && m.editingEnv).Render(".env")

	yamlView, envView := m.yamlEditor.View(), m.envEditor.View()
	if !focused {
		width, height := max(layout.Content.Width-2, 10), layout.EditorHeight()
		if v := m.yamlEditor.Value(); v != "" {
			yamlView = highlightBlock(v, yamlLexer, m.styles, width, height)
		}
		if v := m.envEditor.Value(); v != "" {
			envView = highlightBlock(v, envLexer, m.styles, width, height)
		}
	}

	checkStyle := m.styles.SubtitleStyle()
	if m.checkFailed {
		checkStyle = m.styles.ErrorStyle()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		yamlLabel,
		yamlView,
		envLabel,
		envView,
		checkStyle.Render(m.check),
	)
}

// renderSelector renders the container selector line for kind.
func (m Model) renderSelector(kind stream.Kind) string {
	if len(m.containers) == 0 {
		return m.styles.SubtitleStyle().Render("Container: -")
	}
	current := m.target(kind)
	label := current
	for i, c := range m.containers {
		if c.ID == current {
			label = fmt.Sprintf("%s (%d/%d)", c.Label(), i+1, len(m.containers))
			break
		}
	}
	return m.styles.SubtitleStyle().Render("Container: ") +
		m.styles.AccentStyle().Render(label) +
		m.styles.HelpStyle().Render("  [/]: switch")
}

func (m Model) renderLogs(layout Layout) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderSelector(stream.KindLogs),
		m.logViewport.View(),
	)
}

func (m Model) renderShell(layout Layout) string {
	selector := m.renderSelector(stream.KindShell)
	if m.focus == FocusShell {
		selector += m.styles.AccentStyle().Render("  [attached, ctrl+] to detach]")
	}

	var body string
	switch {
	case m.noContainer[stream.KindShell]:
		body = m.styles.SubtitleStyle().Render("No containers available")
	case m.term == nil:
		body = m.styles.SubtitleStyle().Render("Connecting to shell…")
	default:
		lines := m.term.Lines()
		if limit := layout.Content.Height - 1; limit > 0 && len(lines) > limit {
			lines = lines[len(lines)-limit:]
		}
		for i, line := range lines {
			lines[i] = ansi.Truncate(line, layout.Content.Width, "")
		}
		body = strings.Join(lines, "\n")
	}
	return lipgloss.JoinVertical(lipgloss.Left, selector, body)
}

func (m Model) renderNewStackForm(layout Layout) string {
	title := m.styles.TitleStyle().Render("New Stack")

	nameLine := m.styles.AccentStyle().Render("▸ Name: ") + m.form.input.View()

	templateValue := m.styles.AccentStyle().Render(m.FormTemplateName())
	if len(m.templates) > 0 {
		templateValue += m.styles.HelpStyle().Render(fmt.Sprintf(" (↑↓ to change, %d/%d)", m.form.templateIdx+1, len(m.templates)+1))
	}
	templateLine := "Template: " + templateValue

	parts := []string{title, "", nameLine, templateLine}
	if m.form.err != "" {
		parts = append(parts, m.styles.ErrorStyle().Render(m.form.err))
	}
	if m.form.submitting {
		parts = append(parts, m.styles.InfoStatusStyle().Render("Creating…"))
	}
	parts = append(parts, "", m.styles.HelpStyle().Render("Enter: create • Esc: cancel"))

	return m.styles.BoxStyle().
		Width(layout.Content.Width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderAlert() string {
	box := m.styles.AlertStyle().Render(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.ErrorStyle().Render("Error"),
		"",
		m.alert,
		"",
		m.styles.HelpStyle().Render("Enter: dismiss"),
	))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderStatusBar(width int) string {
	var statusIcon string
	var messageStyle lipgloss.Style

	switch m.statusLevel {
	case StatusLoading:
		statusIcon = m.statusSpinner.View()
		messageStyle = m.styles.InfoStatusStyle()
	case StatusSuccess:
		statusIcon = m.styles.SuccessStyle().Render("✓")
		messageStyle = m.styles.SuccessStyle()
	case StatusError:
		statusIcon = m.styles.ErrorStyle().Render("✗")
		messageStyle = m.styles.ErrorStyle()
	default: // StatusInfo
		statusIcon = ""
		messageStyle = m.styles.InfoStatusStyle()
	}

	// Build status message
	var statusText string
	if statusIcon != "" {
		statusText = statusIcon + " " + messageStyle.Render(m.statusMessage)
	} else if m.statusMessage != "" {
		statusText = messageStyle.Render(m.statusMessage)
	} else if m.diagnostic != nil {
		statusText = m.styles.HelpStyle().Render(ansi.Truncate(m.diagnostic.String(), width/2, "…"))
	}

	// Add error hint if in error state
	if m.statusLevel == StatusError {
		statusText += m.styles.HelpStyle().Render(" (esc to clear)")
	}

	help := m.renderContextualHelp()

	spacerWidth := width - lipgloss.Width(statusText) - lipgloss.Width(help) - 2
	if spacerWidth < 1 {
		spacerWidth = 1
	}

	return lipgloss.JoinHorizontal(lipgloss.Bottom,
		statusText,
		strings.Repeat(" ", spacerWidth),
		help,
	)
}

// renderContextualHelp returns help text based on current focus and tab.
func (m Model) renderContextualHelp() string {
	var help string
	switch {
	case m.form.open:
		help = "enter: create • esc: cancel"
	case m.focus == FocusEditor:
		help = "tab: yaml/env • ctrl+s: save • esc: done"
	case m.focus == FocusShell:
		help = "ctrl+]: detach"
	case m.stack == "":
		help = "↑/↓: navigate • enter: open • n: new • r: reload • q: quit"
	case m.tab == controller.TabLogs:
		help = "[/]: container • c: color • pgup/pgdn • y: copy id • s: start/stop • q: quit"
	case m.tab == controller.TabShell:
		help = "i: attach • [/]: container • y: copy id • s: start/stop • q: quit"
	default:
		help = "e: edit • ctrl+s: save • 1/2/3: tabs • s: start/stop • u: update • n: new • q: quit"
	}
	return m.styles.HelpStyle().Render(help)
}

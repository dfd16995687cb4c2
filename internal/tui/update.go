// pattern: Imperative Shell

package tui

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"bunshinctl/internal/api"
	"bunshinctl/internal/controller"
	"bunshinctl/internal/events"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/stack"
	"bunshinctl/internal/stream"
)

// doubleCtrlCWindow is the maximum time between two ctrl+c presses to trigger quit.
const doubleCtrlCWindow = 500 * time.Millisecond

// listKeys are forwarded to the stack list.
var listKeys = map[string]bool{
	"up": true, "down": true, "k": true, "j": true, "home": true, "end": true,
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if !m.actionPending && m.statusLevel != StatusLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.statusSpinner, cmd = m.statusSpinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventsMsg:
		var cmds []tea.Cmd
		for _, ev := range msg.batch {
			var cmd tea.Cmd
			m, cmd = m.handleEvent(ev)
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, waitForEvents(m.queue))
		return m, tea.Batch(cmds...)

	case logEntryMsg:
		// compose findings already show in the check summary
		if msg.entry.Level.AtLeast(logging.LevelWarn) && !msg.entry.InScope("compose") {
			entry := msg.entry
			m.diagnostic = &entry
		}
		return m, waitForLogEntry(m.entries)

	case stacksLoadedMsg:
		if msg.err != nil {
			m.logger.Error("list stacks failed", "error", msg.err)
			m.setError("Failed to load stacks", msg.err)
			return m, nil
		}
		m.setStacks(msg.names)
		if msg.selectName != "" && slices.Contains(msg.names, msg.selectName) {
			return m, m.selectStack(msg.selectName)
		}
		return m, nil

	case clearStatusMsg:
		// Only clear if still showing the quit hint (don't clobber other status)
		if m.statusLevel == StatusInfo {
			m.clearStatus()
		}
		return m, nil

	case saveResetMsg:
		if msg.seq == m.saveSeq && m.saveState == SaveDone {
			m.saveState = SaveIdle
		}
		return m, nil

	case formErrResetMsg:
		if msg.seq == m.form.errSeq {
			m.form.err = ""
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.logger.Warn("clipboard write failed", "error", msg.err)
			m.setError("Copy failed", msg.err)
			return m, nil
		}
		m.setSuccess("Copied " + api.Container{ID: msg.id}.ShortID())
		return m, nil
	}

	return m, nil
}

// handleEvent applies one queued message: a stream or poller event, or
// the result of a worker job.
func (m Model) handleEvent(ev any) (Model, tea.Cmd) {
	switch ev := ev.(type) {
	case events.TabChanged:
		if ev.Epoch != m.epoch {
			return m, nil
		}
		m.tab = ev.Tab

	case events.LogConnecting:
		if ev.Epoch != m.epoch {
			m.logger.Debug("stale log connection dropped", "conn", ev.ConnID)
			return m, nil
		}
		m.logConn = ev.ConnID
		m.logLines = nil
		m.logConnecting = true
		m.logErr = nil
		m.noContainer[stream.KindLogs] = false
		m.logAutoScroll = true
		m.updateLogViewport()

	case events.LogLine:
		if ev.ConnID != m.logConn {
			return m, nil
		}
		m.logConnecting = false
		m.appendLogLines(ev.Line)
		m.updateLogViewport()

	case events.LogFailed:
		if ev.ConnID != m.logConn {
			return m, nil
		}
		m.logConnecting = false
		m.logErr = ev.Err
		m.updateLogViewport()

	case events.LogNoContainers:
		if ev.Epoch != m.epoch {
			return m, nil
		}
		m.logConn = ""
		m.logLines = nil
		m.logConnecting = false
		m.logErr = nil
		m.noContainer[stream.KindLogs] = true
		m.updateLogViewport()

	case events.ShellOpened:
		if ev.Epoch != m.epoch {
			m.logger.Debug("stale shell dropped", "conn", ev.ConnID)
			return m, nil
		}
		m.term = NewTerminal(ev.Cols, ev.Rows)
		m.shellConn = ev.ConnID
		m.noContainer[stream.KindShell] = false

	case events.ShellOutput:
		if ev.ConnID == m.shellConn && m.term != nil {
			m.term.Write(ev.Data)
		}

	case events.ShellDisposed:
		if ev.ConnID == m.shellConn {
			m.term = nil
			m.shellConn = ""
			if m.focus == FocusShell {
				m.focus = FocusList
			}
		}

	case events.ShellNoContainers:
		if ev.Epoch != m.epoch {
			return m, nil
		}
		m.term = nil
		m.shellConn = ""
		m.noContainer[stream.KindShell] = true

	case events.StatusPolled:
		r := ev.Result
		if r.Stack != m.stack {
			return m, nil
		}
		if r.Err != nil {
			return m, nil
		}
		m.status = r.Status
		m.statusKnown = true

	case stackSelectedMsg:
		if ev.sel.Stack != m.stack || !m.ctrl.Current(ev.sel.Epoch) {
			m.logger.Debug("stale selection dropped", "stack", ev.sel.Stack)
			return m, nil
		}
		m.epoch = ev.sel.Epoch
		if ev.err != nil {
			m.setError("Failed to load "+ev.sel.Stack, ev.err)
			return m, nil
		}
		m.setDefinition(ev.sel.Definition)
		m.check = "checking…"
		m.submit(m.checkJob(m.epoch, m.stack, ev.sel.Definition))

	case streamsMsg:
		if ev.epoch != m.epoch {
			return m, nil
		}
		m.containers = ev.containers
		m.targets = ev.targets
		if ev.err != nil && !errors.Is(ev.err, controller.ErrNoStack) {
			m.setError("Stream failed", ev.err)
		}

	case checkedMsg:
		if ev.epoch != m.epoch {
			return m, nil
		}
		m.checkFailed = ev.err != nil
		if ev.err != nil {
			m.check = ev.err.Error()
		} else {
			m.check = ev.report.String()
		}

	case savedMsg:
		if ev.seq != m.saveSeq || ev.stack != m.stack {
			return m, nil
		}
		if ev.err != nil {
			m.logger.Error("save failed", "stack", ev.stack, "error", ev.err)
			m.saveState = SaveIdle
			m.alert = fmt.Sprintf("Failed to save %s: %v", ev.stack, ev.err)
			return m, nil
		}
		m.logger.Info("stack saved", "stack", ev.stack)
		m.definition = ev.def
		m.saveState = SaveDone
		m.submit(m.checkJob(m.epoch, m.stack, ev.def))
		return m, tickAfter(feedbackTime, saveResetMsg{seq: ev.seq})

	case actionDoneMsg:
		if ev.stack != m.stack {
			return m, nil
		}
		m.actionPending = false
		if m.statusLevel == StatusLoading {
			m.clearStatus()
		}
		if ev.err != nil {
			m.logger.Error("stack action failed", "stack", ev.stack, "action", ev.action, "error", ev.err)
			m.setError(fmt.Sprintf("Failed to %s %s", ev.action, ev.stack), ev.err)
			return m, nil
		}
		m.logger.Info("stack action completed", "stack", ev.stack, "action", ev.action)
		m.setSuccess(actionSuccess(ev.action, ev.stack))

	case stackCreatedMsg:
		m.form.submitting = false
		if ev.err != nil {
			m.logger.Error("create stack failed", "stack", ev.name, "error", ev.err)
			m.resetForm()
			m.alert = fmt.Sprintf("Failed to create %s: %v", ev.name, ev.err)
			return m, nil
		}
		m.resetForm()
		if ev.listErr != nil {
			m.logger.Warn("reload stacks failed", "error", ev.listErr)
			ev.names = append(slices.Clone(m.stacks), ev.name)
		}
		m.setStacks(ev.names)
		m.setSuccess("Created " + ev.name)
		return m, m.selectStack(ev.name)
	}
	return m, nil
}

func actionSuccess(action api.Action, name string) string {
	switch action {
	case api.ActionStart:
		return "Started " + name
	case api.ActionStop:
		return "Stopped " + name
	default:
		return "Updated " + name
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Shell focus gets every key except the escape hatch.
	if m.focus == FocusShell && m.alert == "" {
		if msg.Type == tea.KeyCtrlCloseBracket {
			m.focus = FocusList
			return m, nil
		}
		if b := keyBytes(msg); b != nil {
			m.ctrl.SendInput(b)
		}
		return m, nil
	}

	if msg.Type == tea.KeyCtrlC {
		now := time.Now()
		if !m.lastCtrlCTime.IsZero() && now.Sub(m.lastCtrlCTime) <= doubleCtrlCWindow {
			m.logger.Debug("quit via double ctrl+c")
			return m.quit()
		}
		m.lastCtrlCTime = now
		m.statusLevel = StatusInfo
		m.statusMessage = "ctrl+c again to quit"
		return m, tickAfter(4*time.Second, clearStatusMsg{})
	}

	// A blocking alert swallows keys until dismissed.
	if m.alert != "" {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyEscape, tea.KeySpace:
			m.alert = ""
		}
		return m, nil
	}

	if m.form.open {
		return m.handleFormKey(msg)
	}

	if msg.Type == tea.KeyCtrlS {
		return m.save()
	}

	if m.focus == FocusEditor {
		return m.handleEditorKey(msg)
	}

	// Clear error with Escape
	if msg.Type == tea.KeyEscape && m.statusLevel == StatusError {
		m.clearStatus()
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m.quit()

	case "1":
		return m.switchTab(controller.TabDefinition)
	case "2":
		return m.switchTab(controller.TabLogs)
	case "3":
		return m.switchTab(controller.TabShell)
	case "tab":
		return m.switchTab(nextTab(m.tab))

	case "enter":
		if item, ok := m.stackList.SelectedItem().(stackItem); ok {
			return m, m.selectStack(item.name)
		}
		return m, nil

	case "n":
		m.logger.Debug("opening new stack form")
		return m, m.openForm()

	case "r":
		m.logger.Debug("reload stacks requested")
		return m, m.loadStacks("")

	case "s":
		if m.stack == "" || m.actionPending {
			return m, nil
		}
		return m.runAction(stack.ToggleAction(m.status))

	case "u":
		if m.stack == "" || m.actionPending {
			return m, nil
		}
		return m.runAction(api.ActionUpdate)

	case "e":
		if m.tab == controller.TabDefinition && m.stack != "" {
			m.focus = FocusEditor
			return m, m.focusEditor()
		}

	case "i":
		if m.tab == controller.TabShell && m.shellConn != "" {
			m.focus = FocusShell
			return m, nil
		}

	case "[", "]":
		return m.cycleContainer(msg.String() == "]")

	case "c":
		m.prefs.NoColor = !m.prefs.NoColor
		m.updateLogViewport()
		return m, m.savePrefs()

	case "y":
		kind := stream.KindLogs
		if k, ok := m.tab.Kind(); ok {
			kind = k
		}
		id := m.target(kind)
		if id == "" {
			m.statusLevel = StatusInfo
			m.statusMessage = "No container selected"
			return m, tickAfter(feedbackTime, clearStatusMsg{})
		}
		return m, m.copyContainerID(id)

	case "pgup":
		m.logViewport.HalfPageUp()
		m.logAutoScroll = false
		return m, nil
	case "pgdown":
		m.logViewport.HalfPageDown()
		m.logAutoScroll = m.logViewport.AtBottom()
		return m, nil
	case "g":
		m.logViewport.GotoTop()
		m.logAutoScroll = false
		return m, nil
	case "G":
		m.logViewport.GotoBottom()
		m.logAutoScroll = true
		return m, nil
	}

	if listKeys[msg.String()] {
		var cmd tea.Cmd
		m.stackList, cmd = m.stackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.focus = FocusList
		m.yamlEditor.Blur()
		m.envEditor.Blur()
		return m, nil
	case tea.KeyTab:
		m.editingEnv = !m.editingEnv
		return m, m.focusEditor()
	}

	var cmd tea.Cmd
	if m.editingEnv {
		m.envEditor, cmd = m.envEditor.Update(msg)
	} else {
		m.yamlEditor, cmd = m.yamlEditor.Update(msg)
	}
	return m, cmd
}

func (m *Model) focusEditor() tea.Cmd {
	if m.editingEnv {
		m.yamlEditor.Blur()
		return m.envEditor.Focus()
	}
	m.envEditor.Blur()
	return m.yamlEditor.Focus()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// selectStack resets the stack view and asks the controller to switch.
func (m *Model) selectStack(name string) tea.Cmd {
	m.logger.Info("selecting stack", "stack", name)
	m.stack = name
	m.epoch = ""
	m.tab = controller.TabDefinition
	m.focus = FocusList
	m.containers = nil
	m.targets = map[stream.Kind]string{}
	m.noContainer = map[stream.Kind]bool{}
	m.status = ""
	m.statusKnown = false
	m.actionPending = false
	m.saveState = SaveIdle
	m.saveSeq++
	m.check = ""
	m.checkFailed = false
	m.setDefinition(api.Definition{})
	m.logConn = ""
	m.logLines = nil
	m.logConnecting = false
	m.logErr = nil
	m.term = nil
	m.shellConn = ""
	m.updateLogViewport()

	m.stackDelegate = m.stackDelegate.WithCurrent(name)
	m.stackList.SetDelegate(m.stackDelegate)
	if i := slices.Index(m.stacks, name); i >= 0 {
		m.stackList.Select(i)
	}
	m.prefs.LastStack = name

	m.submit(m.selectStackJob(name))
	return nil
}

func (m Model) switchTab(tab controller.Tab) (tea.Model, tea.Cmd) {
	if _, streams := tab.Kind(); streams && m.stack == "" {
		m.statusLevel = StatusInfo
		m.statusMessage = "Select a stack first"
		return m, tickAfter(feedbackTime, clearStatusMsg{})
	}
	m.logger.Debug("switching tab", "from", m.tab, "to", tab)
	m.tab = tab
	m.focus = FocusList
	m.submit(m.selectTabJob(tab))
	return m, nil
}

func nextTab(tab controller.Tab) controller.Tab {
	switch tab {
	case controller.TabDefinition:
		return controller.TabLogs
	case controller.TabLogs:
		return controller.TabShell
	default:
		return controller.TabDefinition
	}
}

func (m Model) cycleContainer(forward bool) (tea.Model, tea.Cmd) {
	kind, ok := m.tab.Kind()
	if !ok || len(m.containers) == 0 {
		return m, nil
	}
	idx := 0
	current := m.target(kind)
	for i, c := range m.containers {
		if c.ID == current {
			idx = i
			break
		}
	}
	n := len(m.containers)
	if forward {
		idx = (idx + 1) % n
	} else {
		idx = (idx + n - 1) % n
	}
	id := m.containers[idx].ID
	m.targets[kind] = id
	m.logger.Debug("container selected", "kind", kind, "container", id)
	m.submit(m.selectContainerJob(kind, id))
	return m, nil
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.stack == "" || m.saveState == SaveBusy {
		return m, nil
	}
	m.saveState = SaveBusy
	m.saveSeq++
	m.submit(m.saveJob(m.stack, m.saveSeq, m.Definition()))
	return m, nil
}

func (m Model) runAction(action api.Action) (tea.Model, tea.Cmd) {
	m.logger.Info("stack action requested", "stack", m.stack, "action", action)
	m.actionPending = true
	cmd := m.setLoading(fmt.Sprintf("%s %s…", actionVerb(action), m.stack))
	m.submit(m.actionJob(m.stack, action))
	return m, cmd
}

func actionVerb(action api.Action) string {
	switch action {
	case api.ActionStart:
		return "Starting"
	case api.ActionStop:
		return "Stopping"
	default:
		return "Updating"
	}
}

func (m *Model) setStacks(names []string) {
	m.stacks = slices.Clone(names)
	m.stackList.SetItems(toListItems(m.stacks))
	if i := slices.Index(m.stacks, m.stack); i >= 0 {
		m.stackList.Select(i)
	}
}

func (m *Model) setDefinition(def api.Definition) {
	m.definition = def
	m.yamlEditor.SetValue(def.YAML)
	m.envEditor.SetValue(def.Env)
	rewind(&m.yamlEditor)
	rewind(&m.envEditor)
}

// rewind moves the cursor to the first line; SetValue leaves it at the end.
func rewind(ta *textarea.Model) {
	for ta.Line() > 0 {
		ta.CursorUp()
	}
	ta.CursorStart()
}

// appendLogLines adds one frame to the log buffer. A frame is normally a
// single line; embedded newlines split it.
func (m *Model) appendLogLines(frame []byte) {
	frame = bytes.TrimSuffix(frame, []byte("\n"))
	frame = bytes.TrimSuffix(frame, []byte("\r"))
	for _, line := range strings.Split(string(frame), "\n") {
		m.logLines = append(m.logLines, strings.TrimSuffix(line, "\r"))
	}
	if over := len(m.logLines) - maxLogLines; over > 0 {
		m.logLines = append([]string(nil), m.logLines[over:]...)
	}
}

// updateLogViewport re-renders the log buffer into the viewport.
func (m *Model) updateLogViewport() {
	width := m.logViewport.Width
	lines := make([]string, 0, len(m.logLines)+1)
	switch {
	case m.noContainer[stream.KindLogs]:
		lines = append(lines, "No containers available")
	case m.logConnecting && len(m.logLines) == 0:
		lines = append(lines, "Connecting to logs…")
	}
	for _, line := range m.logLines {
		if m.prefs.NoColor {
			line = ansi.Strip(line)
		}
		if width > 0 {
			line = ansi.Truncate(line, width, "")
		}
		lines = append(lines, line)
	}
	if m.logErr != nil {
		lines = append(lines, m.styles.ErrorStyle().Render("Connection error: "+m.logErr.Error()))
	}
	m.logViewport.SetContent(strings.Join(lines, "\n"))
	if m.logAutoScroll {
		m.logViewport.GotoBottom()
	}
}

func (m *Model) resize() {
	layout := ComputeLayout(m.width, m.height)
	m.stackList.SetSize(layout.Sidebar.Width-2, layout.ListHeight())

	editorWidth := layout.Content.Width - 2
	if editorWidth < 10 {
		editorWidth = 10
	}
	m.yamlEditor.SetWidth(editorWidth)
	m.envEditor.SetWidth(editorWidth)
	m.yamlEditor.SetHeight(layout.EditorHeight())
	m.envEditor.SetHeight(layout.EditorHeight())

	m.logViewport.Width = layout.Content.Width
	m.logViewport.Height = layout.LogHeight()
	m.updateLogViewport()
}

// Status bar helpers.

func (m *Model) setLoading(message string) tea.Cmd {
	m.statusLevel = StatusLoading
	m.statusMessage = message
	return m.statusSpinner.Tick
}

func (m *Model) setSuccess(message string) {
	m.statusLevel = StatusSuccess
	m.statusMessage = message
}

func (m *Model) setError(message string, err error) {
	m.statusLevel = StatusError
	m.statusMessage = fmt.Sprintf("%s: %v", message, err)
}

func (m *Model) clearStatus() {
	m.statusLevel = StatusInfo
	m.statusMessage = ""
}

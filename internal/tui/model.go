package tui

import (
	"net/url"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"bunshinctl/internal/api"
	"bunshinctl/internal/config"
	"bunshinctl/internal/controller"
	"bunshinctl/internal/events"
	"bunshinctl/internal/logging"
	"bunshinctl/internal/poller"
	"bunshinctl/internal/prefs"
	"bunshinctl/internal/stack"
	"bunshinctl/internal/stream"
)

// StatusLevel is the severity of the status bar message.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusError
	StatusLoading
)

func (l StatusLevel) String() string {
	switch l {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusLoading:
		return "loading"
	default:
		return "info"
	}
}

// Focus is the part of the screen receiving keys.
type Focus int

const (
	FocusList   Focus = iota // stack list and tab shortcuts
	FocusEditor              // definition editors
	FocusShell               // keystrokes go to the shell
)

// SaveState drives the save button label.
type SaveState int

const (
	SaveIdle SaveState = iota
	SaveBusy
	SaveDone
)

func (s SaveState) Label() string {
	switch s {
	case SaveBusy:
		return "SAVING"
	case SaveDone:
		return "DONE"
	default:
		return "SAVE"
	}
}

const (
	maxLogLines  = 5000
	feedbackTime = 2 * time.Second
)

// Deps are the collaborators the TUI drives.
type Deps struct {
	Client  api.Backend
	Dialer  stream.Dialer
	BaseURL *url.URL

	Logs    logging.Provider
	Entries <-chan logging.LogEntry // diagnostic feed for the status bar

	Prefs     prefs.Prefs
	PrefsPath string
	Templates []config.Template

	// Clipboard defaults to the system clipboard.
	Clipboard func(string) error
}

// Model represents the TUI application state.
type Model struct {
	width  int
	height int
	styles *Styles

	cfg       config.Config
	client    api.Backend
	ctrl      *controller.Controller
	poller    *poller.Poller
	queue     *events.Queue
	worker    *events.Worker
	logger    *logging.ScopedLogger
	entries   <-chan logging.LogEntry
	prefs     prefs.Prefs
	prefsPath string
	templates []config.Template
	clipboard func(string) error

	stackList     list.Model
	stackDelegate stackDelegate
	stacks        []string

	// Selected stack, mirrored from the controller.
	stack       string
	epoch       string
	definition  api.Definition
	tab         controller.Tab
	focus       Focus
	containers  []api.Container
	targets     map[stream.Kind]string
	noContainer map[stream.Kind]bool

	status        api.Status
	statusKnown   bool
	actionPending bool

	yamlEditor  textarea.Model
	envEditor   textarea.Model
	editingEnv  bool
	saveState   SaveState
	saveSeq     int
	check       string
	checkFailed bool

	logConn       string
	logLines      []string
	logConnecting bool
	logErr        error
	logViewport   viewport.Model
	logAutoScroll bool

	term      *Terminal
	shellConn string

	form newStackForm

	alert string

	statusLevel   StatusLevel
	statusMessage string
	statusSpinner spinner.Model
	diagnostic    *logging.LogEntry

	lastCtrlCTime time.Time
	quitting      bool
}

// newStackForm is the state of the new-stack modal.
type newStackForm struct {
	open        bool
	input       textinput.Model
	err         string
	errSeq      int
	templateIdx int // 0 is the built-in template
	submitting  bool
}

// NewModel creates a new TUI model with the given configuration.
func NewModel(cfg config.Config, deps Deps) Model {
	var logger *logging.ScopedLogger
	if deps.Logs != nil {
		logger = deps.Logs.For("tui")
	} else {
		logger = logging.NopLogger()
	}
	scoped := func(scope string) *logging.ScopedLogger {
		if deps.Logs == nil {
			return logging.NopLogger()
		}
		return deps.Logs.For(scope)
	}

	theme := cfg.Theme
	if deps.Prefs.Theme != "" {
		theme = deps.Prefs.Theme
	}
	styles := NewStyles(theme)

	queue := events.NewQueue()
	sinks := events.NewSinks(queue)
	ctrl := controller.New(controller.Options{
		Backend: deps.Client,
		Dialer:  deps.Dialer,
		BaseURL: deps.BaseURL,
		Logs:    sinks.Logs,
		Shell:   sinks.Shell,
		View:    sinks.View,
		Cols:    cfg.Terminal.Cols,
		Rows:    cfg.Terminal.Rows,
		Log:     scoped("controller"),
	})
	poll := poller.New(deps.Client, cfg.PollInterval, sinks.Status, scoped("poller"))

	delegate := newStackDelegate(styles)
	stackList := list.New([]list.Item{}, delegate, 0, 0)
	stackList.SetShowTitle(false)
	stackList.SetShowStatusBar(false)
	stackList.SetFilteringEnabled(false)
	stackList.SetShowHelp(false)

	input := textinput.New()
	input.Placeholder = "stack-name"
	input.CharLimit = 64

	statusSpinner := spinner.New()
	statusSpinner.Spinner = spinner.MiniDot

	clip := deps.Clipboard
	if clip == nil {
		clip = clipboard.WriteAll
	}

	logger.Info("tui initialized", "server", cfg.Server, "theme", theme)

	return Model{
		styles:        styles,
		cfg:           cfg,
		client:        deps.Client,
		ctrl:          ctrl,
		poller:        poll,
		queue:         queue,
		worker:        events.NewWorker(queue),
		logger:        logger,
		entries:       deps.Entries,
		prefs:         deps.Prefs,
		prefsPath:     deps.PrefsPath,
		templates:     deps.Templates,
		clipboard:     clip,
		stackList:     stackList,
		stackDelegate: delegate,
		tab:           controller.TabDefinition,
		targets:       map[stream.Kind]string{},
		noContainer:   map[stream.Kind]bool{},
		yamlEditor:    newEditor("services:"),
		envEditor:     newEditor("KEY=value"),
		logViewport:   viewport.New(0, 0),
		logAutoScroll: true,
		form:          newStackForm{input: input},
		statusSpinner: statusSpinner,
	}
}

func newEditor(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.Blur()
	return ta
}

// Init returns the initial command to run.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loadStacks(m.prefs.LastStack),
		waitForEvents(m.queue),
	}
	if m.entries != nil {
		cmds = append(cmds, waitForLogEntry(m.entries))
	}
	return tea.Batch(cmds...)
}

// Close stops background work, closes both streams and persists
// preferences. It is called once the program has exited.
func (m Model) Close() error {
	m.worker.Close()
	m.poller.Stop()
	m.ctrl.Teardown()
	m.queue.Close()

	if m.prefsPath == "" {
		return nil
	}
	p := m.prefs
	if m.stack != "" {
		p.LastStack = m.stack
	}
	return prefs.Save(m.prefsPath, p)
}

// Definition returns the editor contents as a definition.
func (m Model) Definition() api.Definition {
	return api.Definition{YAML: m.yamlEditor.Value(), Env: m.envEditor.Value()}
}

// Stack returns the selected stack.
func (m Model) Stack() string { return m.stack }

// Tab returns the visible tab.
func (m Model) Tab() controller.Tab { return m.tab }

// Focus returns what receives key presses.
func (m Model) Focus() Focus { return m.focus }

// Controller exposes the stream controller, mainly for tests.
func (m Model) Controller() *controller.Controller { return m.ctrl }

// target returns the container the kind is aimed at, defaulting to the
// first container.
func (m Model) target(kind stream.Kind) string {
	if id := m.targets[kind]; id != "" {
		return id
	}
	if len(m.containers) > 0 {
		return m.containers[0].ID
	}
	return ""
}

// defaultDefinition returns the definition for a new stack from the
// selected template.
func (m Model) defaultDefinition(name string) (api.Definition, error) {
	if m.form.templateIdx == 0 || m.form.templateIdx > len(m.templates) {
		return stack.NewTemplate(name), nil
	}
	tmpl := m.templates[m.form.templateIdx-1]
	manifest, env, err := tmpl.Files()
	if err != nil {
		return api.Definition{}, err
	}
	return stack.FromTemplate(name, manifest, env)
}

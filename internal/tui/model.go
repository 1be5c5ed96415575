// Package tui provides the Bubble Tea admin dashboard for ragctl.
package tui

import (
	"context"
	"errors"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/bench"
	"github.com/koopa0/ragctl/internal/chat"
	"github.com/koopa0/ragctl/internal/log"
)

// Tab identifies one dashboard panel.
type Tab int

// Dashboard tabs in display order.
const (
	TabChat Tab = iota
	TabRetrieval
	TabKnowledge
	TabFiles
	TabUsers
	TabPrompts
	TabConfessions
	TabSystem
	tabCount
)

var tabTitles = [tabCount]string{
	"Chat", "Retrieval", "Knowledge", "Files",
	"Users", "Prompts", "Confessions", "System",
}

func (t Tab) String() string {
	if t < 0 || t >= tabCount {
		return "unknown"
	}
	return tabTitles[t]
}

// toastTimeout is how long a status-line notice stays visible.
const toastTimeout = 4 * time.Second

// Layout constants for viewport height calculation.
const (
	tabBarLines    = 1
	separatorLines = 2
	helpLines      = 1
	inputLines     = 2 // prompt line + textarea line on the chat tab
	minViewport    = 3
)

// toastLevel distinguishes success notices from failures on the status line.
type toastLevel int

const (
	toastInfo toastLevel = iota
	toastError
)

// toast is a transient status-line notice.
type toast struct {
	text  string
	level toastLevel
	seq   int
}

// Model is the Bubble Tea model for the admin dashboard.
//
// Every asynchronous fetch carries the generation counter of its tab at
// launch time; a result whose generation no longer matches is stale and
// is dropped without touching panel state. Mutations mark sibling tabs
// stale so the next visit refetches instead of showing outdated rows.
type Model struct {
	// Dependencies
	client  *api.Client
	session *chat.Session
	runner  *bench.Runner
	logger  log.Logger

	ctx       context.Context
	ctxCancel context.CancelFunc

	// Tab state
	active  Tab
	gens    [tabCount]int
	stale   [tabCount]bool
	loading [tabCount]bool
	visited [tabCount]bool
	cursor  [tabCount]int

	// Chat
	sending   bool
	lastCtrlC time.Time

	// One mutation (delete/activate/reply) at a time; further action
	// keys are ignored until the outcome lands.
	mutating bool

	// Pending delete confirmation on the active tab. y confirms,
	// any other key cancels.
	confirming bool

	// The retrieval tab borrows the textarea to compose a new scenario
	// query.
	addingScenario bool

	// Retrieval run
	benchRunning bool
	benchDone    int
	benchTotal   int
	benchCancel  context.CancelFunc
	benchEventCh <-chan benchEvent
	lastExport   string

	// Panel data
	knowledge   []api.KnowledgeEntry
	files       []api.File
	users       []api.User
	prompts     []api.SystemPrompt
	confessions []api.Confession
	confStats   *api.ConfessionStats
	configJSON  string
	healthJSON  string

	// Confession reply compose mode
	replying   bool
	replyTarget string

	// Widgets
	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap

	// Toast
	toast    *toast
	toastSeq int

	// Dimensions and rendering
	width    int
	height   int
	styles   Styles
	markdown *markdownRenderer
}

// New creates the dashboard model.
//
// ctx MUST be the same context passed to tea.WithContext() so cancellation
// behaves consistently.
func New(ctx context.Context, client *api.Client, session *chat.Session, runner *bench.Runner, logger log.Logger) (*Model, error) {
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if client == nil {
		return nil, errors.New("tui.New: client is required")
	}
	if session == nil {
		return nil, errors.New("tui.New: session is required")
	}
	if runner == nil {
		return nil, errors.New("tui.New: runner is required")
	}
	if logger == nil {
		return nil, errors.New("tui.New: logger is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	ta := textarea.New()
	ta.Placeholder = "Ask the knowledge base..."
	ta.SetHeight(1)
	ta.SetWidth(120)
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{Focused: cleanStyle, Blurred: cleanStyle})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{} // keys routed explicitly in handleKey

	return &Model{
		client:    client,
		session:   session,
		runner:    runner,
		logger:    logger,
		ctx:       ctx,
		ctxCancel: cancel,
		active:    TabChat,
		input:     ta,
		viewport:  vp,
		spinner:   sp,
		help:      help.New(),
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		markdown:  newMarkdownRenderer(80),
		width:     80,
	}, nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.visited[TabChat] = true
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.input.Focus(),
	)
}

// setToast replaces the status-line notice and schedules its expiry.
func (m *Model) setToast(text string, level toastLevel) tea.Cmd {
	m.toastSeq++
	m.toast = &toast{text: text, level: level, seq: m.toastSeq}
	seq := m.toastSeq
	return tea.Tick(toastTimeout, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// markSiblingsStale flags every data tab except the given one for refetch
// on next visit. Called after any mutation since backend resources are
// interlinked (file uploads create knowledge chunks, prompt activation
// changes system config, and so on).
func (m *Model) markSiblingsStale(except Tab) {
	for t := TabKnowledge; t < tabCount; t++ {
		if t != except {
			m.stale[t] = true
		}
	}
}

// switchTab activates a tab and returns the fetch command when its data
// is missing or stale.
func (m *Model) switchTab(t Tab) tea.Cmd {
	if t < 0 || t >= tabCount || t == m.active {
		return nil
	}
	m.active = t
	m.confirming = false
	if m.replying {
		m.exitReplyMode()
	}
	if m.addingScenario {
		m.exitScenarioMode()
	}

	if t == TabChat {
		m.rebuildViewportContent()
		return m.input.Focus()
	}
	m.input.Blur()

	var cmd tea.Cmd
	if t >= TabKnowledge && (!m.visited[t] || m.stale[t]) {
		cmd = m.refreshTab(t)
	}
	m.visited[t] = true
	m.rebuildViewportContent()
	return cmd
}

// refreshTab bumps the tab's generation and launches its fetch.
func (m *Model) refreshTab(t Tab) tea.Cmd {
	m.gens[t]++
	m.stale[t] = false
	m.loading[t] = true

	gen := m.gens[t]
	switch t {
	case TabKnowledge:
		return m.fetchKnowledge(gen)
	case TabFiles:
		return m.fetchFiles(gen)
	case TabUsers:
		return m.fetchUsers(gen)
	case TabPrompts:
		return m.fetchPrompts(gen)
	case TabConfessions:
		return m.fetchConfessions(gen)
	case TabSystem:
		return m.fetchSystem(gen)
	default:
		m.loading[t] = false
		return nil
	}
}

// current reports whether an async result still belongs to the tab's
// latest fetch.
func (m *Model) current(t Tab, gen int) bool {
	return m.gens[t] == gen
}

// clampCursor keeps the selection inside the active tab's row count.
func (m *Model) clampCursor(t Tab, rows int) {
	if m.cursor[t] >= rows {
		m.cursor[t] = rows - 1
	}
	if m.cursor[t] < 0 {
		m.cursor[t] = 0
	}
}

// rowCount returns the number of selectable rows on a data tab.
func (m *Model) rowCount(t Tab) int {
	switch t {
	case TabRetrieval:
		return len(m.runner.Scenarios())
	case TabKnowledge:
		return len(m.knowledge)
	case TabFiles:
		return len(m.files)
	case TabUsers:
		return len(m.users)
	case TabPrompts:
		return len(m.prompts)
	case TabConfessions:
		return len(m.confessions)
	default:
		return 0
	}
}

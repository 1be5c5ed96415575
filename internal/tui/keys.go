package tui

import (
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	NextTab    key.Binding
	PrevTab    key.Binding
	Send       key.Binding
	Refresh    key.Binding
	Delete     key.Binding
	Activate   key.Binding
	Reply      key.Binding
	RunAll     key.Binding
	AddQuery   key.Binding
	DropQuery  key.Binding
	Export     key.Binding
	Navigate   key.Binding
	Quit       key.Binding
	Cancel     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		NextTab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("s+tab", "prev tab")),
		Send:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Activate:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activate")),
		Reply:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "reply")),
		RunAll:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run all")),
		AddQuery:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add query")),
		DropQuery:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		Export:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Navigate:   key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "select")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

//nolint:gocyclo // Keyboard handler requires branching for all key combinations
func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return m.handleCtrlC()
		case 'd':
			return m, m.cleanup()
		}
	}

	switch k.Code {
	case tea.KeyTab:
		if k.Mod&tea.ModShift != 0 {
			return m, m.switchTab((m.active + tabCount - 1) % tabCount)
		}
		return m, m.switchTab((m.active + 1) % tabCount)

	case tea.KeyPgUp:
		m.viewport.PageUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.PageDown()
		return m, nil
	}

	// Number keys jump straight to a tab, except while composing text.
	if !m.composing() && k.Code >= '1' && k.Code <= '8' {
		return m, m.switchTab(Tab(k.Code - '1'))
	}

	switch m.active {
	case TabChat:
		return m.handleChatKey(k, msg)
	case TabRetrieval:
		if m.addingScenario {
			return m.handleScenarioKey(k, msg)
		}
		return m.handleRetrievalKey(k)
	case TabConfessions:
		if m.replying {
			return m.handleReplyKey(k, msg)
		}
		return m.handleListKey(k)
	case TabSystem:
		if k.Code == 'r' {
			return m, m.refreshTab(TabSystem)
		}
		return m, nil
	default:
		return m.handleListKey(k)
	}
}

// composing reports whether the textarea currently owns keystrokes.
func (m *Model) composing() bool {
	return m.active == TabChat ||
		(m.active == TabConfessions && m.replying) ||
		(m.active == TabRetrieval && m.addingScenario)
}

func (m *Model) handleChatKey(k tea.Key, msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch k.Code {
	case tea.KeyEnter:
		// Shift+Enter inserts a newline, plain Enter submits.
		if k.Mod&tea.ModShift == 0 {
			return m.handleChatSubmit()
		}
	case tea.KeyEscape:
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleChatSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.sending {
		return m, m.setToast("still waiting for the previous reply", toastError)
	}

	m.sending = true
	m.gens[TabChat]++
	m.input.Reset()

	// Send runs on the command goroutine; refresh the transcript now so
	// the user message shows immediately once the session records it.
	cmd := m.sendChat(text)
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m *Model) handleRetrievalKey(k tea.Key) (tea.Model, tea.Cmd) {
	switch k.Code {
	case tea.KeyEnter:
		if m.benchRunning {
			return m, nil
		}
		m.benchRunning = true
		m.benchDone = 0
		m.benchTotal = len(m.runner.Scenarios())
		m.rebuildViewportContent()
		return m, tea.Batch(m.spinner.Tick, m.startBenchRun())

	case tea.KeyEscape:
		if m.benchRunning && m.benchCancel != nil {
			m.benchCancel()
		}
		return m, nil

	case 'e':
		results := m.runner.Results()
		if len(results) == 0 {
			return m, m.setToast("nothing to export yet", toastError)
		}
		return m, m.exportResults()

	case tea.KeyUp:
		m.cursor[TabRetrieval]--
		m.clampCursor(TabRetrieval, m.rowCount(TabRetrieval))
		m.rebuildViewportContent()
		return m, nil

	case tea.KeyDown:
		m.cursor[TabRetrieval]++
		m.clampCursor(TabRetrieval, m.rowCount(TabRetrieval))
		m.rebuildViewportContent()
		return m, nil

	case 'a':
		if m.benchRunning {
			return m, m.setToast("wait for the run to finish", toastError)
		}
		m.addingScenario = true
		m.input.Placeholder = "New test query..."
		m.input.Reset()
		m.rebuildViewportContent()
		return m, m.input.Focus()

	case 'x':
		if m.benchRunning {
			return m, m.setToast("wait for the run to finish", toastError)
		}
		scenarios := m.runner.Scenarios()
		if len(scenarios) == 0 {
			return m, nil
		}
		m.clampCursor(TabRetrieval, len(scenarios))
		removed := scenarios[m.cursor[TabRetrieval]]
		m.runner.RemoveScenario(removed.ID)
		m.clampCursor(TabRetrieval, m.rowCount(TabRetrieval))
		m.rebuildViewportContent()
		return m, m.setToast("removed: "+removed.Name, toastInfo)
	}
	return m, nil
}

// handleScenarioKey owns keystrokes while composing a new retrieval
// scenario. Esc cancels, Enter appends the query to the scenario list.
func (m *Model) handleScenarioKey(k tea.Key, msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch k.Code {
	case tea.KeyEscape:
		m.exitScenarioMode()
		m.rebuildViewportContent()
		return m, nil

	case tea.KeyEnter:
		if k.Mod&tea.ModShift == 0 {
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			if _, err := m.runner.AddScenario(query, query); err != nil {
				return m, m.setToast(err.Error(), toastError)
			}
			m.exitScenarioMode()
			m.rebuildViewportContent()
			return m, m.setToast("scenario added", toastInfo)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) exitScenarioMode() {
	m.addingScenario = false
	m.input.Reset()
	m.input.Placeholder = "Ask the knowledge base..."
	m.input.Blur()
}

func (m *Model) handleListKey(k tea.Key) (tea.Model, tea.Cmd) {
	t := m.active

	// A pending delete owns the next keystroke: y commits, anything
	// else cancels and the list is left untouched.
	if m.confirming {
		m.confirming = false
		if k.Code == 'y' {
			cmd := m.deleteSelected(t)
			m.mutating = cmd != nil
			return m, cmd
		}
		return m, nil
	}

	switch k.Code {
	case tea.KeyUp:
		m.cursor[t]--
		m.clampCursor(t, m.rowCount(t))
		m.rebuildViewportContent()
		return m, nil

	case tea.KeyDown:
		m.cursor[t]++
		m.clampCursor(t, m.rowCount(t))
		m.rebuildViewportContent()
		return m, nil

	case 'r':
		return m, m.refreshTab(t)

	case 'd':
		if m.mutating || m.rowCount(t) == 0 {
			return m, nil
		}
		m.confirming = true
		return m, nil

	case 'a':
		if t == TabPrompts {
			if m.mutating {
				return m, nil
			}
			cmd := m.activateSelectedPrompt()
			m.mutating = cmd != nil
			return m, cmd
		}

	case tea.KeyEnter:
		if t == TabConfessions && len(m.confessions) > 0 {
			m.replying = true
			m.replyTarget = m.confessions[m.cursor[t]].ID
			m.input.Placeholder = "Write a reply..."
			m.input.Reset()
			m.rebuildViewportContent()
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *Model) handleReplyKey(k tea.Key, msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch k.Code {
	case tea.KeyEscape:
		m.exitReplyMode()
		m.rebuildViewportContent()
		return m, nil

	case tea.KeyEnter:
		if k.Mod&tea.ModShift == 0 {
			reply := strings.TrimSpace(m.input.Value())
			if reply == "" || m.mutating {
				return m, nil
			}
			// Compose mode stays open with the typed text until the
			// outcome lands, so a failed send can be retried as-is.
			m.mutating = true
			return m, m.submitReply(m.replyTarget, reply)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) exitReplyMode() {
	m.replying = false
	m.replyTarget = ""
	m.input.Reset()
	m.input.Placeholder = "Ask the knowledge base..."
	m.input.Blur()
}

func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit
	if now.Sub(m.lastCtrlC) < time.Second {
		return m, m.cleanup()
	}
	m.lastCtrlC = now

	switch {
	case m.replying:
		m.exitReplyMode()
		m.rebuildViewportContent()
	case m.addingScenario:
		m.exitScenarioMode()
		m.rebuildViewportContent()
	case m.confirming:
		m.confirming = false
	case m.active == TabChat:
		m.input.Reset()
	case m.benchRunning && m.benchCancel != nil:
		m.benchCancel()
	}
	return m, nil
}

// cleanup cancels outstanding work and returns the quit command.
func (m *Model) cleanup() tea.Cmd {
	if m.ctxCancel != nil {
		m.ctxCancel()
		m.ctxCancel = nil
	}
	if m.benchCancel != nil {
		m.benchCancel()
		m.benchCancel = nil
	}
	m.benchEventCh = nil
	return tea.Quit
}

package tui

import (
	"context"
	"errors"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"github.com/koopa0/ragctl/internal/chat"
)

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		fixedHeight := tabBarLines + separatorLines + inputLines + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.SetWidth(msg.Width)
		m.viewport.SetHeight(vpHeight)
		m.input.SetWidth(msg.Width - 4)
		m.help.SetWidth(msg.Width)
		m.markdown.UpdateWidth(msg.Width)

		m.rebuildViewportContent()
		return m, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.sending || m.benchRunning || m.loading[m.active] {
			m.rebuildViewportContent()
		}
		return m, cmd

	case chatDoneMsg:
		if !m.current(TabChat, msg.gen) {
			return m, nil
		}
		m.sending = false

		var toastCmd tea.Cmd
		switch {
		case msg.err == nil:
			// transcript already holds the reply; just re-render
		case errors.Is(msg.err, context.Canceled):
			toastCmd = m.setToast("canceled", toastInfo)
		case errors.Is(msg.err, chat.ErrBusy):
			toastCmd = m.setToast("a message is already in flight", toastError)
		default:
			toastCmd = m.setToast(msg.err.Error(), toastError)
		}

		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, tea.Batch(toastCmd, m.input.Focus())

	case knowledgeLoadedMsg:
		if !m.current(TabKnowledge, msg.gen) {
			return m, nil
		}
		m.loading[TabKnowledge] = false
		if msg.err != nil {
			return m, m.loadFailed(TabKnowledge, msg.err)
		}
		m.knowledge = msg.entries
		m.clampCursor(TabKnowledge, len(m.knowledge))
		m.rebuildViewportContent()
		return m, nil

	case filesLoadedMsg:
		if !m.current(TabFiles, msg.gen) {
			return m, nil
		}
		m.loading[TabFiles] = false
		if msg.err != nil {
			return m, m.loadFailed(TabFiles, msg.err)
		}
		m.files = msg.files
		m.clampCursor(TabFiles, len(m.files))
		m.rebuildViewportContent()
		return m, nil

	case usersLoadedMsg:
		if !m.current(TabUsers, msg.gen) {
			return m, nil
		}
		m.loading[TabUsers] = false
		if msg.err != nil {
			return m, m.loadFailed(TabUsers, msg.err)
		}
		m.users = msg.users
		m.clampCursor(TabUsers, len(m.users))
		m.rebuildViewportContent()
		return m, nil

	case promptsLoadedMsg:
		if !m.current(TabPrompts, msg.gen) {
			return m, nil
		}
		m.loading[TabPrompts] = false
		if msg.err != nil {
			return m, m.loadFailed(TabPrompts, msg.err)
		}
		m.prompts = msg.prompts
		m.clampCursor(TabPrompts, len(m.prompts))
		m.rebuildViewportContent()
		return m, nil

	case confessionsLoadedMsg:
		if !m.current(TabConfessions, msg.gen) {
			return m, nil
		}
		m.loading[TabConfessions] = false
		if msg.err != nil {
			return m, m.loadFailed(TabConfessions, msg.err)
		}
		m.confessions = msg.confessions
		m.confStats = msg.stats
		m.clampCursor(TabConfessions, len(m.confessions))
		m.rebuildViewportContent()
		return m, nil

	case systemLoadedMsg:
		if !m.current(TabSystem, msg.gen) {
			return m, nil
		}
		m.loading[TabSystem] = false
		if msg.err != nil {
			return m, m.loadFailed(TabSystem, msg.err)
		}
		m.configJSON = msg.config
		m.healthJSON = msg.health
		m.rebuildViewportContent()
		return m, nil

	case mutationDoneMsg:
		m.mutating = false
		if msg.err != nil {
			// Failures leave panel state untouched: an open reply box
			// keeps its text so the submission can be retried.
			return m, m.setToast(msg.err.Error(), toastError)
		}
		if msg.closeReply && m.replying {
			m.exitReplyMode()
		}
		m.markSiblingsStale(msg.tab)
		return m, tea.Batch(
			m.setToast(msg.action, toastInfo),
			m.refreshTab(msg.tab),
		)

	case benchStartedMsg:
		m.benchCancel = msg.cancel
		m.benchEventCh = msg.eventCh
		m.benchTotal = msg.total
		m.rebuildViewportContent()
		return m, listenForBench(msg.eventCh)

	case benchProgressMsg:
		m.benchDone = msg.completed
		m.benchTotal = msg.total
		m.rebuildViewportContent()
		return m, listenForBench(m.benchEventCh)

	case benchDoneMsg:
		m.finishBenchRun()
		m.rebuildViewportContent()
		return m, m.setToast("test run complete", toastInfo)

	case benchErrorMsg:
		m.finishBenchRun()
		m.rebuildViewportContent()
		if errors.Is(msg.err, context.Canceled) {
			return m, m.setToast("test run canceled", toastInfo)
		}
		return m, m.setToast(msg.err.Error(), toastError)

	case exportDoneMsg:
		if msg.err != nil {
			return m, m.setToast("export failed: "+msg.err.Error(), toastError)
		}
		m.lastExport = msg.path
		m.rebuildViewportContent()
		return m, m.setToast("exported to "+msg.path, toastInfo)

	case toastExpiredMsg:
		if m.toast != nil && m.toast.seq == msg.seq {
			m.toast = nil
		}
		return m, nil
	}

	if m.composing() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// loadFailed clears loading state and surfaces the fetch error.
func (m *Model) loadFailed(t Tab, err error) tea.Cmd {
	m.stale[t] = true // retry on next visit or refresh
	m.rebuildViewportContent()
	return m.setToast(t.String()+": "+err.Error(), toastError)
}

// finishBenchRun releases run resources.
func (m *Model) finishBenchRun() {
	m.benchRunning = false
	if m.benchCancel != nil {
		m.benchCancel()
		m.benchCancel = nil
	}
	m.benchEventCh = nil
}

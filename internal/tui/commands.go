package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/koopa0/ragctl/internal/api"
)

// benchEventBuffer absorbs progress bursts so the run goroutine never
// blocks on UI render delays.
const benchEventBuffer = 16

// Message types for async results. Each fetch message carries the
// generation it was launched under; Update drops mismatches.

type chatDoneMsg struct {
	gen int
	err error
}

type knowledgeLoadedMsg struct {
	gen     int
	entries []api.KnowledgeEntry
	err     error
}

type filesLoadedMsg struct {
	gen   int
	files []api.File
	err   error
}

type usersLoadedMsg struct {
	gen   int
	users []api.User
	err   error
}

type promptsLoadedMsg struct {
	gen     int
	prompts []api.SystemPrompt
	err     error
}

type confessionsLoadedMsg struct {
	gen         int
	confessions []api.Confession
	stats       *api.ConfessionStats
	err         error
}

type systemLoadedMsg struct {
	gen    int
	config string
	health string
	err    error
}

// mutationDoneMsg reports the outcome of a delete/activate/reply. tab is
// where the mutation originated; its panel refetches and siblings go stale.
// closeReply marks a reply submission: the compose box closes on success
// and stays open with its text on failure.
type mutationDoneMsg struct {
	tab        Tab
	action     string
	closeReply bool
	err        error
}

type toastExpiredMsg struct {
	seq int
}

// benchEvent is the union carried over the run channel: progress while
// running, then exactly one terminal event (done or err).
type benchEvent struct {
	completed int
	total     int
	done      bool
	err       error
}

type benchStartedMsg struct {
	eventCh <-chan benchEvent
	cancel  context.CancelFunc
	total   int
}

type benchProgressMsg struct {
	completed int
	total     int
}

type benchDoneMsg struct{}

type benchErrorMsg struct {
	err error
}

type exportDoneMsg struct {
	path string
	err  error
}

// sendChat submits the chat input through the session engine. The session
// enforces single-flight and keeps the user message on failure.
func (m *Model) sendChat(text string) tea.Cmd {
	gen := m.gens[TabChat]
	return func() tea.Msg {
		_, err := m.session.Send(m.ctx, text)
		return chatDoneMsg{gen: gen, err: err}
	}
}

func (m *Model) fetchKnowledge(gen int) tea.Cmd {
	return func() tea.Msg {
		entries, err := m.client.ListKnowledge(m.ctx, "")
		return knowledgeLoadedMsg{gen: gen, entries: entries, err: err}
	}
}

func (m *Model) fetchFiles(gen int) tea.Cmd {
	return func() tea.Msg {
		files, err := m.client.ListFiles(m.ctx)
		return filesLoadedMsg{gen: gen, files: files, err: err}
	}
}

func (m *Model) fetchUsers(gen int) tea.Cmd {
	return func() tea.Msg {
		users, err := m.client.ListUsers(m.ctx)
		return usersLoadedMsg{gen: gen, users: users, err: err}
	}
}

func (m *Model) fetchPrompts(gen int) tea.Cmd {
	return func() tea.Msg {
		prompts, err := m.client.ListPrompts(m.ctx)
		return promptsLoadedMsg{gen: gen, prompts: prompts, err: err}
	}
}

func (m *Model) fetchConfessions(gen int) tea.Cmd {
	return func() tea.Msg {
		confessions, err := m.client.ListConfessions(m.ctx, nil)
		if err != nil {
			return confessionsLoadedMsg{gen: gen, err: err}
		}
		// Stats are best-effort; the list is still usable without them.
		stats, err := m.client.ConfessionStats(m.ctx)
		if err != nil {
			stats = nil
		}
		return confessionsLoadedMsg{gen: gen, confessions: confessions, stats: stats}
	}
}

func (m *Model) fetchSystem(gen int) tea.Cmd {
	return func() tea.Msg {
		cfg, err := m.client.ConfigSnapshot(m.ctx)
		if err != nil {
			return systemLoadedMsg{gen: gen, err: err}
		}
		health, err := m.client.HealthDetailed(m.ctx)
		if err != nil {
			return systemLoadedMsg{gen: gen, err: err}
		}
		return systemLoadedMsg{
			gen:    gen,
			config: prettyJSON(cfg),
			health: prettyJSON(health),
		}
	}
}

// deleteSelected removes the row under the cursor on the active tab.
func (m *Model) deleteSelected(t Tab) tea.Cmd {
	var id, action string
	switch t {
	case TabKnowledge:
		if len(m.knowledge) == 0 {
			return nil
		}
		id, action = m.knowledge[m.cursor[t]].ID, "knowledge entry deleted"
	case TabFiles:
		if len(m.files) == 0 {
			return nil
		}
		id, action = m.files[m.cursor[t]].ID, "file deleted"
	case TabUsers:
		if len(m.users) == 0 {
			return nil
		}
		id, action = m.users[m.cursor[t]].ID, "user deleted"
	case TabPrompts:
		if len(m.prompts) == 0 {
			return nil
		}
		id, action = m.prompts[m.cursor[t]].ID, "prompt deleted"
	case TabConfessions:
		if len(m.confessions) == 0 {
			return nil
		}
		id, action = m.confessions[m.cursor[t]].ID, "confession deleted"
	default:
		return nil
	}

	return func() tea.Msg {
		var err error
		switch t {
		case TabKnowledge:
			err = m.client.DeleteKnowledge(m.ctx, id)
		case TabFiles:
			err = m.client.DeleteFile(m.ctx, id)
		case TabUsers:
			err = m.client.DeleteUser(m.ctx, id)
		case TabPrompts:
			err = m.client.DeletePrompt(m.ctx, id)
		case TabConfessions:
			err = m.client.DeleteConfession(m.ctx, id)
		}
		return mutationDoneMsg{tab: t, action: action, err: err}
	}
}

// activateSelectedPrompt makes the prompt under the cursor active.
func (m *Model) activateSelectedPrompt() tea.Cmd {
	if len(m.prompts) == 0 {
		return nil
	}
	id := m.prompts[m.cursor[TabPrompts]].ID
	return func() tea.Msg {
		err := m.client.ActivatePrompt(m.ctx, id)
		return mutationDoneMsg{tab: TabPrompts, action: "prompt activated", err: err}
	}
}

// submitReply posts the composed reply to the targeted confession.
func (m *Model) submitReply(id, reply string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.client.ReplyConfession(m.ctx, id, reply)
		return mutationDoneMsg{tab: TabConfessions, action: "reply sent", closeReply: true, err: err}
	}
}

// startBenchRun launches RunAll in a goroutine and bridges its progress
// callback onto a buffered event channel the Update loop drains.
func (m *Model) startBenchRun() tea.Cmd {
	return func() tea.Msg {
		eventCh := make(chan benchEvent, benchEventBuffer)
		ctx, cancel := context.WithCancel(m.ctx)
		total := len(m.runner.Scenarios())

		go func() {
			defer close(eventCh)
			err := m.runner.RunAll(ctx, func(completed, total int) {
				select {
				case eventCh <- benchEvent{completed: completed, total: total}:
				case <-ctx.Done():
				}
			})
			if err != nil {
				select {
				case eventCh <- benchEvent{err: err}:
				default:
				}
				return
			}
			select {
			case eventCh <- benchEvent{done: true}:
			default:
			}
		}()

		return benchStartedMsg{eventCh: eventCh, cancel: cancel, total: total}
	}
}

// listenForBench waits for the next run event.
func listenForBench(eventCh <-chan benchEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}
		event, ok := <-eventCh
		if !ok {
			return benchDoneMsg{}
		}
		switch {
		case event.err != nil:
			return benchErrorMsg{err: event.err}
		case event.done:
			return benchDoneMsg{}
		default:
			return benchProgressMsg{completed: event.completed, total: event.total}
		}
	}
}

// exportResults writes the current run to a timestamped JSON file in the
// working directory.
func (m *Model) exportResults() tea.Cmd {
	return func() tea.Msg {
		name := fmt.Sprintf("retrieval-test-%s.json", time.Now().Format("20060102-150405"))
		path := filepath.Join(".", name)

		f, err := os.Create(path)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		defer f.Close() //nolint:errcheck

		if err := m.runner.Export(f); err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

// prettyJSON indents a snapshot for display; falls back to compact
// marshalling errors as text.
func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("(unrenderable: %v)", err)
	}
	return string(data)
}

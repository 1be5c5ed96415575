package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/bench"
	"github.com/koopa0/ragctl/internal/transcript"
)

// progressCells is the width of the retrieval run progress bar.
const progressCells = 30

// View implements tea.Model.
func (m *Model) View() tea.View {
	var b strings.Builder

	_, _ = b.WriteString(m.renderTabBar())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.viewport.View())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.renderSeparator())
	_, _ = b.WriteString("\n")

	if m.composing() {
		_, _ = b.WriteString(m.styles.Prompt.Render("> "))
		_, _ = b.WriteString(m.input.View())
	}
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.renderSeparator())
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.renderStatusBar())

	v := tea.NewView(b.String())
	v.AltScreen = true
	return v
}

func (m *Model) renderTabBar() string {
	parts := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		label := fmt.Sprintf("%d:%s", int(t)+1, t)
		if t == m.active {
			parts = append(parts, m.styles.TabActive.Render(label))
		} else {
			parts = append(parts, m.styles.TabInactive.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

// rebuildViewportContent reconstructs the viewport content for the
// active tab. Called whenever panel data or state changes.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	switch m.active {
	case TabChat:
		m.renderChat(&b)
	case TabRetrieval:
		m.renderRetrieval(&b)
	case TabKnowledge:
		m.renderKnowledge(&b)
	case TabFiles:
		m.renderFiles(&b)
	case TabUsers:
		m.renderUsers(&b)
	case TabPrompts:
		m.renderPrompts(&b)
	case TabConfessions:
		m.renderConfessions(&b)
	case TabSystem:
		m.renderSystem(&b)
	}

	m.viewport.SetContent(b.String())
}

func (m *Model) renderChat(b *strings.Builder) {
	messages := m.session.Messages()
	if len(messages) == 0 && !m.sending {
		_, _ = b.WriteString(m.styles.System.Render("Ask a question to test the knowledge base."))
		_, _ = b.WriteString("\n")
		return
	}

	for _, msg := range messages {
		switch msg.Role {
		case transcript.RoleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
		case transcript.RoleAssistant:
			_, _ = b.WriteString(m.styles.Assistant.Render("Bot> "))
			_, _ = b.WriteString(m.markdown.Render(msg.Content))
			_, _ = b.WriteString("\n")
			_, _ = b.WriteString(m.renderChatMeta(msg))
		}
		_, _ = b.WriteString("\n\n")
	}

	if m.sending {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Waiting for reply...\n")
	}
}

// renderChatMeta shows sources and timings under an assistant reply.
func (m *Model) renderChatMeta(msg transcript.Message) string {
	var b strings.Builder
	for i, src := range msg.Sources {
		line := fmt.Sprintf("  [%d] %s (%.2f)", i+1, src.Title, src.Similarity)
		_, _ = b.WriteString(m.styles.Dim.Render(line))
		_, _ = b.WriteString("\n")
	}
	if msg.Model != "" {
		meta := fmt.Sprintf("  %s/%s · %.2fs total · %.2fs llm",
			msg.Provider, msg.Model, msg.DurationSeconds, msg.APIDurationSeconds)
		_, _ = b.WriteString(m.styles.Dim.Render(meta))
	}
	return b.String()
}

func (m *Model) renderRetrieval(b *strings.Builder) {
	_, _ = b.WriteString(m.styles.Header.Render("Retrieval test scenarios"))
	_, _ = b.WriteString("\n\n")

	results := m.runner.Results()
	for i, sc := range m.runner.Scenarios() {
		marker := "  "
		if i == m.cursor[TabRetrieval] {
			marker = m.styles.Selected.Render("› ")
		}
		_, _ = b.WriteString(marker)

		res, ok := results[sc.ID]
		switch {
		case !ok:
			_, _ = b.WriteString(m.styles.Dim.Render("·  "))
			_, _ = b.WriteString(sc.Name)
		case res.Status == bench.StatusOK:
			_, _ = b.WriteString(m.styles.Success.Render("✓  "))
			_, _ = b.WriteString(sc.Name)
			_, _ = b.WriteString(m.styles.Dim.Render(fmt.Sprintf(
				"  %d hits, top %.2f, %.2fs", res.ResultCount, res.TopScore, res.DurationSeconds)))
		default:
			_, _ = b.WriteString(m.styles.Error.Render("✗  "))
			_, _ = b.WriteString(sc.Name)
			_, _ = b.WriteString(m.styles.Error.Render("  " + res.Error))
		}
		_, _ = b.WriteString("\n")
	}
	_, _ = b.WriteString("\n")

	if m.benchRunning {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" ")
		_, _ = b.WriteString(m.renderProgressBar())
		_, _ = b.WriteString(fmt.Sprintf(" %d/%d\n", m.benchDone, m.benchTotal))
		return
	}

	if len(results) > 0 {
		agg := m.runner.Aggregates()
		_, _ = b.WriteString(m.styles.System.Render(agg.String()))
		_, _ = b.WriteString("\n")
	}
	if m.lastExport != "" {
		_, _ = b.WriteString(m.styles.Dim.Render("exported: " + m.lastExport))
		_, _ = b.WriteString("\n")
	}
}

func (m *Model) renderProgressBar() string {
	filled := 0
	if m.benchTotal > 0 {
		filled = progressCells * m.benchDone / m.benchTotal
	}
	return m.styles.ProgressOn.Render(strings.Repeat("█", filled)) +
		m.styles.ProgressOff.Render(strings.Repeat("░", progressCells-filled))
}

func (m *Model) renderKnowledge(b *strings.Builder) {
	m.renderListHeader(b, TabKnowledge, len(m.knowledge))
	for i, entry := range m.knowledge {
		line := fmt.Sprintf("%s  %s", entry.Title, m.styles.Dim.Render(entry.Category))
		m.renderRow(b, TabKnowledge, i, line)
	}
}

func (m *Model) renderFiles(b *strings.Builder) {
	m.renderListHeader(b, TabFiles, len(m.files))
	for i, f := range m.files {
		line := fmt.Sprintf("%s  %s", f.Name,
			m.styles.Dim.Render(fmt.Sprintf("%d chunks · %s · %s", f.ChunkCount, humanSize(f.Size), f.Status)))
		m.renderRow(b, TabFiles, i, line)
	}
}

func (m *Model) renderUsers(b *strings.Builder) {
	m.renderListHeader(b, TabUsers, len(m.users))
	for i, u := range m.users {
		status := "active"
		if !u.Active {
			status = "disabled"
		}
		line := fmt.Sprintf("%s  %s", u.Username,
			m.styles.Dim.Render(u.Role+" · "+status))
		m.renderRow(b, TabUsers, i, line)
	}
}

func (m *Model) renderPrompts(b *strings.Builder) {
	m.renderListHeader(b, TabPrompts, len(m.prompts))
	for i, p := range m.prompts {
		line := p.Name
		if p.Active {
			line += "  " + m.styles.Success.Render("● active")
		}
		m.renderRow(b, TabPrompts, i, line)
	}
}

func (m *Model) renderConfessions(b *strings.Builder) {
	m.renderListHeader(b, TabConfessions, len(m.confessions))
	if m.confStats != nil {
		stats := fmt.Sprintf("total %d · replied %d · pending %d",
			m.confStats.Total, m.confStats.Replied, m.confStats.Pending)
		_, _ = b.WriteString(m.styles.System.Render(stats))
		_, _ = b.WriteString("\n\n")
	}

	for i, c := range m.confessions {
		marker := m.styles.Dim.Render("pending")
		if c.Replied {
			marker = m.styles.Success.Render("replied")
		}
		line := fmt.Sprintf("%s  %s", truncate(c.Message, 60), marker)
		m.renderRow(b, TabConfessions, i, line)
	}

	if m.replying {
		_, _ = b.WriteString("\n")
		_, _ = b.WriteString(m.styles.Header.Render("Replying to:"))
		_, _ = b.WriteString("\n")
		if c := m.selectedConfession(); c != nil {
			_, _ = b.WriteString(c.Message)
			_, _ = b.WriteString("\n")
		}
	}
}

func (m *Model) selectedConfession() *api.Confession {
	for i := range m.confessions {
		if m.confessions[i].ID == m.replyTarget {
			return &m.confessions[i]
		}
	}
	return nil
}

func (m *Model) renderSystem(b *strings.Builder) {
	if m.loading[TabSystem] {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Loading...\n")
		return
	}
	_, _ = b.WriteString(m.styles.Header.Render("Backend configuration"))
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.configJSON)
	_, _ = b.WriteString("\n\n")
	_, _ = b.WriteString(m.styles.Header.Render("Detailed health"))
	_, _ = b.WriteString("\n")
	_, _ = b.WriteString(m.healthJSON)
	_, _ = b.WriteString("\n")
}

func (m *Model) renderListHeader(b *strings.Builder, t Tab, count int) {
	if m.loading[t] {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" Loading...\n\n")
		return
	}
	_, _ = b.WriteString(m.styles.Header.Render(fmt.Sprintf("%s (%d)", t, count)))
	_, _ = b.WriteString("\n\n")
	if count == 0 {
		_, _ = b.WriteString(m.styles.System.Render("No entries."))
		_, _ = b.WriteString("\n")
	}
}

func (m *Model) renderRow(b *strings.Builder, t Tab, i int, line string) {
	if i == m.cursor[t] {
		_, _ = b.WriteString(m.styles.Selected.Render("› " + line))
	} else {
		_, _ = b.WriteString("  " + line)
	}
	_, _ = b.WriteString("\n")
}

func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar shows the toast when present, otherwise tab-appropriate
// keyboard shortcuts.
func (m *Model) renderStatusBar() string {
	if m.confirming {
		return m.styles.Error.Render("Delete selected? y = confirm, any other key = cancel")
	}
	if m.toast != nil {
		style := m.styles.Success
		if m.toast.level == toastError {
			style = m.styles.Error
		}
		return style.Render(m.toast.text)
	}

	var bindings []key.Binding
	switch m.active {
	case TabChat:
		bindings = []key.Binding{m.keys.Send, m.keys.NextTab, m.keys.ScrollUp, m.keys.Quit}
	case TabRetrieval:
		bindings = []key.Binding{m.keys.RunAll, m.keys.AddQuery, m.keys.DropQuery, m.keys.Export, m.keys.Cancel, m.keys.NextTab}
	case TabPrompts:
		bindings = []key.Binding{m.keys.Navigate, m.keys.Activate, m.keys.Delete, m.keys.Refresh, m.keys.NextTab}
	case TabConfessions:
		bindings = []key.Binding{m.keys.Navigate, m.keys.Reply, m.keys.Delete, m.keys.Refresh, m.keys.NextTab}
	case TabSystem:
		bindings = []key.Binding{m.keys.Refresh, m.keys.NextTab, m.keys.ScrollUp, m.keys.Quit}
	default:
		bindings = []key.Binding{m.keys.Navigate, m.keys.Delete, m.keys.Refresh, m.keys.NextTab, m.keys.Quit}
	}
	return m.help.ShortHelpView(bindings)
}

// humanSize renders a byte count the way humans read file sizes.
func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// truncate shortens s to at most n runes with an ellipsis.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

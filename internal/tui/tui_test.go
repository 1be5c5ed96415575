package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/bench"
	"github.com/koopa0/ragctl/internal/chat"
	"github.com/koopa0/ragctl/internal/log"
	"github.com/koopa0/ragctl/internal/transcript"
)

// goleakOptions filters persistent goroutines expected to exist.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	}
}

// newTestModel builds a dashboard with real dependencies pointed at an
// unroutable address. Tests below never trigger network commands.
func newTestModel(t *testing.T) *Model {
	t.Helper()

	logger := log.NewNop()
	client, err := api.New("http://127.0.0.1:1", "", time.Second, logger)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	session, err := chat.NewSession(uuid.New(), client, transcript.NewMemStore(), 5, logger)
	if err != nil {
		t.Fatalf("chat.NewSession: %v", err)
	}
	runner, err := bench.NewRunner(client, 0, logger)
	if err != nil {
		t.Fatalf("bench.NewRunner: %v", err)
	}

	m, err := New(context.Background(), client, session, runner, logger)
	if err != nil {
		t.Fatalf("tui.New: %v", err)
	}
	return m
}

func TestNew_Validation(t *testing.T) {
	logger := log.NewNop()
	client, _ := api.New("http://127.0.0.1:1", "", time.Second, logger)
	session, _ := chat.NewSession(uuid.New(), client, transcript.NewMemStore(), 5, logger)
	runner, _ := bench.NewRunner(client, 0, logger)

	tests := []struct {
		name string
		fn   func() (*Model, error)
	}{
		{"nil ctx", func() (*Model, error) {
			return New(nil, client, session, runner, logger) //nolint:staticcheck
		}},
		{"nil client", func() (*Model, error) {
			return New(context.Background(), nil, session, runner, logger)
		}},
		{"nil session", func() (*Model, error) {
			return New(context.Background(), client, nil, runner, logger)
		}},
		{"nil runner", func() (*Model, error) {
			return New(context.Background(), client, session, nil, logger)
		}},
		{"nil logger", func() (*Model, error) {
			return New(context.Background(), client, session, runner, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.fn(); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	if cmd := m.Init(); cmd == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
	if !m.visited[TabChat] {
		t.Error("chat tab should be marked visited on startup")
	}
}

func TestTab_String(t *testing.T) {
	if TabChat.String() != "Chat" {
		t.Errorf("TabChat = %q", TabChat)
	}
	if TabSystem.String() != "System" {
		t.Errorf("TabSystem = %q", TabSystem)
	}
	if Tab(99).String() != "unknown" {
		t.Errorf("out-of-range tab = %q", Tab(99))
	}
}

func TestSwitchTab_FetchesOnFirstVisit(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()

	cmd := m.switchTab(TabKnowledge)
	if cmd == nil {
		t.Fatal("first visit to a data tab must launch a fetch")
	}
	if m.active != TabKnowledge {
		t.Errorf("active = %v, want Knowledge", m.active)
	}
	if !m.loading[TabKnowledge] {
		t.Error("fetch must flag the tab as loading")
	}

	// A second visit with fresh data must not refetch.
	m.loading[TabKnowledge] = false
	m.switchTab(TabChat)
	if cmd := m.switchTab(TabKnowledge); cmd != nil {
		t.Error("revisit with fresh data must not refetch")
	}
}

func TestSwitchTab_RefetchesWhenStale(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()

	m.switchTab(TabKnowledge)
	m.loading[TabKnowledge] = false
	m.switchTab(TabChat)

	m.stale[TabKnowledge] = true
	if cmd := m.switchTab(TabKnowledge); cmd == nil {
		t.Error("stale tab must refetch on visit")
	}
}

func TestMarkSiblingsStale(t *testing.T) {
	m := newTestModel(t)

	m.markSiblingsStale(TabFiles)

	if m.stale[TabFiles] {
		t.Error("mutated tab itself must not go stale")
	}
	for _, tab := range []Tab{TabKnowledge, TabUsers, TabPrompts, TabConfessions, TabSystem} {
		if !m.stale[tab] {
			t.Errorf("%v should be stale after a files mutation", tab)
		}
	}
	if m.stale[TabChat] || m.stale[TabRetrieval] {
		t.Error("chat and retrieval are not data tabs and never go stale")
	}
}

func TestUpdate_DropsStaleResults(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()
	m.switchTab(TabKnowledge)

	staleGen := m.gens[TabKnowledge]
	m.refreshTab(TabKnowledge) // bumps the generation

	m.Update(knowledgeLoadedMsg{
		gen:     staleGen,
		entries: []api.KnowledgeEntry{{ID: "old", Title: "stale"}},
	})
	if len(m.knowledge) != 0 {
		t.Error("result from a superseded fetch must be dropped")
	}
	if !m.loading[TabKnowledge] {
		t.Error("stale result must not clear the newer fetch's loading flag")
	}

	m.Update(knowledgeLoadedMsg{
		gen:     m.gens[TabKnowledge],
		entries: []api.KnowledgeEntry{{ID: "new", Title: "fresh"}},
	})
	if len(m.knowledge) != 1 || m.knowledge[0].ID != "new" {
		t.Errorf("current result must land, got %+v", m.knowledge)
	}
	if m.loading[TabKnowledge] {
		t.Error("current result must clear the loading flag")
	}
}

func TestUpdate_MutationMarksSiblingsStaleAndRefetches(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()
	m.switchTab(TabPrompts)

	_, cmd := m.Update(mutationDoneMsg{tab: TabPrompts, action: "prompt activated"})
	if cmd == nil {
		t.Fatal("successful mutation must refetch its own tab")
	}
	if m.stale[TabPrompts] {
		t.Error("refetched tab must not stay stale")
	}
	if !m.stale[TabSystem] {
		t.Error("system tab must go stale after prompt activation")
	}
	if m.toast == nil || m.toast.text != "prompt activated" {
		t.Errorf("toast = %+v, want activation notice", m.toast)
	}
}

func TestHandleListKey_DeleteRequiresConfirmation(t *testing.T) {
	m := newTestModel(t)
	m.Init()
	m.switchTab(TabKnowledge)
	m.knowledge = []api.KnowledgeEntry{{ID: "k1", Title: "Entry"}}

	_, cmd := m.handleListKey(tea.Key{Code: 'd'})
	if cmd != nil {
		t.Fatal("d alone must not dispatch the delete")
	}
	if !m.confirming {
		t.Fatal("d must arm the confirmation prompt")
	}

	// Anything but y cancels.
	_, cmd = m.handleListKey(tea.Key{Code: tea.KeyEscape})
	if cmd != nil || m.confirming || m.mutating {
		t.Error("esc must cancel the pending delete without dispatching")
	}

	m.handleListKey(tea.Key{Code: 'd'})
	_, cmd = m.handleListKey(tea.Key{Code: 'y'})
	if cmd == nil {
		t.Fatal("confirmed delete must dispatch a command")
	}
	if m.confirming {
		t.Error("confirmation must disarm once answered")
	}
	if !m.mutating {
		t.Error("dispatching a delete must set the mutation guard")
	}
}

func TestHandleListKey_SingleMutationInFlight(t *testing.T) {
	m := newTestModel(t)
	m.Init()
	m.switchTab(TabKnowledge)
	m.knowledge = []api.KnowledgeEntry{{ID: "k1", Title: "Entry"}}

	m.handleListKey(tea.Key{Code: 'd'})
	_, cmd := m.handleListKey(tea.Key{Code: 'y'})
	if cmd == nil {
		t.Fatal("confirmed delete must dispatch a command")
	}

	m.handleListKey(tea.Key{Code: 'd'})
	_, cmd = m.handleListKey(tea.Key{Code: 'y'})
	if cmd != nil {
		t.Error("second delete while one is in flight must be ignored")
	}

	m.Update(mutationDoneMsg{tab: TabKnowledge, action: "knowledge entry deleted"})
	if m.mutating {
		t.Error("mutation outcome must release the guard")
	}
}

func TestReplyFailureKeepsCompose(t *testing.T) {
	m := newTestModel(t)
	m.Init()
	m.switchTab(TabConfessions)
	m.confessions = []api.Confession{{ID: "c1", Message: "hello"}}

	m.handleListKey(tea.Key{Code: tea.KeyEnter})
	if !m.replying || m.replyTarget != "c1" {
		t.Fatalf("enter must open the reply box, replying=%v target=%q", m.replying, m.replyTarget)
	}

	m.input.SetValue("thank you for writing in")
	_, cmd := m.handleReplyKey(tea.Key{Code: tea.KeyEnter}, tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter with text must dispatch the reply")
	}
	if !m.replying || m.input.Value() != "thank you for writing in" {
		t.Fatal("compose box must stay open with its text while the reply is in flight")
	}

	m.Update(mutationDoneMsg{tab: TabConfessions, closeReply: true, err: errors.New("backend unavailable")})
	if !m.replying {
		t.Error("failed reply must not close the compose box")
	}
	if m.input.Value() != "thank you for writing in" {
		t.Error("failed reply must not discard the typed text")
	}
	if m.mutating {
		t.Error("failure must release the mutation guard so the reply can be retried")
	}

	_, cmd = m.handleReplyKey(tea.Key{Code: tea.KeyEnter}, tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("retry after failure must dispatch again")
	}

	m.Update(mutationDoneMsg{tab: TabConfessions, action: "reply sent", closeReply: true})
	if m.replying || m.input.Value() != "" {
		t.Error("successful reply must close the compose box and clear the text")
	}
}

func TestRetrievalTab_ScenarioAddRemove(t *testing.T) {
	m := newTestModel(t)
	m.Init()
	m.switchTab(TabRetrieval)
	base := len(m.runner.Scenarios())

	m.handleRetrievalKey(tea.Key{Code: 'a'})
	if !m.addingScenario || !m.input.Focused() {
		t.Fatal("a must open the scenario compose box")
	}
	if !m.composing() {
		t.Error("scenario compose mode must route keystrokes to the textarea")
	}

	m.input.SetValue("What are the support hours?")
	m.handleScenarioKey(tea.Key{Code: tea.KeyEnter}, tea.KeyPressMsg{Code: tea.KeyEnter})
	if m.addingScenario {
		t.Error("submitting a scenario must close the compose box")
	}
	if got := len(m.runner.Scenarios()); got != base+1 {
		t.Fatalf("scenario count = %d, want %d", got, base+1)
	}

	m.cursor[TabRetrieval] = base
	m.handleRetrievalKey(tea.Key{Code: 'x'})
	if got := len(m.runner.Scenarios()); got != base {
		t.Fatalf("scenario count after remove = %d, want %d", got, base)
	}

	m.benchRunning = true
	m.handleRetrievalKey(tea.Key{Code: 'x'})
	if got := len(m.runner.Scenarios()); got != base {
		t.Error("removal must be refused while a run is in progress")
	}
}

func TestToast_ExpiryIgnoresSuperseded(t *testing.T) {
	m := newTestModel(t)

	m.setToast("first", toastInfo)
	firstSeq := m.toast.seq
	m.setToast("second", toastError)

	m.Update(toastExpiredMsg{seq: firstSeq})
	if m.toast == nil || m.toast.text != "second" {
		t.Error("expiry of a superseded toast must not clear the current one")
	}

	m.Update(toastExpiredMsg{seq: m.toast.seq})
	if m.toast != nil {
		t.Error("matching expiry must clear the toast")
	}
}

func TestHandleChatSubmit_EmptyInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()

	m.input.SetValue("   ")
	_, cmd := m.handleChatSubmit()
	if cmd != nil {
		t.Error("blank input must not launch a send")
	}
	if m.sending {
		t.Error("blank input must not set the sending flag")
	}
}

func TestHandleChatSubmit_WhileSending(t *testing.T) {
	m := newTestModel(t)
	m.Init()
	m.sending = true

	m.input.SetValue("hello")
	_, cmd := m.handleChatSubmit()
	if cmd == nil {
		t.Fatal("expected a toast command")
	}
	if m.toast == nil {
		t.Error("second submit while sending must surface a toast")
	}
	if m.input.Value() != "hello" {
		t.Error("input must be preserved while a send is in flight")
	}
}

func TestClampCursor(t *testing.T) {
	m := newTestModel(t)

	m.cursor[TabUsers] = 5
	m.clampCursor(TabUsers, 3)
	if m.cursor[TabUsers] != 2 {
		t.Errorf("cursor = %d, want 2", m.cursor[TabUsers])
	}

	m.clampCursor(TabUsers, 0)
	if m.cursor[TabUsers] != 0 {
		t.Errorf("cursor = %d, want 0 for empty list", m.cursor[TabUsers])
	}
}

func TestBenchLifecycleMessages(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()
	m.switchTab(TabRetrieval)

	ctx, cancel := context.WithCancel(context.Background())
	eventCh := make(chan benchEvent, 1)
	m.benchRunning = true
	m.Update(benchStartedMsg{eventCh: eventCh, cancel: cancel, total: 5})

	m.Update(benchProgressMsg{completed: 2, total: 5})
	if m.benchDone != 2 || m.benchTotal != 5 {
		t.Errorf("progress = %d/%d, want 2/5", m.benchDone, m.benchTotal)
	}

	m.Update(benchDoneMsg{})
	if m.benchRunning {
		t.Error("run must be marked finished")
	}
	if m.benchCancel != nil || m.benchEventCh != nil {
		t.Error("run resources must be released")
	}

	select {
	case <-ctx.Done():
	default:
		t.Error("finishing the run must cancel its context")
	}
	close(eventCh)
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 << 20, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a very long confession message", 10); len([]rune(got)) != 10 {
		t.Errorf("truncate long = %q (len %d)", got, len([]rune(got)))
	}
}

func TestView_RendersWithoutPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel(t)
	m.Init()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	for tab := Tab(0); tab < tabCount; tab++ {
		m.active = tab
		m.rebuildViewportContent()
		v := m.View()
		_ = v
	}
}

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/log"
	"github.com/koopa0/ragctl/internal/transcript"
)

// fakeSender scripts backend behavior for session tests.
type fakeSender struct {
	mu       sync.Mutex
	calls    int
	lastReq  api.ChatRequest
	response *api.ChatResponse
	err      error

	// block, when non-nil, is closed by the test to release an in-flight call
	block chan struct{}
}

func (f *fakeSender) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okResponse(text string) *api.ChatResponse {
	return &api.ChatResponse{
		Response:        text,
		Sources:         []api.Source{{ID: "k1", Title: "Doc", Similarity: 0.8}},
		Model:           "llama-3.3-70b",
		Provider:        "groq",
		DurationSeconds: 0.5,
	}
}

func newTestSession(t *testing.T, sender Sender) *Session {
	t.Helper()
	s, err := NewSession(uuid.New(), sender, transcript.NewMemStore(), 5, log.NewNop())
	require.NoError(t, err)
	return s
}

func TestNewSession_Validation(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	store := transcript.NewMemStore()
	logger := log.NewNop()

	_, err := NewSession(uuid.Nil, sender, store, 5, logger)
	assert.Error(t, err)
	_, err = NewSession(uuid.New(), nil, store, 5, logger)
	assert.Error(t, err)
	_, err = NewSession(uuid.New(), sender, nil, 5, logger)
	assert.Error(t, err)
	_, err = NewSession(uuid.New(), sender, store, 5, nil)
	assert.Error(t, err)
}

func TestSend_EmptyInput_NoNetworkCall(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{response: okResponse("hi")}
	s := newTestSession(t, sender)

	for _, input := range []string{"", "   ", "\t\n  "} {
		_, err := s.Send(context.Background(), input)
		assert.ErrorIs(t, err, ErrEmptyMessage, "input %q", input)
	}

	assert.Equal(t, 0, sender.callCount(), "empty input must not trigger a network call")
	assert.Empty(t, s.Messages(), "empty input must not append a message")
}

func TestSend_AppendsUserAndAssistant(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{response: okResponse("Chunking splits documents.")}
	s := newTestSession(t, sender)

	msg, err := s.Send(context.Background(), "  what is chunking?  ")
	require.NoError(t, err)
	assert.Equal(t, "Chunking splits documents.", msg.Content)
	assert.Len(t, msg.Sources, 1)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is chunking?", msgs[0].Content, "input must be trimmed")
	assert.Equal(t, transcript.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "groq", msgs[1].Provider)
}

func TestSend_SingleFlight(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	sender := &fakeSender{response: okResponse("done"), block: block}
	s := newTestSession(t, sender)

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		done <- err
	}()

	// Wait until the first send is in flight
	for !s.InFlight() {
		time.Sleep(time.Millisecond)
	}

	_, err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy, "second submission while in flight must be a no-op")
	assert.Equal(t, 1, sender.callCount())

	close(block)
	require.NoError(t, <-done)

	// Resolved: sending works again
	_, err = s.Send(context.Background(), "third")
	require.NoError(t, err)
	assert.Equal(t, 2, sender.callCount(), "only first and third reach the backend")
}

func TestSend_FailureKeepsUserMessage(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: &api.APIError{Status: 500, Message: "boom"}}
	s := newTestSession(t, sender)

	_, err := s.Send(context.Background(), "hello?")
	require.Error(t, err)

	var apiErr *api.APIError
	assert.True(t, errors.As(err, &apiErr))

	msgs := s.Messages()
	require.Len(t, msgs, 1, "user message is kept on failure")
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.False(t, s.InFlight(), "failure must release the in-flight guard")

	// Manual retry works after the failure
	sender.err = nil
	sender.response = okResponse("recovered")
	_, err = s.Send(context.Background(), "hello again")
	require.NoError(t, err)
	assert.Len(t, s.Messages(), 3)
}

func TestSend_HistoryBounded(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{response: okResponse("ok")}
	store := transcript.NewMemStore()
	s, err := NewSession(uuid.New(), sender, store, 2, log.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	for _, q := range []string{"one", "two", "three", "four"} {
		_, err := s.Send(ctx, q)
		require.NoError(t, err)
	}

	// At the 4th send the transcript held 3 completed pairs; only the last
	// 2 pairs may travel.
	history := sender.lastReq.History
	require.Len(t, history, 4)
	assert.Equal(t, "two", history[0].User)
	assert.Equal(t, "ok", history[1].Assistant)
	assert.Equal(t, "three", history[2].User)
	assert.Equal(t, "ok", history[3].Assistant)
}

func TestSend_ZeroTurns_EmptyHistory(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{response: okResponse("ok")}
	s, err := NewSession(uuid.New(), sender, transcript.NewMemStore(), 0, log.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Send(ctx, "one")
	require.NoError(t, err)
	_, err = s.Send(ctx, "two")
	require.NoError(t, err)

	assert.Empty(t, sender.lastReq.History)
	assert.NotNil(t, sender.lastReq.History, "history must serialize as [], not null")
}

func TestSession_PersistsAcrossRestarts(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{response: okResponse("persisted")}
	store := transcript.NewMemStore()
	id := uuid.New()

	s1, err := NewSession(id, sender, store, 5, log.NewNop())
	require.NoError(t, err)
	_, err = s1.Send(context.Background(), "remember me")
	require.NoError(t, err)

	// New session instance over the same store resumes the transcript
	s2, err := NewSession(id, sender, store, 5, log.NewNop())
	require.NoError(t, err)
	msgs := s2.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "remember me", msgs[0].Content)
}

func TestClear(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{response: okResponse("bye")}
	store := transcript.NewMemStore()
	id := uuid.New()

	s, err := NewSession(id, sender, store, 5, log.NewNop())
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "hello")
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Messages())

	persisted, err := store.Load(id)
	require.NoError(t, err)
	assert.Nil(t, persisted, "clear must remove the persisted transcript")
}

func TestHistoryPayload_Ordering(t *testing.T) {
	t.Parallel()

	msgs := []transcript.Message{
		{Role: transcript.RoleUser, Content: "q1"},
		{Role: transcript.RoleAssistant, Content: "a1"},
		{Role: transcript.RoleUser, Content: "q2"},
		{Role: transcript.RoleAssistant, Content: "a2"},
	}

	got := historyPayload(msgs, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].User)
	assert.Equal(t, "a2", got[1].Assistant)

	got = historyPayload(msgs, 10)
	assert.Len(t, got, 4)

	got = historyPayload(nil, 5)
	assert.Empty(t, got)
}

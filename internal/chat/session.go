// Package chat implements the chat session engine.
//
// A Session owns an ordered, append-only transcript and turns each user
// submission into exactly one backend call: bounded prior-turn history in,
// assistant message with cited sources and timings out. Submissions are
// single-flight per session - while one request is in flight, further
// submissions fail fast with ErrBusy rather than queueing.
//
// Failure policy: on a failed send the user message stays in the
// transcript and the error is returned. The caller surfaces it and the
// user retries manually. This is applied uniformly.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/log"
	"github.com/koopa0/ragctl/internal/transcript"
)

var (
	// ErrEmptyMessage indicates an empty or whitespace-only submission.
	// No network call is made.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy indicates a request is already in flight for this session.
	ErrBusy = errors.New("a request is already in flight")
)

// Sender is the backend surface a Session needs. *api.Client satisfies it.
type Sender interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
}

// Session is a chat session bound to one transcript.
// Safe for concurrent use.
type Session struct {
	id       uuid.UUID
	sender   Sender
	store    transcript.Store
	logger   log.Logger
	maxTurns int

	mu       sync.Mutex
	messages []transcript.Message
	inFlight bool
}

// NewSession creates a session and loads any persisted transcript for id.
// maxTurns bounds the prior-turn pairs serialized into each request.
func NewSession(id uuid.UUID, sender Sender, store transcript.Store, maxTurns int, logger log.Logger) (*Session, error) {
	if sender == nil {
		return nil, errors.New("chat.NewSession: sender is required")
	}
	if store == nil {
		return nil, errors.New("chat.NewSession: store is required")
	}
	if logger == nil {
		return nil, errors.New("chat.NewSession: logger is required")
	}
	if id == uuid.Nil {
		return nil, errors.New("chat.NewSession: session ID is required")
	}
	if maxTurns < 0 {
		maxTurns = 0
	}

	messages, err := store.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	return &Session{
		id:       id,
		sender:   sender,
		store:    store,
		logger:   logger,
		maxTurns: maxTurns,
		messages: messages,
	}, nil
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID { return s.id }

// Messages returns a snapshot copy of the transcript for rendering.
func (s *Session) Messages() []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]transcript.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// InFlight reports whether a send is currently outstanding.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Send submits one user message and returns the appended assistant message.
//
// Empty/whitespace-only input returns ErrEmptyMessage before any network
// call. A concurrent send returns ErrBusy. On backend failure the user
// message is kept and the error returned.
func (s *Session) Send(ctx context.Context, text string) (*transcript.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.inFlight = true

	history := historyPayload(s.messages, s.maxTurns)
	s.messages = append(s.messages, transcript.Message{
		Role:      transcript.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	})
	s.persistLocked()
	s.mu.Unlock()

	resp, err := s.sender.Chat(ctx, api.ChatRequest{Message: text, History: history})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		s.logger.Error("chat send failed", "session_id", s.id, "error", err)
		return nil, err
	}

	msg := transcript.Message{
		Role:               transcript.RoleAssistant,
		Content:            resp.Response,
		Sources:            resp.Sources,
		Model:              resp.Model,
		Provider:           resp.Provider,
		DurationSeconds:    resp.DurationSeconds,
		APIDurationSeconds: resp.APIDurationSeconds,
		CreatedAt:          time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	s.persistLocked()

	s.logger.Debug("chat turn completed",
		"session_id", s.id,
		"sources", len(msg.Sources),
		"duration_seconds", msg.DurationSeconds)

	return &msg, nil
}

// Clear empties the transcript and removes the persisted session file.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	if err := s.store.Delete(s.id); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	return nil
}

// persistLocked saves the transcript; persistence failures are logged but
// never fail the conversation. Callers must hold s.mu.
func (s *Session) persistLocked() {
	if err := s.store.Save(s.id, s.messages); err != nil {
		s.logger.Warn("persist transcript failed", "session_id", s.id, "error", err)
	}
}

// historyPayload converts the last maxTurns user/assistant pairs into the
// wire history format, preserving order.
func historyPayload(messages []transcript.Message, maxTurns int) []api.HistoryTurn {
	if maxTurns == 0 {
		return []api.HistoryTurn{}
	}

	limit := maxTurns * 2
	start := len(messages) - limit
	if start < 0 {
		start = 0
	}

	out := make([]api.HistoryTurn, 0, len(messages)-start)
	for _, m := range messages[start:] {
		switch m.Role {
		case transcript.RoleUser:
			out = append(out, api.HistoryTurn{User: m.Content})
		case transcript.RoleAssistant:
			out = append(out, api.HistoryTurn{Assistant: m.Content})
		}
	}
	return out
}

// Package transcript persists chat transcripts.
//
// Persistence goes through the Store interface (load-on-init,
// save-on-change) so it can be swapped or mocked in tests. The
// production store writes one JSON file per session, guarded by an
// advisory file lock. Last-writer-wins; a single writer is assumed.
package transcript

import (
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/ragctl/internal/api"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript item. Transcripts are ordered and append-only
// within a session.
type Message struct {
	Role               string       `json:"role"`
	Content            string       `json:"content"`
	Sources            []api.Source `json:"sources,omitempty"`
	Model              string       `json:"model,omitempty"`
	Provider           string       `json:"provider,omitempty"`
	DurationSeconds    float64      `json:"duration_seconds,omitempty"`
	APIDurationSeconds float64      `json:"api_duration_seconds,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Store persists transcripts keyed by session ID.
//
// Load returns (nil, nil) when no transcript exists for the session:
// a fresh session is not an error.
type Store interface {
	Load(id uuid.UUID) ([]Message, error)
	Save(id uuid.UUID, messages []Message) error
	Delete(id uuid.UUID) error
}

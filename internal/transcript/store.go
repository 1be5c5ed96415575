package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// lockTimeout bounds the wait for the advisory file lock.
const lockTimeout = 5 * time.Second

// sessionFile is the on-disk shape of one persisted session.
type sessionFile struct {
	SessionID uuid.UUID `json:"session_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// FileStore persists one JSON file per session under dir.
// Writes are guarded by a flock sidecar so concurrent ragctl invocations
// don't interleave partial writes.
type FileStore struct {
	dir string
}

// NewFileStore creates the sessions directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

// Load reads the transcript for a session.
// A missing file means a fresh session and returns (nil, nil).
func (s *FileStore) Load(id uuid.UUID) ([]Message, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	return f.Messages, nil
}

// Save writes the full transcript for a session (save-on-change,
// last-writer-wins).
func (s *FileStore) Save(id uuid.UUID, messages []Message) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := json.MarshalIndent(sessionFile{
		SessionID: id,
		UpdatedAt: time.Now().UTC(),
		Messages:  messages,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}

	if err := os.WriteFile(s.path(id), data, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}

// Delete removes a persisted session. Idempotent.
func (s *FileStore) Delete(id uuid.UUID) error {
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	// Best effort: the lock sidecar is recreated on demand.
	_ = os.Remove(s.path(id) + ".lock")
	return nil
}

// List returns the IDs of all persisted sessions, newest first.
func (s *FileStore) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	type stamped struct {
		id  uuid.UUID
		mod time.Time
	}
	var found []stamped
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id, err := uuid.Parse(e.Name()[:len(e.Name())-len(".json")])
		if err != nil {
			continue // foreign file, skip
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{id: id, mod: info.ModTime()})
	}

	ids := make([]uuid.UUID, 0, len(found))
	for len(found) > 0 {
		newest := 0
		for i := range found {
			if found[i].mod.After(found[newest].mod) {
				newest = i
			}
		}
		ids = append(ids, found[newest].id)
		found = append(found[:newest], found[newest+1:]...)
	}
	return ids, nil
}

// lock takes the advisory lock for a session file and returns the unlock
// function.
func (s *FileStore) lock(id uuid.UUID) (func(), error) {
	fl := flock.New(s.path(id) + ".lock")

	deadline := time.Now().Add(lockTimeout)
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock session %s: %w", id, err)
		}
		if ok {
			return func() { _ = fl.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock session %s: timed out after %s", id, lockTimeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// MemStore is an in-memory Store for tests and ephemeral sessions.
type MemStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID][]Message
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[uuid.UUID][]Message)}
}

// Load implements Store.
func (s *MemStore) Load(id uuid.UUID) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Save implements Store.
func (s *MemStore) Save(id uuid.UUID, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]Message, len(messages))
	copy(stored, messages)
	s.sessions[id] = stored
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

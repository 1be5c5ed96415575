package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const stateFile = "current_session"

// statePath returns the path of the current-session pointer inside the
// state directory, creating the directory if needed.
func statePath(stateDir string) (string, error) {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(stateDir, stateFile), nil
}

// LoadCurrentSessionID loads the currently active session ID from the
// pointer file. Returns (nil, nil) if no current session exists.
func LoadCurrentSessionID(stateDir string) (*uuid.UUID, error) {
	filePath, err := statePath(stateDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return nil, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID in state file: %w", err)
	}
	return &id, nil
}

// SaveCurrentSessionID marks a session as current.
func SaveCurrentSessionID(stateDir string, id uuid.UUID) error {
	filePath, err := statePath(stateDir)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, []byte(id.String()), 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// ClearCurrentSessionID removes the pointer file. Idempotent.
func ClearCurrentSessionID(stateDir string) error {
	filePath, err := statePath(stateDir)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unclebandit/aidplug-crm/internal/model"
)

// SessionStore persists the signed-in session between runs.
type SessionStore interface {
	// Load returns nil without error when nothing is stored.
	Load() (*model.Session, error)
	Save(s *model.Session) error
	Clear() error
}

// FileSessionStore keeps the session as JSON in a private file.
type FileSessionStore struct {
	Path string
}

func (f FileSessionStore) Load() (*model.Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid session file: %w", err)
	}
	return &s, nil
}

func (f FileSessionStore) Save(s *model.Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.Path, data, 0600)
}

func (f FileSessionStore) Clear() error {
	err := os.Remove(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

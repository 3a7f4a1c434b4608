package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crucial707/pickem/internal/models"
)

// ErrNoCredential is returned by Store.Load when nothing is persisted.
var ErrNoCredential = errors.New("session: no stored credential")

// Stored is the persisted form of a session.
type Stored struct {
	Token                  string       `json:"token"`
	User                   *models.User `json:"user,omitempty"`
	PasswordChangeRequired bool         `json:"password_change_required,omitempty"`
	SavedAt                time.Time    `json:"saved_at"`
}

// Store persists the credential across process restarts.
type Store interface {
	Load() (*Stored, error)
	Save(s *Stored) error
	Clear() error
}

// FileStore keeps the session as JSON in a single file readable only by its owner.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (*Stored, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("reading session file %s: %w", f.Path, err)
	}

	var s Stored
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", f.Path, err)
	}
	if s.Token == "" {
		return nil, ErrNoCredential
	}
	return &s, nil
}

// Save writes s with mode 0600, creating the parent directory with mode 0700.
func (f *FileStore) Save(s *Stored) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	if err := os.WriteFile(f.Path, data, 0600); err != nil {
		return fmt.Errorf("writing session file %s: %w", f.Path, err)
	}
	return nil
}

// Clear removes the file. Removing a missing file is not an error.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file %s: %w", f.Path, err)
	}
	return nil
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu     sync.Mutex
	stored *Stored
}

func (m *MemoryStore) Load() (*Stored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		return nil, ErrNoCredential
	}
	cp := *m.stored
	return &cp, nil
}

func (m *MemoryStore) Save(s *Stored) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.stored = &cp
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = nil
	return nil
}

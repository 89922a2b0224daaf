package session

import (
	"errors"
	"io"
	"sync"

	"github.com/schoolroster/roster-client/internal/config"
)

// TokenStore persists the single session token.
// Load returns config.ErrNoToken when nothing is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileTokenStore keeps the token in a 0600 file.
type FileTokenStore struct {
	path string
	warn io.Writer
}

// NewFileTokenStore creates a store backed by path. Permission warnings go to warn (may be nil).
func NewFileTokenStore(path string, warn io.Writer) *FileTokenStore {
	return &FileTokenStore{path: path, warn: warn}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) Load() (string, error) {
	return config.ReadTokenFile(s.path, s.warn)
}

func (s *FileTokenStore) Save(token string) error {
	return config.WriteTokenFile(s.path, token)
}

func (s *FileTokenStore) Clear() error {
	return config.RemoveTokenFile(s.path)
}

// MemoryTokenStore keeps the token in memory. Used by tests and one-shot commands.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore creates a store, optionally pre-loaded with token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", config.ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryTokenStore) Save(token string) error {
	if token == "" {
		return errors.New("cannot save empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

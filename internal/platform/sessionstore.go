package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SessionStore persists one opaque session blob per account. The production
// implementation is FileSessionStore; tests use in-memory doubles.
type SessionStore interface {
	Load(account string) ([]byte, error)
	Save(account string, blob []byte) error
	Delete(account string) error
}

// ErrNoSession reports that no persisted session exists for the account.
var ErrNoSession = errors.New("no persisted session")

// FileSessionStore keeps session blobs as files under a directory, one per
// account. Blobs contain credentials, so files are created 0600 and the
// directory 0700.
type FileSessionStore struct {
	dir string
}

// NewFileSessionStore creates the backing directory if needed.
func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session store directory not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileSessionStore{dir: dir}, nil
}

func (s *FileSessionStore) Load(account string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(account))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return blob, nil
}

func (s *FileSessionStore) Save(account string, blob []byte) error {
	path := s.path(account)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Delete(account string) error {
	err := os.Remove(s.path(account))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *FileSessionStore) path(account string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, account)
	return filepath.Join(s.dir, name+".session.json")
}

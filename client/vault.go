package client

import (
	"errors"
	"io/fs"
	"os"
	"sync"
)

// TokenVault stores the refresh token between uses. Load returns an empty
// string, not an error, when no token is stored.
type TokenVault interface {
	Store(token string) error
	Load() (string, error)
	Clear() error
}

// MemoryVault keeps the refresh token in process memory only. This is the
// default: the token disappears when the process ends.
type MemoryVault struct {
	mu    sync.Mutex
	token string
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{}
}

func (v *MemoryVault) Store(token string) error {
	v.mu.Lock()
	v.token = token
	v.mu.Unlock()
	return nil
}

func (v *MemoryVault) Load() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.token, nil
}

func (v *MemoryVault) Clear() error {
	v.mu.Lock()
	v.token = ""
	v.mu.Unlock()
	return nil
}

// FileVault persists the refresh token to a single file with 0600
// permissions, for "remember me" sessions that survive process restarts.
type FileVault struct {
	mu   sync.Mutex
	path string
}

func NewFileVault(path string) (*FileVault, error) {
	if path == "" {
		return nil, errors.New("file vault path must not be empty")
	}
	return &FileVault{path: path}, nil
}

func (v *FileVault) Store(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return os.WriteFile(v.path, []byte(token), 0o600)
}

func (v *FileVault) Load() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func (v *FileVault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

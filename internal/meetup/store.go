package meetup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"kcevents/internal/fsutil"
)

// ErrNoStoredToken is returned by a CredentialStore that holds no token yet.
var ErrNoStoredToken = errors.New("no stored refresh token")

// CredentialStore persists the current refresh token between runs. It is
// injected into the TokenProvider, which is its only writer.
type CredentialStore interface {
	LoadRefreshToken(ctx context.Context) (string, error)
	SaveRefreshToken(ctx context.Context, token string) error
}

// FileStore keeps the refresh token as a single line in a text file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) LoadRefreshToken(_ context.Context) (string, error) {
	if s.Path == "" {
		return "", errors.New("token file path is empty")
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoStoredToken
		}
		return "", err
	}
	// Only the first line is significant.
	line, _, _ := strings.Cut(string(data), "\n")
	token := strings.TrimSpace(line)
	if token == "" {
		return "", ErrNoStoredToken
	}
	return token, nil
}

// SaveRefreshToken rewrites the whole file atomically with 0600 perms.
func (s *FileStore) SaveRefreshToken(_ context.Context, token string) error {
	if s.Path == "" {
		return errors.New("token file path is empty")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("refusing to store empty refresh token")
	}
	return fsutil.WriteFileAtomic(s.Path, []byte(token+"\n"), 0o600, 0o700)
}

// MemoryStore is an in-process CredentialStore for tests and isolated runs.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	saves int
}

func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) LoadRefreshToken(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrNoStoredToken
	}
	return s.token, nil
}

func (s *MemoryStore) SaveRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.saves++
	return nil
}

// Saves reports how many times SaveRefreshToken was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

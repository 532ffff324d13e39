// Package store persists UI preferences. Conversation content is never
// stored locally; the server owns it.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vibeshell/internal/logging"
	"vibeshell/internal/types"
)

const (
	BackendBbolt = "bbolt"
	BackendFile  = "file"
)

type PreferenceStore interface {
	Load(ctx context.Context) (*types.Preferences, error)
	Save(ctx context.Context, prefs *types.Preferences) error
	Backend() string
	Close() error
}

// OpenPreferences opens the bbolt store at dbPath, falling back to a JSON
// file at jsonPath when the database cannot be opened (for example when
// another instance holds its lock).
func OpenPreferences(dbPath, jsonPath string, logger logging.Logger) (PreferenceStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	db, err := NewBboltPreferenceStore(dbPath)
	if err == nil {
		return db, nil
	}
	if strings.TrimSpace(jsonPath) == "" {
		return nil, err
	}
	logger.Warn("preference db unavailable, using file store", logging.F("path", dbPath), logging.Err(err))
	return NewFilePreferenceStore(jsonPath), nil
}

type FilePreferenceStore struct {
	path string
	mu   sync.Mutex
}

func NewFilePreferenceStore(path string) *FilePreferenceStore {
	return &FilePreferenceStore{path: path}
}

// Load returns empty preferences when the file is missing or blank.
func (s *FilePreferenceStore) Load(ctx context.Context) (*types.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := &types.Preferences{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return prefs, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return prefs, nil
}

// Save writes a temp file beside the target and renames it into place, so a
// second shell never reads a half-written file.
func (s *FilePreferenceStore) Save(ctx context.Context, prefs *types.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prefs == nil {
		return errors.New("preferences are required")
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".preferences-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FilePreferenceStore) Backend() string {
	return BackendFile
}

func (s *FilePreferenceStore) Close() error {
	return nil
}

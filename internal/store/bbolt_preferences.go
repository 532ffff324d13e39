package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"vibeshell/internal/types"
)

var (
	bucketPrefs    = []byte("prefs")
	keyPreferences = []byte("ui")
)

type BboltPreferenceStore struct {
	db *bolt.DB
}

func NewBboltPreferenceStore(path string) (*BboltPreferenceStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("preference db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPrefs)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BboltPreferenceStore{db: db}, nil
}

func (s *BboltPreferenceStore) Load(ctx context.Context) (*types.Preferences, error) {
	prefs := &types.Preferences{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPrefs)
		if b == nil {
			return nil
		}
		raw := b.Get(keyPreferences)
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, prefs)
	})
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (s *BboltPreferenceStore) Save(ctx context.Context, prefs *types.Preferences) error {
	if prefs == nil {
		return errors.New("preferences are required")
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketPrefs)
		if err != nil {
			return err
		}
		return b.Put(keyPreferences, raw)
	})
}

func (s *BboltPreferenceStore) Backend() string {
	return BackendBbolt
}

func (s *BboltPreferenceStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

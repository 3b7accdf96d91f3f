// Package kvstore is the small pebble wrapper behind every vidshape store:
// job records, credentials and the pending-job queue.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get and GetJSON for missing keys.
var ErrNotFound = errors.New("kvstore: not found")

// Store is a pebble DB plus the path it was opened from.
type Store struct {
	DB       *pebble.DB
	DataFile string
}

// Open opens (or creates) a pebble DB at dataFile, creating parent directories.
func Open(dataFile string) (*Store, error) {
	if dir := filepath.Dir(dataFile); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := pebble.Open(dataFile, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, DataFile: dataFile}, nil
}

// Set stores value under key.
func (s *Store) Set(key string, value []byte) error {
	return s.DB.Set([]byte(key), value, pebble.Sync)
}

// Get returns a copy of the value for key.
func (s *Store) Get(key string) ([]byte, error) {
	value, closer, err := s.DB.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.DB.Delete([]byte(key), pebble.Sync)
}

// SetJSON stores v as JSON.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Set(key, data)
}

// GetJSON decodes the value for key into v.
func (s *Store) GetJSON(key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// Each calls fn for every entry in key order until fn returns false.
// Keys and values are only valid during the call.
func (s *Store) Each(fn func(key, value []byte) bool) error {
	iter, err := s.DB.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iteration error: %w", err)
	}
	return nil
}

// DeleteWhere removes every entry for which match returns true and reports how many.
func (s *Store) DeleteWhere(match func(key, value []byte) bool) (int, error) {
	var keys [][]byte
	err := s.Each(func(k, v []byte) bool {
		if match(k, v) {
			keys = append(keys, append([]byte(nil), k...))
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	batch := s.DB.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		if err := batch.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("commit deletes: %w", err)
	}
	return len(keys), nil
}

// CheckHealth performs a read against the DB.
func (s *Store) CheckHealth() error {
	if s == nil || s.DB == nil {
		return errors.New("store not initialized")
	}
	_, closer, err := s.DB.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

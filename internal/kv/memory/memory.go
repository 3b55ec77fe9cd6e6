// Package memory is the in-process key-value backend. With a snapshot path it
// also mirrors the whole map to a JSON file after every write, which is enough
// persistence for a single local consumer.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"costnest/internal/kv"
)

type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
	path  string
}

var _ kv.Store = (*Store)(nil)

// New returns an empty, purely in-memory store.
func New() *Store {
	return &Store{items: map[string][]byte{}}
}

// NewFromFile loads the snapshot at path (a missing file means an empty store)
// and keeps it updated on every write.
func NewFromFile(path string) (*Store, error) {
	s := &Store{items: map[string][]byte{}, path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	for k, v := range snapshot {
		s.items[k] = []byte(v)
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.items[key]
	s.items[key] = bytes.Clone(value)
	if err := s.flush(); err != nil {
		if had {
			s.items[key] = prev
		} else {
			delete(s.items, key)
		}
		return kv.StorageError("set", key, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.items[key]
	if !had {
		return nil
	}
	delete(s.items, key)
	if err := s.flush(); err != nil {
		s.items[key] = prev
		return kv.StorageError("remove", key, err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.items
	s.items = map[string][]byte{}
	if err := s.flush(); err != nil {
		s.items = prev
		return kv.StorageError("clear", "", err)
	}
	return nil
}

// flush writes the snapshot through a temp file and rename. Callers hold mu.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}
	snapshot := make(map[string]json.RawMessage, len(s.items))
	for k, v := range s.items {
		if json.Valid(v) {
			snapshot[k] = v
			continue
		}
		quoted, err := json.Marshal(string(v))
		if err != nil {
			return err
		}
		snapshot[k] = quoted
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// File: store/memstore/memstore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory permanent store used as a workspace parent.

package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/momentics/scratchspace/api"
)

// Store is a mutex-guarded map. Values are copied on the way in and out
// so callers never share backing arrays with the store.
type Store struct {
	name string

	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty store.
func New(name string) *Store {
	return &Store{name: name, data: make(map[string][]byte)}
}

func (s *Store) Name() string { return s.name }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, api.ErrNotFound
	}
	return clone(v), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.data[key] = clone(value)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the keys sorted, which keeps CLI output stable.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ api.Store = (*Store)(nil)

// File: space/space.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package space

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/scratchspace/api"
)

// Space is a scratch overlay over a parent store.
type Space struct {
	id        string
	transient bool

	mu         sync.RWMutex
	parent     api.Store
	writes     map[string][]byte
	tombstones map[string]struct{}
}

// New constructs a space bound to parent. parent may be nil.
func New(parent api.Store, transient bool) *Space {
	return &Space{
		id:         uuid.NewString(),
		transient:  transient,
		parent:     parent,
		writes:     make(map[string][]byte),
		tombstones: make(map[string]struct{}),
	}
}

// Factory adapts New to api.WorkspaceFactory.
func Factory(parent api.Store, transient bool) api.Workspace {
	return New(parent, transient)
}

func (s *Space) ID() string      { return s.id }
func (s *Space) Transient() bool { return s.transient }

// Name includes the parent name so nested frames read naturally in logs.
func (s *Space) Name() string {
	kind := "space"
	if s.transient {
		kind = "transient"
	}
	if p := s.Parent(); p != nil {
		return fmt.Sprintf("%s:%s/%s", kind, s.id[:8], p.Name())
	}
	return fmt.Sprintf("%s:%s", kind, s.id[:8])
}

func (s *Space) Parent() api.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parent
}

// Bind re-points the space at parent without touching local content.
func (s *Space) Bind(parent api.Store) {
	s.mu.Lock()
	s.parent = parent
	s.mu.Unlock()
}

// Clear drops local writes and tombstones and unbinds the parent.
// The maps are kept to reuse their buckets on the next lease.
func (s *Space) Clear() {
	s.mu.Lock()
	clear(s.writes)
	clear(s.tombstones)
	s.parent = nil
	s.mu.Unlock()
}

// Len reports the number of local writes plus tombstones.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.writes) + len(s.tombstones)
}

// Empty reports whether the space holds no local content.
func (s *Space) Empty() bool { return s.Len() == 0 }

func (s *Space) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	if v, ok := s.writes[key]; ok {
		s.mu.RUnlock()
		return clone(v), nil
	}
	_, deleted := s.tombstones[key]
	parent := s.parent
	s.mu.RUnlock()

	if deleted || parent == nil {
		return nil, api.ErrNotFound
	}
	return parent.Get(ctx, key)
}

func (s *Space) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.writes[key] = clone(value)
	delete(s.tombstones, key)
	s.mu.Unlock()
	return nil
}

// Delete hides key from readers without touching the parent.
func (s *Space) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.writes, key)
	s.tombstones[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Keys merges parent keys with local writes, minus tombstones. Sorted.
func (s *Space) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	parent := s.parent
	s.mu.RUnlock()

	seen := make(map[string]struct{})
	if parent != nil {
		pk, err := parent.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("list parent %s keys: %w", parent.Name(), err)
		}
		for _, k := range pk {
			seen[k] = struct{}{}
		}
	}

	s.mu.RLock()
	for k := range s.writes {
		seen[k] = struct{}{}
	}
	for k := range s.tombstones {
		delete(seen, k)
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Commit pushes local writes and deletes into the parent, then empties the
// overlay. The space stays bound. On error nothing local is dropped.
func (s *Space) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parent == nil {
		return api.ErrWorkspaceUnbound
	}
	var errs []error
	for k, v := range s.writes {
		if err := s.parent.Put(ctx, k, v); err != nil {
			errs = append(errs, fmt.Errorf("put %q: %w", k, err))
		}
	}
	for k := range s.tombstones {
		if err := s.parent.Delete(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("delete %q: %w", k, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("commit into %s: %w", s.parent.Name(), errors.Join(errs...))
	}
	clear(s.writes)
	clear(s.tombstones)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var (
	_ api.Workspace = (*Space)(nil)
	_ api.Store     = (*Space)(nil)
)

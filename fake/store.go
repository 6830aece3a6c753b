// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"context"

	"github.com/momentics/scratchspace/api"
)

// Store is an api.Store stub whose calls can be made to fail.
type Store struct {
	StoreName string
	GetFunc   func(key string) ([]byte, error)
	Err       error // returned by Put, Delete and Keys when set
}

func (s *Store) Name() string {
	if s.StoreName == "" {
		return "fake"
	}
	return s.StoreName
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.GetFunc != nil {
		return s.GetFunc(key)
	}
	return nil, api.ErrNotFound
}

func (s *Store) Put(context.Context, string, []byte) error { return s.Err }
func (s *Store) Delete(context.Context, string) error      { return s.Err }

func (s *Store) Keys(context.Context) ([]string, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, nil
}

var _ api.Store = (*Store)(nil)

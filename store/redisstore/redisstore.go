// File: store/redisstore/redisstore.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Redis-backed permanent store. Keys are namespaced so several engines can
// share one Redis instance.

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/momentics/scratchspace/api"
)

const keyPrefix = "scratch"

// Store implements api.Store on top of plain Redis strings.
// Safe for concurrent use.
type Store struct {
	rdb       *redis.Client
	namespace string
}

// New connects a store to Redis. namespace must not be empty.
func New(opts *redis.Options, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("%w: namespace cannot be empty", api.ErrInvalidArgument)
	}
	if opts == nil {
		return nil, fmt.Errorf("%w: nil redis options", api.ErrInvalidArgument)
	}
	return &Store{rdb: redis.NewClient(opts), namespace: namespace}, nil
}

// Key returns the Redis key for a store key: scratch:{namespace}:{key}.
func Key(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, namespace, key)
}

func (s *Store) prefix() string { return Key(s.namespace, "") }

func (s *Store) Name() string { return "redis:" + s.namespace }

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection. The store must not be used afterwards.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, Key(s.namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q from Redis: %w", key, err)
	}
	return val, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, Key(s.namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %q to Redis: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, Key(s.namespace, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %q from Redis: %w", key, err)
	}
	return nil
}

// Keys scans the namespace. Sorted for stable output.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	prefix := s.prefix()
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan namespace %s: %w", s.namespace, err)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ api.Store = (*Store)(nil)

// File: facade/scratch.go
// Unified facade layer for scratchspace.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Scratch struct, which owns the scratch pool, the
// permanent parent store and the control plane for one evaluation engine.
// It is created at engine start and torn down with Shutdown; callers receive
// the pool through it instead of reaching for package-level state.

package facade

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/momentics/scratchspace/adapters"
	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
	"github.com/momentics/scratchspace/pool"
	"github.com/momentics/scratchspace/space"
	"github.com/momentics/scratchspace/store/memstore"
	"github.com/momentics/scratchspace/store/redisstore"
)

// Config holds parameters immutable per run, except the pool capacity
// which follows "pool.capacity" in the control config.
type Config struct {
	File        *control.FileConfig  // pool, store and log sections
	Logger      api.Logger           // nil means no logging
	Parent      api.Store            // overrides the store section when set
	Factory     api.WorkspaceFactory // nil means space.Factory
	LeakHandler pool.LeakHandler     // nil means pool.PanicOnLeak
	PoolOptions []pool.Option        // applied after the file config
}

// DefaultConfig returns an in-memory engine with default pool settings.
func DefaultConfig() *Config {
	return &Config{File: control.DefaultFileConfig()}
}

// Scratch is the main facade type.
// It implements api.GracefulShutdown.
type Scratch struct {
	config  *Config
	logger  api.Logger
	control *adapters.ControlAdapter
	pool    *pool.ScratchPool
	parent  api.Store
	closers []io.Closer

	mu      sync.RWMutex
	started bool
	stopped bool
}

var _ api.GracefulShutdown = (*Scratch)(nil)

// New builds the parent store, the pool and the control plane.
func New(cfg *Config) (*Scratch, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.File == nil {
		cfg.File = control.DefaultFileConfig()
	}
	if err := cfg.File.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Scratch{config: cfg, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = api.NopLogger{}
	}
	s.logger = s.logger.With("component", "facade")

	factory := cfg.Factory
	if factory == nil {
		factory = space.Factory
	}
	opts, err := cfg.File.PoolOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, pool.WithLogger(cfg.Logger), pool.WithLeakHandler(cfg.LeakHandler))
	opts = append(opts, cfg.PoolOptions...)
	p, err := pool.New(factory, opts...)
	if err != nil {
		return nil, fmt.Errorf("pool init failure: %w", err)
	}
	s.pool = p

	s.control = adapters.NewControlAdapter()
	s.registerProbes()
	s.control.OnReload(s.applyCapacity)
	if err := s.control.SetConfig(cfg.File.AsMap()); err != nil {
		return nil, err
	}

	// Nothing below may fail once a store is open.
	s.parent = cfg.Parent
	if s.parent == nil {
		parent, closer, err := openStore(cfg.File.Store)
		if err != nil {
			return nil, err
		}
		s.parent = parent
		if closer != nil {
			s.closers = append(s.closers, closer)
		}
	}
	return s, nil
}

func openStore(sc control.StoreConfig) (api.Store, io.Closer, error) {
	switch sc.Kind {
	case "redis":
		rs, err := redisstore.New(&redis.Options{Addr: sc.RedisAddr}, sc.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("redis store init failure: %w", err)
		}
		return rs, rs, nil
	default:
		return memstore.New(sc.Name), nil, nil
	}
}

func (s *Scratch) registerProbes() {
	s.control.RegisterDebugProbe("pool.stats", func() any {
		return s.pool.Stats().AsMap()
	})
	s.control.RegisterDebugProbe("pool.outstanding", func() any {
		out := s.pool.Outstanding()
		lines := make([]string, 0, len(out))
		for _, o := range out {
			lines = append(lines, o.String())
		}
		return lines
	})
	s.control.RegisterDebugProbe("pool.history", func() any {
		h := s.pool.History()
		lines := make([]string, 0, len(h))
		for _, e := range h {
			lines = append(lines, e.String())
		}
		return lines
	})
	s.control.RegisterDebugProbe("store.parent", func() any {
		return s.parent.Name()
	})
}

// applyCapacity follows "pool.capacity" after every config change.
func (s *Scratch) applyCapacity() {
	n, ok := s.control.ConfigInt("pool.capacity")
	if !ok || n == s.pool.Capacity() {
		return
	}
	if err := s.pool.SetCapacity(n); err != nil {
		s.logger.Warn("ignoring capacity reload", "capacity", n, "error", err)
	}
}

// Start verifies the parent store is reachable. Subsequent calls have no effect.
func (s *Scratch) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.stopped {
		return api.ErrPoolClosed
	}
	if pinger, ok := s.parent.(interface{ Ping(context.Context) error }); ok {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pinger.Ping(pctx); err != nil {
			return fmt.Errorf("parent store %s unreachable: %w", s.parent.Name(), err)
		}
	}
	s.started = true
	s.control.SetMetric("engine.started", true)
	s.logger.Info("scratch engine started", "parent", s.parent.Name(), "capacity", s.pool.Capacity())
	return nil
}

// Stop closes the pool and any store the facade opened. Idempotent.
func (s *Scratch) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.started = false

	var firstErr error
	if err := s.pool.Close(); err != nil {
		firstErr = err
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.PublishMetrics()
	s.control.SetMetric("engine.started", false)
	s.logger.Info("scratch engine stopped")
	return firstErr
}

// Shutdown implements api.GracefulShutdown by delegating to Stop().
func (s *Scratch) Shutdown() error {
	return s.Stop()
}

// Pool returns the owned scratch pool.
func (s *Scratch) Pool() *pool.ScratchPool { return s.pool }

// Parent returns the permanent store workspaces overlay by default.
func (s *Scratch) Parent() api.Store { return s.parent }

// Control returns the Control interface for dynamic config and metrics.
func (s *Scratch) Control() api.Control { return s.control }

// Acquire leases a workspace over the default parent.
func (s *Scratch) Acquire() *pool.Lease { return s.pool.Acquire(s.parent) }

// Evaluate runs fn in a leased workspace over the default parent and
// releases it afterwards.
func (s *Scratch) Evaluate(ctx context.Context, fn func(ctx context.Context, w api.Workspace) error) error {
	return s.pool.With(s.parent, func(w api.Workspace) error {
		return fn(ctx, w)
	})
}

// ApplyFile pushes a reloaded file config through the control plane.
// Only the pool capacity takes effect at runtime.
func (s *Scratch) ApplyFile(cfg *control.FileConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.control.SetConfig(cfg.AsMap())
}

// PublishMetrics copies the pool stats into the metrics registry.
func (s *Scratch) PublishMetrics() api.PoolStats {
	stats := s.pool.Stats()
	s.control.SetMetrics("pool", stats.AsMap())
	return stats
}

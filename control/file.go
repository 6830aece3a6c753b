// control/file.go
// Author: momentics <momentics@gmail.com>
//
// File-based configuration in YAML or TOML.

package control

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/momentics/scratchspace/pool"
)

// FileConfig is the on-disk configuration of a scratch engine.
type FileConfig struct {
	Pool  PoolConfig  `yaml:"pool" toml:"pool"`
	Store StoreConfig `yaml:"store" toml:"store"`
	Log   LogConfig   `yaml:"log" toml:"log"`
}

// PoolConfig mirrors the pool options.
type PoolConfig struct {
	Capacity  int    `yaml:"capacity" toml:"capacity"`
	Overflow  string `yaml:"overflow" toml:"overflow"` // "retain" (default) or "discard"
	History   int    `yaml:"history" toml:"history"`   // lease events kept, 0 disables
	CallSites *bool  `yaml:"call_sites,omitempty" toml:"call_sites,omitempty"`
}

// StoreConfig selects the permanent store workspaces overlay.
type StoreConfig struct {
	Kind      string `yaml:"kind" toml:"kind"` // "memory" or "redis"
	Name      string `yaml:"name" toml:"name"`
	RedisAddr string `yaml:"redis_addr,omitempty" toml:"redis_addr,omitempty"`
	Namespace string `yaml:"namespace,omitempty" toml:"namespace,omitempty"`
}

// LogConfig controls the slog handler built by the CLI.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// DefaultFileConfig returns the defaults applied before a file is decoded.
func DefaultFileConfig() *FileConfig {
	callSites := true
	return &FileConfig{
		Pool: PoolConfig{
			Capacity:  pool.DefaultCapacity,
			Overflow:  pool.OverflowRetain.String(),
			History:   pool.DefaultHistorySize,
			CallSites: &callSites,
		},
		Store: StoreConfig{Kind: "memory", Name: "permanent"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// LoadFile reads path on top of the defaults. The format follows the
// extension: .yaml/.yml or .toml.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := DefaultFileConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (expected .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *FileConfig) Validate() error {
	if c.Pool.Capacity < 1 {
		return fmt.Errorf("pool.capacity must be at least 1, got %d", c.Pool.Capacity)
	}
	if c.Pool.History < 0 {
		return fmt.Errorf("pool.history must not be negative, got %d", c.Pool.History)
	}
	if _, err := pool.ParseOverflowPolicy(c.Pool.Overflow); err != nil {
		return fmt.Errorf("pool.overflow: %w", err)
	}

	switch c.Store.Kind {
	case "memory":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for redis store")
		}
		if c.Store.Namespace == "" {
			return fmt.Errorf("store.namespace is required for redis store")
		}
	default:
		return fmt.Errorf("store.kind must be memory or redis, got %q", c.Store.Kind)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// PoolOptions converts the pool section into pool options.
func (c *FileConfig) PoolOptions() ([]pool.Option, error) {
	policy, err := pool.ParseOverflowPolicy(c.Pool.Overflow)
	if err != nil {
		return nil, err
	}
	opts := []pool.Option{
		pool.WithCapacity(c.Pool.Capacity),
		pool.WithOverflowPolicy(policy),
		pool.WithHistory(c.Pool.History),
	}
	if c.Pool.CallSites != nil {
		opts = append(opts, pool.WithCallSites(*c.Pool.CallSites))
	}
	return opts, nil
}

// AsMap flattens the config into ConfigStore keys.
func (c *FileConfig) AsMap() map[string]any {
	return map[string]any{
		"pool.capacity":   c.Pool.Capacity,
		"pool.overflow":   c.Pool.Overflow,
		"pool.history":    c.Pool.History,
		"store.kind":      c.Store.Kind,
		"store.name":      c.Store.Name,
		"store.namespace": c.Store.Namespace,
		"log.level":       c.Log.Level,
		"log.format":      c.Log.Format,
	}
}

// ParseLevel maps a level name onto slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

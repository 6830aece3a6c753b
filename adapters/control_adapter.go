// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/control"
)

type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

func NewControlAdapter() *ControlAdapter {
	adapter := &ControlAdapter{
		config:  control.NewConfigStore(),
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

// SetConfig merges cfg and runs reload listeners before returning.
func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	c.config.SetConfigSync(cfg)
	return nil
}

// ConfigInt reads an integer config value.
func (c *ControlAdapter) ConfigInt(key string) (int, bool) {
	return c.config.GetInt(key)
}

func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any)
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

// SetMetrics stores values under prefix in a single registry update.
func (c *ControlAdapter) SetMetrics(prefix string, values map[string]any) {
	c.metrics.SetAll(prefix, values)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// DumpDebug returns only the probe outputs.
func (c *ControlAdapter) DumpDebug() map[string]any {
	return c.debug.DumpState()
}

var (
	_ api.Control = (*ControlAdapter)(nil)
	_ api.Debug   = (*controlDebug)(nil)
)

// controlDebug narrows the adapter to api.Debug.
type controlDebug struct{ c *ControlAdapter }

func (d *controlDebug) DumpState() map[string]any                { return d.c.DumpDebug() }
func (d *controlDebug) RegisterProbe(name string, fn func() any) { d.c.RegisterDebugProbe(name, fn) }

// Debug exposes the probe registry through api.Debug.
func (c *ControlAdapter) Debug() api.Debug { return &controlDebug{c} }

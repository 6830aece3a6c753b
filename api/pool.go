// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines the scratch-workspace pooling contracts.

package api

// ScratchPool hands out transient workspaces bound to a parent store and
// takes them back for reuse.
type ScratchPool interface {
	// Acquire returns an empty workspace bound to parent.
	Acquire(parent Store) Workspace

	// Release returns a workspace to the pool. Never fails.
	Release(w Workspace)

	// Stats reports a consistent snapshot of pool occupancy and counters.
	Stats() PoolStats
}

// PoolStats is a point-in-time view of a scratch pool.
type PoolStats struct {
	Capacity        int    // maximum idle workspaces, also the leak threshold
	Idle            int    // workspaces waiting for reuse
	Issued          int    // workspaces on loan, including retained overflow
	Created         uint64 // workspaces constructed by the factory
	Reused          uint64 // acquisitions served from the idle set
	Recycled        uint64 // releases that moved a workspace back to idle
	Overflowed      uint64 // releases that found the idle set full
	Discarded       uint64 // workspaces dropped (overflow discard, shrink, drain)
	ForeignReleases uint64 // releases of workspaces the pool did not issue
	LeakSignals     uint64 // times the issued count exceeded capacity
}

// AsMap flattens the stats for metrics registries and debug probes.
func (s PoolStats) AsMap() map[string]any {
	return map[string]any{
		"capacity":         s.Capacity,
		"idle":             s.Idle,
		"issued":           s.Issued,
		"created":          s.Created,
		"reused":           s.Reused,
		"recycled":         s.Recycled,
		"overflowed":       s.Overflowed,
		"discarded":        s.Discarded,
		"foreign_releases": s.ForeignReleases,
		"leak_signals":     s.LeakSignals,
	}
}

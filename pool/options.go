// File: pool/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"fmt"
	"strings"

	"github.com/momentics/scratchspace/api"
)

const (
	// DefaultCapacity bounds both the idle set and the leak threshold.
	DefaultCapacity = 32

	// DefaultHistorySize is the number of lease events kept for leak reports.
	DefaultHistorySize = 64
)

// OverflowPolicy decides what Release does when the idle set is full.
type OverflowPolicy uint8

const (
	// OverflowRetain leaves the workspace uncleared in the issued set, where
	// it keeps counting toward the leak threshold.
	OverflowRetain OverflowPolicy = iota

	// OverflowDiscard removes the workspace from the issued set and drops it.
	OverflowDiscard
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowRetain:
		return "retain"
	case OverflowDiscard:
		return "discard"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", uint8(p))
	}
}

// ParseOverflowPolicy accepts "retain" or "discard", case-insensitive.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retain":
		return OverflowRetain, nil
	case "discard":
		return OverflowDiscard, nil
	default:
		return 0, fmt.Errorf("%w: unknown overflow policy %q", api.ErrInvalidArgument, s)
	}
}

// LeakHandler receives the leak error once the issued count passes capacity.
// The default handler panics with it.
type LeakHandler func(err *api.Error)

// PanicOnLeak is the default LeakHandler.
func PanicOnLeak(err *api.Error) { panic(err) }

// Option configures a ScratchPool.
type Option func(*ScratchPool)

// WithCapacity sets the pool capacity. Values below 1 make New fail.
func WithCapacity(n int) Option {
	return func(p *ScratchPool) { p.capacity = n }
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l api.Logger) Option {
	return func(p *ScratchPool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithOverflowPolicy selects the full-idle-set behavior of Release.
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(p *ScratchPool) { p.policy = policy }
}

// WithLeakHandler replaces PanicOnLeak. Intended for tests and for hosts that
// prefer to crash through their own supervisor.
func WithLeakHandler(h LeakHandler) Option {
	return func(p *ScratchPool) {
		if h != nil {
			p.onLeak = h
		}
	}
}

// WithHistory sets how many lease events are remembered. 0 disables history.
func WithHistory(n int) Option {
	return func(p *ScratchPool) { p.historySize = n }
}

// WithCallSites toggles recording of the acquiring call site per lease.
func WithCallSites(enabled bool) Option {
	return func(p *ScratchPool) { p.callSites = enabled }
}

// File: pool/lease.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lease guard that owns one issued workspace.

package pool

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/momentics/scratchspace/api"
)

// Lease owns an issued workspace until Release is called.
//
//	l := p.Acquire(parent)
//	defer l.Release()
type Lease struct {
	pool       *ScratchPool
	ws         api.Workspace
	site       string
	acquiredAt time.Time
	released   atomic.Bool
}

// Workspace returns the leased workspace. It must not be used after Release.
func (l *Lease) Workspace() api.Workspace { return l.ws }

// Site is the file:line that acquired the lease, empty when call sites
// are disabled.
func (l *Lease) Site() string { return l.site }

// AcquiredAt is the time the lease was issued.
func (l *Lease) AcquiredAt() time.Time { return l.acquiredAt }

// Released reports whether Release has been called.
func (l *Lease) Released() bool { return l.released.Load() }

// Release hands the workspace back to the pool. Safe to call more than once.
func (l *Lease) Release() { l.release() }

func (l *Lease) release() bool {
	if !l.released.CompareAndSwap(false, true) {
		return false
	}
	l.pool.putBack(l)
	return true
}

// As returns the leased workspace as its concrete type.
func As[W api.Workspace](l *Lease) (W, bool) {
	w, ok := l.ws.(W)
	return w, ok
}

// site returns "file.go:line" of the caller skip frames up, or "" when
// call sites are disabled.
func (p *ScratchPool) site(skip int) string {
	if !p.callSites {
		return ""
	}
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

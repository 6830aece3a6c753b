// File: pool/scratch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded scratch workspace pool with check-lock-recheck fast paths.

package pool

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/momentics/scratchspace/api"
)

// ScratchPool recycles transient workspaces.
//
// The idle stack and the issued registry are guarded by mu. The issued
// count is always len(issued) read under mu. idleHint and capHint mirror
// len(idle) and capacity for the unlocked pre-checks only; every decision
// is re-validated under mu.
type ScratchPool struct {
	factory     api.WorkspaceFactory
	logger      api.Logger
	policy      OverflowPolicy
	onLeak      LeakHandler
	historySize int
	callSites   bool

	mu       sync.Mutex
	capacity int
	idle     []api.Workspace
	issued   map[string]*Lease
	history  *history
	closed   bool

	_        cpu.CacheLinePad
	idleHint atomic.Int64
	capHint  atomic.Int64
	isClosed atomic.Bool
	_        cpu.CacheLinePad

	created    atomic.Uint64
	reused     atomic.Uint64
	recycled   atomic.Uint64
	overflowed atomic.Uint64
	discarded  atomic.Uint64
	foreign    atomic.Uint64
	leaks      atomic.Uint64
}

// New creates a pool that builds workspaces with factory.
func New(factory api.WorkspaceFactory, opts ...Option) (*ScratchPool, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil workspace factory", api.ErrInvalidArgument)
	}
	p := &ScratchPool{
		factory:     factory,
		logger:      api.NopLogger{},
		policy:      OverflowRetain,
		onLeak:      PanicOnLeak,
		historySize: DefaultHistorySize,
		callSites:   true,
		capacity:    DefaultCapacity,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.capacity < 1 {
		return nil, fmt.Errorf("%w: capacity %d, must be at least 1", api.ErrInvalidArgument, p.capacity)
	}
	switch p.policy {
	case OverflowRetain, OverflowDiscard:
	default:
		return nil, fmt.Errorf("%w: %s", api.ErrInvalidArgument, p.policy)
	}
	p.idle = make([]api.Workspace, 0, p.capacity)
	p.issued = make(map[string]*Lease, p.capacity)
	p.history = newHistory(p.historySize)
	p.capHint.Store(int64(p.capacity))
	p.logger = p.logger.With("component", "scratchpool")
	return p, nil
}

// Acquire returns a lease on an empty workspace bound to parent.
// It panics with api.ErrPoolClosed after Close, and runs the leak handler
// when the issued count exceeds capacity.
func (p *ScratchPool) Acquire(parent api.Store) *Lease {
	return p.acquire(parent, p.site(2))
}

// With runs fn on a leased workspace and releases it afterwards, also when
// fn panics.
func (p *ScratchPool) With(parent api.Store, fn func(w api.Workspace) error) error {
	l := p.acquire(parent, p.site(2))
	defer l.Release()
	return fn(l.ws)
}

func (p *ScratchPool) acquire(parent api.Store, site string) *Lease {
	if p.isClosed.Load() {
		panic(closedError())
	}

	var (
		lease    *Lease
		issued   int
		capacity int
	)

	if p.idleHint.Load() > 0 {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			panic(closedError())
		}
		if n := len(p.idle); n > 0 {
			w := p.idle[n-1]
			p.idle[n-1] = nil
			p.idle = p.idle[:n-1]
			p.idleHint.Store(int64(len(p.idle)))

			w.Bind(parent)
			lease = p.issueLocked(w, site, EventReuse)
			issued, capacity = len(p.issued), p.capacity
		}
		p.mu.Unlock()
		if lease != nil {
			p.reused.Add(1)
		}
	}

	if lease == nil {
		// Construction is the expensive part; keep it outside the lock.
		w := p.factory(parent, true)
		p.created.Add(1)

		p.mu.Lock()
		if p.closed {
			p.history.add(EventDiscard, w.ID(), site)
			p.mu.Unlock()
			w.Clear()
			p.discarded.Add(1)
			panic(closedError())
		}
		lease = p.issueLocked(w, site, EventCreate)
		issued, capacity = len(p.issued), p.capacity
		p.mu.Unlock()
	}

	if issued > capacity {
		p.signalLeak(issued, capacity)
	}
	return lease
}

func (p *ScratchPool) issueLocked(w api.Workspace, site string, kind EventKind) *Lease {
	l := &Lease{pool: p, ws: w, site: site, acquiredAt: time.Now()}
	p.issued[w.ID()] = l
	p.history.add(kind, w.ID(), site)
	return l
}

// Release returns a workspace obtained through Raw().Acquire or Lease.Workspace.
// Releasing an unknown or already released workspace is logged and ignored.
func (p *ScratchPool) Release(w api.Workspace) {
	if w == nil {
		return
	}
	p.mu.Lock()
	l := p.issued[w.ID()]
	p.mu.Unlock()

	if l == nil || !sameWorkspace(l.ws, w) || !l.release() {
		p.foreign.Add(1)
		p.logger.Warn("release of workspace not on loan", "workspace", w.ID())
	}
}

// sameWorkspace reports whether a and b are the same workspace. Values of
// non-comparable dynamic types fall back to the ID match already made.
func sameWorkspace(a, b api.Workspace) (same bool) {
	defer func() {
		if recover() != nil {
			same = a.ID() == b.ID()
		}
	}()
	return a == b
}

// putBack implements the release protocol for a lease released exactly once.
func (p *ScratchPool) putBack(l *Lease) {
	w := l.ws
	if p.idleHint.Load() < p.capHint.Load() {
		p.mu.Lock()
		if !p.closed && len(p.idle) < p.capacity {
			w.Clear()
			delete(p.issued, w.ID())
			p.idle = append(p.idle, w)
			p.idleHint.Store(int64(len(p.idle)))
			p.history.add(EventRecycle, w.ID(), l.site)
			p.mu.Unlock()
			p.recycled.Add(1)
			return
		}
		p.mu.Unlock()
	}
	p.overflow(l)
}

// overflow handles a release that found no room in the idle set.
func (p *ScratchPool) overflow(l *Lease) {
	id := l.ws.ID()

	p.mu.Lock()
	closed := p.closed
	discard := closed || p.policy == OverflowDiscard
	if discard {
		delete(p.issued, id)
		p.history.add(EventDiscard, id, l.site)
	} else {
		p.history.add(EventOverflow, id, l.site)
	}
	issued, capacity := len(p.issued), p.capacity
	p.mu.Unlock()

	if closed {
		l.ws.Clear()
		p.discarded.Add(1)
		p.logger.Debug("workspace dropped by closed pool", "workspace", id)
		return
	}

	p.overflowed.Add(1)
	if discard {
		l.ws.Clear()
		p.discarded.Add(1)
		p.logger.Debug("idle set full, workspace discarded", "workspace", id, "capacity", capacity)
		return
	}
	p.logger.Warn("idle set full, workspace retained in issued set",
		"workspace", id, "issued", issued, "capacity", capacity)
}

func (p *ScratchPool) signalLeak(issued, capacity int) {
	p.leaks.Add(1)

	p.mu.Lock()
	outstanding := p.outstandingLocked()
	recent := p.history.last(8)
	p.mu.Unlock()

	sites := make([]string, 0, len(outstanding))
	for _, o := range outstanding {
		sites = append(sites, o.String())
	}
	events := make([]string, 0, len(recent))
	for _, e := range recent {
		events = append(events, e.String())
	}

	err := api.NewError(api.ErrCodeLeak, "transient workspace leak: issued count exceeds capacity").
		WithContext("issued", issued).
		WithContext("capacity", capacity).
		WithContext("outstanding", sites).
		WithContext("recent", events)

	p.logger.Error("transient workspace leak", "issued", issued, "capacity", capacity, "outstanding", len(sites))
	p.onLeak(err)
}

// Capacity returns the current capacity.
func (p *ScratchPool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// SetCapacity changes the capacity. Shrinking drops the oldest idle
// workspaces above the new bound; issued workspaces are not touched.
func (p *ScratchPool) SetCapacity(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: capacity %d, must be at least 1", api.ErrInvalidArgument, n)
	}
	p.mu.Lock()
	old := p.capacity
	p.capacity = n
	p.capHint.Store(int64(n))
	var dropped []api.Workspace
	if excess := len(p.idle) - n; excess > 0 {
		dropped = append(dropped, p.idle[:excess]...)
		kept := copy(p.idle, p.idle[excess:])
		clear(p.idle[kept:])
		p.idle = p.idle[:kept]
		p.idleHint.Store(int64(kept))
		for _, w := range dropped {
			p.history.add(EventDiscard, w.ID(), "")
		}
	}
	p.mu.Unlock()

	p.discarded.Add(uint64(len(dropped)))
	p.logger.Info("capacity changed", "from", old, "to", n, "dropped", len(dropped))
	return nil
}

// Drain drops every idle workspace and returns how many were dropped.
func (p *ScratchPool) Drain() int {
	p.mu.Lock()
	n := len(p.idle)
	for _, w := range p.idle {
		p.history.add(EventDiscard, w.ID(), "")
	}
	clear(p.idle)
	p.idle = p.idle[:0]
	p.idleHint.Store(0)
	p.mu.Unlock()

	p.discarded.Add(uint64(n))
	return n
}

// Close drains the pool and refuses further acquisitions. Workspaces still
// on loan are dropped when released. Close is idempotent.
func (p *ScratchPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.isClosed.Store(true)
	issued := len(p.issued)
	p.mu.Unlock()

	drained := p.Drain()
	p.logger.Info("scratch pool closed", "drained", drained, "still_issued", issued)
	return nil
}

// Stats returns a consistent view of occupancy plus the lifetime counters.
func (p *ScratchPool) Stats() api.PoolStats {
	p.mu.Lock()
	s := api.PoolStats{
		Capacity: p.capacity,
		Idle:     len(p.idle),
		Issued:   len(p.issued),
	}
	p.mu.Unlock()

	s.Created = p.created.Load()
	s.Reused = p.reused.Load()
	s.Recycled = p.recycled.Load()
	s.Overflowed = p.overflowed.Load()
	s.Discarded = p.discarded.Load()
	s.ForeignReleases = p.foreign.Load()
	s.LeakSignals = p.leaks.Load()
	return s
}

// LeaseInfo describes one issued workspace.
type LeaseInfo struct {
	Workspace  string
	Site       string
	AcquiredAt time.Time
	// Retained is set for workspaces released into a full idle set and kept
	// in the issued registry.
	Retained bool
}

func (i LeaseInfo) String() string {
	s := i.Workspace
	if i.Site != "" {
		s += "@" + i.Site
	}
	if i.Retained {
		s += " (retained)"
	}
	return s
}

// Outstanding lists the issued workspaces, oldest first.
func (p *ScratchPool) Outstanding() []LeaseInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstandingLocked()
}

func (p *ScratchPool) outstandingLocked() []LeaseInfo {
	out := make([]LeaseInfo, 0, len(p.issued))
	for id, l := range p.issued {
		out = append(out, LeaseInfo{
			Workspace:  id,
			Site:       l.site,
			AcquiredAt: l.acquiredAt,
			Retained:   l.released.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].Workspace < out[j].Workspace
		}
		return out[i].AcquiredAt.Before(out[j].AcquiredAt)
	})
	return out
}

// History returns the remembered lease events, oldest first.
func (p *ScratchPool) History() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.snapshot()
}

// Raw exposes the pool through the handle-based api.ScratchPool contract.
func (p *ScratchPool) Raw() api.ScratchPool { return rawPool{p} }

type rawPool struct{ p *ScratchPool }

func (r rawPool) Acquire(parent api.Store) api.Workspace {
	return r.p.acquire(parent, r.p.site(2)).ws
}

func (r rawPool) Release(w api.Workspace) { r.p.Release(w) }
func (r rawPool) Stats() api.PoolStats    { return r.p.Stats() }

func closedError() *api.Error {
	return api.NewError(api.ErrCodeClosed, "acquire on closed scratch pool")
}

package pool_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/scratchspace/api"
	"github.com/momentics/scratchspace/fake"
	"github.com/momentics/scratchspace/pool"
	"github.com/momentics/scratchspace/space"
	"github.com/momentics/scratchspace/store/memstore"
)

func newPool(t *testing.T, f *fake.Factory, opts ...pool.Option) *pool.ScratchPool {
	t.Helper()
	p, err := pool.New(f.New, opts...)
	require.NoError(t, err)
	return p
}

// leakRecorder is a non-fatal leak handler for tests.
type leakRecorder struct {
	mu   sync.Mutex
	errs []*api.Error
}

func (r *leakRecorder) handle(err *api.Error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *leakRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func TestNew_Validation(t *testing.T) {
	_, err := pool.New(nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = pool.New(space.Factory, pool.WithCapacity(0))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = pool.New(space.Factory, pool.WithOverflowPolicy(pool.OverflowPolicy(9)))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	p, err := pool.New(space.Factory)
	require.NoError(t, err)
	assert.Equal(t, pool.DefaultCapacity, p.Capacity())
}

func TestAcquire_ConcurrentWithinCapacity(t *testing.T) {
	const capacity = 32
	f := &fake.Factory{}
	leaks := &leakRecorder{}
	p := newPool(t, f, pool.WithCapacity(capacity), pool.WithLeakHandler(leaks.handle))
	parent := memstore.New("perm")

	leases := make([]*pool.Lease, capacity)
	var wg sync.WaitGroup
	for i := 0; i < capacity; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leases[i] = p.Acquire(parent)
		}(i)
	}
	wg.Wait()

	stats := p.Stats()
	assert.Equal(t, capacity, stats.Issued)
	assert.Equal(t, 0, stats.Idle)
	assert.Zero(t, leaks.count())
	assert.Equal(t, capacity, f.Built())

	seen := make(map[string]bool)
	for _, l := range leases {
		assert.False(t, seen[l.Workspace().ID()], "workspace issued twice")
		seen[l.Workspace().ID()] = true
		assert.Same(t, parent, l.Workspace().Parent())
		assert.True(t, l.Workspace().Transient())
	}
}

func TestAcquire_ReleasedWorkspaceComesBackEmpty(t *testing.T) {
	ctx := context.Background()
	p, err := pool.New(space.Factory, pool.WithCapacity(4))
	require.NoError(t, err)
	perm := memstore.New("perm")

	first := p.Acquire(perm)
	s, ok := pool.As[*space.Space](first)
	require.True(t, ok)
	require.NoError(t, s.Put(ctx, "tmp", []byte("scratch")))
	require.NoError(t, s.Delete(ctx, "other"))
	first.Release()

	assert.True(t, s.Empty())
	assert.Nil(t, s.Parent())

	other := memstore.New("other")
	second := p.Acquire(other)
	s2, ok := pool.As[*space.Space](second)
	require.True(t, ok)
	assert.Same(t, s, s2, "idle workspace should be reused")
	assert.True(t, s2.Empty())
	assert.Same(t, other, s2.Parent())

	_, err = s2.Get(ctx, "tmp")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, 0, perm.Len(), "scratch writes must never reach the parent")
}

func TestAcquire_LeakFiresOnCapacityPlusOne(t *testing.T) {
	const capacity = 4
	f := &fake.Factory{}
	p := newPool(t, f, pool.WithCapacity(capacity))

	for i := 0; i < capacity; i++ {
		assert.NotPanics(t, func() { p.Acquire(nil) })
	}

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		p.Acquire(nil)
	}()
	require.NotNil(t, recovered, "acquire past capacity must be fatal")

	err, ok := recovered.(*api.Error)
	require.True(t, ok, "panic value should be *api.Error, got %T", recovered)
	assert.ErrorIs(t, err, api.ErrLeak)
	assert.Equal(t, capacity+1, err.Context["issued"])
	assert.Equal(t, capacity, err.Context["capacity"])
	sites, _ := err.Context["outstanding"].([]string)
	assert.Len(t, sites, capacity+1)
	assert.Contains(t, sites[0], "scratch_test.go:")
	assert.Equal(t, uint64(1), p.Stats().LeakSignals)
}

func TestAcquire_LeakHandlerCanContinue(t *testing.T) {
	leaks := &leakRecorder{}
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(1), pool.WithLeakHandler(leaks.handle))

	a := p.Acquire(nil)
	b := p.Acquire(nil)
	require.NotNil(t, b)
	assert.Equal(t, 1, leaks.count())
	assert.Equal(t, 2, p.Stats().Issued)

	a.Release()
	b.Release()
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestRelease_ClearsAndUnbinds(t *testing.T) {
	f := &fake.Factory{}
	p := newPool(t, f, pool.WithCapacity(2))
	parent := memstore.New("perm")

	l := p.Acquire(parent)
	w := l.Workspace().(*fake.Workspace)
	w.Write("node")
	l.Release()

	assert.Nil(t, w.Parent())
	assert.Empty(t, w.Content())
	assert.Equal(t, 1, w.Clears())
	assert.True(t, l.Released())

	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.Issued)
	assert.Equal(t, uint64(1), stats.Recycled)
}

// Capacity 2: A, B; release A; C reuses A; release B, C; fifth reuses.
func TestScenario_CapacityTwo(t *testing.T) {
	f := &fake.Factory{}
	p := newPool(t, f, pool.WithCapacity(2))

	a := p.Acquire(nil)
	b := p.Acquire(nil)
	assert.Equal(t, api.PoolStats{Capacity: 2, Idle: 0, Issued: 2, Created: 2}, p.Stats())

	a.Release()
	s := p.Stats()
	assert.Equal(t, 1, s.Idle)
	assert.Equal(t, 1, s.Issued)

	c := p.Acquire(nil)
	assert.Same(t, a.Workspace(), c.Workspace(), "C should reuse A's storage")
	s = p.Stats()
	assert.Equal(t, 0, s.Idle)
	assert.Equal(t, 2, s.Issued)

	b.Release()
	c.Release()
	s = p.Stats()
	assert.Equal(t, 2, s.Idle)
	assert.Equal(t, 0, s.Issued)

	e := p.Acquire(nil)
	assert.Equal(t, 2, f.Built(), "fifth acquire must not construct new storage")
	assert.Same(t, c.Workspace(), e.Workspace(), "LIFO reuse returns the most recent release")
	assert.Equal(t, uint64(2), p.Stats().Reused)
}

func TestRelease_OverflowRetain(t *testing.T) {
	leaks := &leakRecorder{}
	f := &fake.Factory{}
	p := newPool(t, f, pool.WithCapacity(1), pool.WithLeakHandler(leaks.handle))

	a := p.Acquire(nil)
	b := p.Acquire(nil) // leak signal, tolerated by the recorder
	a.Release()

	bw := b.Workspace().(*fake.Workspace)
	bw.Write("kept")
	b.Release()

	s := p.Stats()
	assert.Equal(t, 1, s.Idle)
	assert.Equal(t, 1, s.Issued, "retained workspace stays in the issued set")
	assert.Equal(t, uint64(1), s.Overflowed)
	assert.Zero(t, s.Discarded)
	assert.Equal(t, []string{"kept"}, bw.Content(), "retained workspace is not cleared")

	out := p.Outstanding()
	require.Len(t, out, 1)
	assert.Equal(t, bw.ID(), out[0].Workspace)
	assert.True(t, out[0].Retained)

	// The retained workspace keeps counting toward the threshold: reusing
	// the single idle workspace already trips it.
	p.Acquire(nil)
	assert.Equal(t, 2, leaks.count())
	assert.Equal(t, 2, f.Built(), "acquire was served from the idle set")
}

func TestRelease_OverflowDiscard(t *testing.T) {
	leaks := &leakRecorder{}
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(1),
		pool.WithOverflowPolicy(pool.OverflowDiscard), pool.WithLeakHandler(leaks.handle))

	a := p.Acquire(nil)
	b := p.Acquire(nil)
	a.Release()
	bw := b.Workspace().(*fake.Workspace)
	bw.Write("dropped")
	b.Release()

	s := p.Stats()
	assert.Equal(t, 1, s.Idle)
	assert.Equal(t, 0, s.Issued)
	assert.Equal(t, uint64(1), s.Overflowed)
	assert.Equal(t, uint64(1), s.Discarded)
	assert.Empty(t, bw.Content())
}

func TestRelease_DoubleAndForeign(t *testing.T) {
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(2))

	l := p.Acquire(nil)
	w := l.Workspace()
	l.Release()
	l.Release()
	p.Release(w)
	p.Release(fake.NewWorkspace("stranger", nil, true))
	p.Release(nil)

	s := p.Stats()
	assert.Equal(t, 1, s.Idle)
	assert.Equal(t, uint64(1), s.Recycled)
	assert.Equal(t, uint64(2), s.ForeignReleases)
}

func TestRelease_StaleLeaseDoesNotTouchReissuedWorkspace(t *testing.T) {
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(2))

	old := p.Acquire(nil)
	old.Release()
	fresh := p.Acquire(nil)
	require.Same(t, old.Workspace(), fresh.Workspace())

	old.Release()
	assert.Equal(t, 1, p.Stats().Issued)
	assert.False(t, fresh.Released())
}

func TestRaw_HandleAPI(t *testing.T) {
	f := &fake.Factory{}
	p := newPool(t, f, pool.WithCapacity(2))
	raw := p.Raw()

	w := raw.Acquire(nil)
	assert.Equal(t, 1, raw.Stats().Issued)
	raw.Release(w)
	assert.Equal(t, 1, raw.Stats().Idle)
	assert.Equal(t, w, raw.Acquire(nil))
}

func TestWith_ReleasesOnErrorAndPanic(t *testing.T) {
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(2))
	boom := errors.New("boom")

	err := p.With(nil, func(w api.Workspace) error {
		assert.Equal(t, 1, p.Stats().Issued)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, p.Stats().Issued)

	assert.Panics(t, func() {
		_ = p.With(nil, func(api.Workspace) error { panic("evaluation failed") })
	})
	s := p.Stats()
	assert.Equal(t, 0, s.Issued)
	assert.Equal(t, 1, s.Idle)
}

func TestSetCapacity(t *testing.T) {
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(4))
	leases := []*pool.Lease{p.Acquire(nil), p.Acquire(nil), p.Acquire(nil), p.Acquire(nil)}
	for _, l := range leases {
		l.Release()
	}
	require.Equal(t, 4, p.Stats().Idle)

	assert.ErrorIs(t, p.SetCapacity(0), api.ErrInvalidArgument)
	require.NoError(t, p.SetCapacity(2))

	s := p.Stats()
	assert.Equal(t, 2, s.Capacity)
	assert.Equal(t, 2, s.Idle)
	assert.Equal(t, uint64(2), s.Discarded)

	// Most recently released workspaces survive the shrink.
	assert.Same(t, leases[3].Workspace(), p.Acquire(nil).Workspace())
	assert.Same(t, leases[2].Workspace(), p.Acquire(nil).Workspace())
}

func TestCloseAndDrain(t *testing.T) {
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(3))
	a := p.Acquire(nil)
	b := p.Acquire(nil)
	a.Release()
	assert.Equal(t, 1, p.Drain())
	assert.Equal(t, 0, p.Stats().Idle)

	c := p.Acquire(nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	b.Release()
	c.Release()
	s := p.Stats()
	assert.Equal(t, 0, s.Issued)
	assert.Equal(t, 0, s.Idle)
	assert.Equal(t, uint64(3), s.Discarded)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		p.Acquire(nil)
	}()
	err, ok := recovered.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, api.ErrPoolClosed)
}

func TestAcquire_CloseDuringConstructionKeepsAccounting(t *testing.T) {
	f := &fake.Factory{}
	var p *pool.ScratchPool
	// The factory runs outside the lock, so Close can land while a
	// workspace is being built.
	p, err := pool.New(func(parent api.Store, transient bool) api.Workspace {
		w := f.New(parent, transient)
		require.NoError(t, p.Close())
		return w
	}, pool.WithCapacity(2))
	require.NoError(t, err)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		p.Acquire(memstore.New("graph"))
	}()
	err, ok := recovered.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, api.ErrPoolClosed)

	s := p.Stats()
	assert.Equal(t, uint64(1), s.Created)
	assert.Equal(t, uint64(1), s.Discarded)
	assert.Equal(t, s.Created, uint64(s.Idle+s.Issued)+s.Discarded)

	built := f.All()
	require.Len(t, built, 1)
	assert.Nil(t, built[0].Parent(), "dropped workspace is unbound")
	assert.Equal(t, pool.EventDiscard, p.History()[0].Kind)
}

// valueWorkspace has a slice field, so interface values holding it are not
// comparable with ==.
type valueWorkspace struct {
	tags  []string
	state *fake.Workspace
}

func (v valueWorkspace) ID() string            { return v.state.ID() }
func (v valueWorkspace) Bind(parent api.Store) { v.state.Bind(parent) }
func (v valueWorkspace) Clear()                { v.state.Clear() }
func (v valueWorkspace) Parent() api.Store     { return v.state.Parent() }
func (v valueWorkspace) Transient() bool       { return v.state.Transient() }

func TestRelease_NonComparableWorkspace(t *testing.T) {
	f := &fake.Factory{}
	p, err := pool.New(func(parent api.Store, transient bool) api.Workspace {
		return valueWorkspace{tags: []string{"scratch"}, state: f.New(parent, transient).(*fake.Workspace)}
	}, pool.WithCapacity(2))
	require.NoError(t, err)

	raw := p.Raw()
	w := raw.Acquire(memstore.New("graph"))
	assert.NotPanics(t, func() { raw.Release(w) })
	assert.NotPanics(t, func() { raw.Release(w) })

	s := p.Stats()
	assert.Equal(t, 1, s.Idle)
	assert.Equal(t, 0, s.Issued)
	assert.Equal(t, uint64(1), s.Recycled)
	assert.Equal(t, uint64(1), s.ForeignReleases)
	assert.Nil(t, w.Parent())

	assert.Equal(t, w.ID(), raw.Acquire(nil).ID())
}

func TestHistory(t *testing.T) {
	p := newPool(t, &fake.Factory{}, pool.WithCapacity(2), pool.WithHistory(3))
	l := p.Acquire(nil)
	l.Release()
	p.Acquire(nil).Release()

	h := p.History()
	require.Len(t, h, 3)
	assert.Equal(t, pool.EventRecycle, h[0].Kind)
	assert.Equal(t, pool.EventReuse, h[1].Kind)
	assert.Equal(t, pool.EventRecycle, h[2].Kind)
	assert.Contains(t, h[1].Site, "scratch_test.go:")

	off := newPool(t, &fake.Factory{}, pool.WithHistory(0), pool.WithCallSites(false))
	lease := off.Acquire(nil)
	assert.Empty(t, lease.Site())
	assert.Empty(t, off.History())
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]pool.OverflowPolicy{
		"":         pool.OverflowRetain,
		"retain":   pool.OverflowRetain,
		" Discard": pool.OverflowDiscard,
	} {
		got, err := pool.ParseOverflowPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := pool.ParseOverflowPolicy("evict")
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.Equal(t, "discard", pool.OverflowDiscard.String())
}

func TestConcurrent_IdleNeverExceedsCapacity(t *testing.T) {
	const (
		capacity = 4
		workers  = 16
		rounds   = 200
	)
	leaks := &leakRecorder{}
	for _, policy := range []pool.OverflowPolicy{pool.OverflowRetain, pool.OverflowDiscard} {
		t.Run(policy.String(), func(t *testing.T) {
			p := newPool(t, &fake.Factory{}, pool.WithCapacity(capacity),
				pool.WithOverflowPolicy(policy), pool.WithLeakHandler(leaks.handle))

			var wg sync.WaitGroup
			var mu sync.Mutex
			maxIdle := 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for r := 0; r < rounds; r++ {
						l := p.Acquire(nil)
						l.Workspace().(*fake.Workspace).Write("x")
						l.Release()

						idle := p.Stats().Idle
						mu.Lock()
						if idle > maxIdle {
							maxIdle = idle
						}
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			s := p.Stats()
			assert.LessOrEqual(t, maxIdle, capacity)
			assert.LessOrEqual(t, s.Idle, capacity)
			assert.Equal(t, uint64(workers*rounds), s.Created+s.Reused)
			// Every workspace is accounted for: idle, issued or discarded.
			assert.Equal(t, s.Created, uint64(s.Idle+s.Issued)+s.Discarded)
			for _, info := range p.Outstanding() {
				assert.True(t, info.Retained, "only retained workspaces may remain issued")
			}
		})
	}
}

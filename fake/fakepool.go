// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake workspace and factory implementations for testing the scratch pool.

package fake

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/scratchspace/api"
)

// Workspace is a counting api.Workspace with a trivial content slot.
type Workspace struct {
	id        string
	transient bool

	mu      sync.Mutex
	parent  api.Store
	content []string
	binds   int
	clears  int
}

// NewWorkspace creates a fake workspace with a fixed id.
func NewWorkspace(id string, parent api.Store, transient bool) *Workspace {
	return &Workspace{id: id, parent: parent, transient: transient}
}

func (w *Workspace) ID() string      { return w.id }
func (w *Workspace) Transient() bool { return w.transient }

func (w *Workspace) Bind(parent api.Store) {
	w.mu.Lock()
	w.parent = parent
	w.binds++
	w.mu.Unlock()
}

func (w *Workspace) Clear() {
	w.mu.Lock()
	w.content = w.content[:0]
	w.parent = nil
	w.clears++
	w.mu.Unlock()
}

func (w *Workspace) Parent() api.Store {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parent
}

// Write appends an entry so tests can observe clearing.
func (w *Workspace) Write(entry string) {
	w.mu.Lock()
	w.content = append(w.content, entry)
	w.mu.Unlock()
}

// Content returns a copy of the written entries.
func (w *Workspace) Content() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.content...)
}

// Binds and Clears report how often the pool called each primitive.
func (w *Workspace) Binds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.binds
}

func (w *Workspace) Clears() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clears
}

var _ api.Workspace = (*Workspace)(nil)

// Factory builds sequentially numbered fake workspaces and remembers them.
type Factory struct {
	seq atomic.Int64

	mu    sync.Mutex
	built []*Workspace
}

// New implements api.WorkspaceFactory; pass f.New to the pool.
func (f *Factory) New(parent api.Store, transient bool) api.Workspace {
	w := NewWorkspace(fmt.Sprintf("ws-%d", f.seq.Add(1)), parent, transient)
	f.mu.Lock()
	f.built = append(f.built, w)
	f.mu.Unlock()
	return w
}

// Built returns how many workspaces the factory constructed.
func (f *Factory) Built() int {
	return int(f.seq.Load())
}

// All returns every workspace constructed so far.
func (f *Factory) All() []*Workspace {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Workspace(nil), f.built...)
}

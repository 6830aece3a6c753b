// File: pool/history.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded lease event log used in leak reports and debug probes.

package pool

import (
	"fmt"
	"time"

	"github.com/eapache/queue"
)

// EventKind classifies a lease event.
type EventKind uint8

const (
	EventCreate EventKind = iota + 1
	EventReuse
	EventRecycle
	EventOverflow
	EventDiscard
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventReuse:
		return "reuse"
	case EventRecycle:
		return "recycle"
	case EventOverflow:
		return "overflow"
	case EventDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Event is one entry of the lease history.
type Event struct {
	Kind      EventKind
	Workspace string
	Site      string
	At        time.Time
}

func (e Event) String() string {
	if e.Site == "" {
		return fmt.Sprintf("%s %s", e.Kind, e.Workspace)
	}
	return fmt.Sprintf("%s %s at %s", e.Kind, e.Workspace, e.Site)
}

// history is a fixed-size FIFO window over lease events.
// Not safe for concurrent use; the pool calls it under its mutex.
type history struct {
	q    *queue.Queue
	size int
}

// newHistory returns nil for size <= 0; a nil *history ignores all calls.
func newHistory(size int) *history {
	if size <= 0 {
		return nil
	}
	return &history{q: queue.New(), size: size}
}

func (h *history) add(kind EventKind, workspace, site string) {
	if h == nil {
		return
	}
	h.q.Add(Event{Kind: kind, Workspace: workspace, Site: site, At: time.Now()})
	for h.q.Length() > h.size {
		h.q.Remove()
	}
}

// snapshot returns events oldest first.
func (h *history) snapshot() []Event {
	if h == nil {
		return nil
	}
	out := make([]Event, h.q.Length())
	for i := range out {
		out[i] = h.q.Get(i).(Event)
	}
	return out
}

// last returns up to n most recent events, oldest first.
func (h *history) last(n int) []Event {
	if h == nil || n <= 0 {
		return nil
	}
	if l := h.q.Length(); n > l {
		n = l
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = h.q.Get(i - n).(Event)
	}
	return out
}

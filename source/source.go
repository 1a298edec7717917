// Package source implements the Source abstraction of spec.md §4.3: a
// mapping from calendar URL to a shared, lockable calendar handle, with a
// local (JSON-directory-backed) and a remote (CalDAV-discovery-backed)
// implementation.
package source

import (
	"context"
	"sync"

	"caldavsync/calendar"
)

// Handle is a shared, lockable reference to one calendar. The sync engine
// holds the locks of both members of a calendar pair for the duration of a
// reconciliation (spec.md §5); Handle's own mutex is exactly that
// reconciliation-exclusivity lock, distinct from whatever internal locking
// the wrapped Calendar does for individual operations.
//
// Grounded on internal/daemon.Daemon's mu sync.RWMutex / syncMu sync.Mutex
// split (one lock for shared state, a separate one serializing the
// operation that touches it) generalized to per-calendar granularity.
type Handle[C any] struct {
	mu       sync.Mutex
	Calendar C
}

func NewHandle[C any](cal C) *Handle[C] {
	return &Handle[C]{Calendar: cal}
}

func (h *Handle[C]) Lock()   { h.mu.Lock() }
func (h *Handle[C]) Unlock() { h.mu.Unlock() }

// Source is a mapping from calendar URL to a shared handle over a C-shaped
// calendar (calendar.CompleteCalendar for a local source,
// calendar.DavCalendar for a remote one). Both source implementations in
// this package share this shape, matching spec.md §4.4's description of
// the engine's two inputs as "interchangeable in type but asymmetric in
// policy."
type Source[C any] interface {
	// GetCalendars returns a snapshot of the URL -> handle mapping; it does
	// not itself lock any individual handle.
	GetCalendars() map[string]*Handle[C]
	GetCalendar(url string) (*Handle[C], bool)
	CreateCalendar(ctx context.Context, url, name string, components calendar.ComponentSet, colour string) (*Handle[C], error)
}

// Package calendar defines the capability interfaces the sync engine drives
// (BaseCalendar/CompleteCalendar/DavCalendar, per spec.md §4.2) and provides
// the two concrete implementations the rest of this module needs: an
// in-memory local calendar and an HTTP-backed CalDAV calendar.
package calendar

import (
	"context"

	"caldavsync/item"
)

// Component is a bit in the SupportedComponents bitset.
type Component int

const (
	ComponentEvent Component = 1 << iota
	ComponentTodo
)

// ComponentSet is a bitset over {EVENT, TODO}.
type ComponentSet int

func (s ComponentSet) Has(c Component) bool { return int(s)&int(c) != 0 }

func NewComponentSet(cs ...Component) ComponentSet {
	var s ComponentSet
	for _, c := range cs {
		s |= ComponentSet(c)
	}
	return s
}

// BaseCalendar is the subset of operations common to local and remote
// calendars: pure attribute accessors plus the two item mutations whose
// result the engine needs regardless of which side it's writing to.
type BaseCalendar interface {
	Name() string
	URL() string
	SupportedComponents() ComponentSet
	Colour() (string, bool)

	// AddItem inserts it. Fails with syncerr.Duplicate if an item already
	// exists at it.Base().URL. On a local calendar the returned SyncStatus
	// is whatever the caller attached to it; on a remote calendar it is
	// Synced(v) for the server-assigned ETag v.
	AddItem(ctx context.Context, it item.Item) (item.SyncStatus, error)

	// UpdateItem replaces the item at it.Base().URL. Fails with
	// syncerr.NotFound if absent. On a remote calendar this issues
	// If-Match against the ETag embedded in it.Base().SyncStatus; a
	// precondition failure is reported as syncerr.PreconditionFailure.
	UpdateItem(ctx context.Context, it item.Item) (item.SyncStatus, error)
}

// CompleteCalendar is the local-only capability set: full enumeration and
// tombstone-aware deletion.
type CompleteCalendar interface {
	BaseCalendar

	GetItemURLs() []string
	GetItems() map[string]item.Item
	GetItemByURL(url string) (item.Item, bool)

	// MarkForDeletion transitions the item's SyncStatus per
	// item.SyncStatus.WithDeletion: NotSynced items are removed outright;
	// others become LocallyDeleted(v) tombstones. Fails with
	// syncerr.NotFound if url is absent.
	MarkForDeletion(url string) error

	// ImmediatelyDeleteItem removes the item outright, used by the engine
	// once a remote deletion (or an upload of a local deletion) has been
	// confirmed. Fails with syncerr.NotFound if absent.
	ImmediatelyDeleteItem(url string) error
}

// DavCalendar is the remote-only capability set.
type DavCalendar interface {
	BaseCalendar

	// GetItemVersionTags returns every item URL currently on the server
	// with its ETag. The result may be served from a per-sync cache (see
	// InvalidateCache).
	GetItemVersionTags(ctx context.Context) (map[string]item.VersionTag, error)

	// GetItemByURL fetches one full item. ok is false if the server has
	// no item at that URL.
	GetItemByURL(ctx context.Context, url string) (it item.Item, ok bool, err error)

	// GetItemsByURL performs a calendar-multiget, returning items in the
	// same order as urls; a nil entry marks a miss.
	GetItemsByURL(ctx context.Context, urls []string) ([]item.Item, error)

	DeleteItem(ctx context.Context, url string) error

	// InvalidateCache drops any cached GetItemVersionTags result. The
	// engine calls this once at the end of each sync (§5: "the cache must
	// be dropped or invalidated at the end of the sync").
	InvalidateCache()
}

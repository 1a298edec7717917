package calendar

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"caldavsync/item"
	"caldavsync/syncerr"
)

// Local is an in-memory calendar backed by a keyed map of items, guarded by
// a single mutex. Persistence to disk is the responsibility of the source
// that owns it (source.Local), per spec.md §6 — Local itself only holds
// state for the lifetime of the process.
//
// Grounded on backend/file/file.go's lazy-loaded in-memory map, generalized
// from a flat task list to the full BaseCalendar/CompleteCalendar contract.
type Local struct {
	mu sync.RWMutex

	name       string
	url        string
	components ComponentSet
	colour     string
	hasColour  bool

	items map[string]item.Item
}

// NewLocal builds an empty local calendar. Callers restoring persisted
// state populate it via Restore before exposing it to the engine.
func NewLocal(url, name string, components ComponentSet, colour string) *Local {
	l := &Local{
		name:       name,
		url:        url,
		components: components,
		items:      make(map[string]item.Item),
	}
	if colour != "" {
		l.colour, l.hasColour = colour, true
	}
	return l
}

// Restore replaces the item set wholesale, used when loading a calendar
// back from its persisted JSON file. Not for use once the engine may be
// concurrently reading the calendar.
func (l *Local) Restore(items map[string]item.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
}

func (l *Local) Name() string                     { return l.name }
func (l *Local) URL() string                      { return l.url }
func (l *Local) SupportedComponents() ComponentSet { return l.components }
func (l *Local) Colour() (string, bool)            { return l.colour, l.hasColour }

// AddItem assigns it a URL under this calendar's collection if the caller
// left Base().URL empty — the common case for an item the user just
// created locally, which has no server identity yet to derive a URL from.
// It mints a UID the same way if that is empty too.
//
// Grounded on backend/nextcloud.Backend.CreateTask's "generate a new UID if
// not provided" and backend/file.generateID, both of which reach for
// uuid.New() rather than a counter or hash, so a freshly created item
// collides with nothing already on disk or on the server.
func (l *Local) AddItem(_ context.Context, it item.Item) (item.SyncStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	common := it.Base()
	if common.UID == "" {
		common.UID = uuid.New().String()
	}
	if common.URL == "" {
		common.URL = l.url + common.UID + ".ics"
	}

	url := common.URL
	if _, exists := l.items[url]; exists {
		return item.SyncStatus{}, syncerr.New(syncerr.Duplicate, "add_item", url, nil)
	}
	l.items[url] = it
	return it.Base().SyncStatus, nil
}

func (l *Local) UpdateItem(_ context.Context, it item.Item) (item.SyncStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	url := it.Base().URL
	if _, exists := l.items[url]; !exists {
		return item.SyncStatus{}, syncerr.New(syncerr.NotFound, "update_item", url, nil)
	}
	l.items[url] = it
	return it.Base().SyncStatus, nil
}

func (l *Local) GetItemURLs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	urls := make([]string, 0, len(l.items))
	for url := range l.items {
		urls = append(urls, url)
	}
	return urls
}

func (l *Local) GetItems() map[string]item.Item {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]item.Item, len(l.items))
	for url, it := range l.items {
		out[url] = it
	}
	return out
}

func (l *Local) GetItemByURL(url string) (item.Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it, ok := l.items[url]
	return it, ok
}

func (l *Local) MarkForDeletion(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	it, ok := l.items[url]
	if !ok {
		return syncerr.New(syncerr.NotFound, "mark_for_deletion", url, nil)
	}

	newStatus, tombstoneNeeded := it.Base().SyncStatus.WithDeletion()
	if !tombstoneNeeded {
		delete(l.items, url)
		return nil
	}
	it.Base().SyncStatus = newStatus
	return nil
}

func (l *Local) ImmediatelyDeleteItem(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.items[url]; !ok {
		return syncerr.New(syncerr.NotFound, "immediately_delete_item", url, nil)
	}
	delete(l.items, url)
	return nil
}

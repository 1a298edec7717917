package mockdav

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"caldavsync/calendar"
	"caldavsync/item"
	"caldavsync/syncerr"
)

// Calendar is an in-memory stand-in for calendar.Dav: it implements
// calendar.DavCalendar with no network involved, consulting a Behaviour
// before every operation so tests can inject transient failures. Its ETag
// assignment (a random opaque token per write, via uuid.New — the same
// generator the teacher reaches for whenever it needs a fresh identifier
// with no server round trip) mirrors calendar.Dav's own reliance on
// version tags that are opaque and must never be parsed or compared
// structurally.
type Calendar struct {
	behaviour *Behaviour

	mu         sync.Mutex
	name       string
	url        string
	components calendar.ComponentSet
	colour     string
	hasColour  bool
	items      map[string]item.Item
}

var _ calendar.DavCalendar = (*Calendar)(nil)

// NewCalendar returns an empty mock remote calendar.
func NewCalendar(behaviour *Behaviour, url, name string, components calendar.ComponentSet, colour string) *Calendar {
	return &Calendar{
		behaviour:  behaviour,
		name:       name,
		url:        url,
		components: components,
		colour:     colour,
		hasColour:  colour != "",
		items:      make(map[string]item.Item),
	}
}

// Seed inserts it directly, bypassing Behaviour and ETag assignment, for
// test setup that needs the remote to already hold state before a sync.
func (c *Calendar) Seed(it item.Item, tag item.VersionTag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cloned := cloneItem(it)
	cloned.Base().SyncStatus = item.NewSynced(tag)
	c.items[it.Base().URL] = cloned
}

func (c *Calendar) Name() string                               { return c.name }
func (c *Calendar) URL() string                                { return c.url }
func (c *Calendar) SupportedComponents() calendar.ComponentSet { return c.components }
func (c *Calendar) Colour() (string, bool)                     { return c.colour, c.hasColour }

func (c *Calendar) nextTag() item.VersionTag {
	return item.VersionTag(uuid.New().String())
}

func (c *Calendar) AddItem(ctx context.Context, it item.Item) (item.SyncStatus, error) {
	if err := c.behaviour.take(OpAddItem); err != nil {
		return item.SyncStatus{}, syncerr.New(syncerr.NetworkFailure, "add_item", it.Base().URL, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	url := it.Base().URL
	if _, exists := c.items[url]; exists {
		return item.SyncStatus{}, syncerr.New(syncerr.Duplicate, "add_item", url, nil)
	}
	tag := c.nextTag()
	status := item.NewSynced(tag)
	cloned := cloneItem(it)
	cloned.Base().SyncStatus = status
	c.items[url] = cloned
	return status, nil
}

func (c *Calendar) UpdateItem(ctx context.Context, it item.Item) (item.SyncStatus, error) {
	if err := c.behaviour.take(OpUpdateItem); err != nil {
		return item.SyncStatus{}, syncerr.New(syncerr.NetworkFailure, "update_item", it.Base().URL, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	url := it.Base().URL
	existing, ok := c.items[url]
	if !ok {
		return item.SyncStatus{}, syncerr.New(syncerr.NotFound, "update_item", url, nil)
	}
	currentTag, _ := existing.Base().SyncStatus.Tag()
	ifMatch, _ := it.Base().SyncStatus.Tag()
	if ifMatch != currentTag {
		return item.SyncStatus{}, syncerr.New(syncerr.PreconditionFailure, "update_item", url, nil)
	}
	tag := c.nextTag()
	status := item.NewSynced(tag)
	cloned := cloneItem(it)
	cloned.Base().SyncStatus = status
	c.items[url] = cloned
	return status, nil
}

func (c *Calendar) GetItemVersionTags(ctx context.Context) (map[string]item.VersionTag, error) {
	if err := c.behaviour.take(OpGetItemVersionTags); err != nil {
		return nil, syncerr.New(syncerr.NetworkFailure, "get_item_version_tags", c.url, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]item.VersionTag, len(c.items))
	for url, it := range c.items {
		tag, _ := it.Base().SyncStatus.Tag()
		out[url] = tag
	}
	return out, nil
}

func (c *Calendar) GetItemByURL(ctx context.Context, url string) (item.Item, bool, error) {
	items, err := c.GetItemsByURL(ctx, []string{url})
	if err != nil {
		return nil, false, err
	}
	if items[0] == nil {
		return nil, false, nil
	}
	return items[0], true, nil
}

func (c *Calendar) GetItemsByURL(ctx context.Context, urls []string) ([]item.Item, error) {
	if err := c.behaviour.take(OpGetItemsByURL); err != nil {
		return nil, syncerr.New(syncerr.NetworkFailure, "get_items_by_url", c.url, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]item.Item, len(urls))
	for i, url := range urls {
		if it, ok := c.items[url]; ok {
			out[i] = cloneItem(it)
		}
	}
	return out, nil
}

func (c *Calendar) DeleteItem(ctx context.Context, url string) error {
	if err := c.behaviour.take(OpDeleteItem); err != nil {
		return syncerr.New(syncerr.NetworkFailure, "delete_item", url, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[url]; !ok {
		return syncerr.New(syncerr.NotFound, "delete_item", url, nil)
	}
	delete(c.items, url)
	return nil
}

// InvalidateCache is a no-op: Calendar never caches, it always reads live
// state, so there is nothing to drop.
func (c *Calendar) InvalidateCache() {}

func cloneItem(it item.Item) item.Item {
	switch v := it.(type) {
	case *item.Task:
		cp := *v
		return &cp
	case *item.Event:
		cp := *v
		return &cp
	default:
		panic(fmt.Sprintf("mockdav: unknown item kind %T", it))
	}
}

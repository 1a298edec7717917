package provider

import (
	"context"
	"fmt"

	"caldavsync/calendar"
	"caldavsync/item"
	"caldavsync/progress"
	"caldavsync/source"
	"caldavsync/syncerr"
)

// classification is the Phase A output of spec.md §4.4.2: the six disjoint
// sets of item URLs a reconciliation must apply in Phase B.
type classification struct {
	remoteAdditions []string
	remoteDeletions []string
	remoteChanges   []string
	localAdditions  []string
	localDeletions  []string
	localChanges    []string
}

// classify implements the decision table of spec.md §4.4.2. For every URL
// the server reports, it compares the server's tag against what the local
// item's SyncStatus last recorded; for every local-only URL, it looks at
// the local item's own SyncStatus. A local item whose status diverges from
// what its tag would predict (edited or deleted locally while the server
// also changed it) is a conflict, resolved remote-wins by routing it into
// remote_changes, so Phase B's ordinary remote-changes apply step overwrites
// it with the server's version.
func classify(remoteTags map[string]item.VersionTag, localItems map[string]item.Item, logger func(msg, url string)) classification {
	var c classification
	seen := make(map[string]bool, len(remoteTags))

	for url, remoteTag := range remoteTags {
		seen[url] = true
		localItem, exists := localItems[url]
		if !exists {
			c.remoteAdditions = append(c.remoteAdditions, url)
			continue
		}

		status := localItem.Base().SyncStatus
		localTag, hasTag := status.Tag()
		upToDate := hasTag && localTag == remoteTag

		switch status.Kind() {
		case item.NotSynced:
			// A NotSynced item cannot legitimately share a URL with a
			// server item: URLs are assigned once, at creation. Treat
			// this as a classification bug rather than guess an intent.
			logger("local item claims an unsynced URL the server already has; skipping", url)
		case item.Synced:
			if !upToDate {
				c.remoteChanges = append(c.remoteChanges, url)
			}
		case item.LocallyModified:
			if upToDate {
				c.localChanges = append(c.localChanges, url)
			} else {
				c.remoteChanges = append(c.remoteChanges, url)
			}
		case item.LocallyDeleted:
			if upToDate {
				c.localDeletions = append(c.localDeletions, url)
			} else {
				c.remoteChanges = append(c.remoteChanges, url)
			}
		}
	}

	for url, localItem := range localItems {
		if seen[url] {
			continue
		}
		switch localItem.Base().SyncStatus.Kind() {
		case item.NotSynced:
			c.localAdditions = append(c.localAdditions, url)
		default:
			c.remoteDeletions = append(c.remoteDeletions, url)
		}
	}

	return c
}

// reconcilePair drives one calendar pair through Phase A classification and
// Phase B's six-step ordered apply (spec.md §4.4.2), holding both handles'
// reconciliation locks for the duration.
func (p *Provider) reconcilePair(ctx context.Context, url string, localHandle *source.Handle[calendar.CompleteCalendar], remoteHandle *source.Handle[calendar.DavCalendar]) error {
	localHandle.Lock()
	defer localHandle.Unlock()
	remoteHandle.Lock()
	defer remoteHandle.Unlock()

	localCal := localHandle.Calendar
	remoteCal := remoteHandle.Calendar
	defer remoteCal.InvalidateCache()

	remoteTags, err := remoteCal.GetItemVersionTags(ctx)
	if err != nil {
		return fmt.Errorf("get remote item tags: %w", err)
	}
	localItems := localCal.GetItems()

	c := classify(remoteTags, localItems, func(msg, itemURL string) {
		p.itemErrors++
		p.logger.Error().Str("calendar", url).Str("item", itemURL).Msg(msg)
	})

	done := 0
	report := func(detail string) {
		done++
		p.progress.Post(progress.SyncEvent{Phase: progress.InProgress, Calendar: url, ItemsDone: done, Details: detail})
	}

	// Step 1: push local deletions.
	for _, itemURL := range c.localDeletions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := remoteCal.DeleteItem(ctx, itemURL); err != nil {
			if kind, ok := syncerr.KindOf(err); !ok || kind != syncerr.NotFound {
				p.logItemError("push_local_deletion", url, itemURL, err)
				continue
			}
			// Already gone remotely: fall through and remove the tombstone.
		}
		if err := localCal.ImmediatelyDeleteItem(itemURL); err != nil {
			p.logItemError("clear_local_tombstone", url, itemURL, err)
		}
		report("pushed local deletion")
	}

	// Step 2: apply remote deletions locally.
	for _, itemURL := range c.remoteDeletions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := localCal.ImmediatelyDeleteItem(itemURL); err != nil {
			p.logItemError("apply_remote_deletion", url, itemURL, err)
		}
		report("applied remote deletion")
	}

	// Step 3: fetch and apply remote additions, batched.
	if err := p.fetchAndApply(ctx, url, remoteCal, c.remoteAdditions, localCal.AddItem, report); err != nil {
		return err
	}

	// Step 4: fetch and apply remote changes, batched. A conflicted local
	// item (classified into remote_changes above) is fully overwritten
	// here by the server's version — this is what makes the conflict
	// policy remote-wins.
	if err := p.fetchAndApply(ctx, url, remoteCal, c.remoteChanges, localCal.UpdateItem, report); err != nil {
		return err
	}

	// Step 5: push local additions.
	for _, itemURL := range c.localAdditions {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := localItems[itemURL]
		newStatus, err := remoteCal.AddItem(ctx, it)
		if err != nil {
			p.logItemError("push_local_addition", url, itemURL, err)
			continue
		}
		it.Base().SyncStatus = newStatus
		if _, err := localCal.UpdateItem(ctx, it); err != nil {
			p.logItemError("record_pushed_addition", url, itemURL, err)
		}
		report("pushed local addition")
	}

	// Step 6: push local changes.
	for _, itemURL := range c.localChanges {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := localItems[itemURL]
		newStatus, err := remoteCal.UpdateItem(ctx, it)
		if err != nil {
			p.logItemError("push_local_change", url, itemURL, err)
			continue
		}
		it.Base().SyncStatus = newStatus
		if _, err := localCal.UpdateItem(ctx, it); err != nil {
			p.logItemError("record_pushed_change", url, itemURL, err)
		}
		report("pushed local change")
	}

	return nil
}

// fetchAndApply fetches urls from remoteCal in batches of p.batchSize and
// applies each fetched item to the local calendar through apply (AddItem
// for remote_additions, UpdateItem for remote_changes). A batch whose fetch
// fails outright is logged and skipped in full; a miss within an otherwise
// successful batch (server no longer has that URL — it raced a deletion) is
// logged and skipped individually.
func (p *Provider) fetchAndApply(ctx context.Context, calendarURL string, remoteCal calendar.DavCalendar, urls []string, apply func(context.Context, item.Item) (item.SyncStatus, error), report func(string)) error {
	for start := 0; start < len(urls); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + p.batchSize
		if end > len(urls) {
			end = len(urls)
		}
		batch := urls[start:end]

		items, err := remoteCal.GetItemsByURL(ctx, batch)
		if err != nil {
			for _, itemURL := range batch {
				p.logItemError("fetch_batch", calendarURL, itemURL, err)
			}
			continue
		}

		for i, it := range items {
			itemURL := batch[i]
			if it == nil {
				p.logItemError("fetch_batch", calendarURL, itemURL, syncerr.New(syncerr.NotFound, "fetch_batch", itemURL, nil))
				continue
			}
			if _, err := apply(ctx, it); err != nil {
				p.logItemError("apply_fetched_item", calendarURL, itemURL, err)
				continue
			}
			report("applied fetched item")
		}
	}
	return nil
}

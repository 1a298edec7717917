package calendar

import (
	"context"
	"testing"

	"caldavsync/item"
	"caldavsync/syncerr"
)

func TestLocalAddItemRejectsDuplicate(t *testing.T) {
	l := NewLocal("https://host/cal/c/", "Tasks", NewComponentSet(ComponentTodo), "")
	ctx := context.Background()

	task := &item.Task{Common: item.Common{URL: "https://host/cal/c/a.ics", SyncStatus: item.NewNotSynced()}, Completion: item.NewUncompleted()}
	if _, err := l.AddItem(ctx, task); err != nil {
		t.Fatalf("first AddItem() error = %v", err)
	}
	_, err := l.AddItem(ctx, task)
	kind, ok := syncerr.KindOf(err)
	if !ok || kind != syncerr.Duplicate {
		t.Fatalf("second AddItem() = %v, want syncerr.Duplicate", err)
	}
}

func TestLocalUpdateItemRequiresExisting(t *testing.T) {
	l := NewLocal("https://host/cal/c/", "Tasks", NewComponentSet(ComponentTodo), "")
	task := &item.Task{Common: item.Common{URL: "https://host/cal/c/a.ics"}}
	_, err := l.UpdateItem(context.Background(), task)
	kind, ok := syncerr.KindOf(err)
	if !ok || kind != syncerr.NotFound {
		t.Fatalf("UpdateItem() on missing item = %v, want syncerr.NotFound", err)
	}
}

func TestLocalMarkForDeletionTombstonesSyncedItem(t *testing.T) {
	l := NewLocal("https://host/cal/c/", "Tasks", NewComponentSet(ComponentTodo), "")
	ctx := context.Background()
	task := &item.Task{Common: item.Common{URL: "a", SyncStatus: item.NewSynced("etag-1")}}
	if _, err := l.AddItem(ctx, task); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	if err := l.MarkForDeletion("a"); err != nil {
		t.Fatalf("MarkForDeletion() error = %v", err)
	}
	got, ok := l.GetItemByURL("a")
	if !ok {
		t.Fatalf("tombstoned item disappeared from the map")
	}
	if got.Base().SyncStatus.Kind() != item.LocallyDeleted {
		t.Fatalf("SyncStatus = %v, want LocallyDeleted", got.Base().SyncStatus.Kind())
	}
}

func TestLocalMarkForDeletionRemovesNotSyncedOutright(t *testing.T) {
	l := NewLocal("https://host/cal/c/", "Tasks", NewComponentSet(ComponentTodo), "")
	ctx := context.Background()
	task := &item.Task{Common: item.Common{URL: "a", SyncStatus: item.NewNotSynced()}}
	if _, err := l.AddItem(ctx, task); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	if err := l.MarkForDeletion("a"); err != nil {
		t.Fatalf("MarkForDeletion() error = %v", err)
	}
	if _, ok := l.GetItemByURL("a"); ok {
		t.Fatalf("NotSynced item should be removed outright, not tombstoned")
	}
}

func TestLocalAddItemMintsURLAndUIDWhenAbsent(t *testing.T) {
	l := NewLocal("https://host/cal/c/", "Tasks", NewComponentSet(ComponentTodo), "")
	ctx := context.Background()
	task := &item.Task{Common: item.Common{SyncStatus: item.NewNotSynced()}}

	if _, err := l.AddItem(ctx, task); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if task.URL == "" || task.UID == "" {
		t.Fatalf("expected AddItem to mint a URL and UID, got URL=%q UID=%q", task.URL, task.UID)
	}
	if _, ok := l.GetItemByURL(task.URL); !ok {
		t.Fatalf("minted URL %q not found in calendar", task.URL)
	}
}

func TestLocalImmediatelyDeleteItemRequiresExisting(t *testing.T) {
	l := NewLocal("https://host/cal/c/", "Tasks", NewComponentSet(ComponentTodo), "")
	err := l.ImmediatelyDeleteItem("missing")
	kind, ok := syncerr.KindOf(err)
	if !ok || kind != syncerr.NotFound {
		t.Fatalf("ImmediatelyDeleteItem() on missing item = %v, want syncerr.NotFound", err)
	}
}

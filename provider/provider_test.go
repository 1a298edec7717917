package provider

import (
	"context"
	"os"
	"testing"
	"time"

	"caldavsync/calendar"
	"caldavsync/item"
	"caldavsync/internal/mockdav"
	"caldavsync/source"
)

const testCalendarURL = "https://host/cal/C/"

func itemURL(letter string) string {
	return testCalendarURL + letter
}

func newTask(letter, name string, completed bool, status item.SyncStatus) *item.Task {
	completion := item.NewUncompleted()
	if completed {
		now := time.Now().UTC()
		completion = item.NewCompleted(&now)
	}
	return &item.Task{
		Common: item.Common{
			URL:          itemURL(letter),
			UID:          "uid-" + letter,
			Name:         name,
			LastModified: time.Now().UTC(),
			SyncStatus:   status,
		},
		Completion: completion,
	}
}

func newLocalSource(t *testing.T) *source.Local {
	t.Helper()
	dir := t.TempDir()
	l, err := source.Create(dir)
	if err != nil {
		t.Fatalf("source.Create: %v", err)
	}
	return l
}

func newRemote(behaviour *mockdav.Behaviour) (*mockdav.Source, *mockdav.Calendar) {
	remoteSrc := mockdav.NewSource(behaviour)
	cal := mockdav.NewCalendar(behaviour, testCalendarURL, "C", calendar.NewComponentSet(calendar.ComponentTodo), "")
	remoteSrc.Add(cal)
	return remoteSrc, cal
}

// seedPair creates matching local+remote calendars at testCalendarURL and
// seeds both sides with items already at item.Synced(v0), mirroring S1-S3's
// "initial both-Synced" setup.
func seedPair(t *testing.T, behaviour *mockdav.Behaviour, names map[string]string, completed map[string]bool) (*source.Local, *mockdav.Source, *mockdav.Calendar) {
	t.Helper()
	localSrc := newLocalSource(t)
	remoteSrc, remoteCal := newRemote(behaviour)

	ctx := context.Background()
	localHandle, err := localSrc.CreateCalendar(ctx, testCalendarURL, "C", calendar.NewComponentSet(calendar.ComponentTodo), "")
	if err != nil {
		t.Fatalf("create local calendar: %v", err)
	}

	for letter, name := range names {
		tag := item.VersionTag("v0-" + letter)
		it := newTask(letter, name, completed[letter], item.NewSynced(tag))
		if _, err := localHandle.Calendar.AddItem(ctx, it); err != nil {
			t.Fatalf("seed local %s: %v", letter, err)
		}
		remoteCal.Seed(it, tag)
	}
	return localSrc, remoteSrc, remoteCal
}

func mustGetItem(t *testing.T, items map[string]item.Item, letter string) *item.Task {
	t.Helper()
	it, ok := items[itemURL(letter)]
	if !ok {
		t.Fatalf("missing item %s", letter)
	}
	task, ok := it.(*item.Task)
	if !ok {
		t.Fatalf("item %s is not a Task", letter)
	}
	return task
}

func TestSyncS1SixClassMix(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	names := map[string]string{
		"A": "A", "B": "B", "C": "C", "D": "D", "E": "E", "F": "F", "G": "G", "H": "H",
	}
	localSrc, remoteSrc, remoteCal := seedPair(t, behaviour, names, nil)

	ctx := context.Background()
	localHandle, _ := localSrc.GetCalendar(testCalendarURL)
	local := localHandle.Calendar

	// Local: delete C; rename D; complete H; add P (NotSynced).
	if err := local.MarkForDeletion(itemURL("C")); err != nil {
		t.Fatalf("mark C for deletion: %v", err)
	}
	d := mustGetItem(t, local.GetItems(), "D")
	d.Name = "D'"
	d.SyncStatus = d.SyncStatus.WithModification()
	h := mustGetItem(t, local.GetItems(), "H")
	now := time.Now().UTC()
	h.Completion = item.NewCompleted(&now)
	h.SyncStatus = h.SyncStatus.WithModification()
	p := newTask("P", "P", false, item.NewNotSynced())
	if _, err := local.AddItem(ctx, p); err != nil {
		t.Fatalf("add P: %v", err)
	}

	// Remote: delete B; rename E; complete G; add Q.
	if err := remoteCal.DeleteItem(ctx, itemURL("B")); err != nil {
		t.Fatalf("delete B remotely: %v", err)
	}
	eItems, _ := remoteCal.GetItemsByURL(ctx, []string{itemURL("E")})
	e := eItems[0].(*item.Task)
	e.Name = "E-remote"
	if _, err := remoteCal.UpdateItem(ctx, e); err != nil {
		t.Fatalf("rename E remotely: %v", err)
	}
	gItems, _ := remoteCal.GetItemsByURL(ctx, []string{itemURL("G")})
	g := gItems[0].(*item.Task)
	gNow := time.Now().UTC()
	g.Completion = item.NewCompleted(&gNow)
	if _, err := remoteCal.UpdateItem(ctx, g); err != nil {
		t.Fatalf("complete G remotely: %v", err)
	}
	q := newTask("Q", "Q", false, item.NewNotSynced())
	if _, err := remoteCal.AddItem(ctx, q); err != nil {
		t.Fatalf("add Q remotely: %v", err)
	}

	p1 := New(localSrc, remoteSrc)
	report, err := p1.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !report.Success {
		t.Fatalf("Sync reported failure: %+v", report.CalendarErrors)
	}

	wantURLs := []string{"A", "D", "E", "F", "G", "H", "P", "Q"}
	localItems := local.GetItems()
	if len(localItems) != len(wantURLs) {
		t.Fatalf("local has %d items, want %d: %v", len(localItems), len(wantURLs), localItems)
	}
	for _, letter := range wantURLs {
		task := mustGetItem(t, localItems, letter)
		if task.SyncStatus.Kind() != item.Synced {
			t.Errorf("%s: SyncStatus = %v, want Synced", letter, task.SyncStatus.Kind())
		}
	}
	if name := mustGetItem(t, localItems, "D").Name; name != "D'" {
		t.Errorf("D name = %q, want D'", name)
	}
	if name := mustGetItem(t, localItems, "E").Name; name != "E-remote" {
		t.Errorf("E name = %q, want E-remote", name)
	}
	if !mustGetItem(t, localItems, "G").Completion.IsCompleted() {
		t.Errorf("G should be completed")
	}
	if !mustGetItem(t, localItems, "H").Completion.IsCompleted() {
		t.Errorf("H should be completed")
	}
	if _, gone := localItems[itemURL("B")]; gone {
		t.Errorf("B should have been removed")
	}
	if _, gone := localItems[itemURL("C")]; gone {
		t.Errorf("C should have been removed")
	}

	remoteTags, err := remoteCal.GetItemVersionTags(ctx)
	if err != nil {
		t.Fatalf("GetItemVersionTags: %v", err)
	}
	if len(remoteTags) != len(wantURLs) {
		t.Fatalf("remote has %d items, want %d", len(remoteTags), len(wantURLs))
	}
}

func TestSyncS2ConflictRemoteWins(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc, remoteSrc, remoteCal := seedPair(t, behaviour, map[string]string{"F": "F"}, nil)
	ctx := context.Background()

	localHandle, _ := localSrc.GetCalendar(testCalendarURL)
	f := mustGetItem(t, localHandle.Calendar.GetItems(), "F")
	f.Name = "F-local"
	f.SyncStatus = f.SyncStatus.WithModification()

	fRemote, _ := remoteCal.GetItemsByURL(ctx, []string{itemURL("F")})
	remoteF := fRemote[0].(*item.Task)
	remoteF.Name = "F-remote"
	if _, err := remoteCal.UpdateItem(ctx, remoteF); err != nil {
		t.Fatalf("rename F remotely: %v", err)
	}

	p := New(localSrc, remoteSrc)
	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("Sync failed: %v %+v", err, report.CalendarErrors)
	}

	got := mustGetItem(t, localHandle.Calendar.GetItems(), "F")
	if got.Name != "F-remote" {
		t.Errorf("F name = %q, want F-remote", got.Name)
	}
	if got.SyncStatus.Kind() != item.Synced {
		t.Errorf("F status = %v, want Synced", got.SyncStatus.Kind())
	}
}

func TestSyncS3LocalDeleteVsRemoteEdit(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc, remoteSrc, remoteCal := seedPair(t, behaviour, map[string]string{"I": "I"}, nil)
	ctx := context.Background()

	localHandle, _ := localSrc.GetCalendar(testCalendarURL)
	if err := localHandle.Calendar.MarkForDeletion(itemURL("I")); err != nil {
		t.Fatalf("mark I for deletion: %v", err)
	}

	iRemote, _ := remoteCal.GetItemsByURL(ctx, []string{itemURL("I")})
	remoteI := iRemote[0].(*item.Task)
	remoteI.Name = "I-remote"
	if _, err := remoteCal.UpdateItem(ctx, remoteI); err != nil {
		t.Fatalf("rename I remotely: %v", err)
	}

	p := New(localSrc, remoteSrc)
	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("Sync failed: %v %+v", err, report.CalendarErrors)
	}

	items := localHandle.Calendar.GetItems()
	got := mustGetItem(t, items, "I")
	if got.Name != "I-remote" {
		t.Errorf("I name = %q, want I-remote", got.Name)
	}
	if got.SyncStatus.Kind() != item.Synced {
		t.Errorf("I status = %v, want Synced (no tombstone)", got.SyncStatus.Kind())
	}
}

func TestSyncS4TransientLocalTaskNeverUploaded(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc := newLocalSource(t)
	remoteSrc, _ := newRemote(behaviour)
	ctx := context.Background()

	localHandle, err := localSrc.CreateCalendar(ctx, testCalendarURL, "C", calendar.NewComponentSet(calendar.ComponentTodo), "")
	if err != nil {
		t.Fatalf("create local calendar: %v", err)
	}
	tTask := newTask("T", "T", false, item.NewNotSynced())
	if _, err := localHandle.Calendar.AddItem(ctx, tTask); err != nil {
		t.Fatalf("add T: %v", err)
	}
	tTask.Name = "T-renamed"
	if err := localHandle.Calendar.MarkForDeletion(itemURL("T")); err != nil {
		t.Fatalf("mark T deleted: %v", err)
	}

	// T was NotSynced and is now gone outright per WithDeletion's tombstoneNeeded=false
	// path (no remote counterpart ever existed), so it should not even be
	// present locally before Sync runs, let alone after.
	if _, ok := localHandle.Calendar.GetItemByURL(itemURL("T")); ok {
		t.Fatalf("T should have been removed outright by MarkForDeletion")
	}

	p := New(localSrc, remoteSrc)
	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("Sync failed: %v %+v", err, report.CalendarErrors)
	}

	if _, ok := localHandle.Calendar.GetItemByURL(itemURL("T")); ok {
		t.Errorf("T should not exist locally after sync")
	}
	remoteTags, _ := remoteSrc.GetCalendar(testCalendarURL)
	tags, err := remoteTags.Calendar.GetItemVersionTags(ctx)
	if err != nil {
		t.Fatalf("GetItemVersionTags: %v", err)
	}
	if _, ok := tags[itemURL("T")]; ok {
		t.Errorf("T should never have reached the remote")
	}
}

func TestSyncS5FirstSyncEmptyLocal(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	remoteSrc, remoteCal := newRemote(behaviour)
	localSrc := newLocalSource(t)
	ctx := context.Background()

	x := newTask("X", "X", false, item.SyncStatus{})
	y := newTask("Y", "Y", false, item.SyncStatus{})
	remoteCal.Seed(x, "v0-X")
	remoteCal.Seed(y, "v0-Y")

	p := New(localSrc, remoteSrc)
	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("Sync failed: %v %+v", err, report.CalendarErrors)
	}

	localHandle, ok := localSrc.GetCalendar(testCalendarURL)
	if !ok {
		t.Fatalf("local calendar was not created")
	}
	items := localHandle.Calendar.GetItems()
	if len(items) != 2 {
		t.Fatalf("local has %d items, want 2: %v", len(items), items)
	}
	for _, letter := range []string{"X", "Y"} {
		got := mustGetItem(t, items, letter)
		if got.SyncStatus.Kind() != item.Synced {
			t.Errorf("%s status = %v, want Synced", letter, got.SyncStatus.Kind())
		}
	}
}

func TestSyncS6FirstSyncEmptyRemote(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc := newLocalSource(t)
	remoteSrc, _ := newRemote(behaviour)
	ctx := context.Background()

	localHandle, err := localSrc.CreateCalendar(ctx, testCalendarURL, "C", calendar.NewComponentSet(calendar.ComponentTodo), "")
	if err != nil {
		t.Fatalf("create local calendar: %v", err)
	}
	x := newTask("X", "X", false, item.NewNotSynced())
	y := newTask("Y", "Y", false, item.NewNotSynced())
	if _, err := localHandle.Calendar.AddItem(ctx, x); err != nil {
		t.Fatalf("add X: %v", err)
	}
	if _, err := localHandle.Calendar.AddItem(ctx, y); err != nil {
		t.Fatalf("add Y: %v", err)
	}

	p := New(localSrc, remoteSrc)
	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("Sync failed: %v %+v", err, report.CalendarErrors)
	}

	items := localHandle.Calendar.GetItems()
	for _, letter := range []string{"X", "Y"} {
		got := mustGetItem(t, items, letter)
		if got.SyncStatus.Kind() != item.Synced {
			t.Errorf("%s status = %v, want Synced", letter, got.SyncStatus.Kind())
		}
		if _, hasTag := got.SyncStatus.Tag(); !hasTag {
			t.Errorf("%s has no server-assigned tag", letter)
		}
	}

	remoteHandle, ok := remoteSrc.GetCalendar(testCalendarURL)
	if !ok {
		t.Fatalf("remote calendar missing")
	}
	tags, err := remoteHandle.Calendar.GetItemVersionTags(ctx)
	if err != nil {
		t.Fatalf("GetItemVersionTags: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("remote has %d items, want 2", len(tags))
	}
}

// TestSyncIdempotence verifies property 3: running Sync a second time after
// a successful first run changes nothing.
func TestSyncIdempotence(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc, remoteSrc, _ := seedPair(t, behaviour, map[string]string{"A": "A"}, nil)
	ctx := context.Background()

	p := New(localSrc, remoteSrc)
	if _, err := p.Sync(ctx); err != nil {
		t.Fatalf("first Sync: %v", err)
	}

	localHandle, _ := localSrc.GetCalendar(testCalendarURL)
	before := mustGetItem(t, localHandle.Calendar.GetItems(), "A")
	beforeTag, _ := before.SyncStatus.Tag()

	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("second Sync failed: %v %+v", err, report.CalendarErrors)
	}

	after := mustGetItem(t, localHandle.Calendar.GetItems(), "A")
	afterTag, _ := after.SyncStatus.Tag()
	if beforeTag != afterTag {
		t.Errorf("tag changed across idempotent sync: %q -> %q", beforeTag, afterTag)
	}
}

// TestSyncResumabilityUnderTransientFaults verifies property 6: injecting a
// bounded number of transient failures and re-running Sync until it reports
// success converges on the same state as a fault-free run.
func TestSyncResumabilityUnderTransientFaults(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc := newLocalSource(t)
	remoteSrc, _ := newRemote(behaviour)
	ctx := context.Background()

	localHandle, err := localSrc.CreateCalendar(ctx, testCalendarURL, "C", calendar.NewComponentSet(calendar.ComponentTodo), "")
	if err != nil {
		t.Fatalf("create local calendar: %v", err)
	}
	x := newTask("X", "X", false, item.NewNotSynced())
	if _, err := localHandle.Calendar.AddItem(ctx, x); err != nil {
		t.Fatalf("add X: %v", err)
	}

	behaviour.InjectFailures(mockdav.OpAddItem, 2, os.ErrDeadlineExceeded)

	p := New(localSrc, remoteSrc)
	for attempt := 0; attempt < 5; attempt++ {
		report, err := p.Sync(ctx)
		if err != nil {
			t.Fatalf("Sync attempt %d: %v", attempt, err)
		}
		if report.Success {
			break
		}
	}

	got := mustGetItem(t, localHandle.Calendar.GetItems(), "X")
	if got.SyncStatus.Kind() != item.Synced {
		t.Fatalf("X status = %v, want Synced after retries converge", got.SyncStatus.Kind())
	}
}

// TestSyncCreatesCalendarOnBothSides verifies property 7.
func TestSyncCreatesCalendarOnBothSides(t *testing.T) {
	behaviour := mockdav.NewBehaviour()
	localSrc := newLocalSource(t)
	remoteSrc, _ := newRemote(behaviour)
	ctx := context.Background()

	// Local-only calendar, distinct URL from the seeded remote one.
	otherURL := "https://host/cal/D/"
	if _, err := localSrc.CreateCalendar(ctx, otherURL, "D", calendar.NewComponentSet(calendar.ComponentTodo), "#ff0000"); err != nil {
		t.Fatalf("create local calendar D: %v", err)
	}

	p := New(localSrc, remoteSrc)
	report, err := p.Sync(ctx)
	if err != nil || !report.Success {
		t.Fatalf("Sync failed: %v %+v", err, report.CalendarErrors)
	}

	remoteHandle, ok := remoteSrc.GetCalendar(otherURL)
	if !ok {
		t.Fatalf("remote calendar D was not created")
	}
	if remoteHandle.Calendar.Name() != "D" {
		t.Errorf("remote D name = %q, want D", remoteHandle.Calendar.Name())
	}
	colour, hasColour := remoteHandle.Calendar.Colour()
	if !hasColour || colour != "#ff0000" {
		t.Errorf("remote D colour = (%q, %v), want (#ff0000, true)", colour, hasColour)
	}

	// Remote-only calendar C (seeded by newRemote) must appear locally too.
	if _, ok := localSrc.GetCalendar(testCalendarURL); !ok {
		t.Errorf("local calendar C was not created from remote")
	}
}

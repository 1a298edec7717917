package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"caldavsync/calendar"
	"caldavsync/syncerr"
)

// Local is the directory-backed Source: one metadata.json plus one file per
// calendar, per spec.md §6. Calendars are in-memory calendar.Local values
// held behind source.Handle for reconciliation-exclusivity locking.
//
// Grounded on internal/cache/cache.go's JSON-struct-on-disk read/write
// pattern, generalized from a single cache blob to a metadata file plus one
// file per calendar, and on backend/sqlite's NewWithBackendID for the
// open-vs-create split (the teacher's sqlite backend distinguishes
// "open existing db" from "create fresh db"; this mirrors that split for a
// JSON-directory store instead of a database file).
type Local struct {
	dir string

	mu        sync.RWMutex
	calendars map[string]*Handle[calendar.CompleteCalendar]
}

var _ Source[calendar.CompleteCalendar] = (*Local)(nil)

// Create initialises a brand-new, empty local source at dir: creates the
// directory if absent and writes an empty metadata file.
func Create(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("source: create %s: %w", dir, err)
	}
	l := &Local{dir: dir, calendars: make(map[string]*Handle[calendar.CompleteCalendar])}
	if err := l.Save(); err != nil {
		return nil, err
	}
	return l, nil
}

// Open loads an existing local source from dir. Per spec.md §6, it fails if
// the metadata file is missing or malformed; a calendar file that fails to
// parse is logged by the caller and skipped rather than aborting the load
// (Open reports those via the returned skipped slice so the caller can
// decide how to log them, since this package carries no logger dependency
// of its own).
//
// spec.md §6 describes two independent load actions: the metadata file, and
// "every file whose extension marks it as a calendar file". Open therefore
// doesn't stop at the calendars metadata.json happens to list: after loading
// those, it scans dir for every calendarFileSuffix file not among the
// filenames metadata already accounted for and loads those too. This
// recovers a calendar written to disk but not yet (or no longer) referenced
// by metadata.json — e.g. a crash between Save's per-calendar write and its
// final metadata write — the way _examples/original_source's Cache::from_folder
// rebuilds its calendar set from a directory scan independent of any index.
func Open(dir string) (l *Local, skipped []string, err error) {
	metaPath := filepath.Join(dir, metadataFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("source: open %s: %w", metaPath, err)
	}

	var doc metadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("source: malformed metadata %s: %w", metaPath, err)
	}

	l = &Local{dir: dir, calendars: make(map[string]*Handle[calendar.CompleteCalendar])}
	knownFiles := make(map[string]bool, len(doc.Calendars))
	for _, cm := range doc.Calendars {
		knownFiles[cm.Filename] = true
		calPath := filepath.Join(dir, cm.Filename)
		data, err := os.ReadFile(calPath)
		if err != nil {
			skipped = append(skipped, cm.URL)
			continue
		}
		fileDoc, items, err := decodeCalendar(data)
		if err != nil {
			skipped = append(skipped, cm.URL)
			continue
		}
		local := calendar.NewLocal(fileDoc.URL, fileDoc.Name, componentsFromInt(fileDoc.Components), colourOfFileDoc(fileDoc))
		local.Restore(items)
		l.calendars[fileDoc.URL] = NewHandle[calendar.CompleteCalendar](local)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("source: open %s: scan directory: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || knownFiles[entry.Name()] || !strings.HasSuffix(entry.Name(), calendarFileSuffix) {
			continue
		}
		calPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(calPath)
		if err != nil {
			skipped = append(skipped, entry.Name())
			continue
		}
		fileDoc, items, err := decodeCalendar(data)
		if err != nil {
			skipped = append(skipped, entry.Name())
			continue
		}
		if _, exists := l.calendars[fileDoc.URL]; exists {
			continue
		}
		local := calendar.NewLocal(fileDoc.URL, fileDoc.Name, componentsFromInt(fileDoc.Components), colourOfFileDoc(fileDoc))
		local.Restore(items)
		l.calendars[fileDoc.URL] = NewHandle[calendar.CompleteCalendar](local)
	}
	return l, skipped, nil
}

// OpenOrCreate opens dir if it already holds a metadata file, or creates a
// fresh empty source there otherwise. Convenience for callers (the demo CLI)
// that don't want to special-case first run.
func OpenOrCreate(dir string) (*Local, []string, error) {
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); os.IsNotExist(err) {
		l, err := Create(dir)
		return l, nil, err
	}
	return Open(dir)
}

func colourOf(cm calendarMetaDoc) string {
	if cm.HasColour {
		return cm.Colour
	}
	return ""
}

func colourOfFileDoc(doc calendarFileDoc) string {
	if doc.HasColour {
		return doc.Colour
	}
	return ""
}

func (l *Local) GetCalendars() map[string]*Handle[calendar.CompleteCalendar] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*Handle[calendar.CompleteCalendar], len(l.calendars))
	for url, h := range l.calendars {
		out[url] = h
	}
	return out
}

func (l *Local) GetCalendar(url string) (*Handle[calendar.CompleteCalendar], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.calendars[url]
	return h, ok
}

func (l *Local) CreateCalendar(_ context.Context, url, name string, components calendar.ComponentSet, colour string) (*Handle[calendar.CompleteCalendar], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.calendars[url]; exists {
		return nil, syncerr.New(syncerr.Duplicate, "create_calendar", url, nil)
	}
	cal := calendar.NewLocal(url, name, components, colour)
	h := NewHandle[calendar.CompleteCalendar](cal)
	l.calendars[url] = h
	return h, nil
}

// Save commits every calendar's in-memory items and the aggregate metadata
// file to disk: the directory is created if absent, each calendar is written
// to a filename derived by sanitising its URL, and the metadata file is
// written last. Called explicitly and expected to be called again by the
// caller when the source is dropped.
func (l *Local) Save() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("source: save: mkdir %s: %w", l.dir, err)
	}

	doc := metadataDoc{}
	for url, h := range l.calendars {
		colour, hasColour := h.Calendar.Colour()
		cm := calendarMetaDoc{
			URL:        url,
			Name:       h.Calendar.Name(),
			Components: componentsToInt(h.Calendar.SupportedComponents()),
			Colour:     colour,
			HasColour:  hasColour,
			Filename:   sanitizeFilename(url),
		}
		doc.Calendars = append(doc.Calendars, cm)

		local, ok := h.Calendar.(*calendar.Local)
		if !ok {
			continue
		}
		data, err := encodeCalendar(local)
		if err != nil {
			return fmt.Errorf("source: save: encode calendar %s: %w", url, err)
		}
		if err := os.WriteFile(filepath.Join(l.dir, cm.Filename), data, 0o644); err != nil {
			return fmt.Errorf("source: save: write calendar %s: %w", url, err)
		}
	}

	metaData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("source: save: encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, metadataFile), metaData, 0o644); err != nil {
		return fmt.Errorf("source: save: write metadata: %w", err)
	}
	return nil
}

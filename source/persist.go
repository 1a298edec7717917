package source

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"caldavsync/calendar"
	"caldavsync/item"
)

// metadataFile is the aggregate file name spec.md §6 calls "one aggregate
// metadata file" living alongside the per-calendar files.
const metadataFile = "metadata.json"

// calendarFileSuffix marks a file as a calendar file, per spec.md §6's
// "every file whose extension marks it as a calendar file".
const calendarFileSuffix = ".calendar.json"

type metadataDoc struct {
	Calendars []calendarMetaDoc `json:"calendars"`
}

type calendarMetaDoc struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Components int    `json:"components"`
	Colour     string `json:"colour,omitempty"`
	HasColour  bool   `json:"has_colour"`
	Filename   string `json:"filename"`
}

// sanitizeFilename derives a stable, filesystem-safe name for a calendar
// URL: non-alphanumeric runs collapse to "_", and a short hash suffix is
// appended so distinct URLs that sanitise to the same prefix never collide.
var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

func sanitizeFilename(url string) string {
	base := unsafeRun.ReplaceAllString(url, "_")
	if len(base) > 48 {
		base = base[:48]
	}
	sum := sha1.Sum([]byte(url))
	return fmt.Sprintf("%s-%s%s", base, hex.EncodeToString(sum[:])[:8], calendarFileSuffix)
}

// itemDoc is the on-disk shape of one item.Item, covering both Task and
// Event via a discriminator field, since Go has no native tagged-union
// (de)serialisation.
type itemDoc struct {
	Kind         string           `json:"kind"`
	URL          string           `json:"url"`
	UID          string           `json:"uid"`
	Name         string           `json:"name"`
	CreationDate *time.Time       `json:"creation_date,omitempty"`
	LastModified time.Time        `json:"last_modified"`
	ICalProdID   string           `json:"ical_prod_id"`
	ExtraParams  []extraPropDoc   `json:"extra_params,omitempty"`
	SyncStatus   syncStatusDoc    `json:"sync_status"`
	Completion   *completionDoc   `json:"completion,omitempty"`
}

type extraPropDoc struct {
	Name   string         `json:"name"`
	Value  string         `json:"value"`
	Params []extraParamDoc `json:"params,omitempty"`
}

type extraParamDoc struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type syncStatusDoc struct {
	Kind string `json:"kind"`
	Tag  string `json:"tag,omitempty"`
}

type completionDoc struct {
	Completed bool       `json:"completed"`
	At        *time.Time `json:"at,omitempty"`
}

// calendarFileDoc is the self-describing on-disk shape of one calendar file:
// calendar-level metadata alongside its items, so a calendar file can be
// reconstructed on its own even if the aggregate metadata file doesn't (yet)
// list it — see Open's directory scan in local.go.
type calendarFileDoc struct {
	URL        string    `json:"url"`
	Name       string    `json:"name"`
	Components int       `json:"components"`
	Colour     string    `json:"colour,omitempty"`
	HasColour  bool      `json:"has_colour"`
	Items      []itemDoc `json:"items"`
}

func syncStatusToDoc(s item.SyncStatus) syncStatusDoc {
	doc := syncStatusDoc{Kind: s.Kind().String()}
	if tag, ok := s.Tag(); ok {
		doc.Tag = string(tag)
	}
	return doc
}

func syncStatusFromDoc(d syncStatusDoc) item.SyncStatus {
	switch d.Kind {
	case item.Synced.String():
		return item.NewSynced(item.VersionTag(d.Tag))
	case item.LocallyModified.String():
		return item.NewLocallyModified(item.VersionTag(d.Tag))
	case item.LocallyDeleted.String():
		return item.NewLocallyDeleted(item.VersionTag(d.Tag))
	default:
		return item.NewNotSynced()
	}
}

func itemToDoc(it item.Item) itemDoc {
	base := it.Base()
	doc := itemDoc{
		URL:          base.URL,
		UID:          base.UID,
		Name:         base.Name,
		CreationDate: base.CreationDate,
		LastModified: base.LastModified,
		ICalProdID:   base.ICalProdID,
		SyncStatus:   syncStatusToDoc(base.SyncStatus),
	}
	for _, p := range base.ExtraParams {
		pd := extraPropDoc{Name: p.Name, Value: p.Value}
		for _, par := range p.Params {
			pd.Params = append(pd.Params, extraParamDoc{Name: par.Name, Value: par.Value})
		}
		doc.ExtraParams = append(doc.ExtraParams, pd)
	}

	switch v := it.(type) {
	case *item.Task:
		doc.Kind = "task"
		at, _ := v.Completion.CompletedAt()
		doc.Completion = &completionDoc{Completed: v.Completion.IsCompleted(), At: at}
	case *item.Event:
		doc.Kind = "event"
	}
	return doc
}

func docToItem(d itemDoc) (item.Item, error) {
	common := item.Common{
		URL:          d.URL,
		UID:          d.UID,
		Name:         d.Name,
		CreationDate: d.CreationDate,
		LastModified: d.LastModified,
		ICalProdID:   d.ICalProdID,
		SyncStatus:   syncStatusFromDoc(d.SyncStatus),
	}
	for _, p := range d.ExtraParams {
		ep := item.ExtraProperty{Name: p.Name, Value: p.Value}
		for _, par := range p.Params {
			ep.Params = append(ep.Params, item.ExtraParam{Name: par.Name, Value: par.Value})
		}
		common.ExtraParams = append(common.ExtraParams, ep)
	}

	switch d.Kind {
	case "task":
		completion := item.NewUncompleted()
		if d.Completion != nil && d.Completion.Completed {
			completion = item.NewCompleted(d.Completion.At)
		}
		return &item.Task{Common: common, Completion: completion}, nil
	case "event":
		return &item.Event{Common: common}, nil
	default:
		return nil, fmt.Errorf("source: unknown persisted item kind %q", d.Kind)
	}
}

func encodeCalendar(local *calendar.Local) ([]byte, error) {
	colour, hasColour := local.Colour()
	items := local.GetItems()
	docs := make([]itemDoc, 0, len(items))
	for _, it := range items {
		docs = append(docs, itemToDoc(it))
	}
	doc := calendarFileDoc{
		URL:        local.URL(),
		Name:       local.Name(),
		Components: componentsToInt(local.SupportedComponents()),
		Colour:     colour,
		HasColour:  hasColour,
		Items:      docs,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// decodeCalendar parses a calendar file into its self-described metadata
// plus its items, keyed by item URL.
func decodeCalendar(data []byte) (calendarFileDoc, map[string]item.Item, error) {
	var doc calendarFileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return calendarFileDoc{}, nil, err
	}
	items := make(map[string]item.Item, len(doc.Items))
	for _, d := range doc.Items {
		it, err := docToItem(d)
		if err != nil {
			return calendarFileDoc{}, nil, err
		}
		items[it.Base().URL] = it
	}
	return doc, items, nil
}

func componentsToInt(c calendar.ComponentSet) int { return int(c) }
func componentsFromInt(i int) calendar.ComponentSet { return calendar.ComponentSet(i) }

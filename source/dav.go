package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"caldavsync/calendar"
	"caldavsync/ical"
	"caldavsync/internal/davproto"
	"caldavsync/syncerr"
)

// Dav is the CalDAV-discovery-backed Source: it resolves the server's
// current-user-principal, then its calendar-home-set, then lists every
// calendar collection under that home set, per the operations table in
// spec.md §6.
//
// Grounded on backend/nextcloud/nextcloud.go's GetLists (PROPFIND body
// construction and response walking), generalized from that file's
// regex-based href/displayname scraping to davproto's real multistatus
// structs, and extended with the principal/home-set discovery steps the
// teacher's nextcloud backend skipped (it was configured with a
// pre-resolved calendar URL).
type Dav struct {
	client     *davproto.Client
	codec      *ical.Codec
	serverURL  string

	mu        sync.RWMutex
	homeSet   string
	calendars map[string]*Handle[calendar.DavCalendar]
}

var _ Source[calendar.DavCalendar] = (*Dav)(nil)

func NewDav(client *davproto.Client, codec *ical.Codec, serverURL string) *Dav {
	return &Dav{client: client, codec: codec, serverURL: serverURL, calendars: make(map[string]*Handle[calendar.DavCalendar])}
}

// Discover resolves the principal and calendar-home-set, then lists every
// calendar collection under it and populates the handle map. Must be called
// before GetCalendars/GetCalendar return anything useful.
func (d *Dav) Discover(ctx context.Context) error {
	principal, err := d.discoverHref(ctx, d.serverURL, davproto.CurrentUserPrincipalBody(), func(p davproto.Prop) string { return p.CurrentUserPrincipal.Href })
	if err != nil {
		return err
	}
	principal = resolveHrefAgainst(d.serverURL, principal)

	homeSet, err := d.discoverHref(ctx, principal, davproto.CalendarHomeSetBody(), func(p davproto.Prop) string { return p.CalendarHomeSet.Href })
	if err != nil {
		return err
	}
	homeSet = resolveHrefAgainst(d.serverURL, homeSet)

	resp, err := d.client.Do(ctx, "PROPFIND", homeSet, "1", davproto.ListCalendarsBody(), nil)
	if err != nil {
		return syncerr.New(syncerr.NetworkFailure, "list_calendars", homeSet, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMultiStatus {
		return syncerr.New(syncerr.NetworkFailure, "list_calendars", homeSet, fmt.Errorf("unexpected status %s", resp.Status))
	}
	ms, err := davproto.ParseMultiStatus(resp.Body)
	if err != nil {
		return syncerr.New(syncerr.ProtocolViolation, "list_calendars", homeSet, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.homeSet = homeSet
	for _, r := range ms.Responses {
		prop, ok := r.OKProp()
		if !ok || prop.ResourceType.Calendar == nil {
			continue
		}
		comps := componentSetFrom(prop.SupportedCalendarComp)
		if comps == 0 {
			// Filter per spec.md §6: must be a <calendar> resourcetype AND
			// have a non-empty supported-components set.
			continue
		}
		calURL := resolveHrefAgainst(homeSet, r.Href)
		cal := calendar.NewDav(d.client, d.codec, calURL, prop.DisplayName, comps, prop.CalendarColor)
		d.calendars[calURL] = NewHandle[calendar.DavCalendar](cal)
	}
	return nil
}

func (d *Dav) discoverHref(ctx context.Context, target string, body io.Reader, extract func(davproto.Prop) string) (string, error) {
	resp, err := d.client.Do(ctx, "PROPFIND", target, "0", body, nil)
	if err != nil {
		return "", syncerr.New(syncerr.NetworkFailure, "discover", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMultiStatus {
		return "", syncerr.New(syncerr.NetworkFailure, "discover", target, fmt.Errorf("unexpected status %s", resp.Status))
	}
	ms, err := davproto.ParseMultiStatus(resp.Body)
	if err != nil {
		return "", syncerr.New(syncerr.ProtocolViolation, "discover", target, err)
	}
	for _, r := range ms.Responses {
		prop, ok := r.OKProp()
		if !ok {
			continue
		}
		if href := extract(prop); href != "" {
			return href, nil
		}
	}
	return "", syncerr.New(syncerr.ProtocolViolation, "discover", target, fmt.Errorf("expected property missing from response"))
}

func componentSetFrom(s davproto.SupportedCalendarComponentSet) calendar.ComponentSet {
	var out calendar.ComponentSet
	for _, c := range s.Comp {
		switch strings.ToUpper(c.Name) {
		case "VEVENT":
			out |= calendar.ComponentSet(calendar.ComponentEvent)
		case "VTODO":
			out |= calendar.ComponentSet(calendar.ComponentTodo)
		}
	}
	return out
}

func resolveHrefAgainst(base, href string) string {
	if href == "" {
		return base
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func (d *Dav) GetCalendars() map[string]*Handle[calendar.DavCalendar] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*Handle[calendar.DavCalendar], len(d.calendars))
	for url, h := range d.calendars {
		out[url] = h
	}
	return out
}

func (d *Dav) GetCalendar(url string) (*Handle[calendar.DavCalendar], bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.calendars[url]
	return h, ok
}

// CreateCalendar issues MKCALENDAR at requestedURL.
func (d *Dav) CreateCalendar(ctx context.Context, requestedURL, name string, components calendar.ComponentSet, colour string) (*Handle[calendar.DavCalendar], error) {
	d.mu.Lock()
	if _, exists := d.calendars[requestedURL]; exists {
		d.mu.Unlock()
		return nil, syncerr.New(syncerr.Duplicate, "create_calendar", requestedURL, nil)
	}
	d.mu.Unlock()

	var names []string
	if components.Has(calendar.ComponentEvent) {
		names = append(names, "VEVENT")
	}
	if components.Has(calendar.ComponentTodo) {
		names = append(names, "VTODO")
	}

	resp, err := d.client.Do(ctx, "MKCALENDAR", requestedURL, "", davproto.MkcalendarBody(name, names), nil)
	if err != nil {
		return nil, syncerr.New(syncerr.NetworkFailure, "create_calendar", requestedURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return nil, syncerr.New(syncerr.NetworkFailure, "create_calendar", requestedURL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	cal := calendar.NewDav(d.client, d.codec, requestedURL, name, components, colour)
	h := NewHandle[calendar.DavCalendar](cal)

	d.mu.Lock()
	d.calendars[requestedURL] = h
	d.mu.Unlock()
	return h, nil
}

package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"caldavsync/ical"
	"caldavsync/internal/davproto"
)

func discoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)

		switch {
		case strings.Contains(string(body), "current-user-principal"):
			io.WriteString(w, `<?xml version="1.0"?><multistatus xmlns="DAV:">
<response><href>/principals/alice/</href><propstat><status>HTTP/1.1 200 OK</status>
<prop><current-user-principal><href>/principals/alice/</href></current-user-principal></prop></propstat></response>
</multistatus>`)
		case strings.Contains(string(body), "calendar-home-set"):
			io.WriteString(w, `<?xml version="1.0"?><multistatus xmlns="DAV:">
<response><href>/principals/alice/</href><propstat><status>HTTP/1.1 200 OK</status>
<prop><calendar-home-set><href>/cal/alice/</href></calendar-home-set></prop></propstat></response>
</multistatus>`)
		default:
			io.WriteString(w, `<?xml version="1.0"?><multistatus xmlns="DAV:">
<response><href>/cal/alice/tasks/</href><propstat><status>HTTP/1.1 200 OK</status>
<prop><displayname>Tasks</displayname><resourcetype><collection/><calendar/></resourcetype>
<supported-calendar-component-set><comp name="VTODO"/></supported-calendar-component-set></prop></propstat></response>
<response><href>/cal/alice/inbox/</href><propstat><status>HTTP/1.1 200 OK</status>
<prop><displayname>Inbox</displayname><resourcetype><collection/></resourcetype></prop></propstat></response>
</multistatus>`)
		}
	}
}

func TestDavDiscoverFindsCalendarsAndFiltersNonCalendars(t *testing.T) {
	ts := httptest.NewServer(discoveryHandler())
	defer ts.Close()

	client := davproto.NewClient(ts.Client(), davproto.Credentials{Username: "alice", Password: "secret"})
	codec := ical.NewCodec("Example", "caldavsync-test")
	src := NewDav(client, codec, ts.URL+"/")

	if err := src.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	cals := src.GetCalendars()
	if len(cals) != 1 {
		t.Fatalf("len(cals) = %d, want 1 (the Inbox collection must be filtered out)", len(cals))
	}
	h, ok := src.GetCalendar(ts.URL + "/cal/alice/tasks/")
	if !ok {
		t.Fatalf("expected calendar at /cal/alice/tasks/")
	}
	if h.Calendar.Name() != "Tasks" {
		t.Fatalf("Name() = %q, want Tasks", h.Calendar.Name())
	}
}

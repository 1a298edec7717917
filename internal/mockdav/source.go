package mockdav

import (
	"context"
	"sync"

	"caldavsync/calendar"
	"caldavsync/source"
	"caldavsync/syncerr"
)

// Source is an in-memory stand-in for source.Dav: a fixed discovery-less
// collection of mock remote calendars that the engine can enumerate and add
// to via CreateCalendar, exactly as it would a real discovered home-set.
type Source struct {
	behaviour *Behaviour

	mu        sync.RWMutex
	calendars map[string]*source.Handle[calendar.DavCalendar]
}

var _ source.Source[calendar.DavCalendar] = (*Source)(nil)

func NewSource(behaviour *Behaviour) *Source {
	return &Source{behaviour: behaviour, calendars: make(map[string]*source.Handle[calendar.DavCalendar])}
}

// Add registers an existing mock calendar (typically built with NewCalendar
// and seeded) under its own URL, for test setup that wants the remote to
// start out non-empty.
func (s *Source) Add(cal *Calendar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars[cal.URL()] = source.NewHandle[calendar.DavCalendar](cal)
}

func (s *Source) GetCalendars() map[string]*source.Handle[calendar.DavCalendar] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*source.Handle[calendar.DavCalendar], len(s.calendars))
	for url, h := range s.calendars {
		out[url] = h
	}
	return out
}

func (s *Source) GetCalendar(url string) (*source.Handle[calendar.DavCalendar], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.calendars[url]
	return h, ok
}

func (s *Source) CreateCalendar(ctx context.Context, url, name string, components calendar.ComponentSet, colour string) (*source.Handle[calendar.DavCalendar], error) {
	if err := s.behaviour.take(OpCreateCalendar); err != nil {
		return nil, syncerr.New(syncerr.NetworkFailure, "create_calendar", url, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.calendars[url]; exists {
		return nil, syncerr.New(syncerr.Duplicate, "create_calendar", url, nil)
	}
	cal := NewCalendar(s.behaviour, url, name, components, colour)
	h := source.NewHandle[calendar.DavCalendar](cal)
	s.calendars[url] = h
	return h, nil
}

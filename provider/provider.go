// Package provider implements the sync engine of spec.md §4.4: the
// top-level algorithm that drives a local source.Source[calendar.CompleteCalendar]
// and a remote source.Source[calendar.DavCalendar] to convergence, one
// calendar pair at a time, with per-calendar failure isolation so one
// broken calendar never aborts the rest of the sync.
//
// Grounded on internal/daemon.Daemon.performMultiBackendSync: each backend
// (here, each calendar pair) is synced independently, a failure is recorded
// against that backend/calendar and logged, and the loop moves on to the
// next one rather than unwinding the whole sync.
package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"caldavsync/calendar"
	"caldavsync/progress"
	"caldavsync/source"
	"caldavsync/syncerr"
)

const defaultBatchSize = 30

// Option configures a Provider at construction time.
type Option func(*Provider)

// WithLogger sets the zerolog.Logger the engine reports per-calendar and
// per-item outcomes to. The default is a disabled logger (zerolog.Nop()),
// matching spec.md §10.1: logging is opt-in, never required for correctness.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithBatchSize overrides the number of item URLs fetched per
// calendar-multiget (remote additions/changes), analogous to
// calendar.Dav's own internal batching. n <= 0 is ignored.
func WithBatchSize(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithProgress attaches the progress.Channel the engine posts SyncEvents to.
// The default is a fresh, unobserved Channel.
func WithProgress(ch *progress.Channel) Option {
	return func(p *Provider) { p.progress = ch }
}

// Provider is the sync engine: it owns no state of its own beyond its two
// Sources, driving them to convergence on each Sync call.
type Provider struct {
	local  source.Source[calendar.CompleteCalendar]
	remote source.Source[calendar.DavCalendar]

	batchSize int
	logger    zerolog.Logger
	progress  *progress.Channel

	// itemErrors counts the item failures logged during the current Sync.
	itemErrors int
}

// New returns a Provider syncing between local and remote.
func New(local source.Source[calendar.CompleteCalendar], remote source.Source[calendar.DavCalendar], opts ...Option) *Provider {
	p := &Provider{
		local:     local,
		remote:    remote,
		batchSize: defaultBatchSize,
		logger:    zerolog.Nop(),
		progress:  progress.NewChannel(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Progress returns the channel Sync reports live progress on.
func (p *Provider) Progress() *progress.Channel { return p.progress }

// CalendarError records that reconciling one calendar pair failed outright
// (as opposed to an individual item within it, which is logged and skipped
// without aborting the calendar).
type CalendarError struct {
	URL string
	Err error
}

func (e CalendarError) Error() string {
	return fmt.Sprintf("calendar %s: %v", e.URL, e.Err)
}

// Report summarizes one Sync call. Success is true only if every discovered
// calendar pair reconciled without a calendar-level error and no item failure
// was logged. A failed item (a single malformed event, one precondition
// conflict) does not abort its calendar and is not listed in CalendarErrors;
// it is logged and re-attempted on the next sync.
type Report struct {
	Success        bool
	CalendarErrors []CalendarError
}

// Sync runs the full algorithm of spec.md §4.4.1:
//
//  1. For every remote calendar without a local counterpart, create one
//     locally, then reconcile the pair.
//  2. For every local calendar without a remote counterpart (not already
//     covered by step 1), create one remotely, then reconcile the pair.
//  3. Report success if no calendar-level error was recorded and no item
//     failure was logged.
//
// Each calendar pair is isolated: a failure creating or reconciling one
// calendar is recorded in the Report and logged, and Sync proceeds to the
// rest.
func (p *Provider) Sync(ctx context.Context) (Report, error) {
	p.progress.Post(progress.SyncEvent{Phase: progress.Started})
	p.itemErrors = 0

	var report Report
	report.Success = true
	covered := make(map[string]bool)

	remoteCalendars := p.remote.GetCalendars()
	for url, remoteHandle := range remoteCalendars {
		covered[url] = true
		if err := ctx.Err(); err != nil {
			return p.finish(report, err)
		}

		localHandle, ok := p.local.GetCalendar(url)
		if !ok {
			name := remoteHandle.Calendar.Name()
			components := remoteHandle.Calendar.SupportedComponents()
			colour, _ := remoteHandle.Calendar.Colour()
			created, err := p.local.CreateCalendar(ctx, url, name, components, colour)
			if err != nil {
				p.recordCalendarError(&report, url, fmt.Errorf("create local calendar: %w", err))
				continue
			}
			localHandle = created
		}

		if err := p.reconcilePair(ctx, url, localHandle, remoteHandle); err != nil {
			p.recordCalendarError(&report, url, err)
		}
	}

	localCalendars := p.local.GetCalendars()
	for url, localHandle := range localCalendars {
		if covered[url] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.finish(report, err)
		}

		remoteHandle, ok := p.remote.GetCalendar(url)
		if !ok {
			name := localHandle.Calendar.Name()
			components := localHandle.Calendar.SupportedComponents()
			colour, _ := localHandle.Calendar.Colour()
			created, err := p.remote.CreateCalendar(ctx, url, name, components, colour)
			if err != nil {
				p.recordCalendarError(&report, url, fmt.Errorf("create remote calendar: %w", err))
				continue
			}
			remoteHandle = created
		}

		if err := p.reconcilePair(ctx, url, localHandle, remoteHandle); err != nil {
			p.recordCalendarError(&report, url, err)
		}
	}

	return p.finish(report, nil)
}

func (p *Provider) finish(report Report, err error) (Report, error) {
	if p.itemErrors > 0 {
		report.Success = false
	}
	p.progress.Post(progress.SyncEvent{Phase: progress.Finished, Success: report.Success && err == nil})
	return report, err
}

func (p *Provider) recordCalendarError(report *Report, url string, err error) {
	report.Success = false
	report.CalendarErrors = append(report.CalendarErrors, CalendarError{URL: url, Err: err})
	p.logger.Error().Str("calendar", url).Err(err).Msg("calendar sync failed")
}

// logItemError reports a per-item failure: it never fails the calendar as a
// whole (syncerr.Kind documents which kinds are expected to self-heal next
// sync); it is logged and counted so the Sync's Report is not a success,
// mirroring performMultiBackendSync's "record error but continue" stance
// applied at item granularity.
func (p *Provider) logItemError(op, calendarURL, itemURL string, err error) {
	p.itemErrors++
	kind, _ := syncerr.KindOf(err)
	p.logger.Warn().
		Str("op", op).
		Str("calendar", calendarURL).
		Str("item", itemURL).
		Str("kind", kind.String()).
		Err(err).
		Msg("item sync failed, will retry next sync")
}

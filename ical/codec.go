// Package ical implements the iCalendar <-> item.Item round trip the sync
// engine depends on: parsing a single VCALENDAR containing exactly one VTODO
// or VEVENT into an Item, and serialising an Item back while preserving
// every property the codec did not interpret.
//
// Built on github.com/emersion/go-ical rather than hand-rolled line
// scanning: go-ical's Component/Prop/Params tree gives us a structured place
// to keep extra_parameters' params intact, which a regex-based line scraper
// (as seen in some CalDAV clients) cannot do reliably.
package ical

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	goical "github.com/emersion/go-ical"

	"caldavsync/item"
)

// ErrorKind classifies a codec failure per the sync engine's error taxonomy.
type ErrorKind int

const (
	// ErrMalformedInput means the blob did not contain exactly one VTODO or
	// VEVENT inside its VCALENDAR.
	ErrMalformedInput ErrorKind = iota
	// ErrMissingField means a required property (UID, SUMMARY, DTSTAMP for
	// a VTODO) was absent.
	ErrMissingField
)

// ParseError reports why Parse rejected an input blob.
type ParseError struct {
	Kind  ErrorKind
	Field string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("ical: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("ical: %s", e.Msg)
}

// WarnFunc receives non-fatal inconsistencies Parse encounters (e.g. a
// COMPLETED timestamp without STATUS:COMPLETED). Codec.Parse calls it, if
// set, instead of silently normalising the value.
type WarnFunc func(format string, args ...interface{})

// Codec parses and serialises calendar items. The zero value is usable but
// falls back to a generic PRODID; construct with NewCodec to set the
// organisation/product name used when an input has none of its own.
type Codec struct {
	// DefaultProdID is emitted (and recorded on the Item) when the source
	// blob had no PRODID of its own.
	DefaultProdID string
	// Warn, if set, is called for recoverable inconsistencies. Defaults to
	// a no-op.
	Warn WarnFunc
}

// NewCodec builds a Codec whose default PRODID follows RFC5545's
// "-//ORG//PRODUCT//LANG" convention.
func NewCodec(orgName, productName string) *Codec {
	return &Codec{
		DefaultProdID: fmt.Sprintf("-//%s//%s//EN", orgName, productName),
	}
}

func (c *Codec) warn(format string, args ...interface{}) {
	if c.Warn != nil {
		c.Warn(format, args...)
	}
}

// knownTodoProps are VTODO properties the codec interprets; everything else
// on a VTODO is captured verbatim into ExtraParams.
var knownTodoProps = map[string]bool{
	"UID": true, "DTSTAMP": true, "CREATED": true, "LAST-MODIFIED": true,
	"SUMMARY": true, "STATUS": true, "COMPLETED": true, "PERCENT-COMPLETE": true,
}

// knownEventProps are the common properties a pass-through VEVENT still
// interprets (Event has no completion semantics, so this set is smaller
// than knownTodoProps).
var knownEventProps = map[string]bool{
	"UID": true, "DTSTAMP": true, "CREATED": true, "LAST-MODIFIED": true,
	"SUMMARY": true,
}

// Parse decodes a single VCALENDAR blob fetched from url into an Item,
// attaching status as its SyncStatus.
func (c *Codec) Parse(data []byte, url string, status item.SyncStatus) (item.Item, error) {
	cal, err := goical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return nil, &ParseError{Kind: ErrMalformedInput, Msg: err.Error()}
	}

	var comp *goical.Component
	for _, child := range cal.Children {
		if child.Name == goical.CompEvent || child.Name == goical.CompToDo {
			if comp != nil {
				return nil, &ParseError{Kind: ErrMalformedInput, Msg: "more than one VTODO/VEVENT in VCALENDAR"}
			}
			comp = child
		}
	}
	if comp == nil {
		return nil, &ParseError{Kind: ErrMalformedInput, Msg: "no VTODO or VEVENT found in VCALENDAR"}
	}

	prodID := c.DefaultProdID
	if v, err := cal.Props.Text(goical.PropProductID); err == nil && v != "" {
		prodID = v
	}

	common := item.Common{
		URL:        url,
		SyncStatus: status,
		ICalProdID: prodID,
	}

	known := knownEventProps
	if comp.Name == goical.CompToDo {
		known = knownTodoProps
	}

	uid, err := textProp(comp, goical.PropUID)
	if err != nil || uid == "" {
		if comp.Name == goical.CompToDo {
			return nil, &ParseError{Kind: ErrMissingField, Field: "UID", Msg: "required field missing"}
		}
	}
	common.UID = uid

	summary, err := textProp(comp, goical.PropSummary)
	if comp.Name == goical.CompToDo && (err != nil || summary == "") {
		return nil, &ParseError{Kind: ErrMissingField, Field: "SUMMARY", Msg: "required field missing"}
	}
	common.Name = summary

	dtstamp, dtstampErr := dateTimeProp(comp, goical.PropDateTimeStamp)
	if comp.Name == goical.CompToDo && dtstampErr != nil {
		return nil, &ParseError{Kind: ErrMissingField, Field: "DTSTAMP", Msg: "required field missing"}
	}

	if created, err := dateTimeProp(comp, goical.PropCreated); err == nil {
		common.CreationDate = &created
	} else if dtstampErr == nil {
		common.CreationDate = &dtstamp
	}

	if lastMod, err := dateTimeProp(comp, goical.PropLastModified); err == nil {
		common.LastModified = lastMod
	} else if dtstampErr == nil {
		// LAST-MODIFIED is required by spec.md, but a pass-through VEVENT
		// may omit it; fall back to DTSTAMP rather than the zero time.
		common.LastModified = dtstamp
	}

	common.ExtraParams = extractExtraProps(comp, known)

	if comp.Name == goical.CompEvent {
		return &item.Event{Common: common}, nil
	}

	completion, err := parseCompletion(comp, c.warn)
	if err != nil {
		return nil, err
	}
	return &item.Task{Common: common, Completion: completion}, nil
}

func parseCompletion(comp *goical.Component, warn WarnFunc) (item.CompletionStatus, error) {
	statusText, _ := textProp(comp, goical.PropStatus)
	completedAt, hasCompletedProp := dateTimePropOk(comp, goical.PropCompleted)

	if statusText == "COMPLETED" {
		if hasCompletedProp {
			at := completedAt
			return item.NewCompleted(&at), nil
		}
		return item.NewCompleted(nil), nil
	}

	if hasCompletedProp {
		warn("COMPLETED timestamp present without STATUS:COMPLETED; treating as Uncompleted")
	}
	return item.NewUncompleted(), nil
}

func textProp(comp *goical.Component, name string) (string, error) {
	return comp.Props.Text(name)
}

func dateTimeProp(comp *goical.Component, name string) (time.Time, error) {
	return comp.Props.DateTime(name, time.UTC)
}

func dateTimePropOk(comp *goical.Component, name string) (time.Time, bool) {
	t, err := comp.Props.DateTime(name, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func extractExtraProps(comp *goical.Component, known map[string]bool) []item.ExtraProperty {
	names := make([]string, 0, len(comp.Props))
	for name := range comp.Props {
		if known[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var extra []item.ExtraProperty
	for _, name := range names {
		for _, prop := range comp.Props.Values(name) {
			var params []item.ExtraParam
			paramNames := make([]string, 0, len(prop.Params))
			for pn := range prop.Params {
				paramNames = append(paramNames, pn)
			}
			sort.Strings(paramNames)
			for _, pn := range paramNames {
				for _, pv := range prop.Params[pn] {
					params = append(params, item.ExtraParam{Name: pn, Value: pv})
				}
			}
			extra = append(extra, item.ExtraProperty{
				Name:   prop.Name,
				Value:  prop.Value,
				Params: params,
			})
		}
	}
	return extra
}

// Serialise renders it back into a VCALENDAR blob, reproducing the property
// set an equivalent Parse call would have consumed (order within the
// component is not significant per RFC5545; the round-trip law only requires
// the same set of property lines).
func (c *Codec) Serialise(it item.Item) ([]byte, error) {
	base := it.Base()

	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropVersion, "2.0")
	prodID := base.ICalProdID
	if prodID == "" {
		prodID = c.DefaultProdID
	}
	cal.Props.SetText(goical.PropProductID, prodID)

	var comp *goical.Component
	switch it.Kind() {
	case item.KindTask:
		comp = goical.NewComponent(goical.CompToDo)
	case item.KindEvent:
		comp = goical.NewComponent(goical.CompEvent)
	default:
		return nil, fmt.Errorf("ical: unknown item kind %v", it.Kind())
	}

	comp.Props.SetText(goical.PropUID, base.UID)
	if base.CreationDate != nil {
		comp.Props.SetDateTime(goical.PropDateTimeStamp, *base.CreationDate)
		comp.Props.SetDateTime(goical.PropCreated, *base.CreationDate)
	} else {
		comp.Props.SetDateTime(goical.PropDateTimeStamp, base.LastModified)
	}
	comp.Props.SetDateTime(goical.PropLastModified, base.LastModified)
	comp.Props.SetText(goical.PropSummary, base.Name)

	if task, ok := it.(*item.Task); ok {
		switch task.Completion.Kind() {
		case item.Uncompleted:
			comp.Props.SetText(goical.PropStatus, "NEEDS-ACTION")
		case item.Completed:
			comp.Props.SetText(goical.PropPercentComplete, "100")
			if at, _ := task.Completion.CompletedAt(); at != nil {
				comp.Props.SetDateTime(goical.PropCompleted, *at)
			}
			comp.Props.SetText(goical.PropStatus, "COMPLETED")
		}
	}

	for _, extra := range base.ExtraParams {
		prop := goical.NewProp(extra.Name)
		prop.Value = extra.Value
		for _, p := range extra.Params {
			prop.Params.Add(p.Name, p.Value)
		}
		comp.Props.Add(prop)
	}

	cal.Children = append(cal.Children, comp)

	var buf bytes.Buffer
	if err := goical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("ical: encode: %w", err)
	}
	return buf.Bytes(), nil
}

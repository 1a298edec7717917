package item

import "time"

// ExtraParam is a single iCal parameter (e.g. "VALUE=DATE-TIME") attached to
// an unrecognised property.
type ExtraParam struct {
	Name  string
	Value string
}

// ExtraProperty is an iCal property the codec did not interpret. Its name,
// value and parameters are kept verbatim; the codec stores these properties
// sorted by name (and their parameters sorted by name), so their original
// order in the source is not kept.
// Equality of two Items for sync purposes must never examine ExtraProperty
// slices — they are not user-modifiable state — but Serialise always emits
// them.
type ExtraProperty struct {
	Name   string
	Value  string
	Params []ExtraParam
}

// Common holds the attributes every Item carries, regardless of whether it
// wraps a Task or an Event.
type Common struct {
	URL          string
	UID          string
	Name         string
	CreationDate *time.Time
	LastModified time.Time
	SyncStatus   SyncStatus
	ICalProdID   string
	ExtraParams  []ExtraProperty
}

// Item is a calendar item: either a Task (VTODO) or an Event (VEVENT pass
// through). Kind reports which; callers type-switch on the concrete *Task /
// *Event to reach type-specific fields.
type Item interface {
	Kind() Kind
	Base() *Common
}

// Kind distinguishes the two Item variants.
type Kind int

const (
	// KindTask is a VTODO-backed item; its Task semantics are fully specified.
	KindTask Kind = iota
	// KindEvent is a VEVENT-backed item; it is a pass-through carrier with
	// no interpreted semantics beyond round-tripping through the codec.
	KindEvent
)

// Task is a VTODO item with interpreted completion semantics.
type Task struct {
	Common
	Completion CompletionStatus
}

// Kind identifies this Item as a Task.
func (t *Task) Kind() Kind { return KindTask }

// Base returns the common attributes shared by every Item.
func (t *Task) Base() *Common { return &t.Common }

// Event is a VEVENT item. It carries no interpreted fields beyond Common:
// the engine and codec must preserve it unchanged, never inspecting
// event-specific semantics (scheduling, alarms, recurrence are out of scope).
type Event struct {
	Common
}

// Kind identifies this Item as an Event.
func (e *Event) Kind() Kind { return KindEvent }

// Base returns the common attributes shared by every Item.
func (e *Event) Base() *Common { return &e.Common }

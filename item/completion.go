package item

import "time"

// CompletionKind enumerates the CompletionStatus variants.
type CompletionKind int

const (
	// Uncompleted is a task with no STATUS:COMPLETED.
	Uncompleted CompletionKind = iota
	// Completed is a task marked done, optionally with a completion timestamp.
	Completed
)

// CompletionStatus is a sum type: Uncompleted, or Completed with an optional
// timestamp. It is built only through NewUncompleted / NewCompleted so that
// "COMPLETED with no flag" and "not-COMPLETED with a completion timestamp"
// are both unrepresentable.
type CompletionStatus struct {
	kind CompletionKind
	at   *time.Time
}

// NewUncompleted returns the Uncompleted variant.
func NewUncompleted() CompletionStatus {
	return CompletionStatus{kind: Uncompleted}
}

// NewCompleted returns the Completed variant. at may be nil: STATUS:COMPLETED
// without a COMPLETED: timestamp is valid and distinct from Uncompleted.
func NewCompleted(at *time.Time) CompletionStatus {
	return CompletionStatus{kind: Completed, at: at}
}

// Kind reports which variant this status holds.
func (c CompletionStatus) Kind() CompletionKind {
	return c.kind
}

// CompletedAt reports whether this is the Completed variant and, if so, its
// completion timestamp, which is nil when none was recorded. The Uncompleted
// variant returns (nil, false).
func (c CompletionStatus) CompletedAt() (*time.Time, bool) {
	if c.kind != Completed {
		return nil, false
	}
	return c.at, true
}

// IsCompleted reports whether the task is done, regardless of whether a
// completion timestamp was recorded.
func (c CompletionStatus) IsCompleted() bool {
	return c.kind == Completed
}

// Package item defines the calendar item data model: the Task/Event variant,
// its completion status, and the per-item synchronisation status that the
// sync engine depends on.
package item

// VersionTag is an opaque server-assigned token (typically an HTTP ETag).
// Equality is bytewise; callers must never parse or compare it structurally.
type VersionTag string

// SyncStatusKind enumerates the SyncStatus variants.
type SyncStatusKind int

const (
	// NotSynced marks an item created locally that has never been uploaded.
	// It has no remote counterpart and carries no VersionTag.
	NotSynced SyncStatusKind = iota
	// Synced marks an item whose local copy matches the remote version.
	Synced
	// LocallyModified marks an item edited locally since it last matched
	// the remote version recorded in the status.
	LocallyModified
	// LocallyDeleted marks a local tombstone: the item was deleted locally
	// but the remote version at deletion time is retained so the deletion
	// can be pushed on the next sync.
	LocallyDeleted
)

func (k SyncStatusKind) String() string {
	switch k {
	case NotSynced:
		return "NotSynced"
	case Synced:
		return "Synced"
	case LocallyModified:
		return "LocallyModified"
	case LocallyDeleted:
		return "LocallyDeleted"
	default:
		return "Unknown"
	}
}

// SyncStatus is a tagged variant recording what a local item knows about its
// remote counterpart. It carries a VersionTag in every case except NotSynced.
// It is intentionally not an enum-plus-side-field: the zero value is
// NotSynced and has no tag, so a caller cannot observe a tag-bearing variant
// without a tag.
type SyncStatus struct {
	kind SyncStatusKind
	tag  VersionTag
}

// NewNotSynced returns the status of an item that has never been uploaded.
func NewNotSynced() SyncStatus {
	return SyncStatus{kind: NotSynced}
}

// NewSynced returns the status of an item whose local copy matches v.
func NewSynced(v VersionTag) SyncStatus {
	return SyncStatus{kind: Synced, tag: v}
}

// NewLocallyModified returns the status of an item edited locally since it
// last matched remote version v.
func NewLocallyModified(v VersionTag) SyncStatus {
	return SyncStatus{kind: LocallyModified, tag: v}
}

// NewLocallyDeleted returns the status of a local tombstone for an item whose
// remote version was v at the time of deletion.
func NewLocallyDeleted(v VersionTag) SyncStatus {
	return SyncStatus{kind: LocallyDeleted, tag: v}
}

// Kind reports which of the four variants this status holds.
func (s SyncStatus) Kind() SyncStatusKind {
	return s.kind
}

// Tag returns the embedded VersionTag and true, or ("", false) for
// NotSynced, which carries no tag.
func (s SyncStatus) Tag() (VersionTag, bool) {
	if s.kind == NotSynced {
		return "", false
	}
	return s.tag, true
}

// WithModification returns the status an item transitions to when the user
// edits it locally. Synced(v) becomes LocallyModified(v); LocallyModified
// and LocallyDeleted are unaffected by a further edit (LocallyDeleted is
// only reachable through deletion, never through an edit on a deleted item);
// NotSynced stays NotSynced — it has no remote counterpart to diverge from.
func (s SyncStatus) WithModification() SyncStatus {
	if s.kind == Synced {
		return NewLocallyModified(s.tag)
	}
	return s
}

// WithDeletion returns the status, and whether a tombstone is required, that
// results from the user deleting an item currently at status s. An item that
// was NotSynced has no remote counterpart to reconcile, so it should be
// removed outright (tombstoneNeeded=false) instead of tombstoned.
func (s SyncStatus) WithDeletion() (status SyncStatus, tombstoneNeeded bool) {
	if s.kind == NotSynced {
		return SyncStatus{}, false
	}
	return NewLocallyDeleted(s.tag), true
}

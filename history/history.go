// Package history implements the versioned change ledger that backs
// undo/revert: an append-only log of change entries, each optionally
// referencing an immutable snapshot of the table as it stood right after
// the change.
//
// The ledger is strictly forward-moving. There is no cursor into the past:
// "current" is whatever the dataset store holds, and a revert is just a
// past snapshot re-installed by the caller and re-logged as a new entry.
// Old entries are never edited, removed, or invalidated (except by a full
// Clear), so every revert target stays valid forever and reverting is
// itself undoable.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/tidytable/tidytable/idgen"
	"github.com/tidytable/tidytable/table"
)

// ErrNotFound is returned when an entry or snapshot ID does not resolve.
var ErrNotFound = errors.New("history: not found")

// Entry is one immutable record in the ledger.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	// SnapshotID references the snapshot store; empty when the change was
	// logged without capturing state. Such entries are valid history but
	// permanently unrevertable.
	SnapshotID string `json:"snapshot_id,omitempty"`
}

// HasSnapshot reports whether the entry can serve as a revert target.
func (e Entry) HasSnapshot() bool { return e.SnapshotID != "" }

// Tracker is the history ledger plus its snapshot store.
type Tracker struct {
	mu        sync.RWMutex
	entries   []Entry
	snapshots *Snapshots
	newID     idgen.Generator
	now       func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithEntryIDGenerator sets a custom generator for entry IDs.
func WithEntryIDGenerator(gen idgen.Generator) TrackerOption {
	return func(t *Tracker) { t.newID = gen }
}

// WithClock sets the timestamp source (tests use a fake clock).
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates an empty Tracker with its own snapshot store.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		snapshots: NewSnapshots(nil),
		newID:     idgen.Prefixed("chg_", idgen.Default),
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// LogChange appends a new entry and returns its ID. When snapshot is
// non-nil, an independent copy is stored first and the entry references
// it. A nil snapshot is not an error: recording that something happened
// matters more than always having a rollback point, so the entry is
// simply appended without one.
func (t *Tracker) LogChange(action, description string, snapshot *table.Table) string {
	var snapID string
	if snapshot != nil {
		snapID = t.snapshots.Put(snapshot)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := Entry{
		ID:          t.newID(),
		Timestamp:   t.now(),
		Action:      action,
		Description: description,
		SnapshotID:  snapID,
	}
	t.entries = append(t.entries, e)
	return e.ID
}

// History returns all entries in append order, oldest first. Callers
// wanting newest-first reverse the copy themselves; presentation order is
// not a ledger concern.
func (t *Tracker) History() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of ledger entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// RevertTo resolves the entry's snapshot and returns an independent copy
// of it. It does not install the table or touch the ledger: the caller
// commits the returned table and logs the revert as a new entry, which
// keeps reverts pure here and undoable there.
//
// Returns ErrNotFound when the ID does not match any entry or the entry
// carries no snapshot. The ledger is small relative to table size, so a
// linear scan is the right tradeoff.
func (t *Tracker) RevertTo(entryID string) (*table.Table, error) {
	t.mu.RLock()
	var target *Entry
	for i := range t.entries {
		if t.entries[i].ID == entryID {
			target = &t.entries[i]
			break
		}
	}
	t.mu.RUnlock()

	if target == nil || !target.HasSnapshot() {
		return nil, ErrNotFound
	}
	return t.snapshots.Get(target.SnapshotID)
}

// Snapshot returns a fresh copy of a snapshot by its own ID.
func (t *Tracker) Snapshot(snapshotID string) (*table.Table, error) {
	return t.snapshots.Get(snapshotID)
}

// Clear drops all entries and all snapshots together.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
	t.snapshots.Clear()
}

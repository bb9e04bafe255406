package history

import (
	"sync"

	"github.com/tidytable/tidytable/idgen"
	"github.com/tidytable/tidytable/table"
)

// Snapshots is a content store mapping opaque snapshot IDs to immutable
// point-in-time copies of a table. It owns the memory lifecycle of
// snapshots: they exist from Put until Clear, and nothing else can reach
// the stored copies.
//
// The aliasing contract is absolute: Put stores its own deep copy, Get
// hands out a fresh deep copy. A caller mutating what it passed in or got
// back can never alter history. Full value copies are deliberately
// preferred over structural sharing; the store is small relative to its
// correctness burden.
type Snapshots struct {
	mu    sync.RWMutex
	byID  map[string]*table.Table
	newID idgen.Generator
}

// NewSnapshots creates an empty snapshot store.
func NewSnapshots(gen idgen.Generator) *Snapshots {
	if gen == nil {
		gen = idgen.Prefixed("snap_", idgen.Default)
	}
	return &Snapshots{
		byID:  make(map[string]*table.Table),
		newID: gen,
	}
}

// Put stores an independent deep copy of t and returns its fresh ID.
func (s *Snapshots) Put(t *table.Table) string {
	clone := t.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.byID[id] = clone
	return id
}

// Get returns a fresh independent copy of the stored snapshot, or
// ErrNotFound when the ID does not resolve.
func (s *Snapshots) Get(id string) (*table.Table, error) {
	s.mu.RLock()
	stored, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return stored.Clone(), nil
}

// Len reports how many snapshots are held.
func (s *Snapshots) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Clear discards all snapshots.
func (s *Snapshots) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*table.Table)
}

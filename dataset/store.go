// Package dataset holds the single current table being edited. It is an
// explicit context object owned by the serving layer and handed to every
// operation, not process-global state.
package dataset

import (
	"errors"
	"sync"

	"github.com/tidytable/tidytable/table"
)

// ErrNoTable is returned when an operation runs before any table is loaded.
var ErrNoTable = errors.New("dataset: no table loaded")

// Store holds exactly one current table and its name. Install replaces it
// atomically; Current hands out an independent copy so callers can compute
// freely before committing a new value back.
type Store struct {
	mu      sync.RWMutex
	current *table.Table
	name    string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns an independent copy of the current table, or ErrNoTable.
func (s *Store) Current() (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoTable
	}
	return s.current.Clone(), nil
}

// Install atomically replaces the current table. The store keeps its own
// copy; later caller mutations of t are invisible.
func (s *Store) Install(t *table.Table) {
	clone := t.Clone()
	s.mu.Lock()
	s.current = clone
	s.mu.Unlock()
}

// Loaded reports whether a table is present.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Shape returns (rows, cols); zeros when nothing is loaded.
func (s *Store) Shape() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return 0, 0
	}
	return s.current.NumRows(), s.current.NumCols()
}

// Name returns the dataset name (usually the uploaded filename).
func (s *Store) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName records the dataset name.
func (s *Store) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Reset drops the current table and name.
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = nil
	s.name = ""
	s.mu.Unlock()
}

// Package idgen mints the identifiers used across the service: history
// entries, snapshots, and audit events all carry prefixed, time-sortable
// IDs ("chg_…", "snap_…", "aud_…"). Stores take a Generator so the
// strategy is injected, not hard-wired.
package idgen

import (
	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 generates RFC 9562 UUID v7 strings. Their leading timestamp
// bits make lexicographic order follow creation order, which keeps
// ledger and audit IDs scannable.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed type tag to every ID from gen, so an ID read
// out of a log or a ledger names its own kind.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the process-wide strategy: UUIDv7.
var Default Generator = UUIDv7()

// New produces one ID with the Default generator.
func New() string {
	return Default()
}

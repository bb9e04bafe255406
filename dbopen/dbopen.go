// Package dbopen opens SQLite databases tuned for a single-process
// service: WAL journaling, a busy timeout, and foreign keys on. Pragmas
// are applied with plain EXEC statements so any database/sql SQLite
// driver works.
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("db/audit.db", dbopen.WithMkdirAll())
//
// Tests use OpenMemory, which pins the pool to one connection so every
// query sees the same in-memory database.
package dbopen

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const (
	defaultDriver      = "sqlite"
	defaultBusyTimeout = 10_000 // ms
	defaultSynchronous = "NORMAL"
)

type settings struct {
	driver      string
	busyTimeout int
	synchronous string
	foreignKeys bool
	mkdirAll    bool
	schemas     []string
	ping        bool
}

// Option customises Open behaviour.
type Option func(*settings)

// WithDriver sets the database/sql driver name. Default: "sqlite".
func WithDriver(name string) Option { return func(s *settings) { s.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(s *settings) { s.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(s *settings) { s.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(s *settings) { s.mkdirAll = true } }

// WithSchema queues inline SQL to execute after the pragmas.
func WithSchema(sqlText string) Option {
	return func(s *settings) { s.schemas = append(s.schemas, sqlText) }
}

// WithoutPing skips the db.Ping() verification after opening.
func WithoutPing() Option { return func(s *settings) { s.ping = false } }

// WithoutForeignKeys disables PRAGMA foreign_keys (rarely needed).
func WithoutForeignKeys() Option { return func(s *settings) { s.foreignKeys = false } }

// Open opens the SQLite database at path, applies the pragmas, runs any
// queued schema SQL, and verifies the connection. A driver must be
// blank-imported by the caller.
func Open(path string, opts ...Option) (*sql.DB, error) {
	s := settings{
		driver:      defaultDriver,
		busyTimeout: defaultBusyTimeout,
		synchronous: defaultSynchronous,
		foreignKeys: true,
		ping:        true,
	}
	for _, o := range opts {
		o(&s)
	}

	if s.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open(s.driver, path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := setup(db, &s); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens an in-memory database for a test and closes it via
// t.Cleanup. Each connection to ":memory:" gets its own database, so the
// pool is limited to one connection.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func setup(db *sql.DB, s *settings) error {
	fk := "ON"
	if !s.foreignKeys {
		fk = "OFF"
	}
	for _, stmt := range []string{
		"PRAGMA foreign_keys = " + fk,
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout),
		"PRAGMA synchronous = " + s.synchronous,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("dbopen: %s: %w", stmt, err)
		}
	}

	for _, schema := range s.schemas {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if s.ping {
		if err := db.Ping(); err != nil {
			return fmt.Errorf("dbopen: ping: %w", err)
		}
	}
	return nil
}

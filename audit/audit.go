// Package audit records every dataset-mutating operation in a SQLite
// event log: which action ran, over which transport, with what
// parameters, and whether it succeeded. The log is observability only;
// nothing in the serving path reads it back.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidytable/tidytable/dbopen"
	"github.com/tidytable/tidytable/idgen"
	"github.com/tidytable/tidytable/kit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    action        TEXT NOT NULL,
    user_id       TEXT NOT NULL DEFAULT '',
    transport     TEXT NOT NULL DEFAULT 'http',
    request_id    TEXT NOT NULL DEFAULT '',
    session_id    TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'success',
    error_message TEXT NOT NULL DEFAULT '',
    parameters    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
`

// Entry is one audit event. Zero fields are filled with defaults at log
// time: EntryID from the id generator, Timestamp from the clock, Status
// derived from Error, Transport defaulting to "http".
type Entry struct {
	EntryID    string
	Timestamp  int64 // unix seconds
	Action     string
	UserID     string
	Transport  string
	RequestID  string
	SessionID  string
	Status     string
	Error      string
	Parameters string // JSON-encoded operation parameters
}

// batchSize is the async buffer threshold that triggers a flush.
const batchSize = 32

// SQLiteLogger writes audit entries to an audit_log table, synchronously
// via Log or buffered via LogAsync.
type SQLiteLogger struct {
	db    *sql.DB
	newID idgen.Generator

	mu     sync.Mutex
	buf    []*Entry
	flushC chan struct{}
	doneC  chan struct{}
	once   sync.Once
}

// Option customises the logger.
type Option func(*SQLiteLogger)

// WithIDGenerator overrides the entry id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// NewSQLiteLogger wraps db. Call Init once before logging, and Close to
// flush buffered async entries.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:     db,
		newID:  idgen.Prefixed("aud_", idgen.Default),
		flushC: make(chan struct{}, 1),
		doneC:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.flushLoop()
	return l
}

// Init creates the audit_log table and indexes.
func (l *SQLiteLogger) Init() error {
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Log writes one entry synchronously, filling defaults in place.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	_, err := dbopen.Exec(ctx,
		l.db,
		`INSERT INTO audit_log
		 (entry_id, timestamp, action, user_id, transport, request_id, session_id, status, error_message, parameters)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.Timestamp, e.Action, e.UserID, e.Transport, e.RequestID, e.SessionID, e.Status, e.Error, e.Parameters)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// LogAsync buffers an entry for batched insertion. Entries are flushed
// when the buffer reaches batchSize and on Close. Failures are logged
// and dropped; audit writes never fail a request.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	l.mu.Lock()
	l.buf = append(l.buf, e)
	full := len(l.buf) >= batchSize
	l.mu.Unlock()
	if full {
		select {
		case l.flushC <- struct{}{}:
		default:
		}
	}
}

// Close flushes buffered entries and stops the background flusher. The
// database handle is not closed; it belongs to the caller.
func (l *SQLiteLogger) Close() error {
	l.once.Do(func() { close(l.doneC) })
	l.flush()
	return nil
}

func (l *SQLiteLogger) flushLoop() {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-l.doneC:
			return
		case <-l.flushC:
			l.flush()
		case <-tick.C:
			l.flush()
		}
	}
}

func (l *SQLiteLogger) flush() {
	l.mu.Lock()
	batch := l.buf
	l.buf = nil
	l.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO audit_log
			 (entry_id, timestamp, action, user_id, transport, request_id, session_id, status, error_message, parameters)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range batch {
			if _, err := stmt.Exec(e.EntryID, e.Timestamp, e.Action, e.UserID, e.Transport,
				e.RequestID, e.SessionID, e.Status, e.Error, e.Parameters); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("audit: batch flush failed", "count", len(batch), "error", err)
	}
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

// Middleware wraps an endpoint so every invocation is audited with the
// given action name. Identity and transport are read from the kit
// context; parameters are the JSON encoding of the request. Entries are
// written asynchronously.
func Middleware(logger *SQLiteLogger, action string) func(kit.Endpoint) kit.Endpoint {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)

			e := &Entry{
				Action:    action,
				UserID:    kit.GetUserID(ctx),
				Transport: kit.GetTransport(ctx),
				RequestID: kit.GetRequestID(ctx),
				SessionID: kit.GetSessionID(ctx),
			}
			if err != nil {
				e.Error = err.Error()
			}
			if req != nil {
				if params, jerr := json.Marshal(req); jerr == nil {
					e.Parameters = string(params)
				}
			}
			logger.LogAsync(e)

			return resp, err
		}
	}
}

package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// busyAttempts is how many times a BUSY statement is tried before the
// error is returned. Backoff between attempts grows linearly.
const busyAttempts = 3

func backoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 100 * time.Millisecond
}

// IsBusy reports whether err indicates an SQLite BUSY condition. The
// check is textual: driver error types differ, the messages do not.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"SQLITE_BUSY",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RunTx runs fn inside a transaction. The whole transaction is retried
// with backoff while SQLite reports BUSY; any other error, and any error
// from fn, returns immediately.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		if err = inTx(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if werr := wait(ctx, backoff(attempt)); werr != nil {
			return fmt.Errorf("dbopen: retry interrupted: %w", werr)
		}
	}
	return err
}

// Exec runs a single statement with the same BUSY retry policy as RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	var err error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		if res, err = db.ExecContext(ctx, query, args...); err == nil || !IsBusy(err) {
			return res, err
		}
		if werr := wait(ctx, backoff(attempt)); werr != nil {
			return nil, fmt.Errorf("dbopen: retry interrupted: %w", werr)
		}
	}
	return nil, err
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

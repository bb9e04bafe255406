package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tidytable/tidytable/dbopen"
	"github.com/tidytable/tidytable/kit"
)

// newTestLogger returns an initialized logger over an in-memory database.
// The caller is responsible for Close when the test needs to observe the
// flush; otherwise Close is deferred here.
func newTestLogger(t *testing.T, opts ...Option) (*SQLiteLogger, *sql.DB) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	logger := NewSQLiteLogger(db, opts...)
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}
	return logger, db
}

func countRows(t *testing.T, db *sql.DB, action string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM audit_log WHERE action = ?", action).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestInit_CreatesSchema(t *testing.T) {
	logger, db := newTestLogger(t)
	defer logger.Close()

	var n int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='audit_log'").Scan(&n)
	if n != 1 {
		t.Fatal("audit_log table missing")
	}
}

func TestLog_FillsDefaultsAndPersists(t *testing.T) {
	logger, db := newTestLogger(t)
	defer logger.Close()

	e := &Entry{Action: "clean_missing", Parameters: `{"method":"fill_mean"}`}
	if err := logger.Log(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	switch {
	case e.EntryID == "":
		t.Error("no entry id minted")
	case e.Timestamp == 0:
		t.Error("no timestamp set")
	case e.Status != "success":
		t.Errorf("status = %q", e.Status)
	case e.Transport != "http":
		t.Errorf("transport = %q", e.Transport)
	}

	if countRows(t, db, "clean_missing") != 1 {
		t.Fatal("entry not persisted")
	}
}

func TestLog_ErrorEntriesMarkedFailed(t *testing.T) {
	logger, _ := newTestLogger(t)
	defer logger.Close()

	e := &Entry{Action: "transform_pivot", Error: "unknown column"}
	if err := logger.Log(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if e.Status != "error" {
		t.Fatalf("status = %q, want error", e.Status)
	}
}

func TestLogAsync_FlushedOnClose(t *testing.T) {
	logger, db := newTestLogger(t)

	logger.LogAsync(&Entry{Action: "history_revert"})
	logger.Close()

	if countRows(t, db, "history_revert") != 1 {
		t.Fatal("buffered entry lost")
	}
}

func TestLogAsync_BatchThreshold(t *testing.T) {
	// WHAT: Exceeding the batch size triggers flushes before Close; every
	// entry still ends up persisted exactly once.
	logger, db := newTestLogger(t)

	const total = 50
	for i := 0; i < total; i++ {
		logger.LogAsync(&Entry{Action: "export"})
	}
	time.Sleep(100 * time.Millisecond)
	logger.Close()

	if got := countRows(t, db, "export"); got != total {
		t.Fatalf("persisted %d of %d entries", got, total)
	}
}

func TestWithIDGenerator(t *testing.T) {
	logger, _ := newTestLogger(t, WithIDGenerator(func() string { return "aud_fixed" }))
	defer logger.Close()

	e := &Entry{Action: "upload"}
	logger.Log(context.Background(), e)
	if e.EntryID != "aud_fixed" {
		t.Fatalf("EntryID = %q", e.EntryID)
	}
}

func TestMiddleware_RecordsCallContext(t *testing.T) {
	logger, db := newTestLogger(t)

	ep := Middleware(logger, "clean_dedupe")(func(context.Context, any) (any, error) {
		return "done", nil
	})

	ctx := kit.WithUserID(context.Background(), "usr_1")
	ctx = kit.WithTransport(ctx, "mcp")
	ctx = kit.WithRequestID(ctx, "req_abc")
	ctx = kit.WithSessionID(ctx, "ses_9")

	resp, err := ep(ctx, map[string]string{"columns": "all"})
	if err != nil || resp != "done" {
		t.Fatalf("endpoint: %v / %v", resp, err)
	}
	logger.Close()

	var userID, transport, sessionID, status string
	if err := db.QueryRow(
		"SELECT user_id, transport, session_id, status FROM audit_log WHERE action='clean_dedupe'").
		Scan(&userID, &transport, &sessionID, &status); err != nil {
		t.Fatal(err)
	}
	if userID != "usr_1" || transport != "mcp" || sessionID != "ses_9" || status != "success" {
		t.Fatalf("row: user=%q transport=%q session=%q status=%q", userID, transport, sessionID, status)
	}
}

func TestMiddleware_RecordsFailures(t *testing.T) {
	logger, db := newTestLogger(t)

	boom := errors.New("no dataset loaded")
	ep := Middleware(logger, "profile")(func(context.Context, any) (any, error) {
		return nil, boom
	})

	if _, err := ep(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}
	logger.Close()

	var status, msg string
	if err := db.QueryRow(
		"SELECT status, error_message FROM audit_log WHERE action='profile'").
		Scan(&status, &msg); err != nil {
		t.Fatal(err)
	}
	if status != "error" || msg != "no dataset loaded" {
		t.Fatalf("row: status=%q message=%q", status, msg)
	}
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retroturtle/pkg/logger"
)

// Run is one journaled program execution.
type Run struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	Program   string        `json:"program"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	ErrorLine int           `json:"errorLine,omitempty"`
	Steps     int           `json:"steps"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ErrUnknownSession is returned when a run references a session that was
// never touched.
var ErrUnknownSession = errors.New("unknown session")

// Journal records sessions and runs. A nil *Journal is valid and records
// nothing, so hosts can run without a database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// NewJournal wraps an open database whose tables already exist.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Open initialises the database at path and returns a journal on it.
func Open(path string) (*Journal, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	if err := CreateTables(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info(logger.AreaDatabase, "journal opened at %s", path)
	return NewJournal(db), nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// TouchSession creates the session row or refreshes its last-seen time.
func (j *Journal) TouchSession(ctx context.Context, sessionID, ip string) error {
	if j == nil {
		return nil
	}
	now := j.now().Unix()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, ip_address, created_at, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen, ip_address = excluded.ip_address
	`, sessionID, ip, now, now)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}
	return nil
}

// RecordRun stores r, filling in ID and CreatedAt when empty.
func (j *Journal) RecordRun(ctx context.Context, r *Run) error {
	if j == nil {
		return nil
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = j.now()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET run_count = run_count + 1, last_seen = ? WHERE id = ?`,
		r.CreatedAt.Unix(), r.SessionID)
	if err != nil {
		return fmt.Errorf("update session %s: %w", r.SessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record run: %w", ErrUnknownSession)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, session_id, program, ok, error, error_line, steps, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.SessionID, r.Program, boolToInt(r.OK), r.Error, r.ErrorLine, r.Steps,
		r.Duration.Microseconds(), r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs of a session, newest first.
func (j *Journal) RecentRuns(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session_id, program, ok, COALESCE(error, ''), error_line, steps, duration_us, created_at
		FROM runs WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			ok         int
			durationUS int64
			created    int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Program, &ok, &r.Error, &r.ErrorLine, &r.Steps, &durationUS, &created); err != nil {
			return nil, err
		}
		r.OK = ok != 0
		r.Duration = time.Duration(durationUS) * time.Microsecond
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunCount returns the number of runs recorded for a session.
func (j *Journal) RunCount(ctx context.Context, sessionID string) (int, error) {
	if j == nil {
		return 0, nil
	}
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT run_count FROM sessions WHERE id = ?`, sessionID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownSession
	}
	return n, err
}

// PurgeBefore deletes runs created before t and sessions not seen since.
// It returns the number of deleted runs.
func (j *Journal) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	if j == nil {
		return 0, nil
	}
	res, err := j.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	n, _ := res.RowsAffected()

	if _, err := j.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE last_seen < ? AND id NOT IN (SELECT DISTINCT session_id FROM runs)
	`, t.Unix()); err != nil {
		return n, fmt.Errorf("purge sessions: %w", err)
	}

	if n > 0 {
		logger.Info(logger.AreaDatabase, "purged %d journal entries older than %s", n, t.Format(time.RFC3339))
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package storage persists finished sessions: the summary row, the state
// snapshot, and the event log, queryable by session id.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/randalmurphal/pilot/internal/errors"
	"github.com/randalmurphal/pilot/internal/storage/driver"
)

//go:embed schema
var schemaFS embed.FS

// Run is one stored session.
type Run struct {
	SessionID      string
	Request        string
	Success        bool
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	TotalSteps     int
	Duration       time.Duration
	// Snapshot is the exported session state as JSON.
	Snapshot []byte
	// Events is the session's event log as JSON.
	Events    []byte
	CreatedAt time.Time
}

// Store is the session store over one database.
type Store struct {
	drv driver.Driver
}

// Open opens a store for the given dialect and DSN, creating the SQLite
// parent directory and applying pending migrations.
func Open(dialect, dsn string) (*Store, error) {
	d, err := driver.ParseDialect(dialect)
	if err != nil {
		return nil, err
	}
	if d == driver.DialectSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	drv, err := driver.New(d)
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	if err := drv.Migrate(context.Background(), schemaFS); err != nil {
		_ = drv.Close()
		return nil, err
	}
	return &Store{drv: drv}, nil
}

// OpenInMemory opens an isolated in-memory SQLite store, mainly for tests.
func OpenInMemory() (*Store, error) {
	return Open("sqlite", ":memory:")
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// SaveRun inserts or replaces a finished run.
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	if r.SessionID == "" {
		return fmt.Errorf("save run: empty session id")
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	events := r.Events
	if len(events) == 0 {
		events = []byte("[]")
	}

	query := fmt.Sprintf(`
		INSERT INTO runs (session_id, request, success, total_tasks, completed_tasks,
			failed_tasks, total_steps, duration_ms, snapshot, events, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		ON CONFLICT (session_id) DO UPDATE SET
			request = EXCLUDED.request,
			success = EXCLUDED.success,
			total_tasks = EXCLUDED.total_tasks,
			completed_tasks = EXCLUDED.completed_tasks,
			failed_tasks = EXCLUDED.failed_tasks,
			total_steps = EXCLUDED.total_steps,
			duration_ms = EXCLUDED.duration_ms,
			snapshot = EXCLUDED.snapshot,
			events = EXCLUDED.events`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6),
		s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11))

	_, err := s.drv.Exec(ctx, query,
		r.SessionID, r.Request, r.Success, r.TotalTasks, r.CompletedTasks,
		r.FailedTasks, r.TotalSteps, r.Duration.Milliseconds(),
		string(r.Snapshot), string(events), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.SessionID, err)
	}
	return nil
}

// GetRun fetches one run by session id, blobs included.
func (s *Store) GetRun(ctx context.Context, sessionID string) (*Run, error) {
	query := fmt.Sprintf(`
		SELECT session_id, request, success, total_tasks, completed_tasks,
			failed_tasks, total_steps, duration_ms, snapshot, events, created_at
		FROM runs WHERE session_id = %s`, s.ph(1))

	row := s.drv.QueryRow(ctx, query, sessionID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", sessionID, err)
	}
	return r, nil
}

// ListRuns returns the newest runs first, without snapshot and event blobs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT session_id, request, success, total_tasks, completed_tasks,
			failed_tasks, total_steps, duration_ms, created_at
		FROM runs ORDER BY created_at DESC LIMIT %s`, s.ph(1))

	rows, err := s.drv.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		var r Run
		var durationMs int64
		var createdAt string
		if err := rows.Scan(&r.SessionID, &r.Request, &r.Success,
			&r.TotalTasks, &r.CompletedTasks, &r.FailedTasks, &r.TotalSteps,
			&durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a stored run. Missing ids are not an error.
func (s *Store) DeleteRun(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM runs WHERE session_id = %s", s.ph(1))
	if _, err := s.drv.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("delete run %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) ph(i int) string {
	return s.drv.Placeholder(i)
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var durationMs int64
	var snapshot, events, createdAt string
	if err := row.Scan(&r.SessionID, &r.Request, &r.Success,
		&r.TotalTasks, &r.CompletedTasks, &r.FailedTasks, &r.TotalSteps,
		&durationMs, &snapshot, &events, &createdAt); err != nil {
		return nil, err
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.Snapshot = []byte(snapshot)
	r.Events = []byte(events)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &r, nil
}

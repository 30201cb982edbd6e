// Package store keeps a SQLite history of executed gesture actions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Schema for the activation history.
const schema = `
CREATE TABLE IF NOT EXISTS activations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL DEFAULT '',
    fired_at_ns INTEGER NOT NULL,
    action      TEXT NOT NULL,
    executor    TEXT NOT NULL,
    exit_code   INTEGER NOT NULL,
    duration_ns INTEGER NOT NULL,
    error       TEXT
);

CREATE INDEX IF NOT EXISTS idx_activations_fired ON activations(fired_at_ns);
`

// Activation is one executed action.
type Activation struct {
	ID       int64
	RunID    string // daemon run that fired the action
	FiredAt  time.Time
	Action   string
	Executor string
	ExitCode int
	Duration time.Duration
	Error    string
}

// OK reports whether the action succeeded.
func (a Activation) OK() bool {
	return a.Error == "" && a.ExitCode == 0
}

// Store represents the SQLite history database.
type Store struct {
	db  *sql.DB
	run string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetRun sets the run ID stamped on results passed to Record.
func (s *Store) SetRun(id string) {
	s.run = id
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert stores a and returns its ID.
func (s *Store) Insert(ctx context.Context, a Activation) (int64, error) {
	var errText sql.NullString
	if a.Error != "" {
		errText = sql.NullString{String: a.Error, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activations (run_id, fired_at_ns, action, executor, exit_code, duration_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.FiredAt.UnixNano(), a.Action, a.Executor, a.ExitCode, int64(a.Duration), errText,
	)
	if err != nil {
		return 0, fmt.Errorf("insert activation: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit activations, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Activation, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, fired_at_ns, action, executor, exit_code, duration_ns, error
		FROM activations
		ORDER BY fired_at_ns DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activations: %w", err)
	}
	defer rows.Close()

	var out []Activation
	for rows.Next() {
		var (
			a        Activation
			firedAt  int64
			duration int64
			errText  sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.RunID, &firedAt, &a.Action, &a.Executor, &a.ExitCode, &duration, &errText); err != nil {
			return nil, fmt.Errorf("scan activation: %w", err)
		}
		a.FiredAt = time.Unix(0, firedAt)
		a.Duration = time.Duration(duration)
		a.Error = errText.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns the number of stored activations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activations: %w", err)
	}
	return n, nil
}

// Prune deletes activations older than before and returns how many went.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activations WHERE fired_at_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune activations: %w", err)
	}
	return res.RowsAffected()
}

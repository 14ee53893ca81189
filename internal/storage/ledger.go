package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunCounts are the per-run summary counters.
type RunCounts struct {
	Found      int `json:"found"`
	Known      int `json:"already_known"`
	Added      int `json:"newly_added"`
	Downloaded int `json:"pdfs_downloaded"`
	Skipped    int `json:"pdfs_skipped"`
	Failed     int `json:"pdfs_failed"`
}

// Run is one recorded sync run.
type Run struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	Status     string    `json:"status"` // running, ok, failed
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Counts     RunCounts `json:"counts"`
}

// Attempt is one PDF download attempt within a run.
type Attempt struct {
	RunID    string    `json:"run_id"`
	TitleKey string    `json:"title_key"`
	Title    string    `json:"title"`
	Strategy string    `json:"strategy"`
	URL      string    `json:"url"`
	Outcome  string    `json:"outcome"` // downloaded, existing, rejected, skipped
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Ledger records run history in SQLite. It is an audit trail; the
// publication store stays the source of truth.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens or creates the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createLedgerSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func createLedgerSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			found INTEGER NOT NULL DEFAULT 0,
			known INTEGER NOT NULL DEFAULT 0,
			added INTEGER NOT NULL DEFAULT 0,
			downloaded INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			title_key TEXT NOT NULL,
			title TEXT NOT NULL,
			strategy TEXT NOT NULL,
			url TEXT,
			outcome TEXT NOT NULL,
			reason TEXT,
			at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
		CREATE INDEX IF NOT EXISTS idx_attempts_title ON attempts(title_key);
	`
	_, err := db.Exec(schema)
	return err
}

// StartRun inserts a run in the running state.
func (l *Ledger) StartRun(ctx context.Context, id, mode string, started time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, 'running', ?)`,
		id, mode, started.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// RecordAttempt appends one download attempt.
func (l *Ledger) RecordAttempt(ctx context.Context, a Attempt) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, title_key, title, strategy, url, outcome, reason, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.TitleKey, a.Title, a.Strategy, a.URL, a.Outcome, a.Reason, a.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
func (l *Ledger) FinishRun(ctx context.Context, id string, runErr error, c RunCounts, finished time.Time) error {
	status, msg := "ok", ""
	if runErr != nil {
		status, msg = "failed", runErr.Error()
	}
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?,
			found = ?, known = ?, added = ?, downloaded = ?, skipped = ?, failed = ?
		WHERE id = ?`,
		status, msg, finished.UnixMilli(),
		c.Found, c.Known, c.Added, c.Downloaded, c.Skipped, c.Failed, id)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, mode, status, COALESCE(error, ''), started_at, COALESCE(finished_at, 0),
			found, known, added, downloaded, skipped, failed
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Mode, &r.Status, &r.Error, &started, &finished,
			&r.Counts.Found, &r.Counts.Known, &r.Counts.Added,
			&r.Counts.Downloaded, &r.Counts.Skipped, &r.Counts.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished != 0 {
			r.FinishedAt = time.UnixMilli(finished)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Attempts returns the attempts of one run in the order they were made.
func (l *Ledger) Attempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, title_key, title, strategy, COALESCE(url, ''), outcome, COALESCE(reason, ''), at
		FROM attempts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var at int64
		if err := rows.Scan(&a.RunID, &a.TitleKey, &a.Title, &a.Strategy, &a.URL,
			&a.Outcome, &a.Reason, &at); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.At = time.UnixMilli(at)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

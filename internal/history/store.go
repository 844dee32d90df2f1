// Package history persists run reports to a SQLite database so past matrix
// runs can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/matrixci/internal/report"
)

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// RunRecord is one persisted run row.
type RunRecord struct {
	RunID        string
	Branch       string
	Started      time.Time
	Duration     time.Duration
	Outcome      string
	Published    bool
	PublishError string
}

// JobRecord is one persisted job row.
type JobRecord struct {
	RunID     string
	JobID     string
	OS        string
	Channel   string
	Outcome   string
	Tolerated bool
	Duration  time.Duration
	StepsJSON []byte // serialized pipeline.StepResult slice
}

// Open opens (or creates) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		branch TEXT NOT NULL,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		published INTEGER NOT NULL,
		publish_error TEXT
	);
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		os TEXT NOT NULL,
		channel TEXT NOT NULL,
		outcome TEXT NOT NULL,
		tolerated INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		steps BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_run_id ON jobs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun persists a finished run and its job results in one transaction.
func (s *Store) RecordRun(ctx context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, branch, started, duration_ms, outcome, published, publish_error) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.RunID, r.Branch, r.Started.Unix(), r.Duration.Milliseconds(), string(r.Outcome()), r.Published, r.PublishError,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, j := range r.Jobs {
		steps, err := json.Marshal(j.Steps)
		if err != nil {
			return fmt.Errorf("marshal steps: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO jobs (run_id, job_id, os, channel, outcome, tolerated, duration_ms, steps) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			r.RunID, j.Job.ID(), j.Job.OS, j.Job.Channel, string(j.Outcome), j.Tolerated, j.JobResult.Duration.Milliseconds(), steps,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, branch, started, duration_ms, outcome, published, publish_error FROM runs ORDER BY started DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started int64
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.Branch, &started, &durationMS, &rec.Outcome, &rec.Published, &rec.PublishError); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Started = time.Unix(started, 0)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Jobs returns the job results recorded for a run, in insertion order.
func (s *Store) Jobs(ctx context.Context, runID string) ([]JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, job_id, os, channel, outcome, tolerated, duration_ms, steps FROM jobs WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var rec JobRecord
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.JobID, &rec.OS, &rec.Channel, &rec.Outcome, &rec.Tolerated, &durationMS, &rec.StepsJSON); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

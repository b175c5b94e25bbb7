package runstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists runs in SQLite.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
}

// Open opens (or creates) the database file at path.
func Open(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, stderrors.New("history database path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewSQLiteStore wraps an open database and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, stderrors.New("db is nil")
	}
	if err := ensureRunSchema(db); err != nil {
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Record stores a run. Runs without an id get a fresh one.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	run, err := withID(run)
	if err != nil {
		return err
	}
	transcript, err := encodeTranscript(run.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (
			id, dataset, status, stage, code, error_text, charts, transcript_json, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Dataset,
		run.Status,
		run.Stage,
		run.Code,
		run.Error,
		strings.Join(run.Charts, "\n"),
		string(transcript),
		normalizeTime(run.StartedAt),
		normalizeTime(run.FinishedAt),
	)
	return err
}

// Get returns the run with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// List returns runs matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := selectRuns
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

const selectRuns = `
	SELECT id, dataset, status, stage, code, error_text, charts, transcript_json, started_at, finished_at
	FROM pipeline_runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			run        Run
			charts     string
			transcript string
			started    sql.NullTime
			finished   sql.NullTime
		)
		if err := rows.Scan(
			&run.ID,
			&run.Dataset,
			&run.Status,
			&run.Stage,
			&run.Code,
			&run.Error,
			&charts,
			&transcript,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if charts != "" {
			run.Charts = strings.Split(charts, "\n")
		}
		if entries, err := decodeTranscript(transcript); err == nil {
			run.Transcript = entries
		}
		if started.Valid {
			run.StartedAt = started.Time
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func ensureRunSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			dataset TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			charts TEXT NOT NULL DEFAULT '',
			transcript_json TEXT NOT NULL DEFAULT '[]',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
		CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs(started_at);
	`)
	return err
}

func normalizeTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

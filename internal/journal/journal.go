// Package journal keeps a queryable record of the searches and prior-art
// dossiers produced while the process runs. It lives in an in-memory SQLite
// database and is gone when the process exits.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	generation   INTEGER NOT NULL,
	query        TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	result_count INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dossiers (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	generation  INTEGER NOT NULL,
	entity_id   TEXT NOT NULL,
	fallback    INTEGER NOT NULL DEFAULT 0,
	chars       INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);
`

// Search outcomes.
const (
	OutcomeCompleted  = "completed"
	OutcomeEmpty      = "empty"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
)

type SearchRun struct {
	ID          int64     `db:"id" json:"id"`
	Generation  uint64    `db:"generation" json:"generation"`
	Query       string    `db:"query" json:"query"`
	Outcome     string    `db:"outcome" json:"outcome"`
	ResultCount int       `db:"result_count" json:"resultCount"`
	Error       string    `db:"error" json:"error,omitempty"`
	StartedAt   time.Time `db:"-" json:"startedAt"`
	FinishedAt  time.Time `db:"-" json:"finishedAt"`
}

type Dossier struct {
	ID         int64     `db:"id" json:"id"`
	Generation uint64    `db:"generation" json:"generation"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	Fallback   bool      `db:"fallback" json:"fallback"`
	Chars      int       `db:"chars" json:"chars"`
	CreatedAt  time.Time `db:"-" json:"createdAt"`
}

type Journal struct {
	db *sqlx.DB
}

// Open creates the in-memory database. One connection is kept so every
// query sees the same memory database.
func Open() (*Journal, error) {
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) RecordSearch(ctx context.Context, run SearchRun) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO searches (generation, query, outcome, result_count, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(run.Generation), run.Query, run.Outcome, run.ResultCount, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

func (j *Journal) RecordDossier(ctx context.Context, d Dossier) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO dossiers (generation, entity_id, fallback, chars, created_at) VALUES (?, ?, ?, ?, ?)`,
		int64(d.Generation), d.EntityID, d.Fallback, d.Chars, d.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record dossier: %w", err)
	}
	return nil
}

type searchRow struct {
	SearchRun
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
}

// Searches returns the most recent runs first.
func (j *Journal) Searches(ctx context.Context, limit int) ([]SearchRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []searchRow
	if err := j.db.SelectContext(ctx, &rows,
		`SELECT id, generation, query, outcome, result_count, error, started_at, finished_at
		 FROM searches ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	out := make([]SearchRun, len(rows))
	for i, r := range rows {
		run := r.SearchRun
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, r.StartedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, r.FinishedAt)
		out[i] = run
	}
	return out, nil
}

type dossierRow struct {
	Dossier
	CreatedAt string `db:"created_at"`
}

// Dossiers returns the most recent dossiers first.
func (j *Journal) Dossiers(ctx context.Context, limit int) ([]Dossier, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []dossierRow
	if err := j.db.SelectContext(ctx, &rows,
		`SELECT id, generation, entity_id, fallback, chars, created_at
		 FROM dossiers ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list dossiers: %w", err)
	}
	out := make([]Dossier, len(rows))
	for i, r := range rows {
		d := r.Dossier
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
		out[i] = d
	}
	return out, nil
}

// Package store persists digest runs and the per-paper enrichment
// cache in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scholarstream/arxiv-digest/internal/model"
)

// Run is one completed digest run.
type Run struct {
	ID         string          `json:"id"`
	RunDate    string          `json:"run_date"`
	PaperCount int             `json:"paper_count"`
	Summary    model.Bilingual `json:"summary"`
	HTML       string          `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SQLiteStore implements run and enrichment persistence on
// modernc.org/sqlite.
type SQLiteStore struct {
	db       *sql.DB
	cacheTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures
// WAL mode. cacheTTL bounds the lifetime of enrichment cache entries;
// zero selects the default of 7 days.
func NewSQLite(dsn string, cacheTTL time.Duration) (*SQLiteStore, error) {
	if cacheTTL <= 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, cacheTTL: cacheTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	run_date    TEXT NOT NULL,
	paper_count INTEGER NOT NULL,
	summary     TEXT NOT NULL,
	html        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enrichment_cache (
	paper_id   TEXT PRIMARY KEY,
	enrichment TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);
CREATE INDEX IF NOT EXISTS idx_enrichment_cache_expires_at ON enrichment_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun records a finished digest run.
func (s *SQLiteStore) CreateRun(ctx context.Context, runDate string, paperCount int, summary model.Bilingual, html string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal summary")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, run_date, paper_count, summary, html, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, runDate, paperCount, string(summaryJSON), html, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:         id,
		RunDate:    runDate,
		PaperCount: paperCount,
		Summary:    summary,
		HTML:       html,
		CreatedAt:  now,
	}, nil
}

// LatestRun returns the most recent run, or nil when none exist.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_date, paper_count, summary, html, created_at FROM runs
		 ORDER BY created_at DESC LIMIT 1`,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListRuns returns recent runs newest first, without their HTML bodies.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_date, paper_count, summary, '', created_at FROM runs
		 ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// GetEnrichment returns the cached enrichment for a paper, or nil when
// absent or expired.
func (s *SQLiteStore) GetEnrichment(ctx context.Context, paperID string) (*model.Enrichment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT enrichment FROM enrichment_cache
		 WHERE paper_id = ? AND expires_at > datetime('now')`,
		paperID,
	)

	var enrichmentJSON string
	err := row.Scan(&enrichmentJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get enrichment %s", paperID)
	}

	var e model.Enrichment
	if err := json.Unmarshal([]byte(enrichmentJSON), &e); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal enrichment")
	}
	return &e, nil
}

// PutEnrichment upserts the enrichment snapshot for a paper with the
// store's TTL.
func (s *SQLiteStore) PutEnrichment(ctx context.Context, paperID string, e model.Enrichment) error {
	now := time.Now().UTC()

	enrichmentJSON, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_cache (paper_id, enrichment, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(paper_id) DO UPDATE SET enrichment = excluded.enrichment,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		paperID, string(enrichmentJSON), now, now.Add(s.cacheTTL),
	)
	return eris.Wrapf(err, "sqlite: put enrichment %s", paperID)
}

// DeleteExpiredEnrichments removes stale cache entries and reports how
// many were dropped.
func (s *SQLiteStore) DeleteExpiredEnrichments(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired enrichments")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var summaryJSON string

	err := row.Scan(&r.ID, &r.RunDate, &r.PaperCount, &summaryJSON, &r.HTML, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	return &r, nil
}

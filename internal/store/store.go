package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"pulseboard/internal/core"
)

// Run statuses and enrichment sources recorded per theme.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"

	EnrichmentLLM       = "llm"
	EnrichmentRuleBased = "rule-based"
)

// Run is one theme's outcome within a generation run.
type Run struct {
	RunID        string
	Theme        string
	Date         string
	Status       string
	ArticleCount int
	ClusterCount int
	Enrichment   string
	Error        string
	FinishedAt   time.Time
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store records run history in SQLite or Postgres.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to dsn. postgres:// and postgresql:// URLs use Postgres,
// sqlite:// URLs and bare paths use a SQLite file.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty history DSN")
	}

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		d = dialectPostgres
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		d = dialectSQLite
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS theme_runs (
		` + idColumn + `,
		run_id TEXT NOT NULL,
		theme TEXT NOT NULL,
		run_date TEXT NOT NULL,
		status TEXT NOT NULL,
		article_count INTEGER NOT NULL DEFAULT 0,
		cluster_count INTEGER NOT NULL DEFAULT 0,
		enrichment TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		finished_at TEXT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_theme_runs_theme ON theme_runs (theme, finished_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordTheme stores one theme outcome.
func (s *Store) RecordTheme(ctx context.Context, r Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	query := s.rebind(`
	INSERT INTO theme_runs
	(run_id, theme, run_date, status, article_count, cluster_count, enrichment, error, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		r.RunID,
		r.Theme,
		r.Date,
		r.Status,
		r.ArticleCount,
		r.ClusterCount,
		r.Enrichment,
		r.Error,
		core.FormatTimestamp(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record run for %s: %w", r.Theme, err)
	}
	return nil
}

// Recent returns the newest runs first. An empty theme matches every theme.
func (s *Store) Recent(ctx context.Context, theme string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT run_id, theme, run_date, status, article_count, cluster_count, enrichment, error, finished_at
	FROM theme_runs`
	args := []any{}
	if theme != "" {
		query += ` WHERE theme = ?`
		args = append(args, theme)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var finished string
		if err := rows.Scan(&r.RunID, &r.Theme, &r.Date, &r.Status, &r.ArticleCount, &r.ClusterCount, &r.Enrichment, &r.Error, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if t, err := time.Parse(core.TimestampLayout, finished); err == nil {
			r.FinishedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunStats summarizes the stored history.
type RunStats struct {
	Total     int
	Succeeded int
	Failed    int
	LLM       int
}

// Stats counts stored runs by outcome.
func (s *Store) Stats(ctx context.Context) (RunStats, error) {
	var st RunStats
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN enrichment = 'llm' THEN 1 ELSE 0 END), 0)
	FROM theme_runs`
	if err := s.db.QueryRowContext(ctx, query).Scan(&st.Total, &st.Succeeded, &st.Failed, &st.LLM); err != nil {
		return st, fmt.Errorf("failed to get run stats: %w", err)
	}
	return st, nil
}

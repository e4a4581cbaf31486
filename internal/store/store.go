// Package store keeps finished session results in SQLite for the leaderboard.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"neonrange/server/internal/store/migrations"
)

// Run is one finished session.
type Run struct {
	SessionID string        `json:"session_id"`
	Subject   string        `json:"subject,omitempty"`
	Score     int           `json:"score"`
	Shots     int           `json:"shots"`
	Hits      int           `json:"hits"`
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// Accuracy returns hits per shot in [0, 1].
func (r Run) Accuracy() float64 {
	if r.Shots == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Shots)
}

// Store provides SQLite backed run history.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	//1.- A single writer connection avoids SQLITE_BUSY between session goroutines.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// SaveRun records a finished session. Saving the same session again replaces it.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if s == nil || s.db == nil {
		return nil
	}
	run.SessionID = strings.TrimSpace(run.SessionID)
	if run.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if run.Shots < 0 || run.Hits < 0 || run.Hits > run.Shots {
		return fmt.Errorf("invalid shot totals: %d hits from %d shots", run.Hits, run.Shots)
	}
	if run.EndedAt.IsZero() {
		run.EndedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (
	session_id,
	subject,
	score,
	shots,
	hits,
	duration_ms,
	started_at,
	ended_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.SessionID,
		strings.TrimSpace(run.Subject),
		run.Score,
		run.Shots,
		run.Hits,
		run.Duration.Milliseconds(),
		run.StartedAt.UTC().UnixMilli(),
		run.EndedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// TopRuns lists the best scores, earliest finisher first on ties.
func (s *Store) TopRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.list(ctx, "ORDER BY score DESC, ended_at ASC", limit)
}

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.list(ctx, "ORDER BY ended_at DESC, session_id ASC", limit)
}

func (s *Store) list(ctx context.Context, order string, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT
	session_id,
	subject,
	score,
	shots,
	hits,
	duration_ms,
	started_at,
	ended_at
FROM runs
`+order+`
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run                           Run
			durationMs, started, finished int64
		)
		if err := rows.Scan(&run.SessionID, &run.Subject, &run.Score, &run.Shots, &run.Hits, &durationMs, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.StartedAt = time.UnixMilli(started).UTC()
		run.EndedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/content-extractor/constants"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_progress (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id     TEXT    NOT NULL,
	percent    INTEGER NOT NULL,
	status     TEXT    NOT NULL,
	message    TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS extraction_progress_job_idx ON extraction_progress (job_id, id);
`

// SQLite stores markers in a local database file (modernc.org/sqlite, no cgo).
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates the database at dsn and applies the schema.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening progress store", "driver", "sqlite", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite progress store: %w", err)
		}
	}
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Mark(ctx context.Context, m Marker) error {
	if m.At.IsZero() {
		m.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_progress (job_id, percent, status, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.JobID, m.Percent, string(m.Status), m.Message, m.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return s.trim(ctx, m.JobID)
}

func (s *SQLite) trim(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM extraction_progress
		WHERE job_id = ? AND id NOT IN (
			SELECT id FROM extraction_progress WHERE job_id = ? ORDER BY id DESC LIMIT ?
		)`, jobID, jobID, constants.ProgressHistoryLimit)
	if err != nil {
		return fmt.Errorf("trim progress: %w", err)
	}
	return nil
}

func (s *SQLite) Latest(ctx context.Context, jobID string) (Marker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, percent, status, message, created_at
		FROM extraction_progress WHERE job_id = ? ORDER BY id DESC LIMIT 1`, jobID)
	m, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Marker{}, notFound(jobID)
	}
	return m, err
}

func (s *SQLite) History(ctx context.Context, jobID string) ([]Marker, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, percent, status, message, created_at
		FROM extraction_progress WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []Marker
	for rows.Next() {
		m, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scanner) (Marker, error) {
	var (
		m      Marker
		status string
		at     int64
	)
	if err := sc.Scan(&m.JobID, &m.Percent, &status, &m.Message, &at); err != nil {
		return Marker{}, err
	}
	m.Status = constants.JobStatus(status)
	m.At = time.UnixMilli(at)
	return m, nil
}

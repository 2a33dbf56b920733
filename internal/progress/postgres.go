package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS extraction_progress (
	id         BIGSERIAL PRIMARY KEY,
	job_id     TEXT        NOT NULL,
	percent    INTEGER     NOT NULL,
	status     TEXT        NOT NULL,
	message    TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS extraction_progress_job_idx ON extraction_progress (job_id, id);
`

// Postgres stores markers in a shared database through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates the pool from cfg, pings it and applies the schema.
func OpenPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "content-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 3 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := pool.Ping(dctx); err != nil {
		pool.Close()
		logger.Error("database ping failed", "error", err)
		return nil, err
	}
	if _, err := pool.Exec(dctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init postgres progress store: %w", err)
	}
	logger.Info("successfully connected to database")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Mark(ctx context.Context, m Marker) error {
	if m.At.IsZero() {
		m.At = time.Now()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO extraction_progress (job_id, percent, status, message, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.JobID, m.Percent, string(m.Status), m.Message, m.At,
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (p *Postgres) Latest(ctx context.Context, jobID string) (Marker, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT job_id, percent, status, message, created_at
		FROM extraction_progress WHERE job_id = $1 ORDER BY id DESC LIMIT 1`, jobID)
	m, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Marker{}, notFound(jobID)
	}
	return m, err
}

func (p *Postgres) History(ctx context.Context, jobID string) ([]Marker, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT job_id, percent, status, message, created_at
		FROM extraction_progress WHERE job_id = $1 ORDER BY id DESC LIMIT $2`, jobID, constants.ProgressHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var out []Marker
	for rows.Next() {
		m, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest-first from the query; callers expect chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Ping checks the pool with a bounded timeout.
func (p *Postgres) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.logger.Info("closing database connections")
	p.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (Marker, error) {
	var (
		m      Marker
		status string
	)
	if err := row.Scan(&m.JobID, &m.Percent, &status, &m.Message, &m.At); err != nil {
		return Marker{}, err
	}
	m.Status = constants.JobStatus(status)
	return m, nil
}

// Open selects Postgres when a DSN is configured, else SQLite.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if cfg.DSN != "" {
		return OpenPostgres(ctx, cfg, logger)
	}
	return OpenSQLite(ctx, cfg.SQLitePath, logger)
}

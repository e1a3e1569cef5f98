// Package journal persists one record per transfer in PostgreSQL so
// operators can see what moved, where, and whether it finished.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/chflat/internal/core"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS transfer_journal (
	id          UUID PRIMARY KEY,
	direction   TEXT        NOT NULL,
	source      TEXT        NOT NULL,
	target      TEXT        NOT NULL,
	rows        BIGINT      NOT NULL DEFAULT 0,
	status      TEXT        NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	request_id  TEXT        NOT NULL DEFAULT '',
	client_ip   TEXT        NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT      NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS transfer_journal_started_at_idx ON transfer_journal (started_at DESC);
`

const insertSQL = `
INSERT INTO transfer_journal
	(id, direction, source, target, rows, status, error, request_id, client_ip, started_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const recentSQL = `
SELECT id::text, direction, source, target, rows, status, error, request_id, client_ip, started_at, duration_ms
FROM transfer_journal
ORDER BY started_at DESC
LIMIT $1`

// dbtx is the subset of *pgxpool.Pool the journal uses.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Config holds connection pool settings.
type Config struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Journal implements core.TransferJournal.
type Journal struct {
	db dbtx
}

var _ core.TransferJournal = (*Journal)(nil)

// New wraps an existing pool or connection.
func New(db dbtx) *Journal {
	return &Journal{db: db}
}

// Open connects a pool, verifies it and creates the journal table. The
// returned func closes the pool.
func Open(ctx context.Context, cfg Config) (*Journal, func(), error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse journal database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect journal database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping journal database: %w", err)
	}

	j := New(pool)
	if err := j.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return j, pool.Close, nil
}

// EnsureSchema creates the journal table if it does not exist.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal table: %w", err)
	}
	return nil
}

// Record inserts rec.
func (j *Journal) Record(ctx context.Context, rec core.TransferRecord) error {
	_, err := j.db.Exec(ctx, insertSQL,
		rec.ID,
		string(rec.Direction),
		rec.Source,
		rec.Target,
		rec.Rows,
		string(rec.Status),
		rec.Error,
		rec.RequestID,
		rec.ClientIP,
		rec.StartedAt,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record transfer %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]core.TransferRecord, error) {
	rows, err := j.db.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}

	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan transfers: %w", err)
	}
	return recs, nil
}

func scanRecord(row pgx.CollectableRow) (core.TransferRecord, error) {
	var (
		rec               core.TransferRecord
		direction, status string
		durationMillis    int64
	)
	err := row.Scan(
		&rec.ID,
		&direction,
		&rec.Source,
		&rec.Target,
		&rec.Rows,
		&status,
		&rec.Error,
		&rec.RequestID,
		&rec.ClientIP,
		&rec.StartedAt,
		&durationMillis,
	)
	if err != nil {
		return core.TransferRecord{}, err
	}
	rec.Direction = core.Direction(direction)
	rec.Status = core.TransferStatus(status)
	rec.Duration = time.Duration(durationMillis) * time.Millisecond
	return rec, nil
}

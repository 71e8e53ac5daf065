package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flexifi/poolwatch/internal/config"
	"github.com/flexifi/poolwatch/internal/model"
)

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return pool, nil
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to Postgres.
func NewPostgres(ctx context.Context, cfg config.DBConfig) (*PostgresStore, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id          UUID PRIMARY KEY,
	watch       TEXT NOT NULL,
	block       BIGINT NOT NULL,
	raw         TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	ratio       DOUBLE PRECISION NOT NULL,
	observed_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_watch_observed ON readings (watch, observed_at DESC);
`

// Migrate creates tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

// InsertReadings inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (s *PostgresStore) InsertReadings(ctx context.Context, rows []model.Reading) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO readings (id, watch, block, raw, value, ratio, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.Watch, int64(r.Block), r.Raw, r.Value, r.Ratio, r.ObservedAt.UnixMicro())
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// ListReadings returns up to limit readings for watch, newest first.
func (s *PostgresStore) ListReadings(ctx context.Context, watch string, limit int) ([]model.Reading, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, watch, block, raw, value, ratio, observed_at
		FROM readings
		WHERE watch = $1
		ORDER BY observed_at DESC
		LIMIT $2
	`, watch, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		var (
			r          model.Reading
			block      int64
			observedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Watch, &block, &r.Raw, &r.Value, &r.Ratio, &observedAt); err != nil {
			return nil, err
		}
		r.Block = uint64(block)
		r.ObservedAt = time.UnixMicro(observedAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping verifies the connection is healthy.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

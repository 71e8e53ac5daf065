package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/flexifi/poolwatch/internal/model"
)

// SQLiteStore implements Store using SQLite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path.
// It creates the parent directory if it doesn't exist.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id          TEXT PRIMARY KEY,
	watch       TEXT NOT NULL,
	block       INTEGER NOT NULL,
	raw         TEXT NOT NULL,
	value       REAL NOT NULL,
	ratio       REAL NOT NULL,
	observed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_watch_observed ON readings(watch, observed_at);
`

// Migrate creates tables if they don't exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return err
}

// InsertReadings inserts rows in one transaction, skipping existing ids.
func (s *SQLiteStore) InsertReadings(ctx context.Context, rows []model.Reading) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO readings (id, watch, block, raw, value, ratio, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range rows {
		res, err := stmt.ExecContext(ctx, r.ID.String(), r.Watch, int64(r.Block), r.Raw, r.Value, r.Ratio, r.ObservedAt.UnixMicro())
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			conflicts++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return conflicts, nil
}

// ListReadings returns up to limit readings for watch, newest first.
func (s *SQLiteStore) ListReadings(ctx context.Context, watch string, limit int) ([]model.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, watch, block, raw, value, ratio, observed_at
		 FROM readings
		 WHERE watch = ?
		 ORDER BY observed_at DESC
		 LIMIT ?`,
		watch, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		var (
			r          model.Reading
			id         string
			block      int64
			observedAt int64
		)
		if err := rows.Scan(&id, &r.Watch, &block, &r.Raw, &r.Value, &r.Ratio, &observedAt); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse reading id %q: %w", id, err)
		}
		r.Block = uint64(block)
		r.ObservedAt = time.UnixMicro(observedAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

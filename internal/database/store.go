package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/flexifi/poolwatch/internal/config"
	"github.com/flexifi/poolwatch/internal/model"
)

// Store persists readings.
type Store interface {
	// Migrate creates tables if they don't exist.
	Migrate(ctx context.Context) error

	// InsertReadings stores rows, skipping ids that already exist.
	// It returns how many rows were skipped.
	InsertReadings(ctx context.Context, rows []model.Reading) (conflicts int, err error)

	// ListReadings returns up to limit readings for watch, newest first.
	ListReadings(ctx context.Context, watch string, limit int) ([]model.Reading, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrNoStorage is returned by Open when history is disabled.
var ErrNoStorage = errors.New("storage disabled")

// Open connects the store selected by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = NewPostgres(ctx, cfg.Postgres)
	case config.DriverSQLite:
		store, err = NewSQLite(cfg.SQLite.Path)
	case config.DriverNone, "":
		return nil, ErrNoStorage
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate %s: %w", cfg.Driver, err)
	}
	return store, nil
}

package config

import (
	"time"

	"github.com/flexifi/poolwatch/internal/metric"
)

// Default values for optional configuration fields.
const (
	DefaultChainPollInterval = 4 * time.Second
	DefaultChainTimeout      = 10 * time.Second
	DefaultNetwork           = "localhost"
	DefaultFunction          = "totalAssets"
	DefaultStorageDriver     = DriverNone
	DefaultSQLitePath        = "poolwatch.db"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 100
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 1000
	DefaultServerAddr        = ":8080"
	DefaultHistoryLimit      = 100
	DefaultMetricsPath       = "/metrics"
)

func (c *WatcherConfig) applyDefaults() {
	// Chain defaults
	if c.Chain.PollInterval == 0 {
		c.Chain.PollInterval = DefaultChainPollInterval
	}
	if c.Chain.Timeout == 0 {
		c.Chain.Timeout = DefaultChainTimeout
	}
	if c.Chain.Network == "" {
		c.Chain.Network = DefaultNetwork
	}

	// Watch defaults
	for i := range c.Watches {
		w := &c.Watches[i]
		if w.Name == "" && w.Contract != "" {
			w.Name = w.Contract
		}
		if w.Function == "" {
			w.Function = DefaultFunction
		}
		if w.MaxValue == 0 {
			w.MaxValue = metric.DefaultMaxValue
		}
		if w.DecodePolicy == "" {
			w.DecodePolicy = string(metric.CoerceZero)
		}
	}

	// Storage defaults
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = DefaultSQLitePath
	}
	applyDBDefaults(&c.Storage.Postgres)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.HistoryLimit == 0 {
		c.Server.HistoryLimit = DefaultHistoryLimit
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

package config

import (
	"time"

	"github.com/flexifi/poolwatch/internal/metric"
	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/poller"
)

// WatcherConfig is the root configuration for a watcher instance.
type WatcherConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Chain     ChainConfig     `yaml:"chain"`
	Watches   []WatchConfig   `yaml:"watches"`
	Storage   StorageConfig   `yaml:"storage"`
	Writers   WritersConfig   `yaml:"writers"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Portfolio model.Portfolio `yaml:"portfolio"`
}

// InstanceConfig identifies this watcher.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ChainConfig holds the JSON-RPC endpoint and contract lookup settings.
type ChainConfig struct {
	RPCURL         string        `yaml:"rpc_url"`
	PollInterval   time.Duration `yaml:"poll_interval"` // block polling for HTTP endpoints
	Timeout        time.Duration `yaml:"timeout"`       // per read
	DeploymentsDir string        `yaml:"deployments_dir"`
	Network        string        `yaml:"network"`
}

// WatchConfig describes one contract value to watch. Either Address or
// Contract (a hardhat-deploy deployment name) must be set.
type WatchConfig struct {
	Name         string  `yaml:"name"`
	Contract     string  `yaml:"contract"`
	Address      string  `yaml:"address"`
	Function     string  `yaml:"function"`
	MaxValue     float64 `yaml:"max_value"`
	Decimals     int32   `yaml:"decimals"`
	Watch        *bool   `yaml:"watch"`
	DecodePolicy string  `yaml:"decode_policy"`
}

// MetricConfig returns the derivation settings for w.
func (w WatchConfig) MetricConfig() metric.Config {
	return metric.Config{
		MaxValue:     w.MaxValue,
		Decimals:     w.Decimals,
		DecodePolicy: metric.DecodePolicy(w.DecodePolicy),
	}
}

// PollConfig returns the subscription settings for w.
func (w WatchConfig) PollConfig(timeout time.Duration) poller.PollConfig {
	return poller.PollConfig{
		Metric:      w.MetricConfig(),
		Watch:       w.Watch == nil || *w.Watch,
		ReadTimeout: timeout,
	}
}

// StorageConfig selects where reading history is kept.
type StorageConfig struct {
	Driver   string       `yaml:"driver"` // postgres, sqlite or none
	Postgres DBConfig     `yaml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SQLiteConfig holds the SQLite database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	HistoryLimit   int      `yaml:"history_limit"` // max rows per history request
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

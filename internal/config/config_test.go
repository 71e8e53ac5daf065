package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flexifi/poolwatch/internal/metric"
	"github.com/flexifi/poolwatch/internal/model"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
chain:
  rpc_url: http://127.0.0.1:8545
  deployments_dir: ./deployments
watches:
  - name: fundraising
    contract: BusinessPooling
    function: totalAssets
    max_value: 50
    decimals: 6
portfolio:
  holdings:
    - name: Joe's Bakery
      percentage: 40
  transactions:
    - time: "2024-05-01 10:00"
      amount: 250
      token: USDT
      link: https://etherscan.io/tx/0xabc
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-watcher" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-watcher")
	}
	if cfg.Chain.RPCURL != "http://127.0.0.1:8545" {
		t.Errorf("Chain.RPCURL = %q, want %q", cfg.Chain.RPCURL, "http://127.0.0.1:8545")
	}
	if len(cfg.Watches) != 1 {
		t.Fatalf("len(Watches) = %d, want 1", len(cfg.Watches))
	}
	w := cfg.Watches[0]
	if w.Contract != "BusinessPooling" || w.MaxValue != 50 || w.Decimals != 6 {
		t.Errorf("watch = %+v", w)
	}
	if len(cfg.Portfolio.Holdings) != 1 || cfg.Portfolio.Holdings[0].Percentage != 40 {
		t.Errorf("Portfolio.Holdings = %+v", cfg.Portfolio.Holdings)
	}
	if len(cfg.Portfolio.Transactions) != 1 || cfg.Portfolio.Transactions[0].Token != "USDT" {
		t.Errorf("Portfolio.Transactions = %+v", cfg.Portfolio.Transactions)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "wss://node.example/ws")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-watcher
chain:
  rpc_url: ${TEST_RPC_URL}
storage:
  driver: postgres
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Chain.RPCURL != "wss://node.example/ws" {
		t.Errorf("Chain.RPCURL = %q, want %q", cfg.Chain.RPCURL, "wss://node.example/ws")
	}
	if cfg.Storage.Postgres.Password != "secret123" {
		t.Errorf("Storage.Postgres.Password = %q, want %q", cfg.Storage.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-watcher
chain:
  rpc_url: http://127.0.0.1:8545
watches:
  - name: pool
    address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  - contract: BusinessPoolToken
    watch: false
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Chain.PollInterval != DefaultChainPollInterval {
		t.Errorf("Chain.PollInterval = %v, want default %v", cfg.Chain.PollInterval, DefaultChainPollInterval)
	}
	if cfg.Chain.Network != DefaultNetwork {
		t.Errorf("Chain.Network = %q, want default %q", cfg.Chain.Network, DefaultNetwork)
	}
	if cfg.Storage.Driver != DriverNone {
		t.Errorf("Storage.Driver = %q, want default %q", cfg.Storage.Driver, DriverNone)
	}
	if cfg.Storage.Postgres.Port != DefaultDBPort {
		t.Errorf("Storage.Postgres.Port = %d, want default %d", cfg.Storage.Postgres.Port, DefaultDBPort)
	}
	if cfg.Server.Addr != DefaultServerAddr {
		t.Errorf("Server.Addr = %q, want default %q", cfg.Server.Addr, DefaultServerAddr)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}

	pool := cfg.Watches[0]
	if pool.Function != DefaultFunction || pool.MaxValue != metric.DefaultMaxValue {
		t.Errorf("pool watch defaults = %+v", pool)
	}
	pc := pool.PollConfig(cfg.Chain.Timeout)
	if !pc.Watch || pc.ReadTimeout != DefaultChainTimeout || pc.Metric.DecodePolicy != metric.CoerceZero {
		t.Errorf("pool PollConfig = %+v", pc)
	}

	token := cfg.Watches[1]
	if token.Name != "BusinessPoolToken" {
		t.Errorf("Name = %q, want contract name", token.Name)
	}
	if token.PollConfig(0).Watch {
		t.Error("watch: false should disable watching")
	}
}

func validConfig() WatcherConfig {
	return WatcherConfig{
		Instance: InstanceConfig{ID: "test"},
		Chain:    ChainConfig{RPCURL: "http://127.0.0.1:8545", DeploymentsDir: "deployments"},
		Watches: []WatchConfig{
			{Name: "pool", Contract: "BusinessPooling", Function: "totalAssets", MaxValue: 100, DecodePolicy: "coerce_zero"},
		},
		Storage: StorageConfig{Driver: DriverNone},
		Writers: WritersConfig{
			BatchSize:     100,
			FlushInterval: time.Second,
			BufferSize:    1000,
		},
		Server:  ServerConfig{Addr: ":8080", HistoryLimit: 100},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *WatcherConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *WatcherConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing rpc url",
			mutate:  func(c *WatcherConfig) { c.Chain.RPCURL = "" },
			wantErr: "chain.rpc_url is required",
		},
		{
			name:    "no watches",
			mutate:  func(c *WatcherConfig) { c.Watches = nil },
			wantErr: "watches must list at least one watch",
		},
		{
			name:    "non-positive max value",
			mutate:  func(c *WatcherConfig) { c.Watches[0].MaxValue = 0 },
			wantErr: "watches[0].max_value must be > 0",
		},
		{
			name:    "negative decimals",
			mutate:  func(c *WatcherConfig) { c.Watches[0].Decimals = -1 },
			wantErr: "watches[0].decimals must be >= 0",
		},
		{
			name:    "bad address",
			mutate:  func(c *WatcherConfig) { c.Watches[0].Contract, c.Watches[0].Address = "", "0x123" },
			wantErr: `watches[0].address "0x123" is not a hex address`,
		},
		{
			name:    "contract without deployments dir",
			mutate:  func(c *WatcherConfig) { c.Chain.DeploymentsDir = "" },
			wantErr: "watches[0].contract requires chain.deployments_dir",
		},
		{
			name: "duplicate names",
			mutate: func(c *WatcherConfig) {
				c.Watches = append(c.Watches, c.Watches[0])
			},
			wantErr: `watches[1].name "pool" is duplicated`,
		},
		{
			name:    "unknown storage driver",
			mutate:  func(c *WatcherConfig) { c.Storage.Driver = "mysql" },
			wantErr: `storage.driver must be one of postgres, sqlite, none; got "mysql"`,
		},
		{
			name: "missing postgres password",
			mutate: func(c *WatcherConfig) {
				c.Storage.Driver = DriverPostgres
				c.Storage.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user"}
			},
			wantErr: "storage.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *WatcherConfig) {
				c.Storage.Driver = DriverPostgres
				c.Storage.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "storage.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "holding percentage out of range",
			mutate:  func(c *WatcherConfig) { c.Portfolio.Holdings = append(c.Portfolio.Holdings, model.Holding{Name: "x", Percentage: 120}) },
			wantErr: "portfolio.holdings[0].percentage must be between 0 and 100, got 120",
		},
		{
			name:    "valid config",
			mutate:  func(c *WatcherConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidate_DecodePolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Watches[0].DecodePolicy = "ignore"

	err := cfg.Validate()
	if err == nil || !strings.HasPrefix(err.Error(), "watches[0]: ") {
		t.Errorf("Validate() error = %v, want watches[0] prefix", err)
	}
}

func TestLoadAndValidate_Error(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: x\n")

	_, err := LoadAndValidate(path)
	if err == nil || !strings.Contains(err.Error(), "chain.rpc_url is required") {
		t.Errorf("LoadAndValidate error = %v", err)
	}
}

func TestLoadDeployerEnv(t *testing.T) {
	t.Setenv("DEPLOYER_PRIVATE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv("DEPLOYER_RECEIPT_TIMEOUT", "30s")

	cfg, err := LoadDeployerEnv()
	if err != nil {
		t.Fatalf("LoadDeployerEnv failed: %v", err)
	}
	if cfg.RPCURL != "http://127.0.0.1:8545" {
		t.Errorf("RPCURL = %q, want default", cfg.RPCURL)
	}
	if cfg.ReceiptTimeout != 30*time.Second {
		t.Errorf("ReceiptTimeout = %v, want 30s", cfg.ReceiptTimeout)
	}
	if cfg.Stablecoin != "0xdAC17F958D2ee523a2206206994597C13D831ec7" {
		t.Errorf("Stablecoin = %q, want USDT default", cfg.Stablecoin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	cfg.PrivateKeyPath = "/tmp/key"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when both key sources are set")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate checks that all required fields are set and values are valid.
func (c *WatcherConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	if c.Chain.PollInterval < 0 {
		return errors.New("chain.poll_interval must be >= 0")
	}
	if c.Chain.Timeout < 0 {
		return errors.New("chain.timeout must be >= 0")
	}

	if len(c.Watches) == 0 {
		return errors.New("watches must list at least one watch")
	}
	seen := make(map[string]bool, len(c.Watches))
	for i, w := range c.Watches {
		prefix := fmt.Sprintf("watches[%d]", i)
		if err := w.validate(prefix, c.Chain.DeploymentsDir); err != nil {
			return err
		}
		if seen[w.Name] {
			return fmt.Errorf("%s.name %q is duplicated", prefix, w.Name)
		}
		seen[w.Name] = true
	}

	switch c.Storage.Driver {
	case DriverNone:
	case DriverPostgres:
		if err := c.Storage.Postgres.validate("storage.postgres"); err != nil {
			return err
		}
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	default:
		return fmt.Errorf("storage.driver must be one of postgres, sqlite, none; got %q", c.Storage.Driver)
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.HistoryLimit < 1 {
		return errors.New("server.history_limit must be >= 1")
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	for i, h := range c.Portfolio.Holdings {
		if h.Percentage < 0 || h.Percentage > 100 {
			return fmt.Errorf("portfolio.holdings[%d].percentage must be between 0 and 100, got %v", i, h.Percentage)
		}
	}

	return nil
}

func (w WatchConfig) validate(prefix, deploymentsDir string) error {
	if w.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	switch {
	case w.Address == "" && w.Contract == "":
		return fmt.Errorf("%s needs an address or a contract", prefix)
	case w.Address != "" && w.Contract != "":
		return fmt.Errorf("%s sets both address and contract", prefix)
	case w.Address != "" && !common.IsHexAddress(w.Address):
		return fmt.Errorf("%s.address %q is not a hex address", prefix, w.Address)
	case w.Contract != "" && deploymentsDir == "":
		return fmt.Errorf("%s.contract requires chain.deployments_dir", prefix)
	}
	if w.MaxValue <= 0 {
		return fmt.Errorf("%s.max_value must be > 0", prefix)
	}
	if w.Decimals < 0 {
		return fmt.Errorf("%s.decimals must be >= 0", prefix)
	}
	if err := w.MetricConfig().Validate(); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

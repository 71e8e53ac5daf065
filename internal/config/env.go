package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

// DeployerConfig is read from the environment so the signing key never
// lands in a config file.
type DeployerConfig struct {
	RPCURL         string        `env:"DEPLOYER_RPC_URL" envDefault:"http://127.0.0.1:8545"`
	PrivateKey     string        `env:"DEPLOYER_PRIVATE_KEY"`
	PrivateKeyPath string        `env:"DEPLOYER_PRIVATE_KEY_PATH"`
	ArtifactsDir   string        `env:"DEPLOYER_ARTIFACTS_DIR" envDefault:"artifacts/contracts"`
	Stablecoin     string        `env:"DEPLOYER_STABLECOIN" envDefault:"0xdAC17F958D2ee523a2206206994597C13D831ec7"`
	ReceiptTimeout time.Duration `env:"DEPLOYER_RECEIPT_TIMEOUT" envDefault:"2m"`
}

// LoadDeployerEnv parses DeployerConfig from environment variables.
func LoadDeployerEnv() (DeployerConfig, error) {
	var cfg DeployerConfig
	if err := env.Parse(&cfg); err != nil {
		return DeployerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to sign and send transactions.
func (c DeployerConfig) Validate() error {
	if c.RPCURL == "" {
		return errors.New("DEPLOYER_RPC_URL is required")
	}
	if c.PrivateKey == "" && c.PrivateKeyPath == "" {
		return errors.New("DEPLOYER_PRIVATE_KEY or DEPLOYER_PRIVATE_KEY_PATH is required")
	}
	if c.PrivateKey != "" && c.PrivateKeyPath != "" {
		return errors.New("set only one of DEPLOYER_PRIVATE_KEY and DEPLOYER_PRIVATE_KEY_PATH")
	}
	if !common.IsHexAddress(c.Stablecoin) {
		return fmt.Errorf("DEPLOYER_STABLECOIN %q is not a hex address", c.Stablecoin)
	}
	if c.ReceiptTimeout <= 0 {
		return errors.New("DEPLOYER_RECEIPT_TIMEOUT must be > 0")
	}
	return nil
}

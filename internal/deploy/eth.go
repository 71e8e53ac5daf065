package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// ChainBackend is what EthDeployer needs from the node. *ethclient.Client
// satisfies it.
type ChainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// ArtifactLoader resolves a contract name to its compiled artifact.
type ArtifactLoader interface {
	Load(name string) (Artifact, error)
}

// EthDeployer sends contract creation transactions and waits for them to
// be mined.
type EthDeployer struct {
	backend        ChainBackend
	opts           *bind.TransactOpts
	artifacts      ArtifactLoader
	receiptTimeout time.Duration
	logger         *slog.Logger
}

// NewEthDeployer creates an EthDeployer signing with opts.
func NewEthDeployer(backend ChainBackend, opts *bind.TransactOpts, artifacts ArtifactLoader, receiptTimeout time.Duration, logger *slog.Logger) *EthDeployer {
	if logger == nil {
		logger = slog.Default()
	}
	if receiptTimeout <= 0 {
		receiptTimeout = 2 * time.Minute
	}
	return &EthDeployer{
		backend:        backend,
		opts:           opts,
		artifacts:      artifacts,
		receiptTimeout: receiptTimeout,
		logger:         logger,
	}
}

// Deploy sends the creation transaction for contract and blocks until it is
// mined or the receipt timeout passes.
func (d *EthDeployer) Deploy(ctx context.Context, contract string, args []string) (Result, error) {
	art, err := d.artifacts.Load(contract)
	if err != nil {
		return Result{}, err
	}

	params, err := ConvertArgs(art.ABI.Constructor.Inputs, args)
	if err != nil {
		return Result{}, fmt.Errorf("convert %s constructor args: %w", contract, err)
	}

	opts := *d.opts
	opts.Context = ctx

	addr, tx, _, err := bind.DeployContract(&opts, art.ABI, art.Bytecode, d.backend, params...)
	if err != nil {
		return Result{}, fmt.Errorf("send %s deployment: %w", contract, err)
	}
	d.logger.Debug("deployment sent", "contract", contract, "tx", tx.Hash().Hex(), "nonce", tx.Nonce())

	waitCtx, cancel := context.WithTimeout(ctx, d.receiptTimeout)
	defer cancel()

	mined, err := bind.WaitDeployed(waitCtx, d.backend, tx)
	if err != nil {
		return Result{}, fmt.Errorf("wait for %s deployment %s: %w", contract, tx.Hash().Hex(), err)
	}
	if mined != addr {
		d.logger.Warn("deployed address differs from prediction", "predicted", addr.Hex(), "mined", mined.Hex())
	}

	return Result{Address: mined, TxHash: tx.Hash()}, nil
}

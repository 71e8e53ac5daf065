package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/flexifi/poolwatch/internal/auth"
	"github.com/flexifi/poolwatch/internal/chain"
	"github.com/flexifi/poolwatch/internal/config"
	"github.com/flexifi/poolwatch/internal/deploy"
)

var (
	dryRun         bool
	network        string
	deploymentsDir string
	fromAddr       string
	startNonce     int64
)

// nodeClient is the node connection apply needs. *ethclient.Client
// satisfies it.
type nodeClient interface {
	deploy.ChainBackend
	Close()
}

var dialNode = func(ctx context.Context, url string) (nodeClient, error) {
	return ethclient.DialContext(ctx, url)
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run the plan against a node",
	Long: `Deploy every step of the plan in order, waiting for each receipt before
the next step. A failed step stops the run; earlier deployments are kept and
written to the deployments directory.

With --dry-run nothing is sent: the addresses each step would get are
predicted from the deployer account and nonce.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "predict addresses without sending transactions")
	applyCmd.Flags().StringVar(&network, "network", "", "deployments subdirectory (default: plan network or localhost)")
	applyCmd.Flags().StringVar(&deploymentsDir, "deployments", "deployments", "hardhat-deploy style output directory")
	applyCmd.Flags().StringVar(&fromAddr, "from", "", "dry run: deployer address (default: address of the configured key)")
	applyCmd.Flags().Int64Var(&startNonce, "nonce", -1, "dry run: starting nonce (default: pending nonce from the node)")
}

func runApply(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := config.LoadDeployerEnv()
	if err != nil {
		return err
	}

	plan, err := loadPlan(env.Stablecoin)
	if err != nil {
		return err
	}
	net := network
	if net == "" {
		net = plan.Network
	}
	if net == "" {
		net = "localhost"
	}

	var deployer deploy.Deployer
	var artifacts deploy.ArtifactStore
	if dryRun {
		deployer, err = dryRunDeployer(ctx, env)
	} else {
		var client nodeClient
		deployer, artifacts, client, err = ethDeployer(ctx, env)
		if client != nil {
			defer client.Close()
		}
	}
	if err != nil {
		return err
	}

	out, applyErr := deploy.NewExecutor(deployer, logger).Apply(ctx, plan)
	if out != nil {
		printResults(cmd.OutOrStdout(), out, dryRun)
	}

	if !dryRun && out != nil {
		for _, r := range out.Results {
			if err := saveDeployment(artifacts, net, r); err != nil {
				applyErr = errors.Join(applyErr, err)
			}
		}
	}
	return applyErr
}

// ethDeployer dials the node and builds a signing deployer. The returned
// client is non-nil only on success and must be closed by the caller.
func ethDeployer(ctx context.Context, env config.DeployerConfig) (deploy.Deployer, deploy.ArtifactStore, nodeClient, error) {
	artifacts := deploy.ArtifactStore{Dir: env.ArtifactsDir}

	if err := env.Validate(); err != nil {
		return nil, artifacts, nil, err
	}
	creds, err := auth.LoadCredentials(env.PrivateKey, env.PrivateKeyPath)
	if err != nil {
		return nil, artifacts, nil, err
	}

	client, err := dialNode(ctx, env.RPCURL)
	if err != nil {
		return nil, artifacts, nil, fmt.Errorf("dial %s: %w", env.RPCURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, artifacts, nil, fmt.Errorf("query chain id: %w", err)
	}

	opts, err := creds.Transactor(chainID)
	if err != nil {
		client.Close()
		return nil, artifacts, nil, err
	}
	logger.Info("deploying", "rpc_url", env.RPCURL, "chain_id", chainID, "from", creds.Address.Hex())

	return deploy.NewEthDeployer(client, opts, artifacts, env.ReceiptTimeout, logger), artifacts, client, nil
}

func dryRunDeployer(ctx context.Context, env config.DeployerConfig) (deploy.Deployer, error) {
	var from common.Address
	switch {
	case fromAddr != "":
		if !common.IsHexAddress(fromAddr) {
			return nil, fmt.Errorf("--from %q is not a hex address", fromAddr)
		}
		from = common.HexToAddress(fromAddr)
	default:
		creds, err := auth.LoadCredentials(env.PrivateKey, env.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("dry run needs --from or a deployer key: %w", err)
		}
		from = creds.Address
	}

	if startNonce >= 0 {
		return &deploy.DryRunDeployer{From: from, Nonce: uint64(startNonce)}, nil
	}

	client, err := dialNode(ctx, env.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", env.RPCURL, err)
	}
	defer client.Close()

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("query nonce for %s (pass --nonce to skip): %w", from.Hex(), err)
	}
	return &deploy.DryRunDeployer{From: from, Nonce: nonce}, nil
}

func saveDeployment(artifacts deploy.ArtifactStore, net string, r deploy.Result) error {
	art, err := artifacts.Load(r.Contract)
	if err != nil {
		return fmt.Errorf("save %s: %w", r.Step, err)
	}
	path, err := chain.SaveDeployment(deploymentsDir, net, r.Step, r.Address, r.TxHash, art.RawABI, r.Args)
	if err != nil {
		return err
	}
	logger.Info("deployment saved", "step", r.Step, "path", path)
	return nil
}

func printResults(w io.Writer, out *deploy.Outputs, dry bool) {
	if dry {
		fmt.Fprintln(w, "=== DRY RUN: no transactions sent ===")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tCONTRACT\tADDRESS\tTX")
	for _, r := range out.Results {
		tx := "-"
		if r.TxHash != (common.Hash{}) {
			tx = r.TxHash.Hex()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Step, r.Contract, r.Address.Hex(), tx)
	}
	tw.Flush()
}

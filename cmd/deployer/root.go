package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flexifi/poolwatch/internal/deploy"
)

var (
	planPath string
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deployer",
	Short: "Deploy the pool contracts as an ordered plan",
	Long: `deployer runs the FlexiFI contract deployment: the pool token first,
then the pooling contract bound to the stablecoin and the new token.

Signing settings come from the environment (DEPLOYER_RPC_URL,
DEPLOYER_PRIVATE_KEY or DEPLOYER_PRIVATE_KEY_PATH, DEPLOYER_ARTIFACTS_DIR,
DEPLOYER_STABLECOIN, DEPLOYER_RECEIPT_TIMEOUT).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&planPath, "plan", "p", "", "plan file (default: built-in two-step plan)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadPlan reads --plan, or builds the default plan for stablecoin.
func loadPlan(stablecoin string) (deploy.Plan, error) {
	if planPath == "" {
		return deploy.DefaultPlan(stablecoin), nil
	}
	p, err := deploy.LoadPlan(planPath)
	if err != nil {
		return deploy.Plan{}, err
	}
	return p, nil
}

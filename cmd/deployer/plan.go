package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flexifi/poolwatch/internal/config"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print and validate the deployment plan",
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, _ []string) error {
	env, err := config.LoadDeployerEnv()
	if err != nil {
		return err
	}

	plan, err := loadPlan(env.Stablecoin)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))

	if err := plan.Validate(); err != nil {
		return fmt.Errorf("plan is invalid: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d step(s), plan is valid\n", len(plan.Steps))
	return nil
}

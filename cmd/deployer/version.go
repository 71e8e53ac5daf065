package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexifi/poolwatch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, _ []string) {
		b := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "deployer %s (%s, %s)\n", b.Version, b.Commit, b.GoVersion)
	},
}

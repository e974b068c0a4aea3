package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	gatewayURL string
	rootCmd    = &cobra.Command{
		Use:   "opsdash",
		Short: "Operations dashboard for the automation gateway",
		Long: `opsdash is a terminal dashboard for a personal automation gateway.
It merges the gateway's todos and feature requests into one work item list,
drives items through their approval workflows, and surfaces audit findings,
cron jobs, and managed containers.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "gateway URL (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

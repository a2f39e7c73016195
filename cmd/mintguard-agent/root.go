package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	dryRun  bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mintguard-agent",
	Short: "Autonomous processor for cleaned canonical records",
	Long: `mintguard-agent polls the canonical record store for records the
upstream cleaner has finished, classifies each record's proposed actions
against a closed allowlist, executes the safe ones, and writes the
outcome back with its own actor identity.

Commands:
  run    Start the poll loop
  scan   Request a scan verdict from a running gateway`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log actions without executing them")
}

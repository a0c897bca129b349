package main

import (
	"github.com/spf13/cobra"

	"github.com/MrEthical07/accountguard"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the accountguard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountguard",
		Short: "accountguard - account security service",
		Long: `accountguard serves login, session and password-reset endpoints
with progressive lockout, and ships the operator commands that go with them.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateAccountCmd())
	cmd.AddCommand(NewUnlockCmd())
	cmd.AddCommand(NewEventsCmd())
	cmd.AddCommand(NewLoadtestCmd())

	return cmd
}

// loadConfig reads --config, then ACCOUNTGUARD_* overrides.
func loadConfig() (accountguard.Config, error) {
	return accountguard.LoadConfig(configFile)
}

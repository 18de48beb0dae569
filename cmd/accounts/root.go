package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the accounts CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Accounts - user account service",
		Long: `Accounts is a user account service: registration with email
verification, credential authentication issuing bearer session tokens,
and token based password reset.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())

	return cmd
}

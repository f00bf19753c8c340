// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authkeep/authkeep/internal/config"
)

// Global flag available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authkeep",
		Short: "Authkeep - credential and session issuance service",
		Long: `Authkeep authenticates users by password, issues short-lived access
tokens and rotating refresh tokens, and runs a single-use password-reset flow.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

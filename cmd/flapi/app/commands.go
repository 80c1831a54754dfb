// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the flapi command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flapi-dev/flapi/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "flapi",
	DisableAutoGenTag: true,
	Short:             "flAPI turns SQL templates into REST and MCP APIs",
	Long: `flAPI is a data API gateway. It reads a project file and a directory of
endpoint definitions, each pairing a parameterized SQL template with a REST
route and optionally an MCP tool, resource, or prompt, and serves them over
an embedded query engine.

Endpoint definitions may live locally or on remote storage (s3://, gs://,
az://, https://), results can be cached into engine tables on a schedule,
and endpoints can be protected with basic or OIDC bearer authentication.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Re-initialize after flag parsing so --debug takes effect.
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the flapi CLI.
func NewRootCmd() *cobra.Command {
	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the project configuration file")
	err = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	// Add subcommands
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newEndpointsCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

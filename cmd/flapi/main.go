// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the flAPI CLI.
package main

import (
	"os"

	"github.com/flapi-dev/flapi/cmd/flapi/app"
	"github.com/flapi-dev/flapi/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

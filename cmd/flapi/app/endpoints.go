// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/flapi-dev/flapi/pkg/endpoints"
)

// newEndpointsCmd creates the endpoints command
func newEndpointsCmd() *cobra.Command {
	var showEvents int
	var eventEndpoint string

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the project's endpoints",
		Long: `List every endpoint loaded from the project's template path, with its
REST route, MCP name, and whether caching and authentication are enabled.

With --events, show the most recent cache sync events instead, optionally
filtered to one endpoint with --endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if showEvents > 0 {
				return printSyncEvents(cmd.Context(), rt, eventEndpoint, showEvents)
			}
			return printEndpoints(rt.store.Load())
		},
	}

	cmd.Flags().IntVar(&showEvents, "events", 0, "Show the last N cache sync events instead of the endpoint list")
	cmd.Flags().StringVar(&eventEndpoint, "endpoint", "", "Filter sync events to one endpoint (URL path or MCP name)")

	return cmd
}

func printEndpoints(repo *endpoints.Repository) error {
	all := repo.Find(func(*endpoints.EndpointConfig) bool { return true })
	if len(all) == 0 {
		fmt.Println("No endpoints configured.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Method", "Path", "MCP Name", "Cache", "Auth"}),
	)

	for _, e := range all {
		if err := table.Append([]string{
			orDash(e.Method),
			orDash(e.URLPath),
			orDash(e.MCPName()),
			yesNo(e.Cache.Enabled),
			yesNo(e.Auth.Enabled),
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func printSyncEvents(ctx context.Context, rt *runtime, endpoint string, limit int) error {
	events, err := rt.eng.ListSyncEvents(ctx, endpoint, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No sync events recorded.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Options(
		tablewriter.WithHeader([]string{"Time", "Endpoint", "Mode", "Status", "Message"}),
	)

	for _, event := range events {
		if err := table.Append([]string{
			event.CreatedAt.Format(time.RFC3339),
			event.Endpoint,
			event.Mode,
			event.Status,
			event.Message,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

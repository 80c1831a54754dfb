// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flapi-dev/flapi/pkg/cache"
	"github.com/flapi-dev/flapi/pkg/logger"
	"github.com/flapi-dev/flapi/pkg/mcp"
	"github.com/flapi-dev/flapi/pkg/ratelimit"
	"github.com/flapi-dev/flapi/pkg/server"
	"github.com/flapi-dev/flapi/pkg/telemetry"
	"github.com/flapi-dev/flapi/pkg/versions"
)

// telemetryShutdownTimeout bounds the final telemetry flush.
const telemetryShutdownTimeout = 5 * time.Second

// newServeCmd creates the serve command for starting the gateway
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the flAPI gateway",
		Long: `Start the flAPI gateway: load the project file, wire the engine and file
providers, warm the configured caches, and serve the REST and MCP surfaces
until interrupted.`,
		RunE: serveCmdFunc,
	}
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	versionInfo := versions.GetVersionInfo()

	telem, err := telemetry.NewProvider(ctx, rt.cfg.Telemetry, versionInfo.Version)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer shutdownCancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Telemetry shutdown failed: %v", err)
		}
	}()

	var dispatcher *mcp.Dispatcher
	if rt.cfg.MCPEnabled() {
		sessions := mcp.NewSessionManager(time.Duration(rt.cfg.MCP.SessionTimeout))
		defer sessions.Stop()

		serverVersion := rt.cfg.MCP.ServerVersion
		if serverVersion == "" {
			serverVersion = versionInfo.Version
		}
		dispatcher = mcp.NewDispatcher(rt.store, sessions, rt.authn, rt.executor, rt.renderer, mcp.Options{
			ServerName:    rt.cfg.MCPServerName(),
			ServerVersion: serverVersion,
			Description:   rt.cfg.ProjectDescription,
		}).WithRefresher(mcp.NewOIDCRefresher(rt.validator.Flows(rt.httpClient), rt.validator))
	}

	srv := server.New(server.Options{
		Config:       rt.cfg,
		Store:        rt.store,
		Auth:         rt.authn,
		Limits:       ratelimit.NewRegistry(),
		Runner:       rt.executor,
		Renderer:     rt.renderer,
		HealthProbes: rt.probes,
		Metrics:      telem.PrometheusHandler(),
		Telemetry:    telem.HTTPMiddleware(),
		MCP:          dispatcher,
	})

	// Warm every cache-enabled endpoint before taking traffic, then hand
	// the recurring refreshes to the scheduler.
	manager := cache.NewManager(rt.eng, rt.renderer)
	manager.RefreshAll(ctx, rt.store.Load())

	var wg sync.WaitGroup
	if rt.cfg.SchedulerEnabled() {
		scheduler := cache.NewScheduler(manager, rt.store, rt.cfg.Scheduler.Workers)
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	}

	err = srv.Serve(ctx)
	wg.Wait()
	return err
}

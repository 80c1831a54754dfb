// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is the REST surface: a chi router mounted from the
// endpoint repository snapshot, with per-endpoint rate-limit and auth
// wrapping, the health and metrics endpoints, and the MCP mounts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flapi-dev/flapi/pkg/auth"
	"github.com/flapi-dev/flapi/pkg/config"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	flapierrors "github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
	"github.com/flapi-dev/flapi/pkg/mcp"
	"github.com/flapi-dev/flapi/pkg/ratelimit"
	"github.com/flapi-dev/flapi/pkg/templates"
	"github.com/flapi-dev/flapi/pkg/vfs"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Authenticator resolves an Authorization header against an endpoint's
// auth block. Implemented by auth.Handler.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string, cfg *endpoints.AuthConfig) (*auth.AuthContext, error)
}

// QueryRunner executes rendered SQL. Implemented by query.Executor.
type QueryRunner interface {
	Execute(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error)
	Count(ctx context.Context, sql string, params map[string]any) (int64, error)
}

// RateLimiterRegistry hands out per-endpoint limiters. Implemented by
// ratelimit.Registry.
type RateLimiterRegistry interface {
	For(endpointKey string, cfg *endpoints.RateLimitConfig) ratelimit.Limiter
}

// Options wires the server's collaborators.
type Options struct {
	Config *config.Config
	Store  *endpoints.Store

	Auth     Authenticator
	Limits   RateLimiterRegistry
	Runner   QueryRunner
	Renderer templates.Renderer

	// HealthProbes back the /health endpoint's storage section.
	HealthProbes []vfs.Probe

	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler

	// Telemetry, when set, wraps every request after RealIP.
	Telemetry func(http.Handler) http.Handler

	// MCP, when set, mounts /mcp/jsonrpc and /mcp/health.
	MCP *mcp.Dispatcher
}

// Server is the REST server. The router is rebuilt from the repository
// snapshot on Reload and swapped atomically, so in-flight requests keep
// the routes they started with.
type Server struct {
	cfg      *config.Config
	store    *endpoints.Store
	authn    Authenticator
	limits   RateLimiterRegistry
	runner   QueryRunner
	renderer templates.Renderer
	probes   []vfs.Probe
	metrics  http.Handler
	tracing  func(http.Handler) http.Handler
	mcp      *mcp.Dispatcher

	router atomic.Pointer[chi.Mux]
}

// New builds the server and mounts the initial repository snapshot.
func New(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		store:    opts.Store,
		authn:    opts.Auth,
		limits:   opts.Limits,
		runner:   opts.Runner,
		renderer: opts.Renderer,
		probes:   opts.HealthProbes,
		metrics:  opts.Metrics,
		tracing:  opts.Telemetry,
		mcp:      opts.MCP,
	}
	s.Reload()
	return s
}

// ServeHTTP dispatches through the currently published router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.Load().ServeHTTP(w, r)
}

// Reload rebuilds the route table from the current repository snapshot
// and publishes it atomically.
func (s *Server) Reload() {
	s.router.Store(s.buildRouter())
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if s.tracing != nil {
		r.Use(s.tracing)
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	if s.mcp != nil {
		r.Post("/mcp/jsonrpc", s.mcp.HandleJSONRPC)
		r.Get("/mcp/health", s.mcp.HandleHealth)
	}

	for _, e := range s.store.Load().Find((*endpoints.EndpointConfig).HasREST) {
		handler := s.endpointHandler(e)
		handler = s.withAuth(e, handler)
		handler = s.withRateLimit(e, handler)
		r.Method(e.Method, e.URLPath, handler)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, flapierrors.NewNotFoundError("no endpoint serves this path", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, flapierrors.NewNotFoundError("no endpoint serves this method", nil))
	})
	return r
}

// handleHealth reports overall and per-storage-backend health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backends := vfs.CheckHealth(r.Context(), s.probes)
	status := "ok"
	for _, b := range backends {
		if !b.Healthy {
			status = "degraded"
			break
		}
	}
	payload := map[string]any{
		"status":    status,
		"endpoints": s.store.Load().Count(),
	}
	if len(backends) > 0 {
		payload["storage"] = backends
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("failed to write health response: %v", err)
	}
}

// Serve runs the listener until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       time.Duration(s.cfg.HTTP.ReadTimeout),
		WriteTimeout:      time.Duration(s.cfg.HTTP.WriteTimeout),
		IdleTimeout:       time.Duration(s.cfg.HTTP.IdleTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		https := s.cfg.HTTP.EnforceHTTPS
		var err error
		if https != nil && https.Enabled {
			logger.Infof("starting HTTPS server on %s", srv.Addr)
			err = srv.ListenAndServeTLS(https.CertFile, https.KeyFile)
		} else {
			logger.Infof("starting HTTP server on %s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Infof("HTTP server stopped")
	return <-errCh
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/flapi-dev/flapi/pkg/auth"
	"github.com/flapi-dev/flapi/pkg/auth/oidc"
	"github.com/flapi-dev/flapi/pkg/config"
	"github.com/flapi-dev/flapi/pkg/credentials"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/engine"
	"github.com/flapi-dev/flapi/pkg/logger"
	"github.com/flapi-dev/flapi/pkg/networking"
	"github.com/flapi-dev/flapi/pkg/query"
	"github.com/flapi-dev/flapi/pkg/templates"
	"github.com/flapi-dev/flapi/pkg/vfs"
)

const (
	// oidcConnectTimeout bounds connection setup to OIDC providers.
	oidcConnectTimeout = 10 * time.Second

	// oidcRequestTimeout bounds discovery, JWKS, and token requests.
	oidcRequestTimeout = 30 * time.Second
)

// runtime holds the wired collaborators every subcommand that touches a
// project needs: the engine, the file providers, the loaded endpoint
// repository, and the request-path services built on top of them.
type runtime struct {
	cfg        *config.Config
	eng        *engine.SQLiteEngine
	files      vfs.FileProvider
	store      *endpoints.Store
	renderer   *templates.FileRenderer
	executor   *query.Executor
	authn      *auth.Handler
	validator  *oidc.Validator
	httpClient *http.Client
	probes     []vfs.Probe
}

// configPath resolves the project file location: the --config flag when
// set, otherwise the conventional default.
func configPath() (string, error) {
	if path := viper.GetString("config"); path != "" {
		return path, nil
	}
	return config.DefaultConfigPath()
}

// buildRuntime loads the project file and wires the full runtime in
// dependency order: engine, credentials, file providers, endpoint
// repository, auth bootstrap, and the OIDC validator.
func buildRuntime(ctx context.Context) (*runtime, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Infof("Loaded project %s from %s", cfg.ProjectName, path)

	eng, err := engine.New(ctx, cfg.Engine.Path)
	if err != nil {
		return nil, err
	}
	wired := false
	defer func() {
		if !wired {
			_ = eng.Close()
		}
	}()

	for name, conn := range cfg.Connections {
		if conn.Init == "" {
			continue
		}
		if err := eng.ExecScript(ctx, conn.Init); err != nil {
			return nil, fmt.Errorf("running init script for connection %s: %w", name, err)
		}
	}

	creds, err := credentials.Load(&cfg.Credentials)
	if err != nil {
		return nil, err
	}
	if err := creds.InstallSecrets(ctx, eng); err != nil {
		return nil, err
	}

	files, err := buildVFS(ctx, cfg, creds)
	if err != nil {
		return nil, err
	}
	eng.AttachVFS(files)

	repo, err := endpoints.Load(ctx, files, cfg.Template.Path)
	if err != nil {
		return nil, err
	}

	// Pull externally stored user blobs into the engine before any
	// request can hit a basic-auth endpoint.
	if err := auth.NewBootstrapper(eng, eng).Bootstrap(ctx, repo); err != nil {
		return nil, err
	}

	httpClient, err := networking.NewHttpClientBuilder().
		WithConnectTimeout(oidcConnectTimeout).
		WithTimeout(oidcRequestTimeout).
		Build()
	if err != nil {
		return nil, err
	}
	validator := oidc.NewValidator(httpClient)

	rt := &runtime{
		cfg:        cfg,
		eng:        eng,
		files:      files,
		store:      endpoints.NewStore(repo),
		renderer:   templates.NewFileRenderer(files, cfg.Template.Path),
		executor:   query.NewExecutor(eng),
		authn:      auth.NewHandler(eng, validator),
		validator:  validator,
		httpClient: httpClient,
		probes:     buildProbes(eng, files, cfg),
	}
	wired = true
	return rt, nil
}

// Close releases the engine. Safe to call exactly once.
func (r *runtime) Close() {
	if err := r.eng.Close(); err != nil {
		logger.Warnf("Failed to close engine: %v", err)
	}
}

// buildVFS assembles the file provider stack: a composite router over
// the local filesystem and every remote backend whose credentials
// resolve, a caching decorator for remote reads, and the path validator
// in front of everything.
func buildVFS(ctx context.Context, cfg *config.Config, creds *credentials.Manager) (vfs.FileProvider, error) {
	composite := vfs.NewCompositeProvider(vfs.NewLocalProvider())

	httpProvider, err := vfs.NewHTTPProvider(false)
	if err != nil {
		return nil, err
	}
	composite.Register("https", httpProvider)

	if creds.AWS() != nil {
		client, err := creds.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		composite.Register("s3", vfs.NewS3Provider(client))
	}
	if creds.GCP() != nil {
		service, err := creds.NewGCSService(ctx)
		if err != nil {
			return nil, err
		}
		composite.Register("gs", vfs.NewGCSProvider(service))
	}
	if creds.Azure() != nil {
		client, err := creds.NewAzureBlobClient()
		if err != nil {
			return nil, err
		}
		composite.Register("az", vfs.NewAzureProvider(client))
	}

	var provider vfs.FileProvider = composite
	if cfg.FileCacheEnabled() {
		provider = vfs.NewCachingFileProvider(provider,
			time.Duration(cfg.FileCache.TTL), cfg.FileCache.MaxSizeBytes)
	}

	pathValidator := vfs.NewPathValidator(vfs.PathValidatorOptions{
		AllowedSchemes:   allowedSchemes(cfg, composite),
		AllowedPrefixes:  cfg.PathSecurity.AllowedPrefixes,
		ResolveRealPaths: true,
	})
	return &validatedFiles{inner: provider, validator: pathValidator}, nil
}

// allowedSchemes combines the configured scheme allow-list with the
// remote schemes that were actually registered. A backend is registered
// only when its credentials resolve, so configuring credentials doubles
// as opting into the scheme.
func allowedSchemes(cfg *config.Config, composite *vfs.CompositeProvider) []string {
	seen := make(map[string]bool)
	schemes := make([]string, 0, len(cfg.PathSecurity.AllowedSchemes)+4)
	for _, s := range cfg.PathSecurity.AllowedSchemes {
		if !seen[s] {
			seen[s] = true
			schemes = append(schemes, s)
		}
	}
	for _, s := range composite.Schemes() {
		if !seen[s] {
			seen[s] = true
			schemes = append(schemes, s)
		}
	}
	return schemes
}

// validatedFiles guards every file access with the path validator.
// Relative paths resolve against the working directory, matching how
// the loader and the renderer address local files.
type validatedFiles struct {
	inner     vfs.FileProvider
	validator *vfs.PathValidator
}

func (f *validatedFiles) ReadFile(ctx context.Context, path string) ([]byte, error) {
	resolved, err := f.validator.Validate(path, ".")
	if err != nil {
		return nil, err
	}
	return f.inner.ReadFile(ctx, resolved)
}

func (f *validatedFiles) FileExists(ctx context.Context, path string) (bool, error) {
	resolved, err := f.validator.Validate(path, ".")
	if err != nil {
		return false, err
	}
	return f.inner.FileExists(ctx, resolved)
}

func (f *validatedFiles) ListFiles(ctx context.Context, glob string) ([]string, error) {
	resolved, err := f.validator.Validate(glob, ".")
	if err != nil {
		return nil, err
	}
	return f.inner.ListFiles(ctx, resolved)
}

// buildProbes backs the /health storage section: one probe for the
// engine and one for the template source.
func buildProbes(eng *engine.SQLiteEngine, files vfs.FileProvider, cfg *config.Config) []vfs.Probe {
	return []vfs.Probe{
		{
			Name: "engine",
			Check: func(ctx context.Context) error {
				rows, err := eng.Query(ctx, "SELECT 1", nil)
				if err != nil {
					return err
				}
				return rows.Close()
			},
		},
		{
			Name: "templates",
			Check: func(ctx context.Context) error {
				_, err := files.FileExists(ctx, cfg.Template.Path)
				return err
			},
		},
	}
}

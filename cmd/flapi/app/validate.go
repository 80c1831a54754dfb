// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flapi-dev/flapi/pkg/config"
	"github.com/flapi-dev/flapi/pkg/credentials"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/vfs"
)

// newValidateCmd creates the validate command
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the project configuration",
		Long: `Load and validate the project file and every endpoint definition under
its template path, and check that each referenced SQL template exists.
Exits non-zero on the first problem found.`,
		RunE: validateCmdFunc,
	}
}

func validateCmdFunc(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	creds, err := credentials.Load(&cfg.Credentials)
	if err != nil {
		return err
	}
	files, err := buildVFS(ctx, cfg, creds)
	if err != nil {
		return err
	}

	repo, err := endpoints.Load(ctx, files, cfg.Template.Path)
	if err != nil {
		return err
	}

	if err := checkTemplateSources(ctx, files, cfg.Template.Path, repo); err != nil {
		return err
	}

	fmt.Printf("Configuration OK: %d endpoints loaded from %s\n", repo.Count(), cfg.Template.Path)
	return nil
}

// checkTemplateSources verifies that every SQL template an endpoint or
// its cache block references actually exists. The loader only checks
// YAML shape; a missing template would otherwise surface on the first
// request or refresh.
func checkTemplateSources(ctx context.Context, files vfs.FileProvider, baseDir string, repo *endpoints.Repository) error {
	for _, e := range repo.Find(func(*endpoints.EndpointConfig) bool { return true }) {
		sources := []string{e.TemplateSource}
		if e.Cache.Enabled && e.Cache.TemplateSource != "" {
			sources = append(sources, e.Cache.TemplateSource)
		}
		for _, source := range sources {
			if source == "" {
				continue
			}
			exists, err := files.FileExists(ctx, resolveTemplate(baseDir, source))
			if err != nil {
				return fmt.Errorf("checking template %s: %w", source, err)
			}
			if !exists {
				return fmt.Errorf("endpoint %s references missing template %s", endpointLabel(e), source)
			}
		}
	}
	return nil
}

// resolveTemplate mirrors how the renderer addresses template sources:
// relative names live under the template path.
func resolveTemplate(baseDir, name string) string {
	if baseDir == "" || strings.Contains(name, "://") || strings.HasPrefix(name, "/") {
		return name
	}
	return baseDir + "/" + name
}

func endpointLabel(e *endpoints.EndpointConfig) string {
	if e.URLPath != "" {
		return e.URLPath
	}
	return e.MCPName()
}

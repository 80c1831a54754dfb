// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package endpoints

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
)

// FileReader is the slice of the VFS the loader needs. Endpoint directories
// may live on any scheme the VFS supports.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	ListFiles(ctx context.Context, glob string) ([]string, error)
}

// Load reads every endpoint YAML file under dir, applies defaults,
// validates, and builds a repository. A single malformed file fails the
// whole load; partially built repositories are never published.
func Load(ctx context.Context, files FileReader, dir string) (*Repository, error) {
	var names []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := files.ListFiles(ctx, path.Join(dir, pattern))
		if err != nil {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("listing endpoint files in %s", dir), err)
		}
		names = append(names, matches...)
	}
	sort.Strings(names)

	repo := NewRepository()
	for _, name := range names {
		e, err := loadOne(ctx, files, name)
		if err != nil {
			return nil, err
		}
		repo.Add(e)
		logger.Debugw("loaded endpoint",
			"file", name, "url_path", e.URLPath, "mcp_name", e.MCPName())
	}

	logger.Infof("Loaded %d endpoints from %s", repo.Count(), dir)
	return repo, nil
}

func loadOne(ctx context.Context, files FileReader, name string) (*EndpointConfig, error) {
	raw, err := files.ReadFile(ctx, name)
	if err != nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("reading endpoint file %s", name), err)
	}

	var e EndpointConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("parsing endpoint file %s", name), err)
	}
	if err := e.ApplyDefaults(); err != nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("defaulting endpoint file %s", name), err)
	}
	if err := e.Validate(); err != nil {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("invalid endpoint file %s", name), err)
	}
	return &e, nil
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package vfs provides scheme-aware file access for templates and endpoint
// definitions. Local paths and remote URIs (s3://, gs://, az://, http(s)://)
// are served through one FileProvider interface; a caching decorator bounds
// repeated remote reads and a path validator guards what may be touched.
package vfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// FileProvider describes a type which can read files from some backend.
type FileProvider interface {
	// ReadFile returns the full content of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// FileExists reports whether the file at path exists.
	FileExists(ctx context.Context, path string) (bool, error)

	// ListFiles returns the paths matching a glob pattern such as
	// "s3://bucket/sqls/*.yaml". Only the final path element may contain
	// wildcards. Returned paths are accepted by ReadFile as-is.
	ListFiles(ctx context.Context, glob string) ([]string, error)
}

// SplitScheme splits a path into its URI scheme and remainder. Paths without
// a scheme return an empty scheme.
func SplitScheme(path string) (scheme, rest string) {
	idx := strings.Index(path, "://")
	if idx < 0 {
		return "", path
	}
	return strings.ToLower(path[:idx]), path[idx+3:]
}

// IsRemote reports whether the path references a remote backend.
func IsRemote(path string) bool {
	scheme, _ := SplitScheme(path)
	switch scheme {
	case "", "file":
		return false
	}
	return true
}

// CompositeProvider routes file operations to the provider registered for
// the path's scheme. Paths with no scheme, and file:// paths, go to the
// local provider.
type CompositeProvider struct {
	local  FileProvider
	remote map[string]FileProvider
}

// NewCompositeProvider creates a provider routing local paths to local.
func NewCompositeProvider(local FileProvider) *CompositeProvider {
	return &CompositeProvider{
		local:  local,
		remote: make(map[string]FileProvider),
	}
}

// Register adds a provider for a URI scheme. Registering the same scheme
// twice replaces the earlier provider.
func (c *CompositeProvider) Register(scheme string, provider FileProvider) {
	c.remote[strings.ToLower(scheme)] = provider
}

// Schemes returns the registered remote schemes.
func (c *CompositeProvider) Schemes() []string {
	schemes := make([]string, 0, len(c.remote))
	for scheme := range c.remote {
		schemes = append(schemes, scheme)
	}
	return schemes
}

func (c *CompositeProvider) resolve(path string) (FileProvider, string, error) {
	scheme, rest := SplitScheme(path)
	switch scheme {
	case "":
		return c.local, path, nil
	case "file":
		return c.local, rest, nil
	}
	provider, ok := c.remote[scheme]
	if !ok {
		return nil, "", errors.NewConfigurationError(fmt.Sprintf("unsupported URI scheme: %s", scheme), nil)
	}
	return provider, path, nil
}

// ReadFile routes to the provider for the path's scheme.
func (c *CompositeProvider) ReadFile(ctx context.Context, path string) ([]byte, error) {
	provider, resolved, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	return provider.ReadFile(ctx, resolved)
}

// FileExists routes to the provider for the path's scheme.
func (c *CompositeProvider) FileExists(ctx context.Context, path string) (bool, error) {
	provider, resolved, err := c.resolve(path)
	if err != nil {
		return false, err
	}
	return provider.FileExists(ctx, resolved)
}

// ListFiles routes to the provider for the glob's scheme.
func (c *CompositeProvider) ListFiles(ctx context.Context, glob string) ([]string, error) {
	provider, resolved, err := c.resolve(glob)
	if err != nil {
		return nil, err
	}
	return provider.ListFiles(ctx, resolved)
}

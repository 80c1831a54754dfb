// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapi-dev/flapi/pkg/errors"
)

func TestLocalProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "customers.yaml"), []byte("url-path: /customers"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.yml"), []byte("url-path: /orders"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "query.sql"), []byte("SELECT 1"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0o750))

	provider := NewLocalProvider()

	content, err := provider.ReadFile(ctx, filepath.Join(dir, "query.sql"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", string(content))

	_, err = provider.ReadFile(ctx, filepath.Join(dir, "absent.sql"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	exists, err := provider.FileExists(ctx, filepath.Join(dir, "query.sql"))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = provider.FileExists(ctx, filepath.Join(dir, "absent.sql"))
	require.NoError(t, err)
	assert.False(t, exists)

	// Directories do not count as files.
	exists, err = provider.FileExists(ctx, filepath.Join(dir, "sub.yaml"))
	require.NoError(t, err)
	assert.False(t, exists)

	files, err := provider.ListFiles(ctx, filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "customers.yaml")}, files)

	files, err = provider.ListFiles(ctx, filepath.Join(dir, "*.nope"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

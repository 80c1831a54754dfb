// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitScheme(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		wantScheme string
		wantRest   string
	}{
		{"s3://bucket/key.yaml", "s3", "bucket/key.yaml"},
		{"GS://bucket/key", "gs", "bucket/key"},
		{"file:///etc/flapi.yaml", "file", "/etc/flapi.yaml"},
		{"/etc/flapi.yaml", "", "/etc/flapi.yaml"},
		{"relative/path.sql", "", "relative/path.sql"},
		{"https://example.com/a.sql", "https", "example.com/a.sql"},
	}

	for _, tt := range tests {
		scheme, rest := SplitScheme(tt.path)
		assert.Equal(t, tt.wantScheme, scheme, tt.path)
		assert.Equal(t, tt.wantRest, rest, tt.path)
	}
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRemote("s3://bucket/key"))
	assert.True(t, IsRemote("https://example.com/f"))
	assert.False(t, IsRemote("/local/path"))
	assert.False(t, IsRemote("file:///local/path"))
	assert.False(t, IsRemote("relative/path"))
}

// stubProvider records calls and serves canned content.
type stubProvider struct {
	reads    []string
	contents map[string]string
}

func (s *stubProvider) ReadFile(_ context.Context, path string) ([]byte, error) {
	s.reads = append(s.reads, path)
	return []byte(s.contents[path]), nil
}

func (s *stubProvider) FileExists(_ context.Context, path string) (bool, error) {
	_, ok := s.contents[path]
	return ok, nil
}

func (s *stubProvider) ListFiles(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func TestCompositeProviderRouting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	local := &stubProvider{contents: map[string]string{"/etc/a.sql": "local"}}
	remote := &stubProvider{contents: map[string]string{"s3://b/k.sql": "remote"}}

	composite := NewCompositeProvider(local)
	composite.Register("s3", remote)

	content, err := composite.ReadFile(ctx, "/etc/a.sql")
	require.NoError(t, err)
	assert.Equal(t, "local", string(content))

	// file:// URIs are stripped before reaching the local provider.
	_, err = composite.ReadFile(ctx, "file:///etc/a.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/a.sql", "/etc/a.sql"}, local.reads)

	content, err = composite.ReadFile(ctx, "s3://b/k.sql")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(content))

	_, err = composite.ReadFile(ctx, "gs://b/k.sql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URI scheme")

	exists, err := composite.FileExists(ctx, "s3://b/k.sql")
	require.NoError(t, err)
	assert.True(t, exists)
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathValidatorTraversal(t *testing.T) {
	t.Parallel()

	v := NewPathValidator(PathValidatorOptions{})

	rejected := []string{
		"..",
		"../etc/passwd",
		"/data/../etc/passwd",
		"/data/templates/..",
		"..%2Fetc%2Fpasswd",
		"%2e%2e/etc/passwd",
		"%252e%252e%252fetc%252fpasswd",
		"..\\windows\\system32",
		"https://example.com/../secrets",
	}
	for _, p := range rejected {
		_, err := v.Validate(p, "/base")
		require.Error(t, err, p)
		assert.Contains(t, err.Error(), "traversal", p)
	}

	// Dots inside a segment are not traversal.
	out, err := v.Validate("/data/my..file.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "/data/my..file.sql", out)
}

func TestPathValidatorSchemes(t *testing.T) {
	t.Parallel()

	v := NewPathValidator(PathValidatorOptions{})

	out, err := v.Validate("https://example.com/templates/q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/templates/q.sql", out)

	out, err = v.Validate("file:///etc/flapi/q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "file:///etc/flapi/q.sql", out)

	_, err = v.Validate("s3://bucket/q.sql", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme s3 is not allowed")

	custom := NewPathValidator(PathValidatorOptions{AllowedSchemes: []string{"s3", "gs"}})
	out, err = custom.Validate("s3://bucket/q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/q.sql", out)

	_, err = custom.Validate("https://example.com/q.sql", "")
	require.Error(t, err)
}

func TestPathValidatorNormalization(t *testing.T) {
	t.Parallel()

	v := NewPathValidator(PathValidatorOptions{})

	out, err := v.Validate("/data//templates///q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "/data/templates/q.sql", out)

	out, err = v.Validate("\\data\\templates\\q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "/data/templates/q.sql", out)

	// Backslashes in remote paths are normalized too.
	out, err = v.Validate("https://example.com\\templates\\q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/templates/q.sql", out)
}

func TestPathValidatorRelativePaths(t *testing.T) {
	t.Parallel()

	v := NewPathValidator(PathValidatorOptions{})

	out, err := v.Validate("queries/q.sql", "/data/templates")
	require.NoError(t, err)
	assert.Equal(t, "/data/templates/queries/q.sql", out)

	_, err = v.Validate("queries/q.sql", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a base path")
}

func TestPathValidatorPrefixContainment(t *testing.T) {
	t.Parallel()

	v := NewPathValidator(PathValidatorOptions{
		AllowedPrefixes: []string{"/data/templates", "/srv/shared"},
	})

	out, err := v.Validate("/data/templates/q.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "/data/templates/q.sql", out)

	out, err = v.Validate("q.sql", "/srv/shared")
	require.NoError(t, err)
	assert.Equal(t, "/srv/shared/q.sql", out)

	_, err = v.Validate("/etc/passwd", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed prefix")

	// A sibling directory sharing the prefix string is outside.
	_, err = v.Validate("/data/templates-evil/q.sql", "")
	require.Error(t, err)
}

func TestPathValidatorNoPrefixesMeansAnyLocalPath(t *testing.T) {
	t.Parallel()

	v := NewPathValidator(PathValidatorOptions{})
	out, err := v.Validate("/anywhere/at/all.sql", "")
	require.NoError(t, err)
	assert.Equal(t, "/anywhere/at/all.sql", out)
}

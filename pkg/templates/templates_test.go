// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package templates

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		source string
		params map[string]any
		want   string
	}{
		{
			name:   "no tokens",
			source: "SELECT 1",
			params: nil,
			want:   "SELECT 1",
		},
		{
			name:   "flat token",
			source: "SELECT * FROM {{cacheTable}}",
			params: map[string]any{"cacheTable": "customers_cache"},
			want:   "SELECT * FROM customers_cache",
		},
		{
			name:   "dotted path",
			source: "WHERE id = {{params.id}}",
			params: map[string]any{"params": map[string]any{"id": "42"}},
			want:   "WHERE id = 42",
		},
		{
			name:   "whitespace inside token",
			source: "WHERE id = {{ params.id }}",
			params: map[string]any{"params": map[string]any{"id": 7}},
			want:   "WHERE id = 7",
		},
		{
			name:   "missing token renders empty",
			source: "WHERE name = '{{params.name}}'",
			params: map[string]any{"params": map[string]any{}},
			want:   "WHERE name = ''",
		},
		{
			name:   "multiple tokens",
			source: "{{a}}-{{b}}-{{a}}",
			params: map[string]any{"a": "x", "b": "y"},
			want:   "x-y-x",
		},
		{
			name:   "unterminated token left verbatim",
			source: "SELECT {{oops",
			params: map[string]any{"oops": "nope"},
			want:   "SELECT {{oops",
		},
		{
			name:   "non-map path segment renders empty",
			source: "{{params.id.deeper}}",
			params: map[string]any{"params": map[string]any{"id": "42"}},
			want:   "",
		},
		{
			name:   "typed values stringify",
			source: "{{n}} {{f}} {{b}} {{keys}}",
			params: map[string]any{
				"n":    int64(9),
				"f":    2.5,
				"b":    true,
				"keys": []string{"id", "region"},
			},
			want: "9 2.5 true id,region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Render(tt.source, tt.params))
		})
	}
}

type mapReader map[string]string

func (m mapReader) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func TestFileRenderer(t *testing.T) {
	t.Parallel()

	files := mapReader{
		"sql/customers.sql": "SELECT * FROM customers WHERE id = {{params.id}}",
		"s3://bucket/q.sql": "SELECT {{x}}",
	}
	r := NewFileRenderer(files, "sql")

	out, err := r.RenderFile(context.Background(), "customers.sql",
		map[string]any{"params": map[string]any{"id": "42"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM customers WHERE id = 42", out)

	// Absolute and remote names bypass the base directory.
	out, err = r.RenderFile(context.Background(), "s3://bucket/q.sql",
		map[string]any{"x": "1"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)

	_, err = r.RenderFile(context.Background(), "missing.sql", nil)
	require.Error(t, err)
}

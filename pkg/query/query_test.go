// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapi-dev/flapi/pkg/engine"
)

func TestRegistryConvert(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	tests := []struct {
		name         string
		databaseType string
		value        any
		want         any
	}{
		{"null is always null", "INTEGER", nil, nil},
		{"integer passthrough", "INTEGER", int64(42), int64(42)},
		{"integer from text", "BIGINT", "42", int64(42)},
		{"sized varchar", "VARCHAR(255)", "hello", "hello"},
		{"float from integer", "DOUBLE", int64(2), float64(2)},
		{"boolean from integer", "BOOLEAN", int64(1), true},
		{"boolean false", "BOOL", int64(0), false},
		{"decimal to double", "DECIMAL(10,2)", "12.50", 12.5},
		{"timestamp from unix seconds", "TIMESTAMP", int64(1700000000), "2023-11-14T22:13:20Z"},
		{"datetime text reshaped", "DATETIME", "2024-01-02 03:04:05", "2024-01-02T03:04:05Z"},
		{"date stays plain", "DATE", "2024-01-02", "2024-01-02"},
		{"blob to string", "BLOB", []byte("abc"), "abc"},
		{"uuid to string", "UUID", "8400-aaaa", "8400-aaaa"},
		{"json to object", "JSON", `{"a":1}`, map[string]any{"a": float64(1)}},
		{"list to array", "LIST", `[1,2]`, []any{float64(1), float64(2)}},
		{"malformed json stays text", "JSON", "{oops", "{oops"},
		{"unknown type passthrough", "GEOMETRY", "POINT(1 1)", "POINT(1 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.Convert(tt.databaseType, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryCustomConverter(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("money", func(value any) (any, error) {
		return "$" + value.(string), nil
	})

	got, err := r.Convert("MONEY", "12.50")
	require.NoError(t, err)
	assert.Equal(t, "$12.50", got)
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	eng, err := engine.New(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.ExecScript(context.Background(), `
		CREATE TABLE products (id INTEGER, name TEXT, price DOUBLE, discontinued BOOLEAN, notes TEXT);
		INSERT INTO products VALUES (1, 'anvil', 9.99, 0, NULL);
		INSERT INTO products VALUES (2, 'rocket', 120.0, 1, 'acme only');
		INSERT INTO products VALUES (3, 'magnet', 3.5, 0, NULL)`))
	return NewExecutor(eng)
}

func TestExecutorExecute(t *testing.T) {
	t.Parallel()
	exec := newTestExecutor(t)

	rows, err := exec.Execute(context.Background(),
		`SELECT id, name, price, discontinued, notes FROM products WHERE id <= :max ORDER BY id`,
		map[string]any{"max": 2})
	require.NoError(t, err)

	require.Equal(t, []map[string]any{
		{"id": int64(1), "name": "anvil", "price": 9.99, "discontinued": false, "notes": nil},
		{"id": int64(2), "name": "rocket", "price": 120.0, "discontinued": true, "notes": "acme only"},
	}, rows)
}

func TestExecutorEmptyResultIsNotNil(t *testing.T) {
	t.Parallel()
	exec := newTestExecutor(t)

	rows, err := exec.Execute(context.Background(), `SELECT * FROM products WHERE id > 100`, nil)
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Len(t, rows, 0)
}

func TestExecutorQueryError(t *testing.T) {
	t.Parallel()
	exec := newTestExecutor(t)

	_, err := exec.Execute(context.Background(), `SELECT * FROM missing`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestExecutorCount(t *testing.T) {
	t.Parallel()
	exec := newTestExecutor(t)

	count, err := exec.Count(context.Background(), `SELECT * FROM products WHERE price < :limit`,
		map[string]any{"limit": 100})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

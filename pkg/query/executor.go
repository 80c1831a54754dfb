// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"fmt"

	"github.com/flapi-dev/flapi/pkg/engine"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// Executor runs rendered SQL and shapes the result set into JSON rows.
type Executor struct {
	querier  engine.Querier
	registry *Registry
}

// NewExecutor creates an executor using the default converter registry.
func NewExecutor(querier engine.Querier) *Executor {
	return &Executor{querier: querier, registry: DefaultRegistry()}
}

// NewExecutorWithRegistry creates an executor with a custom registry.
func NewExecutorWithRegistry(querier engine.Querier, registry *Registry) *Executor {
	return &Executor{querier: querier, registry: registry}
}

// Execute runs the statement and returns one object per row keyed by
// column name, with values mapped through the converter registry. The
// result is never nil, so an empty result serializes as [].
func (e *Executor) Execute(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	rows, err := e.querier.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := rows.Columns()
	results := []map[string]any{}
	for rows.Next() {
		values, err := rows.Scan()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			converted, err := e.registry.Convert(col.DatabaseType, values[i])
			if err != nil {
				return nil, errors.NewDatabaseError(
					fmt.Sprintf("failed to convert column %s", col.Name), err)
			}
			row[col.Name] = converted
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("result iteration failed", err)
	}
	return results, nil
}

// Count wraps the statement in a COUNT(*) subquery, for the total_count
// field of paginated responses.
func (e *Executor) Count(ctx context.Context, sql string, params map[string]any) (int64, error) {
	rows, err := e.querier.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (%s)", sql), params)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, errors.NewDatabaseError("count query failed", err)
		}
		return 0, errors.NewDatabaseError("count query returned no rows", nil)
	}
	values, err := rows.Scan()
	if err != nil {
		return 0, err
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, errors.NewDatabaseError(fmt.Sprintf("unexpected count value %v", values[0]), nil)
	}
	return count, nil
}

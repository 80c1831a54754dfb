// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine defines the narrow query-engine surface the gateway is
// built against, together with an embedded SQLite implementation. The
// rest of the codebase never touches database/sql directly; everything
// flows through the Engine interface so the engine can be swapped or
// mocked wholesale.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/flapi-dev/flapi/pkg/credentials"
	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/vfs"
)

// Column describes one result column with the engine's declared type,
// which the type converter registry maps to a JSON value model.
type Column struct {
	Name         string
	DatabaseType string
}

// Rows iterates a result set. Callers must Close it.
type Rows struct {
	rows    *sql.Rows
	columns []Column
}

func newRows(rows *sql.Rows) (*Rows, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, errors.NewDatabaseError("failed to read column metadata", err)
	}
	columns := make([]Column, len(types))
	for i, ct := range types {
		columns[i] = Column{Name: ct.Name(), DatabaseType: ct.DatabaseTypeName()}
	}
	return &Rows{rows: rows, columns: columns}, nil
}

// Columns returns the result column metadata in result order.
func (r *Rows) Columns() []Column { return r.columns }

// Next advances to the next row.
func (r *Rows) Next() bool { return r.rows.Next() }

// Scan returns the current row's values in column order using the
// driver's native types: int64, float64, string, []byte, or nil. The
// returned slice is fresh on every call.
func (r *Rows) Scan() ([]any, error) {
	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, errors.NewDatabaseError("failed to scan row", err)
	}
	return values, nil
}

// Err returns the error that terminated iteration, if any.
func (r *Rows) Err() error { return r.rows.Err() }

// Close releases the result set.
func (r *Rows) Close() error { return r.rows.Close() }

// SnapshotInfo is one entry of the snapshot catalog: the bookkeeping row
// a cache refresh leaves behind, including the cursor bookmark the next
// incremental refresh resumes from.
type SnapshotInfo struct {
	ID          int64
	TableName   string
	CreatedAt   time.Time
	CursorValue string
}

// Sync event outcomes.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncEvent records the outcome of one cache refresh.
type SyncEvent struct {
	ID        int64
	Endpoint  string
	Mode      string
	Status    string
	Message   string
	CreatedAt time.Time
}

// Querier executes SQL against the engine.
type Querier interface {
	// Query runs a statement and returns a row iterator. Every entry in
	// params must be referenced by the statement as a named parameter.
	Query(ctx context.Context, query string, params map[string]any) (*Rows, error)

	// Exec runs a single statement that returns no rows.
	Exec(ctx context.Context, query string, params map[string]any) error

	// ExecScript runs a multi-statement script, splitting on semicolons
	// outside quoted regions.
	ExecScript(ctx context.Context, script string) error
}

// SecretCatalog is the engine-side store for cloud credential entries,
// the analog of a CREATE SECRET catalog.
type SecretCatalog interface {
	UpsertSecret(ctx context.Context, secret credentials.CatalogSecret) error
	GetSecret(ctx context.Context, name string) (credentials.CatalogSecret, error)
	ListSecrets(ctx context.Context) ([]credentials.CatalogSecret, error)
}

// SnapshotCatalog tracks cache refresh snapshots per cache table.
type SnapshotCatalog interface {
	RecordSnapshot(ctx context.Context, tableName, cursorValue string) (SnapshotInfo, error)
	LastSnapshot(ctx context.Context, tableName string) (SnapshotInfo, error)
	ListSnapshots(ctx context.Context, tableName string) ([]SnapshotInfo, error)

	// ExpireSnapshots deletes all but the newest keepLast snapshots of
	// the table and returns the number deleted.
	ExpireSnapshots(ctx context.Context, tableName string, keepLast int) (int64, error)

	// ExpireSnapshotsOlderThan deletes snapshots created before cutoff.
	ExpireSnapshotsOlderThan(ctx context.Context, tableName string, cutoff time.Time) (int64, error)
}

// SyncEventLog persists cache refresh outcomes.
type SyncEventLog interface {
	RecordSyncEvent(ctx context.Context, event SyncEvent) error

	// ListSyncEvents returns recent events newest first, filtered by
	// endpoint unless endpoint is empty.
	ListSyncEvents(ctx context.Context, endpoint string, limit int) ([]SyncEvent, error)
}

// LocalAuthStore holds JSON user blobs pulled from external secret
// stores, keyed by the external secret name, for basic-auth lookups.
type LocalAuthStore interface {
	StoreLocalAuthSecret(ctx context.Context, name, payload string) error
	LocalAuthSecret(ctx context.Context, name string) (string, error)
}

// Engine is the full narrow surface.
type Engine interface {
	Querier
	SecretCatalog
	SnapshotCatalog
	SyncEventLog
	LocalAuthStore

	// AttachVFS gives SQL access to the gateway's file providers through
	// the read_file function.
	AttachVFS(provider vfs.FileProvider)

	Close() error
}

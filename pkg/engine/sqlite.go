// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	sqlite3 "modernc.org/sqlite"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/sqlutil"
	"github.com/flapi-dev/flapi/pkg/vfs"
)

// readFileTimeout bounds one read_file call from inside a statement.
const readFileTimeout = 30 * time.Second

// memorySeq distinguishes in-memory databases so separate engines never
// share state through the driver's shared cache.
var memorySeq atomic.Int64

// SQLiteEngine implements Engine on an embedded SQLite database.
type SQLiteEngine struct {
	db *sql.DB
}

var _ Engine = (*SQLiteEngine)(nil)

// New opens the database at path, or an in-memory database when path is
// empty or ":memory:", and applies the internal schema migrations.
func New(ctx context.Context, path string) (*SQLiteEngine, error) {
	// Functions must be registered before the pool opens its first
	// connection; the driver wires them up at connect time.
	if err := registerReadFile(); err != nil {
		return nil, errors.NewDatabaseError("failed to register read_file function", err)
	}

	dsn := fmt.Sprintf("file:flapimem%d?mode=memory&cache=shared", memorySeq.Add(1))
	if path != "" && path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to open database", err)
	}
	// SQLite serializes writers anyway; a single pooled connection also
	// keeps the in-memory database alive for the engine's lifetime.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteEngine{db: db}, nil
}

// Close releases the underlying database.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

// Query runs a statement and returns a row iterator.
func (e *SQLiteEngine) Query(ctx context.Context, query string, params map[string]any) (*Rows, error) {
	rows, err := e.db.QueryContext(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, errors.NewDatabaseError("query execution failed", err)
	}
	return newRows(rows)
}

// Exec runs a single statement that returns no rows.
func (e *SQLiteEngine) Exec(ctx context.Context, query string, params map[string]any) error {
	if _, err := e.db.ExecContext(ctx, query, namedArgs(params)...); err != nil {
		return errors.NewDatabaseError("statement execution failed", err)
	}
	return nil
}

// ExecScript runs each statement of a script in order, stopping at the
// first failure.
func (e *SQLiteEngine) ExecScript(ctx context.Context, script string) error {
	for _, stmt := range sqlutil.SplitStatements(script) {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewDatabaseError(fmt.Sprintf("script statement failed: %s", stmt), err)
		}
	}
	return nil
}

func namedArgs(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}
	return args
}

// attachedVFS backs the read_file SQL function. The driver registers
// functions process-wide, so the reference is package state and the most
// recently attached provider wins. Production runs one engine.
var attachedVFS atomic.Pointer[vfsRef]

type vfsRef struct {
	provider vfs.FileProvider
}

// AttachVFS routes read_file('path') calls in SQL through the given
// provider, the embedded analog of an engine-native remote filesystem.
func (*SQLiteEngine) AttachVFS(provider vfs.FileProvider) {
	attachedVFS.Store(&vfsRef{provider: provider})
}

var registerReadFile = sync.OnceValue(func() error {
	return sqlite3.RegisterScalarFunction("read_file", 1,
		func(_ *sqlite3.FunctionContext, args []driver.Value) (driver.Value, error) {
			ref := attachedVFS.Load()
			if ref == nil {
				return nil, fmt.Errorf("read_file: no file provider attached")
			}
			var path string
			switch v := args[0].(type) {
			case string:
				path = v
			case []byte:
				path = string(v)
			default:
				return nil, fmt.Errorf("read_file: path must be text, got %T", args[0])
			}
			ctx, cancel := context.WithTimeout(context.Background(), readFileTimeout)
			defer cancel()
			content, err := ref.provider.ReadFile(ctx, path)
			if err != nil {
				return nil, err
			}
			return string(content), nil
		})
})

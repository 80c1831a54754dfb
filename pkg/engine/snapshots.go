// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// defaultSyncEventLimit caps ListSyncEvents when no limit is given.
const defaultSyncEventLimit = 50

// RecordSnapshot appends a snapshot row for the table and returns it.
func (e *SQLiteEngine) RecordSnapshot(ctx context.Context, tableName, cursorValue string) (SnapshotInfo, error) {
	now := time.Now().Unix()
	res, err := e.db.ExecContext(ctx,
		`INSERT INTO flapi_snapshots (table_name, created_at, cursor_value) VALUES (?, ?, ?)`,
		tableName, now, cursorValue)
	if err != nil {
		return SnapshotInfo{}, errors.NewDatabaseError(fmt.Sprintf("failed to record snapshot for %s", tableName), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return SnapshotInfo{}, errors.NewDatabaseError("failed to read snapshot id", err)
	}
	return SnapshotInfo{
		ID:          id,
		TableName:   tableName,
		CreatedAt:   time.Unix(now, 0).UTC(),
		CursorValue: cursorValue,
	}, nil
}

// LastSnapshot returns the newest snapshot of the table.
func (e *SQLiteEngine) LastSnapshot(ctx context.Context, tableName string) (SnapshotInfo, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, table_name, created_at, cursor_value
		FROM flapi_snapshots WHERE table_name = ?
		ORDER BY id DESC LIMIT 1`, tableName)

	info, err := scanSnapshot(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, errors.NewNotFoundError(fmt.Sprintf("no snapshots for table: %s", tableName), nil)
	}
	if err != nil {
		return SnapshotInfo{}, errors.NewDatabaseError(fmt.Sprintf("failed to read last snapshot for %s", tableName), err)
	}
	return info, nil
}

// ListSnapshots returns the table's snapshots newest first.
func (e *SQLiteEngine) ListSnapshots(ctx context.Context, tableName string) ([]SnapshotInfo, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, table_name, created_at, cursor_value
		FROM flapi_snapshots WHERE table_name = ?
		ORDER BY id DESC`, tableName)
	if err != nil {
		return nil, errors.NewDatabaseError(fmt.Sprintf("failed to list snapshots for %s", tableName), err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []SnapshotInfo
	for rows.Next() {
		info, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("failed to scan snapshot", err)
		}
		snapshots = append(snapshots, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError(fmt.Sprintf("failed to list snapshots for %s", tableName), err)
	}
	return snapshots, nil
}

func scanSnapshot(row rowScanner) (SnapshotInfo, error) {
	var info SnapshotInfo
	var createdAt int64
	if err := row.Scan(&info.ID, &info.TableName, &createdAt, &info.CursorValue); err != nil {
		return SnapshotInfo{}, err
	}
	info.CreatedAt = time.Unix(createdAt, 0).UTC()
	return info, nil
}

// ExpireSnapshots deletes all but the newest keepLast snapshots.
func (e *SQLiteEngine) ExpireSnapshots(ctx context.Context, tableName string, keepLast int) (int64, error) {
	res, err := e.db.ExecContext(ctx, `
		DELETE FROM flapi_snapshots
		WHERE table_name = ? AND id NOT IN (
			SELECT id FROM flapi_snapshots WHERE table_name = ?
			ORDER BY id DESC LIMIT ?)`,
		tableName, tableName, keepLast)
	if err != nil {
		return 0, errors.NewDatabaseError(fmt.Sprintf("failed to expire snapshots for %s", tableName), err)
	}
	return res.RowsAffected()
}

// ExpireSnapshotsOlderThan deletes snapshots created before cutoff.
func (e *SQLiteEngine) ExpireSnapshotsOlderThan(ctx context.Context, tableName string, cutoff time.Time) (int64, error) {
	res, err := e.db.ExecContext(ctx,
		`DELETE FROM flapi_snapshots WHERE table_name = ? AND created_at < ?`,
		tableName, cutoff.Unix())
	if err != nil {
		return 0, errors.NewDatabaseError(fmt.Sprintf("failed to expire snapshots for %s", tableName), err)
	}
	return res.RowsAffected()
}

// RecordSyncEvent appends one refresh outcome to the event log.
func (e *SQLiteEngine) RecordSyncEvent(ctx context.Context, event SyncEvent) error {
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO flapi_sync_events (endpoint, mode, status, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.Endpoint, event.Mode, event.Status, event.Message, time.Now().Unix())
	if err != nil {
		return errors.NewDatabaseError(fmt.Sprintf("failed to record sync event for %s", event.Endpoint), err)
	}
	return nil
}

// ListSyncEvents returns recent events newest first, optionally filtered
// by endpoint.
func (e *SQLiteEngine) ListSyncEvents(ctx context.Context, endpoint string, limit int) ([]SyncEvent, error) {
	if limit <= 0 {
		limit = defaultSyncEventLimit
	}

	query := `SELECT id, endpoint, mode, status, message, created_at
		FROM flapi_sync_events ORDER BY id DESC LIMIT ?`
	args := []any{limit}
	if endpoint != "" {
		query = `SELECT id, endpoint, mode, status, message, created_at
			FROM flapi_sync_events WHERE endpoint = ? ORDER BY id DESC LIMIT ?`
		args = []any{endpoint, limit}
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list sync events", err)
	}
	defer func() { _ = rows.Close() }()

	var events []SyncEvent
	for rows.Next() {
		var event SyncEvent
		var createdAt int64
		if err := rows.Scan(&event.ID, &event.Endpoint, &event.Mode, &event.Status, &event.Message, &createdAt); err != nil {
			return nil, errors.NewDatabaseError("failed to scan sync event", err)
		}
		event.CreatedAt = time.Unix(createdAt, 0).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("failed to list sync events", err)
	}
	return events, nil
}

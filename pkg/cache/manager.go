// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/engine"
	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
	"github.com/flapi-dev/flapi/pkg/sqlutil"
	"github.com/flapi-dev/flapi/pkg/templates"
)

// Backend is the slice of the engine the cache manager needs: statement
// execution plus the snapshot catalog and sync event log.
type Backend interface {
	engine.Querier
	engine.SnapshotCatalog
	engine.SyncEventLog
}

// Manager refreshes endpoint cache tables through the engine.
type Manager struct {
	backend  Backend
	renderer templates.Renderer
}

// NewManager creates a cache manager on top of the given engine slice
// and template renderer.
func NewManager(backend Backend, renderer templates.Renderer) *Manager {
	return &Manager{backend: backend, renderer: renderer}
}

// RefreshEndpoint runs one refresh cycle for a cache-enabled endpoint
// and records the outcome as a sync event. Endpoints without caching
// are a no-op. The recorded event never masks the refresh result.
func (m *Manager) RefreshEndpoint(ctx context.Context, e *endpoints.EndpointConfig) error {
	cache := &e.Cache
	if !cache.Enabled || cache.Table == "" {
		return nil
	}

	mode := SelectMode(cache)
	table := TableName(cache)

	err := m.refresh(ctx, cache, mode, table)

	event := engine.SyncEvent{
		Endpoint: endpointKey(e),
		Mode:     string(mode),
		Status:   engine.SyncStatusSuccess,
	}
	if err != nil {
		event.Status = engine.SyncStatusError
		event.Message = err.Error()
	}
	if recErr := m.backend.RecordSyncEvent(ctx, event); recErr != nil {
		logger.Warnf("Failed to record sync event for %s: %v", event.Endpoint, recErr)
	}

	return err
}

// RefreshAll refreshes every cache-enabled endpoint in the repository.
// Failures are recorded as sync events and logged; one broken endpoint
// does not keep the rest from warming up.
func (m *Manager) RefreshAll(ctx context.Context, repo *endpoints.Repository) {
	cached := repo.Find(func(e *endpoints.EndpointConfig) bool {
		return e.Cache.Enabled && e.Cache.Table != ""
	})
	for _, e := range cached {
		if err := m.RefreshEndpoint(ctx, e); err != nil {
			logger.Errorf("Cache refresh failed for %s: %v", endpointKey(e), err)
		}
	}
}

func (m *Manager) refresh(ctx context.Context, cache *endpoints.CacheConfig, mode Mode, table string) error {
	last, err := m.backend.LastSnapshot(ctx, table)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Warnf("Snapshot lookup failed for %s, starting from an empty state: %v", table, err)
		}
		last = engine.SnapshotInfo{}
	}

	params := refreshParams(cache, mode, last)

	script, err := m.renderer.RenderFile(ctx, cache.TemplateSource, params)
	if err != nil {
		return errors.NewConfigurationError(
			fmt.Sprintf("failed to render cache template %s", cache.TemplateSource), err)
	}

	if err := m.backend.ExecScript(ctx, sqlutil.TrimComments(script)); err != nil {
		return err
	}

	cursor := ""
	if cache.Cursor != nil && cache.Cursor.Column != "" {
		cursor, err = m.currentCursor(ctx, table, cache.Cursor.Column)
		if err != nil {
			return err
		}
	}
	if _, err := m.backend.RecordSnapshot(ctx, table, cursor); err != nil {
		return err
	}

	return m.applyRetention(ctx, cache, table)
}

// refreshParams builds the parameter map handed to the cache template.
// The previous snapshot's bookmark rides along as cursorValue, empty on
// the first run.
func refreshParams(cache *endpoints.CacheConfig, mode Mode, last engine.SnapshotInfo) map[string]any {
	params := map[string]any{
		"cacheCatalog": cache.Catalog,
		"cacheSchema":  cache.Schema,
		"cacheTable":   cache.Table,
		"cacheMode":    string(mode),
		"cursorColumn": "",
		"cursorType":   "",
		"cursorValue":  last.CursorValue,
		"primaryKeys":  strings.Join(cache.PrimaryKeys, ","),
	}
	if cache.Schedule != "" {
		params["cacheSchedule"] = cache.Schedule
	}
	if cache.Cursor != nil {
		params["cursorColumn"] = cache.Cursor.Column
		params["cursorType"] = cache.Cursor.Type
	}
	return params
}

// currentCursor reads the new bookmark after a refresh, the maximum of
// the cursor column in the cache table.
func (m *Manager) currentCursor(ctx context.Context, table, column string) (string, error) {
	rows, err := m.backend.Query(ctx, fmt.Sprintf("SELECT MAX(%s) FROM %s", column, table), nil)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", rows.Err()
	}
	values, err := rows.Scan()
	if err != nil {
		return "", err
	}
	if len(values) == 0 || values[0] == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", values[0]), nil
}

func (m *Manager) applyRetention(ctx context.Context, cache *endpoints.CacheConfig, table string) error {
	if cache.KeepLastSnapshots > 0 {
		deleted, err := m.backend.ExpireSnapshots(ctx, table, cache.KeepLastSnapshots)
		if err != nil {
			return err
		}
		if deleted > 0 {
			logger.Debugf("Expired %d snapshots of %s, keeping the last %d", deleted, table, cache.KeepLastSnapshots)
		}
	}

	if cache.MaxSnapshotAge != "" {
		age, err := ParseSchedule(cache.MaxSnapshotAge)
		if err != nil {
			return errors.NewConfigurationError(
				fmt.Sprintf("invalid max_snapshot_age for %s", table), err)
		}
		deleted, err := m.backend.ExpireSnapshotsOlderThan(ctx, table, time.Now().Add(-age))
		if err != nil {
			return err
		}
		if deleted > 0 {
			logger.Debugf("Expired %d snapshots of %s older than %s", deleted, table, cache.MaxSnapshotAge)
		}
	}

	return nil
}

func endpointKey(e *endpoints.EndpointConfig) string {
	if e.URLPath != "" {
		return e.URLPath
	}
	return e.MCPName()
}

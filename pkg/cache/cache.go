// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache refreshes the engine-side cache tables of cache-enabled
// endpoints: mode selection, cursor bookmarking, template rendering,
// snapshot accounting, retention, and the background refresh scheduler.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// Mode is the refresh strategy derived from an endpoint's cache config.
type Mode string

const (
	// ModeFull rebuilds the cache table from the template.
	ModeFull Mode = "full"

	// ModeAppend inserts rows strictly greater than the cursor bookmark.
	ModeAppend Mode = "append"

	// ModeMerge upserts by primary key, advancing the bookmark.
	ModeMerge Mode = "merge"
)

// SelectMode picks the refresh mode: no cursor means full, a cursor
// without primary keys means append, a cursor with primary keys means
// merge.
func SelectMode(cache *endpoints.CacheConfig) Mode {
	switch {
	case cache.Cursor == nil || cache.Cursor.Column == "":
		return ModeFull
	case len(cache.PrimaryKeys) == 0:
		return ModeAppend
	default:
		return ModeMerge
	}
}

// TableName returns the qualified cache table name, the key snapshots
// are recorded under.
func TableName(cache *endpoints.CacheConfig) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{cache.Catalog, cache.Schema, cache.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// ParseSchedule parses the <integer><s|m|h|d> schedule grammar shared by
// refresh schedules and max_snapshot_age.
func ParseSchedule(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, errors.NewValidationError(fmt.Sprintf("invalid schedule: %q", s), nil)
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, errors.NewValidationError(fmt.Sprintf("invalid schedule: %q", s), err)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, errors.NewValidationError(fmt.Sprintf("invalid schedule unit in %q (want s, m, h or d)", s), nil)
	}
}

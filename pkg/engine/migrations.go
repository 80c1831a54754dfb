// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/flapi-dev/flapi/pkg/errors"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// runMigrations applies pending internal-schema migrations with goose.
func runMigrations(ctx context.Context, db *sql.DB) error {
	// Strip the migrations/ prefix so goose sees a flat set of .sql files.
	migrationFS, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return errors.NewInternalError("failed to open embedded migrations", err)
	}

	provider, err := goose.NewProvider(database.DialectSQLite3, db, migrationFS)
	if err != nil {
		return errors.NewDatabaseError("failed to create migration provider", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return errors.NewDatabaseError("failed to apply migrations", err)
	}
	return nil
}

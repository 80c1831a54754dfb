// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/flapi-dev/flapi/pkg/credentials"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// UpsertSecret inserts or replaces one secret catalog entry.
func (e *SQLiteEngine) UpsertSecret(ctx context.Context, secret credentials.CatalogSecret) error {
	data, err := json.Marshal(secret.Data)
	if err != nil {
		return errors.NewInternalError("failed to encode secret data", err)
	}
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO flapi_secrets (name, provider, scope, data, updated_at)
		VALUES (?, ?, ?, jsonb(?), ?)
		ON CONFLICT(name) DO UPDATE SET
			provider = excluded.provider,
			scope = excluded.scope,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		secret.Name, secret.Provider, secret.Scope, string(data), time.Now().Unix())
	if err != nil {
		return errors.NewDatabaseError(fmt.Sprintf("failed to upsert secret %s", secret.Name), err)
	}
	return nil
}

// GetSecret returns the named secret catalog entry.
func (e *SQLiteEngine) GetSecret(ctx context.Context, name string) (credentials.CatalogSecret, error) {
	row := e.db.QueryRowContext(ctx,
		`SELECT name, provider, scope, json(data) FROM flapi_secrets WHERE name = ?`, name)
	secret, err := scanCatalogSecret(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return credentials.CatalogSecret{}, errors.NewNotFoundError(fmt.Sprintf("secret not found: %s", name), nil)
	}
	if err != nil {
		return credentials.CatalogSecret{}, errors.NewDatabaseError(fmt.Sprintf("failed to read secret %s", name), err)
	}
	return secret, nil
}

// ListSecrets returns all catalog entries ordered by name.
func (e *SQLiteEngine) ListSecrets(ctx context.Context) ([]credentials.CatalogSecret, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name, provider, scope, json(data) FROM flapi_secrets ORDER BY name`)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list secrets", err)
	}
	defer func() { _ = rows.Close() }()

	var secrets []credentials.CatalogSecret
	for rows.Next() {
		secret, err := scanCatalogSecret(rows)
		if err != nil {
			return nil, errors.NewDatabaseError("failed to scan secret", err)
		}
		secrets = append(secrets, secret)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("failed to list secrets", err)
	}
	return secrets, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogSecret(row rowScanner) (credentials.CatalogSecret, error) {
	var secret credentials.CatalogSecret
	var data []byte
	if err := row.Scan(&secret.Name, &secret.Provider, &secret.Scope, &data); err != nil {
		return credentials.CatalogSecret{}, err
	}
	if err := json.Unmarshal(data, &secret.Data); err != nil {
		return credentials.CatalogSecret{}, err
	}
	return secret, nil
}

// StoreLocalAuthSecret inserts or replaces one local auth blob.
func (e *SQLiteEngine) StoreLocalAuthSecret(ctx context.Context, name, payload string) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO flapi_local_auth (name, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		name, payload, time.Now().Unix())
	if err != nil {
		return errors.NewDatabaseError(fmt.Sprintf("failed to store local auth secret %s", name), err)
	}
	return nil
}

// LocalAuthSecret returns the named local auth blob.
func (e *SQLiteEngine) LocalAuthSecret(ctx context.Context, name string) (string, error) {
	var payload string
	err := e.db.QueryRowContext(ctx,
		`SELECT payload FROM flapi_local_auth WHERE name = ?`, name).Scan(&payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", errors.NewNotFoundError(fmt.Sprintf("local auth secret not found: %s", name), nil)
	}
	if err != nil {
		return "", errors.NewDatabaseError(fmt.Sprintf("failed to read local auth secret %s", name), err)
	}
	return payload, nil
}

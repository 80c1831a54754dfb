// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"

	"github.com/flapi-dev/flapi/pkg/credentials"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
	"github.com/flapi-dev/flapi/pkg/secrets"
)

// SecretCatalogReader is the engine slice the bootstrap reads store
// credentials from.
type SecretCatalogReader interface {
	GetSecret(ctx context.Context, name string) (credentials.CatalogSecret, error)
}

// LocalAuthWriter is the engine slice the bootstrap persists user blobs
// into.
type LocalAuthWriter interface {
	StoreLocalAuthSecret(ctx context.Context, name, payload string) error
}

// Bootstrapper pulls external user blobs into the local auth table so
// basic auth can look users up without touching the external store per
// request. Runs once before serving.
type Bootstrapper struct {
	catalog SecretCatalogReader
	store   LocalAuthWriter
}

// NewBootstrapper wires the bootstrap onto the engine.
func NewBootstrapper(catalog SecretCatalogReader, store LocalAuthWriter) *Bootstrapper {
	return &Bootstrapper{catalog: catalog, store: store}
}

// Bootstrap resolves every endpoint's from_secret_store reference and
// persists the fetched user blob. The first failure aborts: serving
// with a half-bootstrapped user table would lock out valid users.
func (b *Bootstrapper) Bootstrap(ctx context.Context, repo *endpoints.Repository) error {
	external := repo.Find(func(e *endpoints.EndpointConfig) bool {
		return e.Auth.Enabled && e.Auth.ExternalSecret != nil
	})

	done := make(map[string]bool, len(external))
	for _, e := range external {
		ref := e.Auth.ExternalSecret
		if done[ref.Name+"\x00"+ref.Table] {
			continue
		}
		if err := b.bootstrapOne(ctx, ref); err != nil {
			return fmt.Errorf("bootstrapping external secret %s: %w", ref.Name, err)
		}
		done[ref.Name+"\x00"+ref.Table] = true
		logger.Infof("Bootstrapped external users from secret %s into table %s", ref.Name, ref.Table)
	}
	return nil
}

func (b *Bootstrapper) bootstrapOne(ctx context.Context, ref *endpoints.ExternalSecretConfig) error {
	entry, err := b.catalog.GetSecret(ctx, ref.Name)
	if err != nil {
		return err
	}

	provider, err := secrets.CreateSecretProvider(ctx, secrets.ProviderType(entry.Provider), secrets.Options{
		FilePath: entry.Data["path"],
		S3Bucket: entry.Data["bucket"],
		S3Prefix: entry.Data["prefix"],
		S3Region: entry.Data["region"],
	})
	if err != nil {
		return err
	}

	secretName := entry.Data["secret_name"]
	if secretName == "" {
		secretName = entry.Name
	}
	blob, err := provider.GetSecret(ctx, secretName)
	if err != nil {
		return err
	}

	// Reject malformed blobs before they poison the local table.
	if _, err := ParseUserBlob(blob); err != nil {
		return err
	}

	if err := b.store.StoreLocalAuthSecret(ctx, ref.Table, blob); err != nil {
		return errors.NewDatabaseError(fmt.Sprintf("failed to persist users into table %s", ref.Table), err)
	}
	return nil
}

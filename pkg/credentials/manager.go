// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"context"
	"fmt"

	"github.com/flapi-dev/flapi/pkg/config"
	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
)

// Manager holds the resolved credential state for every configured cloud.
// A nil provider means no credentials were supplied and the corresponding
// storage scheme stays unregistered.
type Manager struct {
	aws   *AWS
	gcp   *GCP
	azure *Azure
}

// Load resolves credentials from the project file block overlaid with the
// provider environment variables. Providers with no state at all are left
// nil; providers with partial state fail validation here rather than at
// first use.
func Load(cfg *config.CredentialsConfig) (*Manager, error) {
	m := &Manager{}

	var aws AWS
	if cfg != nil && cfg.AWS != nil {
		aws = AWS{
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SessionToken:    cfg.AWS.SessionToken,
			Region:          cfg.AWS.Region,
			EndpointURL:     cfg.AWS.EndpointURL,
		}
	}
	aws.applyEnv()
	if !aws.empty() {
		if err := aws.validate(); err != nil {
			return nil, err
		}
		m.aws = &aws
	}

	var gcp GCP
	if cfg != nil && cfg.GCP != nil {
		gcp = GCP{
			CredentialsFile: cfg.GCP.CredentialsFile,
			Project:         cfg.GCP.Project,
		}
	}
	gcp.applyEnv()
	if !gcp.empty() {
		if err := gcp.validate(); err != nil {
			return nil, err
		}
		m.gcp = &gcp
	}

	var azure Azure
	if cfg != nil && cfg.Azure != nil {
		azure = Azure{
			ConnectionString: cfg.Azure.ConnectionString,
			StorageAccount:   cfg.Azure.StorageAccount,
			StorageKey:       cfg.Azure.StorageKey,
			TenantID:         cfg.Azure.TenantID,
			ClientID:         cfg.Azure.ClientID,
		}
	}
	azure.applyEnv()
	if !azure.empty() {
		if err := azure.validate(); err != nil {
			return nil, err
		}
		m.azure = &azure
	}

	return m, nil
}

// AWS returns the resolved AWS state, or nil when unconfigured.
func (m *Manager) AWS() *AWS { return m.aws }

// GCP returns the resolved GCP state, or nil when unconfigured.
func (m *Manager) GCP() *GCP { return m.gcp }

// Azure returns the resolved Azure state, or nil when unconfigured.
func (m *Manager) Azure() *Azure { return m.azure }

// CatalogSecret is one credential entry destined for the query engine's
// secret catalog. Data holds provider-specific key material; Scope is the
// URI prefix the secret applies to.
type CatalogSecret struct {
	Name     string
	Provider string
	Scope    string
	Data     map[string]string
}

// SecretCatalog persists credential entries. The query engine implements
// this on its secrets table.
type SecretCatalog interface {
	UpsertSecret(ctx context.Context, secret CatalogSecret) error
}

// InstallSecrets writes one catalog entry per configured provider so that
// queries and the external-secret bootstrap can reach the same backends the
// VFS does.
func (m *Manager) InstallSecrets(ctx context.Context, catalog SecretCatalog) error {
	for _, secret := range m.CatalogSecrets() {
		if err := catalog.UpsertSecret(ctx, secret); err != nil {
			return errors.NewDatabaseError(
				fmt.Sprintf("failed to install %s credentials into the secret catalog", secret.Provider), err)
		}
		logger.Infof("Installed %s credentials into the secret catalog", secret.Provider)
	}
	return nil
}

// CatalogSecrets renders the resolved state as catalog entries. Values are
// real key material; callers must not log them.
func (m *Manager) CatalogSecrets() []CatalogSecret {
	var out []CatalogSecret
	if m.aws != nil {
		data := map[string]string{}
		putNonEmpty(data, "key_id", m.aws.AccessKeyID)
		putNonEmpty(data, "secret", m.aws.SecretAccessKey)
		putNonEmpty(data, "session_token", m.aws.SessionToken)
		putNonEmpty(data, "region", m.aws.Region)
		putNonEmpty(data, "endpoint", m.aws.EndpointURL)
		out = append(out, CatalogSecret{Name: "s3", Provider: "s3", Scope: "s3://", Data: data})
	}
	if m.gcp != nil {
		data := map[string]string{}
		putNonEmpty(data, "credentials_file", m.gcp.CredentialsFile)
		putNonEmpty(data, "project", m.gcp.Project)
		out = append(out, CatalogSecret{Name: "gcs", Provider: "gcs", Scope: "gs://", Data: data})
	}
	if m.azure != nil {
		data := map[string]string{}
		putNonEmpty(data, "connection_string", m.azure.ConnectionString)
		putNonEmpty(data, "account_name", m.azure.StorageAccount)
		putNonEmpty(data, "account_key", m.azure.StorageKey)
		putNonEmpty(data, "tenant_id", m.azure.TenantID)
		putNonEmpty(data, "client_id", m.azure.ClientID)
		out = append(out, CatalogSecret{Name: "azure", Provider: "azure", Scope: "az://", Data: data})
	}
	return out
}

func putNonEmpty(data map[string]string, key, value string) {
	if value != "" {
		data[key] = value
	}
}

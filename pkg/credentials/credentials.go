// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package credentials resolves per-cloud credential state for the storage
// backends. State is assembled once at startup from the project file and
// the standard provider environment variables, with the environment taking
// precedence, and is read-only afterwards.
package credentials

import (
	"fmt"
	"os"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// Environment variables recognized per provider.
const (
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY" // #nosec G101: variable name, not a credential
	EnvAWSSessionToken    = "AWS_SESSION_TOKEN"     // #nosec G101
	EnvAWSRegion          = "AWS_REGION"
	EnvAWSDefaultRegion   = "AWS_DEFAULT_REGION"
	EnvAWSEndpointURL     = "AWS_ENDPOINT_URL"

	EnvGCPCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvGCPProject         = "GOOGLE_CLOUD_PROJECT"
	EnvGCloudProject      = "GCLOUD_PROJECT"
	EnvGCPProjectLegacy   = "GCP_PROJECT"

	EnvAzureConnectionString = "AZURE_STORAGE_CONNECTION_STRING"
	EnvAzureStorageAccount   = "AZURE_STORAGE_ACCOUNT"
	EnvAzureStorageKey       = "AZURE_STORAGE_KEY"
	EnvAzureTenantID         = "AZURE_TENANT_ID"
	EnvAzureClientID         = "AZURE_CLIENT_ID"
)

// AWS holds resolved AWS credential state. Empty key fields mean the SDK's
// default chain (shared profile, IMDS, IRSA) is used.
type AWS struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	EndpointURL     string
}

func (c *AWS) applyEnv() {
	overlayEnv(&c.AccessKeyID, EnvAWSAccessKeyID)
	overlayEnv(&c.SecretAccessKey, EnvAWSSecretAccessKey)
	overlayEnv(&c.SessionToken, EnvAWSSessionToken)
	overlayEnv(&c.Region, EnvAWSRegion, EnvAWSDefaultRegion)
	overlayEnv(&c.EndpointURL, EnvAWSEndpointURL)
}

func (c *AWS) empty() bool {
	return *c == AWS{}
}

func (c *AWS) validate() error {
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return errors.NewConfigurationError(
			"incomplete AWS credentials: access key ID and secret access key must be set together", nil)
	}
	return nil
}

// String renders the state with secret material masked.
func (c *AWS) String() string {
	return fmt.Sprintf("aws(key_id=%s secret=%s region=%s endpoint=%s)",
		c.AccessKeyID, mask(c.SecretAccessKey), c.Region, c.EndpointURL)
}

// GCP holds resolved Google Cloud credential state.
type GCP struct {
	CredentialsFile string
	Project         string
}

func (c *GCP) applyEnv() {
	overlayEnv(&c.CredentialsFile, EnvGCPCredentialsFile)
	overlayEnv(&c.Project, EnvGCPProject, EnvGCloudProject, EnvGCPProjectLegacy)
}

func (c *GCP) empty() bool {
	return *c == GCP{}
}

func (c *GCP) validate() error {
	if c.CredentialsFile != "" {
		if _, err := os.Stat(c.CredentialsFile); err != nil {
			return errors.NewConfigurationError(
				fmt.Sprintf("GCP credentials file not found: %s", c.CredentialsFile), err)
		}
	}
	return nil
}

func (c *GCP) String() string {
	return fmt.Sprintf("gcp(credentials_file=%s project=%s)", c.CredentialsFile, c.Project)
}

// Azure holds resolved Azure blob storage credential state. Either a
// connection string or a storage account is required; with only an account,
// the identity default chain supplies the token.
type Azure struct {
	ConnectionString string
	StorageAccount   string
	StorageKey       string
	TenantID         string
	ClientID         string
}

func (c *Azure) applyEnv() {
	overlayEnv(&c.ConnectionString, EnvAzureConnectionString)
	overlayEnv(&c.StorageAccount, EnvAzureStorageAccount)
	overlayEnv(&c.StorageKey, EnvAzureStorageKey)
	overlayEnv(&c.TenantID, EnvAzureTenantID)
	overlayEnv(&c.ClientID, EnvAzureClientID)
}

func (c *Azure) empty() bool {
	return *c == Azure{}
}

func (c *Azure) validate() error {
	if c.ConnectionString == "" && c.StorageAccount == "" {
		return errors.NewConfigurationError(
			"incomplete Azure credentials: a connection string or storage account is required", nil)
	}
	return nil
}

func (c *Azure) String() string {
	return fmt.Sprintf("azure(connection_string=%s account=%s key=%s tenant=%s client=%s)",
		mask(c.ConnectionString), c.StorageAccount, mask(c.StorageKey), c.TenantID, c.ClientID)
}

// overlayEnv replaces dst with the first non-empty named variable.
func overlayEnv(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}

// mask hides secret material in log output.
func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

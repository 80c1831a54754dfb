// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package secrets contains the external secret store providers. Endpoint
// auth blocks reference secrets by name; the configured provider resolves
// them at startup and on demand.
package secrets

import (
	"context"
	"fmt"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// Provider describes a type which can resolve named secrets.
type Provider interface {
	// GetSecret returns the value of the named secret. A missing secret is
	// reported as a not-found error.
	GetSecret(ctx context.Context, name string) (string, error)

	// SetSecret stores a secret. Read-only providers return an error.
	SetSecret(ctx context.Context, name, value string) error

	// ListSecrets returns the names of all secrets the provider can see.
	ListSecrets(ctx context.Context) ([]string, error)

	// Capabilities reports what operations the provider supports.
	Capabilities() ProviderCapabilities
}

// ProviderCapabilities reports which operations a provider supports.
type ProviderCapabilities struct {
	CanWrite bool
	CanList  bool
}

// ProviderType represents an enum of the available secret provider types.
type ProviderType string

const (
	// EnvironmentType reads secrets from environment variables.
	EnvironmentType ProviderType = "env"

	// FileType reads secrets from a local YAML file.
	FileType ProviderType = "file"

	// S3Type reads secrets from objects in an S3 bucket.
	S3Type ProviderType = "s3"
)

// ErrUnknownProviderType is returned when an invalid ProviderType is specified.
var ErrUnknownProviderType = errors.NewConfigurationError("unknown secret provider type", nil)

func secretNotFound(name string) error {
	return errors.NewNotFoundError(fmt.Sprintf("secret not found: %s", name), nil)
}

// IsNotFoundError checks if an error indicates a secret was not found.
func IsNotFoundError(err error) bool {
	return errors.IsNotFound(err)
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// EnvVarPrefix is the prefix for environment variables holding secrets.
const EnvVarPrefix = "FLAPI_SECRET_"

// EnvironmentProvider resolves secrets from environment variables. The secret
// name is upper-cased and prefixed, so "customers-auth" resolves from
// FLAPI_SECRET_CUSTOMERS_AUTH; a variable matching the raw name is accepted
// as a fallback. The provider is read-only.
type EnvironmentProvider struct {
	prefix string
}

// NewEnvironmentProvider creates a read-only environment variable provider.
func NewEnvironmentProvider() *EnvironmentProvider {
	return &EnvironmentProvider{prefix: EnvVarPrefix}
}

// envVarName maps a secret name onto the conventional variable name.
func (p *EnvironmentProvider) envVarName(name string) string {
	mapped := strings.ToUpper(name)
	mapped = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(mapped)
	return p.prefix + mapped
}

// GetSecret returns the value of the named secret.
func (p *EnvironmentProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.NewValidationError("secret name cannot be empty", nil)
	}
	if value, ok := os.LookupEnv(p.envVarName(name)); ok {
		return value, nil
	}
	if value, ok := os.LookupEnv(name); ok {
		return value, nil
	}
	return "", secretNotFound(name)
}

// SetSecret always fails: the process environment is not writable storage.
func (p *EnvironmentProvider) SetSecret(_ context.Context, _, _ string) error {
	return errors.NewConfigurationError("environment provider is read-only", nil)
}

// ListSecrets returns the names of all prefixed secret variables.
func (p *EnvironmentProvider) ListSecrets(_ context.Context) ([]string, error) {
	var names []string
	for _, kv := range os.Environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, p.prefix) {
			continue
		}
		names = append(names, strings.TrimPrefix(key, p.prefix))
	}
	sort.Strings(names)
	return names, nil
}

// Capabilities reports the provider as read-only.
func (*EnvironmentProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{CanWrite: false, CanList: true}
}

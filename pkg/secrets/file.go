// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// FileProvider resolves secrets from a local YAML file containing a flat
// name-to-value mapping. Writes rewrite the whole file with 0600 permissions.
type FileProvider struct {
	path string
	mu   sync.Mutex
}

// NewFileProvider creates a file-backed secret provider. The file does not
// need to exist until the first secret is written.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, errors.NewConfigurationError("secrets file path cannot be empty", nil)
	}
	return &FileProvider{path: path}, nil
}

func (p *FileProvider) load() (map[string]string, error) {
	raw, err := os.ReadFile(p.path) // #nosec G304: path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.NewConfigurationError(fmt.Sprintf("unable to read secrets file %s", p.path), err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("failed to parse secrets file %s", p.path), err)
	}
	return values, nil
}

func (p *FileProvider) save(values map[string]string) error {
	raw, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("error serializing secrets file: %w", err)
	}
	if err := os.WriteFile(p.path, raw, 0600); err != nil {
		return fmt.Errorf("error writing secrets file: %w", err)
	}
	return nil
}

// GetSecret returns the value of the named secret.
func (p *FileProvider) GetSecret(_ context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.NewValidationError("secret name cannot be empty", nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return "", err
	}
	value, ok := values[name]
	if !ok {
		return "", secretNotFound(name)
	}
	return value, nil
}

// SetSecret stores a secret, rewriting the backing file.
func (p *FileProvider) SetSecret(_ context.Context, name, value string) error {
	if name == "" {
		return errors.NewValidationError("secret name cannot be empty", nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return err
	}
	values[name] = value
	return p.save(values)
}

// ListSecrets returns the names of all stored secrets.
func (p *FileProvider) ListSecrets(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Capabilities reports full read/write support.
func (*FileProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{CanWrite: true, CanList: true}
}

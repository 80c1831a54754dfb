// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package preprocess

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FileReader is the slice of the VFS the preprocessor needs.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// NoopPreprocessor parses YAML as-is, resolving no directives. It is
// the default when no extended-YAML features are configured.
type NoopPreprocessor struct {
	files FileReader
}

// NewNoopPreprocessor returns a pass-through preprocessor.
func NewNoopPreprocessor(files FileReader) *NoopPreprocessor {
	return &NoopPreprocessor{files: files}
}

// Process reads and decodes the file without touching directives.
func (p *NoopPreprocessor) Process(ctx context.Context, path string) (map[string]any, error) {
	raw, err := p.files.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tree, nil
}

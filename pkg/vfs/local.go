// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// LocalProvider reads files from the local filesystem.
type LocalProvider struct{}

// NewLocalProvider creates a local filesystem provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// ReadFile returns the content of the file at path.
func (*LocalProvider) ReadFile(_ context.Context, path string) ([]byte, error) {
	content, err := os.ReadFile(path) // #nosec G304: paths are checked by the path validator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("file not found: %s", path), err)
		}
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read file %s", path), err)
	}
	return content, nil
}

// FileExists reports whether path names an existing regular file.
func (*LocalProvider) FileExists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewInternalError(fmt.Sprintf("failed to stat file %s", path), err)
	}
	return !info.IsDir(), nil
}

// ListFiles returns the regular files matching the glob pattern, sorted.
func (*LocalProvider) ListFiles(_ context.Context, glob string) ([]string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("invalid glob pattern %s", glob), err)
	}
	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)
	return files, nil
}

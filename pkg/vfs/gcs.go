// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"google.golang.org/api/googleapi"
	storage "google.golang.org/api/storage/v1"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// GCSProvider reads files from Google Cloud Storage buckets. Paths take the
// form gs://bucket/object.
type GCSProvider struct {
	objects *storage.ObjectsService
}

// NewGCSProvider creates a GCS-backed file provider.
func NewGCSProvider(service *storage.Service) *GCSProvider {
	return &GCSProvider{objects: service.Objects}
}

func parseGCSPath(raw string) (bucket, object string, err error) {
	_, rest := SplitScheme(raw)
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", errors.NewValidationError(fmt.Sprintf("invalid GCS path: %s", raw), nil)
	}
	return bucket, object, nil
}

func isGCSNotFound(err error) bool {
	var apiErr *googleapi.Error
	return stderrors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// ReadFile returns the content of the object at path.
func (p *GCSProvider) ReadFile(ctx context.Context, rawPath string) ([]byte, error) {
	bucket, object, err := parseGCSPath(rawPath)
	if err != nil {
		return nil, err
	}
	resp, err := p.objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		if isGCSNotFound(err) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("file not found: %s", rawPath), err)
		}
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read %s", rawPath), err)
	}
	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read %s", rawPath), err)
	}
	return content, nil
}

// FileExists reports whether the object at path exists.
func (p *GCSProvider) FileExists(ctx context.Context, rawPath string) (bool, error) {
	bucket, object, err := parseGCSPath(rawPath)
	if err != nil {
		return false, err
	}
	_, err = p.objects.Get(bucket, object).Context(ctx).Do()
	if err != nil {
		if isGCSNotFound(err) {
			return false, nil
		}
		return false, errors.NewInternalError(fmt.Sprintf("failed to stat %s", rawPath), err)
	}
	return true, nil
}

// ListFiles returns the objects matching the glob, e.g.
// gs://bucket/sqls/*.yaml.
func (p *GCSProvider) ListFiles(ctx context.Context, glob string) ([]string, error) {
	bucket, objectGlob, err := parseGCSPath(glob)
	if err != nil {
		return nil, err
	}
	prefix, pattern := path.Split(objectGlob)

	var files []string
	call := p.objects.List(bucket).Prefix(prefix).Context(ctx)
	err = call.Pages(ctx, func(page *storage.Objects) error {
		for _, obj := range page.Items {
			dir, base := path.Split(obj.Name)
			if dir != prefix {
				continue
			}
			matched, err := path.Match(pattern, base)
			if err != nil {
				return errors.NewConfigurationError(fmt.Sprintf("invalid glob pattern %s", glob), err)
			}
			if matched {
				files = append(files, "gs://"+bucket+"/"+obj.Name)
			}
		}
		return nil
	})
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternalError(fmt.Sprintf("failed to list %s", glob), err)
	}
	sort.Strings(files)
	return files, nil
}

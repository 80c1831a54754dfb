// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// stubS3 serves objects from an in-memory map keyed by "bucket/key" and
// paginates listings two objects at a time.
type stubS3 struct {
	objects map[string]string
}

func (s *stubS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content, ok := s.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte(content)))}, nil
}

func (s *stubS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := s.objects[*params.Bucket+"/"+*params.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (s *stubS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for name := range s.objects {
		bucket, key, _ := strings.Cut(name, "/")
		if bucket != *params.Bucket {
			continue
		}
		if params.Prefix != nil && !strings.HasPrefix(key, *params.Prefix) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	start := 0
	if params.ContinuationToken != nil {
		start = sort.SearchStrings(keys, *params.ContinuationToken)
	}
	end := start + 2
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, key := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func TestS3ProviderReadFile(t *testing.T) {
	t.Parallel()

	provider := NewS3Provider(&stubS3{objects: map[string]string{
		"data/sqls/customers.yaml": "url: /customers",
	}})

	content, err := provider.ReadFile(context.Background(), "s3://data/sqls/customers.yaml")
	require.NoError(t, err)
	assert.Equal(t, "url: /customers", string(content))

	_, err = provider.ReadFile(context.Background(), "s3://data/sqls/missing.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	_, err = provider.ReadFile(context.Background(), "s3://data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid S3 path")
}

func TestS3ProviderFileExists(t *testing.T) {
	t.Parallel()

	provider := NewS3Provider(&stubS3{objects: map[string]string{
		"data/sqls/customers.yaml": "url: /customers",
	}})

	exists, err := provider.FileExists(context.Background(), "s3://data/sqls/customers.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = provider.FileExists(context.Background(), "s3://data/sqls/missing.yaml")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3ProviderListFiles(t *testing.T) {
	t.Parallel()

	provider := NewS3Provider(&stubS3{objects: map[string]string{
		"data/sqls/customers.yaml":     "a",
		"data/sqls/orders.yaml":        "b",
		"data/sqls/products.yaml":      "c",
		"data/sqls/query.sql":          "d",
		"data/sqls/nested/deeper.yaml": "e",
		"data/other/readme.yaml":       "f",
	}})

	files, err := provider.ListFiles(context.Background(), "s3://data/sqls/*.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"s3://data/sqls/customers.yaml",
		"s3://data/sqls/orders.yaml",
		"s3://data/sqls/products.yaml",
	}, files)
}

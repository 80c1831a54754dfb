// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// S3API is the subset of the S3 client used by the provider.
// This allows for mocking in tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Provider reads files from S3 buckets. Paths take the form
// s3://bucket/key.
type S3Provider struct {
	client S3API
}

// NewS3Provider creates an S3-backed file provider.
func NewS3Provider(client S3API) *S3Provider {
	return &S3Provider{client: client}
}

// parseS3Path splits s3://bucket/key into bucket and key.
func parseS3Path(raw string) (bucket, key string, err error) {
	_, rest := SplitScheme(raw)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.NewValidationError(fmt.Sprintf("invalid S3 path: %s", raw), nil)
	}
	return bucket, key, nil
}

// ReadFile returns the content of the object at path.
func (p *S3Provider) ReadFile(ctx context.Context, rawPath string) ([]byte, error) {
	bucket, key, err := parseS3Path(rawPath)
	if err != nil {
		return nil, err
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("file not found: %s", rawPath), err)
		}
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read %s", rawPath), err)
	}
	defer func() { _ = out.Body.Close() }()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read %s", rawPath), err)
	}
	return content, nil
}

// FileExists reports whether the object at path exists.
func (p *S3Provider) FileExists(ctx context.Context, rawPath string) (bool, error) {
	bucket, key, err := parseS3Path(rawPath)
	if err != nil {
		return false, err
	}
	_, err = p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if stderrors.As(err, &notFound) {
			return false, nil
		}
		return false, errors.NewInternalError(fmt.Sprintf("failed to stat %s", rawPath), err)
	}
	return true, nil
}

// ListFiles returns the objects matching the glob, e.g.
// s3://bucket/sqls/*.yaml.
func (p *S3Provider) ListFiles(ctx context.Context, glob string) ([]string, error) {
	bucket, keyGlob, err := parseS3Path(glob)
	if err != nil {
		return nil, err
	}
	prefix, pattern := path.Split(keyGlob)

	var files []string
	var continuation *string
	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, errors.NewInternalError(fmt.Sprintf("failed to list %s", glob), err)
		}
		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			// Objects nested deeper than the glob's directory never match.
			dir, base := path.Split(*obj.Key)
			if dir != prefix {
				continue
			}
			matched, err := path.Match(pattern, base)
			if err != nil {
				return nil, errors.NewConfigurationError(fmt.Sprintf("invalid glob pattern %s", glob), err)
			}
			if matched {
				files = append(files, "s3://"+bucket+"/"+*obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	sort.Strings(files)
	return files, nil
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
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
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Provider resolves secrets from objects in an S3 bucket. Each secret is
// one object whose key is the secret name under the configured prefix and
// whose body is the secret value.
type S3Provider struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Provider creates an S3-backed secret provider.
func NewS3Provider(client S3API, bucket, prefix string) (*S3Provider, error) {
	if bucket == "" {
		return nil, errors.NewConfigurationError("s3 secrets bucket cannot be empty", nil)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Provider{client: client, bucket: bucket, prefix: prefix}, nil
}

func (p *S3Provider) key(name string) string {
	return p.prefix + name
}

// GetSecret returns the value of the named secret.
func (p *S3Provider) GetSecret(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.NewValidationError("secret name cannot be empty", nil)
	}
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return "", secretNotFound(name)
		}
		return "", errors.NewInternalError(fmt.Sprintf("failed to fetch secret %s from s3", name), err)
	}
	defer func() { _ = out.Body.Close() }()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return "", errors.NewInternalError(fmt.Sprintf("failed to read secret %s from s3", name), err)
	}
	return strings.TrimRight(string(value), "\n"), nil
}

// SetSecret stores a secret as an S3 object.
func (p *S3Provider) SetSecret(ctx context.Context, name, value string) error {
	if name == "" {
		return errors.NewValidationError("secret name cannot be empty", nil)
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(name)),
		Body:   strings.NewReader(value),
	})
	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to store secret %s in s3", name), err)
	}
	return nil
}

// ListSecrets returns the names of all secrets under the prefix.
func (p *S3Provider) ListSecrets(ctx context.Context) ([]string, error) {
	var names []string
	var continuation *string
	for {
		out, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(p.bucket),
			Prefix:            aws.String(p.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, errors.NewInternalError("failed to list secrets in s3", err)
		}
		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			names = append(names, strings.TrimPrefix(*obj.Key, p.prefix))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	sort.Strings(names)
	return names, nil
}

// Capabilities reports full read/write support.
func (*S3Provider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{CanWrite: true, CanList: true}
}

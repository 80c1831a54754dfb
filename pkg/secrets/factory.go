// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options carries provider-specific settings for the factory.
type Options struct {
	// FilePath locates the secrets file for the file provider.
	FilePath string

	// S3Bucket, S3Prefix, and S3Region configure the s3 provider. Region
	// falls back to the ambient AWS configuration when empty.
	S3Bucket string
	S3Prefix string
	S3Region string
}

// CreateSecretProvider creates the specified type of secret provider.
func CreateSecretProvider(ctx context.Context, providerType ProviderType, opts Options) (Provider, error) {
	switch providerType {
	case EnvironmentType:
		return NewEnvironmentProvider(), nil
	case FileType:
		return NewFileProvider(opts.FilePath)
	case S3Type:
		var loadOpts []func(*awsconfig.LoadOptions) error
		if opts.S3Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		return NewS3Provider(s3.NewFromConfig(cfg), opts.S3Bucket, opts.S3Prefix)
	default:
		return nil, ErrUnknownProviderType
	}
}

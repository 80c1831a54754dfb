// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package credentials

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// NewS3Client builds a long-lived S3 client from the resolved state.
// Without explicit keys the SDK's default chain applies, so the client is
// usable on instances with ambient credentials even when nothing was
// configured here.
func (m *Manager) NewS3Client(ctx context.Context) (*s3.Client, error) {
	state := m.aws
	if state == nil {
		state = &AWS{}
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if state.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(state.Region))
	}
	if state.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscredentials.NewStaticCredentialsProvider(state.AccessKeyID, state.SecretAccessKey, state.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to load AWS configuration", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if state.EndpointURL != "" {
			// Custom endpoints are S3-compatible stores; those expect
			// path-style addressing.
			o.BaseEndpoint = aws.String(state.EndpointURL)
			o.UsePathStyle = true
		}
	}), nil
}

// NewGCSService builds a long-lived Cloud Storage service from the resolved
// state, falling back to application default credentials.
func (m *Manager) NewGCSService(ctx context.Context) (*storage.Service, error) {
	var opts []option.ClientOption
	if m.gcp != nil && m.gcp.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.gcp.CredentialsFile))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to create GCS client", err)
	}
	return svc, nil
}

// NewAzureBlobClient builds a long-lived blob client from the resolved
// state. A connection string wins; otherwise the storage account is
// combined with either a shared key or the identity default chain.
func (m *Manager) NewAzureBlobClient() (*azblob.Client, error) {
	state := m.azure
	if state == nil {
		return nil, errors.NewConfigurationError("Azure credentials are not configured", nil)
	}

	if state.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(state.ConnectionString, nil)
		if err != nil {
			return nil, errors.NewConfigurationError("failed to create Azure blob client from connection string", err)
		}
		return client, nil
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", state.StorageAccount)
	if state.StorageKey != "" {
		cred, err := azblob.NewSharedKeyCredential(state.StorageAccount, state.StorageKey)
		if err != nil {
			return nil, errors.NewConfigurationError("invalid Azure shared key credential", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, errors.NewConfigurationError("failed to create Azure blob client", err)
		}
		return client, nil
	}

	// Tenant and client IDs are consumed by the default chain through the
	// standard AZURE_* variables.
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to resolve Azure identity", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, errors.NewConfigurationError("failed to create Azure blob client", err)
	}
	return client, nil
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// AzureProvider reads files from Azure Blob Storage. Paths take the form
// az://container/blob; the azure:// alias routes here as well. The client
// is bound to one storage account by the credential manager.
type AzureProvider struct {
	client *azblob.Client
}

// NewAzureProvider creates an Azure Blob Storage file provider.
func NewAzureProvider(client *azblob.Client) *AzureProvider {
	return &AzureProvider{client: client}
}

func parseAzurePath(raw string) (container, blob string, err error) {
	_, rest := SplitScheme(raw)
	container, blob, ok := strings.Cut(rest, "/")
	if !ok || container == "" || blob == "" {
		return "", "", errors.NewValidationError(fmt.Sprintf("invalid Azure path: %s", raw), nil)
	}
	return container, blob, nil
}

// ReadFile returns the content of the blob at path.
func (p *AzureProvider) ReadFile(ctx context.Context, rawPath string) ([]byte, error) {
	container, blob, err := parseAzurePath(rawPath)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
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

// FileExists reports whether the blob at path exists.
func (p *AzureProvider) FileExists(ctx context.Context, rawPath string) (bool, error) {
	container, blob, err := parseAzurePath(rawPath)
	if err != nil {
		return false, err
	}
	blobClient := p.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob)
	_, err = blobClient.GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, errors.NewInternalError(fmt.Sprintf("failed to stat %s", rawPath), err)
	}
	return true, nil
}

// ListFiles returns the blobs matching the glob, e.g.
// az://container/sqls/*.yaml.
func (p *AzureProvider) ListFiles(ctx context.Context, glob string) ([]string, error) {
	container, blobGlob, err := parseAzurePath(glob)
	if err != nil {
		return nil, err
	}
	prefix, pattern := path.Split(blobGlob)

	var files []string
	pager := p.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.NewInternalError(fmt.Sprintf("failed to list %s", glob), err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			dir, base := path.Split(*item.Name)
			if dir != prefix {
				continue
			}
			matched, err := path.Match(pattern, base)
			if err != nil {
				return nil, errors.NewConfigurationError(fmt.Sprintf("invalid glob pattern %s", glob), err)
			}
			if matched {
				files = append(files, "az://"+container+"/"+*item.Name)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package vfs

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/networking"
)

// maxHTTPFileSize bounds how much of a remote file is read (64MB).
const maxHTTPFileSize = 64 * 1024 * 1024

// HTTPProvider reads files over HTTP(S). Listing is not supported; HTTP has
// no directory semantics.
type HTTPProvider struct {
	client networking.HTTPClient
}

// NewHTTPProvider creates an HTTP(S) file provider using the shared
// validating client. Plain http:// sources require allowInsecure.
func NewHTTPProvider(allowInsecure bool) (*HTTPProvider, error) {
	client, err := networking.NewHttpClientBuilder().
		WithInsecureHTTP(allowInsecure).
		Build()
	if err != nil {
		return nil, err
	}
	return &HTTPProvider{client: client}, nil
}

// NewHTTPProviderWithClient creates a provider around an existing client.
func NewHTTPProviderWithClient(client networking.HTTPClient) *HTTPProvider {
	return &HTTPProvider{client: client}
}

// ReadFile fetches the URL and returns the response body.
func (p *HTTPProvider) ReadFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid URL: %s", url), err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to fetch %s", url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewNotFoundError(fmt.Sprintf("file not found: %s", url), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewInternalError(fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, url), nil)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPFileSize))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read %s", url), err)
	}
	return content, nil
}

// FileExists issues a HEAD request for the URL.
func (p *HTTPProvider) FileExists(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, errors.NewValidationError(fmt.Sprintf("invalid URL: %s", url), err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, errors.NewInternalError(fmt.Sprintf("failed to check %s", url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, errors.NewInternalError(fmt.Sprintf("unexpected status %d checking %s", resp.StatusCode, url), nil)
	}
}

// ListFiles always fails: HTTP exposes no listing operation.
func (*HTTPProvider) ListFiles(_ context.Context, glob string) ([]string, error) {
	return nil, errors.NewConfigurationError(fmt.Sprintf("listing is not supported for http(s) paths: %s", glob), nil)
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package oidc validates OIDC bearer tokens: provider discovery, JWKS
// management with key rotation, RS256/384/512 signature verification,
// and claim extraction into an AuthContext.
package oidc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/networking"
)

// DefaultDiscoveryTTL is how long a discovery document is served from
// cache before it is fetched again.
const DefaultDiscoveryTTL = 24 * time.Hour

// Document is the subset of the OIDC provider metadata the gateway uses.
type Document struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
	IntrospectionEndpoint string `json:"introspection_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
}

type discoveryEntry struct {
	doc       *Document
	fetchedAt time.Time
}

// DiscoveryClient fetches and caches provider metadata per issuer.
type DiscoveryClient struct {
	client networking.HTTPClient
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]discoveryEntry

	now func() time.Time
}

// NewDiscoveryClient builds a discovery client on the given HTTP client.
// A non-positive ttl falls back to DefaultDiscoveryTTL.
func NewDiscoveryClient(client networking.HTTPClient, ttl time.Duration) *DiscoveryClient {
	if ttl <= 0 {
		ttl = DefaultDiscoveryTTL
	}
	return &DiscoveryClient{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]discoveryEntry),
		now:    time.Now,
	}
}

// WellKnownURL returns the discovery endpoint for an issuer.
func WellKnownURL(issuer string) string {
	return strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
}

// Discover returns the provider metadata for issuer, from cache when
// fresh. Metadata missing issuer or jwks_uri is a hard failure.
func (c *DiscoveryClient) Discover(ctx context.Context, issuer string) (*Document, error) {
	c.mu.Lock()
	entry, ok := c.cache[issuer]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.doc, nil
	}

	// Fetch outside the lock; a concurrent miss costs one extra request.
	result, err := networking.FetchJSON[Document](ctx, c.client, WellKnownURL(issuer))
	if err != nil {
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("OIDC discovery failed for %s", issuer), err)
	}
	doc := result.Data
	if doc.Issuer == "" {
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("OIDC metadata from %s has no issuer", issuer), nil)
	}
	if doc.JWKSURI == "" {
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("OIDC metadata from %s has no jwks_uri", issuer), nil)
	}

	c.mu.Lock()
	c.cache[issuer] = discoveryEntry{doc: &doc, fetchedAt: c.now()}
	c.mu.Unlock()
	return &doc, nil
}

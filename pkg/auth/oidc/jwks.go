// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
)

// DefaultJWKSTTL is the key-set cache lifetime when the endpoint config
// does not set jwks_cache_hours.
const DefaultJWKSTTL = 24 * time.Hour

type jwksEntry struct {
	set       jwk.Set
	fetchedAt time.Time
}

// JWKSManager fetches and caches JSON Web Key Sets per URL. Key rotation
// is handled on the lookup path: an unknown kid forces exactly one
// refresh before the lookup is declared a miss.
type JWKSManager struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]jwksEntry

	now func() time.Time
}

// NewJWKSManager builds a JWKS manager on the given HTTP client.
func NewJWKSManager(client *http.Client) *JWKSManager {
	return &JWKSManager{
		client: client,
		cache:  make(map[string]jwksEntry),
		now:    time.Now,
	}
}

// GetKey returns the public key with the given kid from the key set at
// url, fetching or refreshing the set as needed. ttl bounds how long a
// cached set is trusted; non-positive means DefaultJWKSTTL.
func (m *JWKSManager) GetKey(ctx context.Context, kid, url string, ttl time.Duration) (any, error) {
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}

	set, err := m.lookupSet(ctx, url, ttl, false)
	if err != nil {
		return nil, err
	}
	if key, ok := set.LookupKeyID(kid); ok {
		return exportKey(key)
	}

	// Unknown kid: the provider may have rotated keys since the last
	// fetch. Refresh once and retry.
	logger.Infow("kid not in cached JWKS, refreshing", "kid", kid, "url", url)
	set, err = m.lookupSet(ctx, url, ttl, true)
	if err != nil {
		return nil, err
	}
	if key, ok := set.LookupKeyID(kid); ok {
		return exportKey(key)
	}
	return nil, errors.NewAuthenticationError(
		fmt.Sprintf("key %s not found in JWKS", kid), nil)
}

func (m *JWKSManager) lookupSet(ctx context.Context, url string, ttl time.Duration, force bool) (jwk.Set, error) {
	m.mu.Lock()
	entry, ok := m.cache[url]
	m.mu.Unlock()
	if ok && !force && m.now().Sub(entry.fetchedAt) < ttl {
		return entry.set, nil
	}

	set, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(m.client))
	if err != nil {
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("failed to fetch JWKS from %s", url), err)
	}

	m.mu.Lock()
	m.cache[url] = jwksEntry{set: set, fetchedAt: m.now()}
	m.mu.Unlock()
	return set, nil
}

// exportKey converts a JWK into the raw public key the JWT library
// verifies signatures with.
func exportKey(key jwk.Key) (any, error) {
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, errors.NewAuthenticationError("failed to export JWKS key", err)
	}
	return raw, nil
}

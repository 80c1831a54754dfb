// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/networking"
)

func testHTTPClient(t *testing.T) *http.Client {
	t.Helper()
	client, err := networking.NewHttpClientBuilder().
		WithPrivateIPs(true).
		WithInsecureHTTP(true).
		Build()
	require.NoError(t, err)
	return client
}

func TestDiscoverCachesPerIssuer(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/openid-configuration", r.URL.Path)
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"issuer":         "https://issuer.example.com",
			"jwks_uri":       "https://issuer.example.com/jwks",
			"token_endpoint": "https://issuer.example.com/token",
		}))
	}))
	t.Cleanup(server.Close)

	client := NewDiscoveryClient(testHTTPClient(t), time.Hour)
	ctx := context.Background()

	first, err := client.Discover(ctx, server.URL)
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example.com/jwks", first.JWKSURI)
	assert.Equal(t, "https://issuer.example.com/token", first.TokenEndpoint)

	second, err := client.Discover(ctx, server.URL)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestDiscoverRefetchesAfterTTL(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"https://issuer.example.com","jwks_uri":"https://issuer.example.com/jwks"}`))
	}))
	t.Cleanup(server.Close)

	client := NewDiscoveryClient(testHTTPClient(t), time.Hour)
	now := time.Now()
	client.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := client.Discover(ctx, server.URL)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = client.Discover(ctx, server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestDiscoverHardFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing issuer", body: `{"jwks_uri":"https://x/jwks"}`},
		{name: "missing jwks_uri", body: `{"issuer":"https://x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			client := NewDiscoveryClient(testHTTPClient(t), time.Hour)
			_, err := client.Discover(context.Background(), server.URL)
			require.Error(t, err)
			assert.True(t, errors.IsAuthentication(err))
		})
	}
}

func TestDiscoverUnreachableIssuer(t *testing.T) {
	t.Parallel()

	client := NewDiscoveryClient(testHTTPClient(t), time.Hour)
	_, err := client.Discover(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)
	assert.True(t, errors.IsAuthentication(err))
}

func TestWellKnownURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"https://sso.example.com/realms/acme/.well-known/openid-configuration",
		WellKnownURL("https://sso.example.com/realms/acme/"))
}

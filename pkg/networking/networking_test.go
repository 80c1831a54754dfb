// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressReferencesPrivateIp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{"loopback", "127.0.0.1:443", true},
		{"rfc1918 ten", "10.1.2.3:443", true},
		{"rfc1918 oneseventwo", "172.16.0.1:8080", true},
		{"rfc1918 oneninetwo", "192.168.1.1:443", true},
		{"link local", "169.254.0.5:80", true},
		{"ipv6 loopback", "[::1]:443", true},
		{"public v4", "93.184.216.34:443", false},
		{"missing port", "127.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := AddressReferencesPrivateIp(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type recordingTransport struct {
	called bool
}

func (r *recordingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	r.called = true
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
}

func TestValidatingTransportRejectsNonHTTPS(t *testing.T) {
	t.Parallel()

	inner := &recordingTransport{}
	transport := &ValidatingTransport{Transport: inner}

	req, err := http.NewRequest(http.MethodGet, "http://issuer.example.com/.well-known/openid-configuration", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not HTTPS")
	assert.False(t, inner.called)
}

func TestValidatingTransportAllowsHTTPWhenEnabled(t *testing.T) {
	t.Parallel()

	inner := &recordingTransport{}
	transport := &ValidatingTransport{Transport: inner, AllowHTTP: true}

	req, err := http.NewRequest(http.MethodGet, "http://localhost:8080/jwks", nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, inner.called)
}

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	client, err := NewHttpClientBuilder().Build()
	require.NoError(t, err)
	assert.Equal(t, HttpTimeout, client.Timeout)

	vt, ok := client.Transport.(*ValidatingTransport)
	require.True(t, ok)
	assert.False(t, vt.AllowHTTP)
}

func TestFetchJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"issuer":"https://idp.example.com","jwks_uri":"https://idp.example.com/jwks"}`))
		case "/teapot":
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		}
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		res, err := FetchJSON[payload](ctx, srv.Client(), srv.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, "https://idp.example.com", res.Data.Issuer)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("http error carries status and preview", func(t *testing.T) {
		t.Parallel()
		_, err := FetchJSON[payload](ctx, srv.Client(), srv.URL+"/teapot")
		require.Error(t, err)
		assert.True(t, IsHTTPError(err, http.StatusTeapot))
		assert.Contains(t, err.Error(), "short and stout")
	})

	t.Run("content type validated", func(t *testing.T) {
		t.Parallel()
		_, err := FetchJSON[payload](ctx, srv.Client(), srv.URL+"/html")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected content type")
	})
}

func TestFetchJSONWithForm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	}))
	defer srv.Close()

	type tokenResponse struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}

	form := url.Values{"grant_type": []string{"client_credentials"}}
	res, err := FetchJSONWithForm[tokenResponse](context.Background(), srv.Client(), srv.URL, form)
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Data.AccessToken)
}

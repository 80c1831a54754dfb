// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// Flows runs the OAuth2 grants the gateway itself initiates: the
// client-credentials grant for service identities and the refresh-token
// grant that keeps long-lived MCP sessions authenticated.
type Flows struct {
	discovery *DiscoveryClient
	client    *http.Client
}

// NewFlows builds the flow runner on the shared discovery cache.
func NewFlows(discovery *DiscoveryClient, client *http.Client) *Flows {
	return &Flows{discovery: discovery, client: client}
}

// Flows reuses the validator's discovery cache so token-endpoint lookups
// do not refetch provider metadata.
func (v *Validator) Flows(client *http.Client) *Flows {
	return NewFlows(v.discovery, client)
}

// ClientCredentialsToken obtains a token via the client-credentials
// grant for the endpoint's configured client.
func (f *Flows) ClientCredentialsToken(ctx context.Context, cfg *endpoints.OIDCConfig) (*oauth2.Token, error) {
	resolved, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	doc, err := f.discovery.Discover(ctx, resolved.Issuer)
	if err != nil {
		return nil, err
	}
	if doc.TokenEndpoint == "" {
		return nil, errors.NewAuthenticationError("provider publishes no token endpoint", nil)
	}

	cc := clientcredentials.Config{
		ClientID:     resolved.ClientID,
		ClientSecret: resolved.ClientSecret,
		TokenURL:     doc.TokenEndpoint,
		Scopes:       resolved.Scopes,
	}
	token, err := cc.Token(f.oauthContext(ctx))
	if err != nil {
		return nil, errors.NewAuthenticationError("client credentials grant failed", err)
	}
	return token, nil
}

// RefreshToken redeems a refresh token for a new access token.
func (f *Flows) RefreshToken(ctx context.Context, cfg *endpoints.OIDCConfig, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.NewAuthenticationError("no refresh token bound to session", nil)
	}
	resolved, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	doc, err := f.discovery.Discover(ctx, resolved.Issuer)
	if err != nil {
		return nil, err
	}
	if doc.TokenEndpoint == "" {
		return nil, errors.NewAuthenticationError("provider publishes no token endpoint", nil)
	}

	conf := &oauth2.Config{
		ClientID:     resolved.ClientID,
		ClientSecret: resolved.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: doc.TokenEndpoint},
		Scopes:       resolved.Scopes,
	}
	// A token with only RefreshToken set and an expired Expiry forces
	// the token source through the refresh grant.
	seed := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Now().Add(-time.Minute)}
	token, err := conf.TokenSource(f.oauthContext(ctx), seed).Token()
	if err != nil {
		return nil, errors.NewAuthenticationError("refresh token grant failed", err)
	}
	return token, nil
}

// oauthContext routes the oauth2 library's HTTP traffic through the
// gateway's validating client instead of http.DefaultClient.
func (f *Flows) oauthContext(ctx context.Context) context.Context {
	if f.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, f.client)
}

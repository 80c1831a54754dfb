// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// TokenValidator validates an OIDC bearer token into an AuthContext.
// Implemented by the oidc subpackage; declared here so this package
// never imports its own child.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string, cfg *endpoints.OIDCConfig) (*AuthContext, error)
}

// Handler dispatches a request's Authorization header to the
// authenticator the endpoint's auth block selects. Both the REST
// middleware and the MCP dispatcher authenticate through it.
type Handler struct {
	basic  *BasicAuthenticator
	bearer *BearerAuthenticator
	oidc   TokenValidator
}

// NewHandler builds the auth handler. users backs external-secret basic
// auth and may be nil; oidc may be nil when no endpoint uses OIDC.
func NewHandler(users LocalUserStore, oidc TokenValidator) *Handler {
	return &Handler{
		basic:  NewBasicAuthenticator(users),
		bearer: NewBearerAuthenticator(),
		oidc:   oidc,
	}
}

// Authenticate checks the Authorization header value against the
// endpoint's auth block. Disabled auth returns (nil, nil): the request
// proceeds anonymously.
func (h *Handler) Authenticate(ctx context.Context, authorization string, cfg *endpoints.AuthConfig) (*AuthContext, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if authorization == "" {
		return nil, errors.NewAuthenticationError("authorization required", nil)
	}

	switch strings.ToLower(cfg.Type) {
	case TypeBasic, "":
		return h.basic.Authenticate(ctx, authorization, cfg)
	case TypeBearer:
		return h.bearer.Authenticate(ctx, authorization, cfg)
	case TypeOIDC:
		if h.oidc == nil || cfg.OIDC == nil {
			return nil, errors.NewConfigurationError("OIDC auth is not configured", nil)
		}
		token := strings.TrimPrefix(authorization, "Bearer ")
		if token == authorization {
			return nil, errors.NewAuthenticationError("bearer token required", nil)
		}
		return h.oidc.ValidateToken(ctx, token, cfg.OIDC)
	default:
		return nil, errors.NewConfigurationError(fmt.Sprintf("unknown auth type: %s", cfg.Type), nil)
	}
}

// Challenge returns the WWW-Authenticate header value for a 401 on this
// endpoint, empty when the auth type issues no challenge.
func Challenge(cfg *endpoints.AuthConfig) string {
	if cfg == nil || !cfg.Enabled {
		return ""
	}
	switch strings.ToLower(cfg.Type) {
	case TypeBasic, "":
		realm := cfg.Realm
		if realm == "" {
			realm = "flapi"
		}
		return fmt.Sprintf("Basic realm=%q", realm)
	default:
		return ""
	}
}

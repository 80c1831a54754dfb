// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/flapi-dev/flapi/pkg/auth"
	"github.com/flapi-dev/flapi/pkg/auth/oidc"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/logger"
)

// Authenticator resolves an Authorization header against an endpoint's
// auth block. Implemented by auth.Handler.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string, cfg *endpoints.AuthConfig) (*auth.AuthContext, error)
}

// SessionRefresher renews a session's OIDC auth context when its access
// token nears expiry.
type SessionRefresher interface {
	Refresh(ctx context.Context, cfg *endpoints.OIDCConfig, ac *auth.AuthContext) (*auth.AuthContext, error)
}

// OIDCRefresher refreshes an access token with the refresh-token grant
// and revalidates the result into a fresh auth context.
type OIDCRefresher struct {
	flows     *oidc.Flows
	validator *oidc.Validator
}

// NewOIDCRefresher builds a refresher sharing the validator's discovery
// cache.
func NewOIDCRefresher(flows *oidc.Flows, validator *oidc.Validator) *OIDCRefresher {
	return &OIDCRefresher{flows: flows, validator: validator}
}

// Refresh exchanges the stored refresh token for a new access token and
// validates it. The provider may rotate the refresh token; when it does
// not return one, the previous token is kept.
func (r *OIDCRefresher) Refresh(ctx context.Context, cfg *endpoints.OIDCConfig, ac *auth.AuthContext) (*auth.AuthContext, error) {
	token, err := r.flows.RefreshToken(ctx, cfg, ac.RefreshToken)
	if err != nil {
		return nil, err
	}
	renewed, err := r.validator.ValidateToken(ctx, token.AccessToken, cfg)
	if err != nil {
		return nil, err
	}
	renewed.RefreshToken = token.RefreshToken
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = ac.RefreshToken
	}
	return renewed, nil
}

// authorize enforces the endpoint's auth block for one MCP call. A
// session's bound auth context satisfies later calls without resending
// credentials; otherwise the Authorization header is checked and, when
// a session exists, the result is bound to it.
func (d *Dispatcher) authorize(
	ctx context.Context,
	httpReq *http.Request,
	session Session,
	hasSession bool,
	e *endpoints.EndpointConfig,
) (*auth.AuthContext, *Error) {
	if !e.Auth.Enabled {
		return nil, nil
	}

	if hasSession && session.Authenticated() {
		ac := d.refreshSessionAuth(ctx, session, e)
		if !ac.IsTokenExpired(time.Now()) {
			return ac, nil
		}
		// Expired with no refresh path: fall through to the header.
	}

	if d.auth == nil {
		return nil, &Error{Code: CodeAuthRequired, Message: "authentication is not configured"}
	}
	ac, err := d.auth.Authenticate(ctx, httpReq.Header.Get("Authorization"), &e.Auth)
	if err != nil {
		return nil, &Error{Code: CodeAuthRequired, Message: "authentication required"}
	}
	if hasSession && ac != nil {
		d.sessions.UpdateAuth(session.ID, ac)
	}
	return ac, nil
}

// refreshSessionAuth renews the session's OIDC tokens when they are
// near expiry and a refresh token is available. Failures keep the
// current context; expiry is judged by the caller.
func (d *Dispatcher) refreshSessionAuth(ctx context.Context, session Session, e *endpoints.EndpointConfig) *auth.AuthContext {
	ac := session.Auth
	if d.refresher == nil || e.Auth.OIDC == nil || ac.RefreshToken == "" {
		return ac
	}
	if !ac.NeedsTokenRefresh(time.Now()) {
		return ac
	}
	renewed, err := d.refresher.Refresh(ctx, e.Auth.OIDC, ac)
	if err != nil {
		logger.Warnw("OIDC session token refresh failed",
			"session_id", session.ID, "error", err)
		return ac
	}
	d.sessions.UpdateAuth(session.ID, renewed)
	return renewed
}

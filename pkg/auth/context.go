// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth gates endpoint access. It carries the basic and bearer
// authenticators, the per-endpoint dispatch between them, and the
// bootstrap that pulls external user blobs into the engine-backed local
// auth table. OIDC validation lives in the oidc subpackage.
package auth

import (
	"context"
	"time"
)

// Auth types recorded in AuthContext.AuthType.
const (
	TypeBasic  = "basic"
	TypeBearer = "bearer"
	TypeOIDC   = "oidc"
)

// AuthContext is the per-principal record of identity, roles, and token
// binding carried through a request or an MCP session. Immutable after
// creation.
type AuthContext struct {
	Authenticated bool
	Username      string
	Email         string
	Roles         []string
	Groups        []string

	// AuthType is one of basic, bearer, oidc.
	AuthType string
	AuthTime time.Time

	// OIDC token binding.
	TokenID        string
	TokenExpiresAt time.Time
	RefreshToken   string
}

// NeedsTokenRefresh reports whether the bound token expires within the
// next five minutes. Always false for non-OIDC contexts.
func (a *AuthContext) NeedsTokenRefresh(now time.Time) bool {
	if a.AuthType != TypeOIDC || a.TokenExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.TokenExpiresAt.Add(-5 * time.Minute))
}

// IsTokenExpired reports whether the bound token has expired.
func (a *AuthContext) IsTokenExpired(now time.Time) bool {
	if a.AuthType != TypeOIDC || a.TokenExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.TokenExpiresAt)
}

// AuthContextKey is the context key AuthContext travels under. An empty
// struct key cannot collide with keys from other packages.
type AuthContextKey struct{}

// WithAuthContext stores an AuthContext in the context. A nil auth
// context returns the original context unchanged.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	if ac == nil {
		return ctx
	}
	return context.WithValue(ctx, AuthContextKey{}, ac)
}

// FromContext retrieves the AuthContext from the context, if any.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey{}).(*AuthContext)
	return ac, ok
}

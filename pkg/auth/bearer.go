// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// BearerAuthenticator verifies HS256 bearer tokens signed with the
// endpoint's shared secret.
type BearerAuthenticator struct{}

// NewBearerAuthenticator returns a bearer authenticator.
func NewBearerAuthenticator() *BearerAuthenticator {
	return &BearerAuthenticator{}
}

// Authenticate validates the header value and returns the principal.
func (*BearerAuthenticator) Authenticate(_ context.Context, authorization string, cfg *endpoints.AuthConfig) (*AuthContext, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return nil, errors.NewAuthenticationError("bearer token required", nil)
	}
	tokenString := authorization[len(prefix):]

	if cfg.JWTSecret == "" {
		return nil, errors.NewConfigurationError("bearer auth requires jwt_secret", nil)
	}

	parseOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.JWTIssuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, parseOpts...)
	if err != nil {
		return nil, errors.NewAuthenticationError("invalid bearer token", err)
	}
	if !token.Valid {
		return nil, errors.NewAuthenticationError("invalid bearer token", nil)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.NewAuthenticationError("invalid bearer token claims", nil)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.NewAuthenticationError("bearer token missing sub claim", nil)
	}

	return &AuthContext{
		Authenticated: true,
		Username:      sub,
		Roles:         stringSlice(claims["roles"]),
		AuthType:      TypeBearer,
		AuthTime:      time.Now(),
	}, nil
}

// stringSlice coerces a decoded JSON claim into a string slice,
// dropping non-string members.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/flapi-dev/flapi/pkg/auth"
	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
	"github.com/flapi-dev/flapi/pkg/logger"
)

// Signing algorithms accepted on OIDC tokens.
var allowedAlgorithms = []string{"RS256", "RS384", "RS512"}

// Validator verifies OIDC bearer tokens against their issuer's published
// keys and extracts claims into an AuthContext. It implements
// auth.TokenValidator.
type Validator struct {
	discovery *DiscoveryClient
	jwks      *JWKSManager

	now func() time.Time
}

// NewValidator builds a validator sharing one HTTP client for discovery
// and JWKS traffic. The client should come from pkg/networking so the
// connect and request timeouts apply.
func NewValidator(client *http.Client) *Validator {
	return &Validator{
		discovery: NewDiscoveryClient(client, DefaultDiscoveryTTL),
		jwks:      NewJWKSManager(client),
		now:       time.Now,
	}
}

// ValidateToken verifies the token's signature, issuer, audience, and
// lifetime per cfg, then extracts identity claims. All failures surface
// as authentication errors; callers respond 401 without detail.
func (v *Validator) ValidateToken(ctx context.Context, token string, cfg *endpoints.OIDCConfig) (*auth.AuthContext, error) {
	resolved, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}

	skew := time.Duration(resolved.ClockSkewSeconds) * time.Second
	parser := jwt.NewParser(
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithLeeway(skew),
		jwt.WithExpirationRequired(),
	)

	claims := jwt.MapClaims{}
	_, err = parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		doc, err := v.discovery.Discover(ctx, resolved.Issuer)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(resolved.JWKSCacheHours) * time.Hour
		return v.jwks.GetKey(ctx, kid, doc.JWKSURI, ttl)
	})
	if err != nil {
		if e, ok := errors.As(err); ok {
			return nil, e
		}
		return nil, errors.NewAuthenticationError("token validation failed", err)
	}

	if err := v.validateIssuer(claims, resolved.Issuer); err != nil {
		return nil, err
	}
	if err := validateAudience(claims, resolved.AllowedAudiences); err != nil {
		return nil, err
	}

	return buildContext(claims, resolved, v.now())
}

func (*Validator) validateIssuer(claims jwt.MapClaims, issuer string) error {
	iss, err := claims.GetIssuer()
	if err != nil {
		return errors.NewAuthenticationError("token has no issuer claim", err)
	}
	if strings.TrimSpace(iss) != strings.TrimSpace(issuer) {
		logger.Debugw("issuer mismatch", "token_issuer", iss, "expected", issuer)
		return errors.NewAuthenticationError("token issuer mismatch", nil)
	}
	return nil
}

// validateAudience passes iff at least one audience claim value is in
// the allow-list, or the allow-list is empty.
func validateAudience(claims jwt.MapClaims, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	audiences, err := claims.GetAudience()
	if err != nil {
		return errors.NewAuthenticationError("token has no audience claim", err)
	}
	for _, aud := range audiences {
		for _, want := range allowed {
			if aud == want {
				return nil
			}
		}
	}
	return errors.NewAuthenticationError("token audience not allowed", nil)
}

func buildContext(claims jwt.MapClaims, cfg *endpoints.OIDCConfig, now time.Time) (*auth.AuthContext, error) {
	payload, err := json.Marshal(map[string]any(claims))
	if err != nil {
		return nil, errors.NewInternalError("failed to re-encode token claims", err)
	}

	username := gjson.GetBytes(payload, cfg.UsernameClaim).String()
	if username == "" {
		return nil, errors.NewAuthenticationError(
			fmt.Sprintf("token has no %s claim", cfg.UsernameClaim), nil)
	}

	ac := &auth.AuthContext{
		Authenticated: true,
		Username:      username,
		AuthType:      auth.TypeOIDC,
		AuthTime:      now,
		Roles:         extractRoles(payload, cfg),
	}
	if cfg.EmailClaim != "" {
		ac.Email = gjson.GetBytes(payload, cfg.EmailClaim).String()
	}
	if cfg.GroupsClaim != "" {
		ac.Groups = stringValues(gjson.GetBytes(payload, cfg.GroupsClaim))
	}
	if jti := gjson.GetBytes(payload, "jti").String(); jti != "" {
		ac.TokenID = jti
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ac.TokenExpiresAt = exp.Time
	}
	return ac, nil
}

// extractRoles resolves roles from the dotted role_claim_path first,
// falling back to the flat roles_claim.
func extractRoles(payload []byte, cfg *endpoints.OIDCConfig) []string {
	if cfg.RoleClaimPath != "" {
		if roles := stringValues(gjson.GetBytes(payload, cfg.RoleClaimPath)); len(roles) > 0 {
			return roles
		}
	}
	if cfg.RolesClaim != "" {
		return stringValues(gjson.GetBytes(payload, cfg.RolesClaim))
	}
	return nil
}

func stringValues(result gjson.Result) []string {
	if !result.Exists() {
		return nil
	}
	if !result.IsArray() {
		if s := result.String(); s != "" {
			return []string{s}
		}
		return nil
	}
	var values []string
	for _, v := range result.Array() {
		if s := v.String(); s != "" {
			values = append(values, s)
		}
	}
	return values
}

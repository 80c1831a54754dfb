// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package oidc

import (
	"fmt"
	"strings"

	"github.com/flapi-dev/flapi/pkg/endpoints"
	"github.com/flapi-dev/flapi/pkg/errors"
)

// Preset fills provider-specific defaults into an OIDC config. Issuer
// templates may carry {tenant}, {realm}, or {domain} placeholders the
// operator must substitute; an unsubstituted placeholder fails validation.
type Preset struct {
	Name          string
	IssuerURL     string
	UsernameClaim string
	EmailClaim    string
	RolesClaim    string
	RoleClaimPath string
	GroupsClaim   string
	Scopes        []string
}

var presets = map[string]Preset{
	"google": {
		Name:          "google",
		IssuerURL:     "https://accounts.google.com",
		UsernameClaim: "sub",
		EmailClaim:    "email",
		Scopes:        []string{"openid", "email", "profile"},
	},
	"microsoft": {
		Name:          "microsoft",
		IssuerURL:     "https://login.microsoftonline.com/{tenant}/v2.0",
		UsernameClaim: "preferred_username",
		EmailClaim:    "email",
		RolesClaim:    "roles",
		GroupsClaim:   "groups",
		Scopes:        []string{"openid", "email", "profile"},
	},
	"keycloak": {
		Name:          "keycloak",
		IssuerURL:     "https://{domain}/realms/{realm}",
		UsernameClaim: "preferred_username",
		EmailClaim:    "email",
		RoleClaimPath: "realm_access.roles",
		GroupsClaim:   "groups",
		Scopes:        []string{"openid", "email", "profile"},
	},
	"auth0": {
		Name:          "auth0",
		IssuerURL:     "https://{domain}/",
		UsernameClaim: "sub",
		EmailClaim:    "email",
		Scopes:        []string{"openid", "email", "profile"},
	},
	"okta": {
		Name:          "okta",
		IssuerURL:     "https://{domain}/oauth2/default",
		UsernameClaim: "sub",
		EmailClaim:    "email",
		GroupsClaim:   "groups",
		Scopes:        []string{"openid", "email", "profile"},
	},
	"github": {
		Name:          "github",
		IssuerURL:     "https://token.actions.githubusercontent.com",
		UsernameClaim: "sub",
		Scopes:        []string{"openid"},
	},
}

var placeholders = []string{"{tenant}", "{realm}", "{domain}"}

// LookupPreset returns the preset registered under name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(name)]
	return p, ok
}

// Resolve returns a copy of cfg with preset defaults filled in and the
// result validated. The input is never mutated: endpoint configurations
// are immutable snapshots.
func Resolve(cfg *endpoints.OIDCConfig) (*endpoints.OIDCConfig, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError("OIDC config is missing", nil)
	}
	resolved := *cfg

	if resolved.Provider != "" {
		preset, ok := LookupPreset(resolved.Provider)
		if !ok {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("unknown OIDC provider preset %q", resolved.Provider), nil)
		}
		if resolved.Issuer == "" {
			resolved.Issuer = preset.IssuerURL
		}
		if resolved.UsernameClaim == "" {
			resolved.UsernameClaim = preset.UsernameClaim
		}
		if resolved.EmailClaim == "" {
			resolved.EmailClaim = preset.EmailClaim
		}
		if resolved.RolesClaim == "" {
			resolved.RolesClaim = preset.RolesClaim
		}
		if resolved.RoleClaimPath == "" {
			resolved.RoleClaimPath = preset.RoleClaimPath
		}
		if resolved.GroupsClaim == "" {
			resolved.GroupsClaim = preset.GroupsClaim
		}
		if len(resolved.Scopes) == 0 {
			resolved.Scopes = preset.Scopes
		}
	}

	if resolved.Issuer == "" {
		return nil, errors.NewConfigurationError("OIDC issuer is required", nil)
	}
	for _, ph := range placeholders {
		if strings.Contains(resolved.Issuer, ph) {
			return nil, errors.NewConfigurationError(
				fmt.Sprintf("OIDC issuer %s contains unsubstituted placeholder %s",
					resolved.Issuer, ph), nil)
		}
	}
	if resolved.UsernameClaim == "" {
		resolved.UsernameClaim = "sub"
	}
	if resolved.JWKSCacheHours <= 0 {
		resolved.JWKSCacheHours = 24
	}
	if resolved.ClockSkewSeconds <= 0 {
		resolved.ClockSkewSeconds = 300
	}
	return &resolved, nil
}

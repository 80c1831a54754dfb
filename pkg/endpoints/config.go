// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package endpoints defines the endpoint configuration model and the
// in-memory repository the request path looks endpoints up in.
//
// One YAML file declares one endpoint: a SQL template plus request fields
// with validators, and optional cache, auth, rate-limit, and MCP blocks.
// Configurations are immutable once loaded; reloads build a fresh
// repository and publish it atomically through a Store.
package endpoints

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
)

// Parameter locations a request field can be bound from.
const (
	FieldInQuery  = "query"
	FieldInPath   = "path"
	FieldInHeader = "header"
	FieldInBody   = "body"
)

// Validator variant tags.
const (
	ValidatorString = "string"
	ValidatorInt    = "int"
	ValidatorEmail  = "email"
	ValidatorUUID   = "uuid"
	ValidatorDate   = "date"
	ValidatorTime   = "time"
	ValidatorEnum   = "enum"
)

// Auth types an endpoint can require.
const (
	AuthTypeBasic  = "basic"
	AuthTypeBearer = "bearer"
	AuthTypeOIDC   = "oidc"
)

// Rate limit strategies.
const (
	RateLimitTokenBucket = "token_bucket"
	RateLimitFixedWindow = "fixed_window"
)

// EndpointConfig is one compiled endpoint. An endpoint with a non-empty
// URLPath serves REST; one with MCP tool/resource/prompt metadata serves
// MCP; the two are independent and may coexist.
type EndpointConfig struct {
	URLPath        string   `yaml:"url_path"`
	Method         string   `yaml:"method"`
	Description    string   `yaml:"description"`
	TemplateSource string   `yaml:"template_source"`
	Connections    []string `yaml:"connection"`

	Request []RequestFieldConfig `yaml:"request"`

	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	MCPTool     *MCPToolConfig     `yaml:"mcp_tool"`
	MCPResource *MCPResourceConfig `yaml:"mcp_resource"`
	MCPPrompt   *MCPPromptConfig   `yaml:"mcp_prompt"`
}

// MCPName returns the name this endpoint is indexed under in the MCP
// repository, or "" when the endpoint exposes no MCP surface.
func (e *EndpointConfig) MCPName() string {
	switch {
	case e.MCPTool != nil && e.MCPTool.Name != "":
		return e.MCPTool.Name
	case e.MCPResource != nil && e.MCPResource.Name != "":
		return e.MCPResource.Name
	case e.MCPPrompt != nil && e.MCPPrompt.Name != "":
		return e.MCPPrompt.Name
	default:
		return ""
	}
}

// HasREST reports whether the endpoint serves a REST route.
func (e *EndpointConfig) HasREST() bool {
	return e.URLPath != ""
}

// Field returns the request field with the given name, or nil.
func (e *EndpointConfig) Field(name string) *RequestFieldConfig {
	for i := range e.Request {
		if e.Request[i].FieldName == name {
			return &e.Request[i]
		}
	}
	return nil
}

// RequestFieldConfig declares one request parameter of an endpoint.
type RequestFieldConfig struct {
	FieldName   string `yaml:"field_name"`
	FieldIn     string `yaml:"field_in"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	// Default, when non-nil, is bound in place of a missing parameter.
	Default *string `yaml:"default"`

	Validators []ValidatorConfig `yaml:"validators"`
}

// ValidatorConfig is one validation rule attached to a request field.
// Which attributes apply depends on Type.
type ValidatorConfig struct {
	Type string `yaml:"type"`

	// string: length bounds and full-match regex. int: value bounds.
	Min   int    `yaml:"min"`
	Max   int    `yaml:"max"`
	Regex string `yaml:"regex"`

	// enum
	AllowedValues []string `yaml:"allowed_values"`

	// date / time bounds in canonical form (YYYY-MM-DD / HH:MM:SS)
	MinDate string `yaml:"min_date"`
	MaxDate string `yaml:"max_date"`
	MinTime string `yaml:"min_time"`
	MaxTime string `yaml:"max_time"`

	// PreventSQLInjection defaults to true; it must be disabled explicitly.
	PreventSQLInjection *bool `yaml:"prevent_sql_injection"`
}

// SQLInjectionCheckEnabled reports whether this validator requests the
// injection heuristics. Unset means enabled.
func (v *ValidatorConfig) SQLInjectionCheckEnabled() bool {
	return v.PreventSQLInjection == nil || *v.PreventSQLInjection
}

// CursorConfig bookmarks incremental cache refreshes on a monotone column.
type CursorConfig struct {
	Column string `yaml:"column"`
	Type   string `yaml:"type"`
}

// CacheConfig controls the engine-side cache table of an endpoint.
type CacheConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Catalog        string `yaml:"catalog"`
	Schema         string `yaml:"schema"`
	Table          string `yaml:"table"`
	TemplateSource string `yaml:"template_source"`
	// Schedule is <integer><s|m|h|d>, e.g. "15m". Empty disables scheduling.
	Schedule string `yaml:"schedule"`

	Cursor      *CursorConfig `yaml:"cursor"`
	PrimaryKeys []string      `yaml:"primary_keys"`

	// Retention: by snapshot count, or by age in <integer><s|m|h|d> form.
	KeepLastSnapshots int    `yaml:"keep_last_snapshots"`
	MaxSnapshotAge    string `yaml:"max_snapshot_age"`
}

// UserConfig is an inline basic-auth user.
type UserConfig struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// ExternalSecretConfig points basic auth at a user table bootstrapped from
// an external secret store.
type ExternalSecretConfig struct {
	// Name of the secret catalog entry holding store credentials.
	Name string `yaml:"name"`
	// Table is the local secrets table users are persisted into.
	Table string `yaml:"table"`
}

// OIDCConfig configures OIDC token validation for an endpoint.
type OIDCConfig struct {
	// Provider selects a preset (google, microsoft, keycloak, auth0, okta,
	// github) that fills issuer and claim defaults.
	Provider string `yaml:"provider"`

	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	AllowedAudiences []string `yaml:"allowed_audiences"`
	Scopes           []string `yaml:"scopes"`

	UsernameClaim string `yaml:"username_claim"`
	EmailClaim    string `yaml:"email_claim"`
	RolesClaim    string `yaml:"roles_claim"`
	// RoleClaimPath supports dotted nesting, e.g. "realm_access.roles",
	// and wins over RolesClaim when set.
	RoleClaimPath string `yaml:"role_claim_path"`
	GroupsClaim   string `yaml:"groups_claim"`

	JWKSCacheHours   int `yaml:"jwks_cache_hours"`
	ClockSkewSeconds int `yaml:"clock_skew_seconds"`
}

// AuthConfig gates an endpoint behind an authenticator.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`
	Realm   string `yaml:"realm"`

	Users []UserConfig `yaml:"users"`

	// AllowLegacyHashes keeps plaintext and MD5 password comparison
	// available for stored users. Unset means allowed; new deployments
	// should store bcrypt hashes and set this to false.
	AllowLegacyHashes *bool `yaml:"allow_legacy_hashes"`

	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	OIDC           *OIDCConfig           `yaml:"oidc"`
	ExternalSecret *ExternalSecretConfig `yaml:"from_secret_store"`
}

// LegacyHashesAllowed reports whether plaintext and MD5 stored passwords
// may still verify. Defaults to true when the flag is unset.
func (a *AuthConfig) LegacyHashesAllowed() bool {
	return a.AllowLegacyHashes == nil || *a.AllowLegacyHashes
}

// RateLimitConfig throttles an endpoint.
type RateLimitConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Strategy string `yaml:"strategy"`
	// Max requests per Interval seconds.
	Max      int `yaml:"max"`
	Interval int `yaml:"interval"`
}

// MCPToolConfig exposes the endpoint as an MCP tool.
type MCPToolConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// MCPResourceConfig exposes the endpoint as an MCP resource under
// flapi://<name>.
type MCPResourceConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MIMEType    string `yaml:"mime_type"`
}

// MCPPromptArgument is one substitutable argument of a prompt.
type MCPPromptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

// MCPPromptConfig exposes the endpoint as an MCP prompt template.
type MCPPromptConfig struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Template    string              `yaml:"template"`
	Arguments   []MCPPromptArgument `yaml:"arguments"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (e *EndpointConfig) ApplyDefaults() error {
	defaults := EndpointConfig{
		Method: "GET",
		Auth: AuthConfig{
			Realm: "flapi",
		},
		RateLimit: RateLimitConfig{
			Strategy: RateLimitTokenBucket,
			Interval: 1,
		},
	}
	if err := mergo.Merge(e, defaults); err != nil {
		return fmt.Errorf("applying endpoint defaults: %w", err)
	}
	e.Method = strings.ToUpper(e.Method)

	if e.Auth.OIDC != nil {
		oidcDefaults := OIDCConfig{
			UsernameClaim:    "sub",
			JWKSCacheHours:   24,
			ClockSkewSeconds: 300,
		}
		if err := mergo.Merge(e.Auth.OIDC, oidcDefaults); err != nil {
			return fmt.Errorf("applying oidc defaults: %w", err)
		}
	}
	return nil
}

// Validate reports structural problems a misauthored endpoint file has.
// Auth- and OIDC-specific checks live with their subsystems.
func (e *EndpointConfig) Validate() error {
	if e.URLPath == "" && e.MCPName() == "" {
		return fmt.Errorf("endpoint declares neither url_path nor an MCP name")
	}
	if e.URLPath != "" && !strings.HasPrefix(e.URLPath, "/") {
		return fmt.Errorf("url_path %q must start with /", e.URLPath)
	}
	switch e.Method {
	case "GET", "POST", "PUT", "DELETE", "PATCH":
	default:
		return fmt.Errorf("unsupported method %q", e.Method)
	}
	if e.TemplateSource == "" && (e.MCPPrompt == nil || e.MCPPrompt.Template == "") {
		return fmt.Errorf("endpoint has no template_source")
	}
	for i := range e.Request {
		f := &e.Request[i]
		if f.FieldName == "" {
			return fmt.Errorf("request field %d has no field_name", i)
		}
		switch f.FieldIn {
		case FieldInQuery, FieldInPath, FieldInHeader, FieldInBody, "":
		default:
			return fmt.Errorf("field %q: unknown field_in %q", f.FieldName, f.FieldIn)
		}
		for j := range f.Validators {
			switch f.Validators[j].Type {
			case ValidatorString, ValidatorInt, ValidatorEmail,
				ValidatorUUID, ValidatorDate, ValidatorTime, ValidatorEnum:
			default:
				return fmt.Errorf("field %q: unknown validator type %q",
					f.FieldName, f.Validators[j].Type)
			}
		}
	}
	if e.Auth.Enabled {
		switch e.Auth.Type {
		case AuthTypeBasic, AuthTypeBearer, AuthTypeOIDC:
		default:
			return fmt.Errorf("unknown auth type %q", e.Auth.Type)
		}
	}
	if e.RateLimit.Enabled {
		switch e.RateLimit.Strategy {
		case RateLimitTokenBucket, RateLimitFixedWindow:
		default:
			return fmt.Errorf("unknown rate limit strategy %q", e.RateLimit.Strategy)
		}
		if e.RateLimit.Max <= 0 || e.RateLimit.Interval <= 0 {
			return fmt.Errorf("rate limit requires positive max and interval")
		}
	}
	if e.Cache.Enabled && e.Cache.Table == "" {
		return fmt.Errorf("cache requires a table name")
	}
	return nil
}

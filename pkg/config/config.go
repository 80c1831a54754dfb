// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

// Package config contains the definition of the gateway project configuration
// and the logic required to load and validate it.
//
// A project file (conventionally flapi.yaml) names the endpoint template
// directory, the engine connections, and the server-level settings. Endpoint
// definitions themselves live in per-endpoint YAML files under the template
// path and are handled by the endpoints package.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/flapi-dev/flapi/pkg/errors"
)

// Duration is a wrapper around time.Duration that marshals/unmarshals as a
// duration string. This ensures duration values are serialized as "30s",
// "1m", etc. instead of nanosecond integers.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(dur)
	return nil
}

// Config is the gateway project configuration.
type Config struct {
	// ProjectName identifies the project. It doubles as the default MCP
	// server name.
	ProjectName string `yaml:"project_name"`

	// ProjectDescription is free-form text surfaced by the health endpoints.
	ProjectDescription string `yaml:"project_description,omitempty"`

	// Template locates the endpoint and SQL template files.
	Template TemplateConfig `yaml:"template"`

	// Connections defines the named engine connections endpoints refer to.
	Connections map[string]ConnectionConfig `yaml:"connections,omitempty"`

	// Engine configures the embedded query engine.
	Engine EngineConfig `yaml:"engine,omitempty"`

	// HTTP configures the REST listener.
	HTTP HTTPConfig `yaml:"http,omitempty"`

	// MCP configures the Model Context Protocol surface.
	MCP MCPConfig `yaml:"mcp,omitempty"`

	// FileCache configures the caching decorator for remote file reads.
	FileCache FileCacheConfig `yaml:"file_cache,omitempty"`

	// PathSecurity restricts which paths and URI schemes file access may touch.
	PathSecurity PathSecurityConfig `yaml:"path_security,omitempty"`

	// Scheduler configures the background cache-refresh scheduler.
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty"`

	// Secrets configures the external secret store.
	Secrets SecretsConfig `yaml:"secrets,omitempty"`

	// Credentials optionally pins cloud credentials that are otherwise read
	// from the environment.
	Credentials CredentialsConfig `yaml:"credentials,omitempty"`

	// Telemetry configures tracing and metrics. Disabled unless switched on.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TemplateConfig locates endpoint definitions and SQL templates. The path may
// be a local directory or a remote URI handled by the file providers.
type TemplateConfig struct {
	Path string `yaml:"path"`

	// EnvironmentWhitelist lists regex patterns of environment variable names
	// the preprocessor may substitute into endpoint files.
	EnvironmentWhitelist []string `yaml:"environment_whitelist,omitempty"`
}

// ConnectionConfig describes one named engine connection. Properties are
// exposed to SQL templates under the conn namespace.
type ConnectionConfig struct {
	// Init holds SQL executed once when the connection is first prepared.
	Init string `yaml:"init,omitempty"`

	Properties map[string]string `yaml:"properties,omitempty"`

	// LogQueries and LogParameters switch on statement and bind logging for
	// requests served through this connection.
	LogQueries    bool `yaml:"log_queries,omitempty"`
	LogParameters bool `yaml:"log_parameters,omitempty"`
}

// EngineConfig configures the embedded analytical engine.
type EngineConfig struct {
	// Path is the database location. The default ":memory:" keeps all state
	// in process; set a file path to persist cache tables across restarts.
	Path string `yaml:"path,omitempty"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`

	ReadTimeout Duration `yaml:"read_timeout,omitempty"`
	// WriteTimeout must cover template rendering plus query execution.
	WriteTimeout Duration `yaml:"write_timeout,omitempty"`
	IdleTimeout  Duration `yaml:"idle_timeout,omitempty"`

	EnforceHTTPS *EnforceHTTPSConfig `yaml:"enforce_https,omitempty"`
}

// EnforceHTTPSConfig enables TLS termination on the listener.
type EnforceHTTPSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertFile string `yaml:"ssl_cert_file,omitempty"`
	KeyFile  string `yaml:"ssl_key_file,omitempty"`
}

// MCPConfig configures the MCP surface.
type MCPConfig struct {
	// Enabled defaults to true; nil means unset.
	Enabled *bool `yaml:"enabled,omitempty"`

	// ServerName defaults to the project name.
	ServerName    string `yaml:"server_name,omitempty"`
	ServerVersion string `yaml:"server_version,omitempty"`

	// SessionTimeout is the idle eviction window for MCP sessions.
	SessionTimeout Duration `yaml:"session_timeout,omitempty"`
}

// FileCacheConfig configures the TTL + LRU cache in front of remote file
// providers. Local files are never cached.
type FileCacheConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	TTL          Duration `yaml:"ttl,omitempty"`
	MaxSizeBytes int64    `yaml:"max_size_bytes,omitempty"`
}

// PathSecurityConfig restricts file access for templates and endpoint files.
type PathSecurityConfig struct {
	// AllowedPrefixes confines local paths when non-empty.
	AllowedPrefixes []string `yaml:"allowed_prefixes,omitempty"`

	// AllowedSchemes lists permitted URI schemes. Defaults to file and https.
	AllowedSchemes []string `yaml:"allowed_schemes,omitempty"`
}

// SchedulerConfig configures the cache-refresh scheduler.
type SchedulerConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// Workers bounds the number of concurrent refresh jobs.
	Workers int64 `yaml:"workers,omitempty"`
}

// SecretsConfig selects the external secret store provider.
type SecretsConfig struct {
	// ProviderType is one of env, file, or s3. Defaults to env.
	ProviderType string `yaml:"provider_type,omitempty"`

	// FilePath locates the secrets file for the file provider.
	FilePath string `yaml:"file_path,omitempty"`

	// S3 configures the s3 provider.
	S3 *S3SecretsConfig `yaml:"s3,omitempty"`
}

// S3SecretsConfig locates secrets stored as S3 objects.
type S3SecretsConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// CredentialsConfig pins cloud credentials in the project file. Environment
// variables take precedence over these values.
type CredentialsConfig struct {
	AWS   *AWSCredentials   `yaml:"aws,omitempty"`
	GCP   *GCPCredentials   `yaml:"gcp,omitempty"`
	Azure *AzureCredentials `yaml:"azure,omitempty"`
}

// AWSCredentials holds explicit AWS credentials.
type AWSCredentials struct {
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
	Region          string `yaml:"region,omitempty"`
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
}

// GCPCredentials holds explicit GCP credentials.
type GCPCredentials struct {
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	Project         string `yaml:"project,omitempty"`
}

// AzureCredentials holds explicit Azure storage credentials.
type AzureCredentials struct {
	ConnectionString string `yaml:"connection_string,omitempty"`
	StorageAccount   string `yaml:"storage_account,omitempty"`
	StorageKey       string `yaml:"storage_key,omitempty"`
	TenantID         string `yaml:"tenant_id,omitempty"`
	ClientID         string `yaml:"client_id,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing and Prometheus metrics.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// Prometheus mounts a /metrics endpoint on the REST listener.
	Prometheus bool `yaml:"prometheus,omitempty"`
}

// DefaultConfigPath returns the conventional project file location:
// ./flapi.yaml when present, otherwise the XDG config directory.
func DefaultConfigPath() (string, error) {
	if _, err := os.Stat("flapi.yaml"); err == nil {
		return "flapi.yaml", nil
	}
	return xdg.ConfigFile("flapi/flapi.yaml")
}

// Load reads and decodes the project file at path, applies defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path) // #nosec G304: path comes from the operator
	if err != nil {
		return nil, errors.NewConfigurationError(fmt.Sprintf("unable to read config file %s", path), err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw YAML into a validated Config. Unknown fields are
// rejected so typos surface at startup rather than being silently ignored.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.NewConfigurationError("failed to parse config yaml", err)
	}

	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for semantic errors.
func (c *Config) Validate() error {
	if c.ProjectName == "" {
		return errors.NewConfigurationError("project_name is required", nil)
	}
	if c.Template.Path == "" {
		return errors.NewConfigurationError("template.path is required", nil)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return errors.NewConfigurationError(fmt.Sprintf("http.port %d is out of range", c.HTTP.Port), nil)
	}
	if c.HTTP.EnforceHTTPS != nil && c.HTTP.EnforceHTTPS.Enabled {
		if c.HTTP.EnforceHTTPS.CertFile == "" || c.HTTP.EnforceHTTPS.KeyFile == "" {
			return errors.NewConfigurationError("enforce_https requires ssl_cert_file and ssl_key_file", nil)
		}
	}
	switch c.Secrets.ProviderType {
	case SecretsProviderEnv, SecretsProviderFile, SecretsProviderS3:
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("invalid secrets provider type: %s (valid types: %s, %s, %s)",
				c.Secrets.ProviderType, SecretsProviderEnv, SecretsProviderFile, SecretsProviderS3), nil)
	}
	if c.Secrets.ProviderType == SecretsProviderFile && c.Secrets.FilePath == "" {
		return errors.NewConfigurationError("secrets.file_path is required for the file provider", nil)
	}
	if c.Secrets.ProviderType == SecretsProviderS3 && (c.Secrets.S3 == nil || c.Secrets.S3.Bucket == "") {
		return errors.NewConfigurationError("secrets.s3.bucket is required for the s3 provider", nil)
	}
	if c.Scheduler.Workers < 1 {
		return errors.NewConfigurationError("scheduler.workers must be positive", nil)
	}
	for _, s := range c.PathSecurity.AllowedSchemes {
		if s == "" || strings.ContainsAny(s, ":/") {
			return errors.NewConfigurationError(fmt.Sprintf("path_security.allowed_schemes contains invalid scheme %q", s), nil)
		}
	}
	return nil
}

// MCPEnabled reports whether the MCP surface should be served.
func (c *Config) MCPEnabled() bool {
	return c.MCP.Enabled == nil || *c.MCP.Enabled
}

// FileCacheEnabled reports whether remote file reads go through the cache.
func (c *Config) FileCacheEnabled() bool {
	return c.FileCache.Enabled == nil || *c.FileCache.Enabled
}

// SchedulerEnabled reports whether the cache-refresh scheduler runs.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}

// ListenAddr returns the host:port the REST listener binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// MCPServerName returns the configured MCP server name, falling back to the
// project name.
func (c *Config) MCPServerName() string {
	if c.MCP.ServerName != "" {
		return c.MCP.ServerName
	}
	return c.ProjectName
}

// SPDX-FileCopyrightText: Copyright 2025 The flAPI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"time"

	"dario.cat/mergo"
)

// Secrets provider types accepted by secrets.provider_type.
const (
	// SecretsProviderEnv reads secrets from environment variables.
	SecretsProviderEnv = "env"
	// SecretsProviderFile reads secrets from a local YAML file.
	SecretsProviderFile = "file"
	// SecretsProviderS3 reads secrets from S3 objects.
	SecretsProviderS3 = "s3"
)

// Default constants for the gateway configuration.
const (
	// defaultEnginePath keeps all engine state in process.
	defaultEnginePath = ":memory:"

	// defaultHTTPHost binds to all interfaces.
	defaultHTTPHost = "0.0.0.0"

	// defaultHTTPPort is the conventional gateway port.
	defaultHTTPPort = 8080

	// defaultReadTimeout covers request headers and small bodies.
	defaultReadTimeout = 10 * time.Second

	// defaultWriteTimeout must exceed the longest expected query.
	defaultWriteTimeout = 60 * time.Second

	// defaultIdleTimeout keeps connections alive for reuse.
	defaultIdleTimeout = 120 * time.Second

	// defaultSessionTimeout is the MCP session idle eviction window.
	defaultSessionTimeout = 30 * time.Minute

	// defaultFileCacheTTL bounds staleness of cached remote files.
	defaultFileCacheTTL = 5 * time.Minute

	// defaultFileCacheMaxBytes bounds the remote file cache size.
	defaultFileCacheMaxBytes = 64 * 1024 * 1024

	// defaultSchedulerWorkers bounds concurrent cache refreshes.
	defaultSchedulerWorkers = 4

	// defaultSamplingRate keeps tracing overhead low when enabled.
	defaultSamplingRate = 0.05
)

// defaultAllowedSchemes lists the URI schemes permitted when the operator
// does not configure an allow-list.
func defaultAllowedSchemes() []string {
	return []string{"file", "https"}
}

// DefaultConfig returns a fully populated Config with default values.
// This is the single source of truth for all configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Path: defaultEnginePath,
		},
		HTTP: HTTPConfig{
			Host:         defaultHTTPHost,
			Port:         defaultHTTPPort,
			ReadTimeout:  Duration(defaultReadTimeout),
			WriteTimeout: Duration(defaultWriteTimeout),
			IdleTimeout:  Duration(defaultIdleTimeout),
		},
		MCP: MCPConfig{
			SessionTimeout: Duration(defaultSessionTimeout),
		},
		FileCache: FileCacheConfig{
			TTL:          Duration(defaultFileCacheTTL),
			MaxSizeBytes: defaultFileCacheMaxBytes,
		},
		PathSecurity: PathSecurityConfig{
			AllowedSchemes: defaultAllowedSchemes(),
		},
		Scheduler: SchedulerConfig{
			Workers: defaultSchedulerWorkers,
		},
		Secrets: SecretsConfig{
			ProviderType: SecretsProviderEnv,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "flapi",
			SamplingRate: defaultSamplingRate,
		},
	}
}

// EnsureDefaults fills zero-valued fields with defaults while preserving any
// operator-provided values.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	_ = mergo.Merge(c, DefaultConfig())
}

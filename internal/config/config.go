// Trailhook - Event Tracking and Provenance Backend
// Copyright 2026 Trailhook Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailhook/trailhook

// Package config defines Trailhook's configuration surface and loads it
// with layered precedence: built-in defaults, then an optional YAML file,
// then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Trailhook server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Security SecurityConfig `koanf:"security"`
	Authz    AuthzConfig    `koanf:"authz"`
	Audit    AuditConfig    `koanf:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// ReadTimeout bounds the time spent reading a request.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds the time spent writing a response.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the per-client request budget per RateWindow.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit" validate:"min=0"`

	// RateWindow is the rate limiting window.
	RateWindow time.Duration `koanf:"rate_window"`

	// CORSOrigins lists allowed CORS origins. Empty disables CORS.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace..panic).
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is json or console.
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// SecurityConfig holds credential validation settings.
type SecurityConfig struct {
	// JWTSecret is the HMAC signing secret for bearer tokens.
	// Must be at least 32 characters.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`

	// Issuer is the expected token issuer. Empty accepts any issuer.
	Issuer string `koanf:"issuer"`
}

// AuthzConfig holds the authorization engine settings.
type AuthzConfig struct {
	// CacheCapacity is the maximum number of cached decisions.
	CacheCapacity int `koanf:"cache_capacity" validate:"min=1"`

	// CacheTTL is the default decision lifetime. Staleness after a role
	// or policy change is bounded by this value, so it should stay on
	// the order of seconds.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheMaxTTL clamps evaluator-suggested TTLs.
	CacheMaxTTL time.Duration `koanf:"cache_max_ttl"`

	// BreakerThreshold is the number of consecutive remote-evaluation
	// failures that opens the circuit.
	BreakerThreshold uint32 `koanf:"breaker_threshold" validate:"min=1"`

	// BreakerWindow is the rolling window in which failures are counted
	// while the circuit is closed.
	BreakerWindow time.Duration `koanf:"breaker_window"`

	// BreakerCooldown is how long the circuit stays open before a
	// half-open trial is admitted.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`

	// RemoteTimeout bounds a single policy evaluator call.
	RemoteTimeout time.Duration `koanf:"remote_timeout"`

	// PolicyURL is the base URL of the external policy evaluator.
	// Empty disables remote evaluation; only the fallback rule applies.
	PolicyURL string `koanf:"policy_url" validate:"omitempty,url"`

	// PolicyPath is the decision document path on the evaluator,
	// e.g. "trailhook/authz".
	PolicyPath string `koanf:"policy_path"`

	// Fallback selects the decision rule used when the evaluator is
	// unreachable: "role" (local role evaluation, deny when
	// inconclusive) or "deny" (deny all).
	Fallback string `koanf:"fallback" validate:"oneof=role deny"`
}

// AuditConfig holds audit emitter settings.
type AuditConfig struct {
	// Enabled controls whether decisions are audited.
	Enabled bool `koanf:"enabled"`

	// BufferSize is the bounded audit buffer; events beyond it are
	// dropped rather than blocking the request path.
	BufferSize int `koanf:"buffer_size" validate:"min=1"`

	// Subject is the stream subject for published audit records.
	Subject string `koanf:"subject"`

	// NATSURL enables the streaming audit sink when set.
	NATSURL string `koanf:"nats_url"`
}

// Default returns a Config with production-ready defaults. These are
// applied first and then overridden by the config file and environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8042",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       300,
			RateWindow:      time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			Issuer: "trailhook",
		},
		Authz: AuthzConfig{
			CacheCapacity:    10000,
			CacheTTL:         10 * time.Second,
			CacheMaxTTL:      time.Minute,
			BreakerThreshold: 5,
			BreakerWindow:    time.Minute,
			BreakerCooldown:  30 * time.Second,
			RemoteTimeout:    250 * time.Millisecond,
			PolicyPath:       "trailhook/authz",
			Fallback:         "role",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1000,
			Subject:    "trailhook.audit.decisions",
		},
	}
}

// Validate checks the configuration for invalid or unsafe values.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Authz.CacheTTL <= 0 {
		return fmt.Errorf("authz.cache_ttl must be positive, got %s", c.Authz.CacheTTL)
	}
	if c.Authz.CacheMaxTTL < c.Authz.CacheTTL {
		return fmt.Errorf("authz.cache_max_ttl (%s) must be at least authz.cache_ttl (%s)",
			c.Authz.CacheMaxTTL, c.Authz.CacheTTL)
	}
	if c.Authz.BreakerCooldown <= 0 {
		return fmt.Errorf("authz.breaker_cooldown must be positive, got %s", c.Authz.BreakerCooldown)
	}
	if c.Authz.RemoteTimeout <= 0 {
		return fmt.Errorf("authz.remote_timeout must be positive, got %s", c.Authz.RemoteTimeout)
	}

	return nil
}

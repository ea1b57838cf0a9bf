// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"time"
)

// EnvSpec is the basic environment configuration setup needed for the app to start
type EnvSpec struct {
	OtelGRPCEndpoint string `envconfig:"otel_grpc_endpoint"`
	OtelHTTPEndpoint string `envconfig:"otel_http_endpoint"`
	TracingEnabled   bool   `envconfig:"tracing_enabled" default:"true"`

	LogLevel string `envconfig:"log_level" default:"error"`
	Debug    bool   `envconfig:"debug" default:"false"`

	Port int `envconfig:"port" default:"8080"`

	CORSAllowedOrigins []string `envconfig:"cors_allowed_origins" default:"*"`

	DSN string `envconfig:"DSN" required:"true"`

	DBMaxConns        int32         `envconfig:"db_max_conns" default:"25"`
	DBMinConns        int32         `envconfig:"db_min_conns" default:"2"`
	DBMaxConnLifetime time.Duration `envconfig:"db_max_conn_lifetime" default:"1h"`
	DBMaxConnIdleTime time.Duration `envconfig:"db_max_conn_idle_time" default:"30m"`

	CacheEnabled bool   `envconfig:"cache_enabled" default:"true"`
	RedisURL     string `envconfig:"redis_url" default:"redis://localhost:6379/0"`

	JWTSigningKey        string        `envconfig:"jwt_signing_key"`
	JWTIssuer            string        `envconfig:"jwt_issuer" default:"task-service"`
	JWTAudience          string        `envconfig:"jwt_audience" default:"task-service"`
	AccessTokenLifetime  time.Duration `envconfig:"access_token_lifetime" default:"15m"`
	RefreshTokenLifetime time.Duration `envconfig:"refresh_token_lifetime" default:"720h"`

	// When set, bearer tokens are verified against the issuer's JWKS instead
	// of the local signing key.
	OIDCIssuer        string   `envconfig:"oidc_issuer"`
	OIDCRequiredScope string   `envconfig:"oidc_required_scope"`
	OIDCAllowedSubs   []string `envconfig:"oidc_allowed_subjects"`

	AuthRateLimit string `envconfig:"auth_rate_limit" default:"10-M"`
}

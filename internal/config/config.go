// Package config defines the global configuration structure for the
// BalanceGuard gateway. Configuration is loaded once at process startup and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to abort
// immediately on startup (fail fast).
package config

import (
	"time"

	"balanceguard/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// EnvProduction is the APP_ENV value that switches every fail-open branch to
// fail-closed: empty origin allowlists reject, the rate-limit store must be
// shared, cookies get the __Host- posture.
const EnvProduction = "production"

// Config is the top-level configuration struct for the BalanceGuard gateway.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"dev" validate:"required,oneof=dev test production"`
	Service     string `envconfig:"SERVICE_NAME" default:"balanceguard"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server    ServerConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Billing   BillingConfig
	Surfaces  SurfacesConfig
	Alert     AlertConfig

	// Build Metadata (injected via ldflags, not Env)
	Build BuildInfo
}

// IsProduction reports whether fail-closed production posture applies.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// ServerConfig holds HTTP server tuning parameters.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RateLimitConfig holds the shared counter store connection. RedisURL is
// required in production (enforced by the loader, not a struct tag, because
// dev and test fall back to the in-process store).
type RateLimitConfig struct {
	RedisURL SecretString `envconfig:"RATE_LIMIT_REDIS_URL"`
}

// SessionConfig holds session lifetime and cookie posture settings.
type SessionConfig struct {
	TTL time.Duration `envconfig:"SESSION_TTL" default:"336h"` // 14 days
}

// BillingConfig holds Stripe webhook verification settings.
type BillingConfig struct {
	StripeWebhookSecret SecretString  `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	SignatureTolerance  time.Duration `envconfig:"STRIPE_SIGNATURE_TOLERANCE" default:"300s"`
	MaxBodyBytes        int64         `envconfig:"STRIPE_MAX_BODY_BYTES" default:"65536"`
}

// SurfaceConfig holds the per-surface origin policy and rate-limit defaults.
// AllowedOrigins is a CSV of exact origins; PreviewSuffix, when non-empty,
// additionally admits any https origin whose host ends with the suffix
// (preview deployments).
type SurfaceConfig struct {
	AllowedOrigins  []string
	PreviewSuffix   string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// SurfacesConfig groups the three surface policies. envconfig cannot tag a
// map, so the three surfaces are explicit fields with their own variables.
type SurfacesConfig struct {
	SiteAllowedOrigins   []string      `envconfig:"SITE_ALLOWED_ORIGINS"`
	SitePreviewSuffix    string        `envconfig:"SITE_PREVIEW_SUFFIX"`
	SiteRateLimitMax     int           `envconfig:"SITE_RATE_LIMIT_MAX" default:"120"`
	SiteRateLimitWindow  time.Duration `envconfig:"SITE_RATE_LIMIT_WINDOW" default:"1m"`

	ClientAllowedOrigins  []string      `envconfig:"CLIENT_ALLOWED_ORIGINS"`
	ClientPreviewSuffix   string        `envconfig:"CLIENT_PREVIEW_SUFFIX"`
	ClientRateLimitMax    int           `envconfig:"CLIENT_RATE_LIMIT_MAX" default:"60"`
	ClientRateLimitWindow time.Duration `envconfig:"CLIENT_RATE_LIMIT_WINDOW" default:"1m"`

	AdminAllowedOrigins  []string      `envconfig:"ADMIN_ALLOWED_ORIGINS"`
	AdminPreviewSuffix   string        `envconfig:"ADMIN_PREVIEW_SUFFIX"`
	AdminRateLimitMax    int           `envconfig:"ADMIN_RATE_LIMIT_MAX" default:"60"`
	AdminRateLimitWindow time.Duration `envconfig:"ADMIN_RATE_LIMIT_WINDOW" default:"1m"`
}

// ForSurface returns the policy for one surface. Unknown surfaces get an
// empty policy, which rejects in production and passes in dev.
func (s *SurfacesConfig) ForSurface(surface types.Surface) SurfaceConfig {
	switch surface {
	case types.SurfaceSite:
		return SurfaceConfig{
			AllowedOrigins:  s.SiteAllowedOrigins,
			PreviewSuffix:   s.SitePreviewSuffix,
			RateLimitMax:    s.SiteRateLimitMax,
			RateLimitWindow: s.SiteRateLimitWindow,
		}
	case types.SurfaceClient:
		return SurfaceConfig{
			AllowedOrigins:  s.ClientAllowedOrigins,
			PreviewSuffix:   s.ClientPreviewSuffix,
			RateLimitMax:    s.ClientRateLimitMax,
			RateLimitWindow: s.ClientRateLimitWindow,
		}
	case types.SurfaceAdmin:
		return SurfaceConfig{
			AllowedOrigins:  s.AdminAllowedOrigins,
			PreviewSuffix:   s.AdminPreviewSuffix,
			RateLimitMax:    s.AdminRateLimitMax,
			RateLimitWindow: s.AdminRateLimitWindow,
		}
	}
	return SurfaceConfig{}
}

// AlertConfig holds the outbound ops alert webhook settings. An empty URL
// disables alerting.
type AlertConfig struct {
	WebhookURL string        `envconfig:"OPS_ALERT_WEBHOOK_URL" validate:"omitempty,url"`
	Timeout    time.Duration `envconfig:"OPS_ALERT_TIMEOUT" default:"5s"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrProductionPosture indicates a value whose absence is tolerated in dev
	// but fatal in production.
	ErrProductionPosture ConfigErrorType = "PRODUCTION_POSTURE"
)

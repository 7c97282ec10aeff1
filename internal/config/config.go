// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Redis    RedisConfig
	Session  SessionConfig
	Invoice  InvoiceConfig
	Identity IdentityConfig
	Export   ExportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and sizes the record store.
type StoreConfig struct {
	// Driver is postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies pending migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// RedisConfig enables shared sessions and locks. Without an address the
// server keeps both in process.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS" envAlt:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`
}

// SessionConfig holds sign-in settings.
type SessionConfig struct {
	// Secret signs session tokens (required)
	Secret string `env:"SESSION_SECRET" envAlt:"API_SECRET" required:"true"`

	// IdleTimeout signs a session out after inactivity (default: 7m)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" default:"7m"`

	// TokenLifespan bounds token validity regardless of activity (default: 24h)
	TokenLifespan time.Duration `env:"SESSION_TOKEN_LIFESPAN" default:"24h"`

	// CookieName carries the token for browser clients (default: token)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"token"`

	// CookieSecure marks the cookie Secure (default: true)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"true"`
}

// InvoiceConfig holds wallet invoice numbering settings.
type InvoiceConfig struct {
	Prefix        string        `env:"INVOICE_PREFIX" default:"MOK-PFI"`
	CounterStart  int           `env:"INVOICE_COUNTER_START" default:"599"`
	DefaultHSCode string        `env:"INVOICE_DEFAULT_HS_CODE" default:"0001.13.01"`
	LockTTL       time.Duration `env:"INVOICE_LOCK_TTL" default:"30s"`
}

// IdentityConfig holds account settings.
type IdentityConfig struct {
	// BcryptCost is the password hashing cost (default: 10)
	BcryptCost int `env:"IDENTITY_BCRYPT_COST" default:"10"`

	// ResetTokenTTL is how long a reset link stays valid (default: 1h)
	ResetTokenTTL time.Duration `env:"IDENTITY_RESET_TTL" default:"1h"`

	// ResetURL is the page that consumes reset tokens
	ResetURL string `env:"IDENTITY_RESET_URL" default:"http://localhost:8080/reset-password"`
}

// ExportConfig bounds workbook generation.
type ExportConfig struct {
	// MaxConcurrent is the maximum number of parallel renders (default: 4)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for a render slot (default: 10s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"10s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// AuthLimit is requests per minute for sign-in and account endpoints (default: 10)
	AuthLimit int `env:"RATE_LIMIT_AUTH" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// AuditConfig holds audit log retention settings.
type AuditConfig struct {
	// RetentionDays is how long audit entries are kept (default: 365)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" default:"365"`

	// CheckInterval is how often the purge runs (default: 24h)
	CheckInterval time.Duration `env:"AUDIT_CHECK_INTERVAL" default:"24h"`
}

// Retention returns RetentionDays as a duration.
func (c AuditConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

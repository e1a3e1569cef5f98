// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Transfer   TransferConfig
	ClickHouse ClickHouseConfig
	Journal    JournalConfig
	CORS       CORSConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 5000)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"5000"`

	// ReadTimeout is the maximum duration for reading the request, body included (default: 5m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"5m"`

	// WriteTimeout is 0 so long downloads are not cut off
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// ExposeErrors returns internal error text to clients (default: false)
	ExposeErrors bool `env:"SERVER_EXPOSE_ERRORS" default:"false"`
}

// StorageConfig holds flat-file storage settings.
type StorageConfig struct {
	// Root is the directory holding uploaded and generated files (default: Uploads)
	Root string `env:"STORAGE_ROOT" envAlt:"UPLOAD_DIR" default:"Uploads"`

	// MaxFileSize is the maximum upload size in bytes (default: 500MB)
	MaxFileSize int64 `env:"STORAGE_MAX_FILE_SIZE" default:"524288000"`
}

// TransferConfig holds ingestion and download settings.
type TransferConfig struct {
	// BatchSize is the number of rows per insert transaction (default: 10000)
	BatchSize int `env:"TRANSFER_BATCH_SIZE" default:"10000"`

	// MaxConcurrent is the maximum number of parallel transfers (default: 4)
	MaxConcurrent int `env:"TRANSFER_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for a transfer slot (default: 30s)
	MaxWait time.Duration `env:"TRANSFER_MAX_WAIT" default:"30s"`

	// DetectTimestamps enables DateTime inference for file columns (default: false)
	DetectTimestamps bool `env:"TRANSFER_DETECT_TIMESTAMPS" default:"false"`
}

// ClickHouseConfig holds connection defaults applied to requests.
type ClickHouseConfig struct {
	Host     string `env:"CLICKHOUSE_DEFAULT_HOST" default:"localhost"`
	Port     string `env:"CLICKHOUSE_DEFAULT_PORT" default:"8123"`
	Database string `env:"CLICKHOUSE_DEFAULT_DATABASE" default:"default"`
	User     string `env:"CLICKHOUSE_DEFAULT_USER" default:"default"`

	// DialTimeout bounds connect and ping (default: 10s)
	DialTimeout time.Duration `env:"CLICKHOUSE_DIAL_TIMEOUT" default:"10s"`

	// InsecureSkipVerify disables TLS certificate checks on secure ports
	InsecureSkipVerify bool `env:"CLICKHOUSE_TLS_SKIP_VERIFY" default:"false"`
}

// JournalConfig holds transfer journal database settings.
type JournalConfig struct {
	// URL is the PostgreSQL connection string; the journal is disabled when empty
	URL string `env:"JOURNAL_DATABASE_URL" envAlt:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"JOURNAL_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"JOURNAL_MIN_CONNS" default:"0"`

	MaxConnLifetime time.Duration `env:"JOURNAL_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"JOURNAL_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a journal database is configured.
func (c *JournalConfig) Enabled() bool { return c.URL != "" }

// CORSConfig holds cross-origin settings for the browser frontend.
type CORSConfig struct {
	// AllowedOrigins is a comma-separated origin list (default: *)
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// TransferLimit is requests per minute for upload, ingest and download (default: 20)
	TransferLimit int `env:"RATE_LIMIT_TRANSFER" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

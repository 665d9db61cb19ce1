// Package config provides centralized configuration for the ARF service and
// tools. It loads settings from environment variables with defaults and
// validates them on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	ARF      ARFConfig
	Plot     PlotConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. When empty, tables are kept
	// in memory. Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// UploadConfig holds ARF upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted FITS file size in bytes (default: 16MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"16777216"`

	// MaxConcurrent bounds uploads and table builds running at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for a free slot (default: 10s)
	MaxWait time.Duration `env:"UPLOAD_MAX_WAIT" default:"10s"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards routes that create or delete tables.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ARFConfig holds defaults for generated effective area tables.
// Energies are in TeV.
type ARFConfig struct {
	Telescope  string `env:"ARF_TELESCOPE" default:"DUMMY"`
	Instrument string `env:"ARF_INSTRUMENT" default:"DUMMY"`
	Filter     string `env:"ARF_FILTER" default:"NONE"`

	ThresholdLo float64 `env:"ARF_THRESH_LO" default:"0.1"`
	ThresholdHi float64 `env:"ARF_THRESH_HI" default:"100"`

	// EnergyMin, EnergyMax and Bins define the default log-spaced grid
	// for tables built from a parametrization.
	EnergyMin float64 `env:"ARF_ENERGY_MIN" default:"0.01"`
	EnergyMax float64 `env:"ARF_ENERGY_MAX" default:"100"`
	Bins      int     `env:"ARF_BINS" default:"50"`
	// MaxBins caps the bins a client may request.
	MaxBins int `env:"ARF_MAX_BINS" default:"10000"`
}

// PlotConfig holds rendering settings for effective area plots.
type PlotConfig struct {
	Width  int `env:"PLOT_WIDTH" default:"800"`
	Height int `env:"PLOT_HEIGHT" default:"600"`

	MaxWidth  int `env:"PLOT_MAX_WIDTH" default:"4000"`
	MaxHeight int `env:"PLOT_MAX_HEIGHT" default:"4000"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsePostgres reports whether a database URL is configured.
func (c *DatabaseConfig) UsePostgres() bool {
	return c.URL != ""
}

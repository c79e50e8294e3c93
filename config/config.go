package config

import (
	"flag"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/beatbridge/beatbridge/errors"
)

// Default engine parameters. The original deployment had call sites using
// both 0.5 and 0.7 as the similarity threshold; 0.7 is the canonical
// default here and callers override it per request or via config.
const (
	DefaultThreshold         = 0.7
	DefaultRecommendInterval = 3 * time.Hour
)

// Database connection pool defaults
const (
	DefaultDBMaxOpenConns    = 25
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 30 * time.Minute
	DefaultDBConnMaxIdleTime = 5 * time.Minute
)

type Config struct {
	Port         string
	DatabasePath string
	LogLevel     string

	RecommendInterval  time.Duration
	RecommendThreshold float64

	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	SecurityHeadersEnabled bool
	DevMode                bool

	CORSEnabled      bool
	CORSAllowOrigins []string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBHealthCheck     bool
}

func New() *Config {
	var (
		port      = flag.String("port", getEnvOrDefault("PORT", "8080"), "HTTP server port")
		dbPath    = flag.String("db-path", getEnvOrDefault("DB_PATH", "beatbridge.db"), "Database file path")
		logLevel  = flag.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
		interval  = flag.Duration("recommend-interval", getEnvDurationOrDefault("RECOMMEND_INTERVAL", DefaultRecommendInterval), "Interval between scheduled recommendation runs")
		threshold = flag.Float64("recommend-threshold", getEnvFloatOrDefault("RECOMMEND_THRESHOLD", DefaultThreshold), "Similarity threshold for recommendation runs")
		rateOn    = flag.Bool("rate-limit", getEnvBoolOrDefault("RATE_LIMIT_ENABLED", true), "Enable global rate limiting")
		rateRPS   = flag.Float64("rate-limit-rps", getEnvFloatOrDefault("RATE_LIMIT_RPS", 100), "Rate limit requests per second")
		rateBurst = flag.Int("rate-limit-burst", getEnvIntOrDefault("RATE_LIMIT_BURST", 200), "Rate limit burst size")
		secHdrs   = flag.Bool("security-headers", getEnvBoolOrDefault("SECURITY_HEADERS_ENABLED", true), "Enable security headers middleware")
		devMode   = flag.Bool("dev-mode", getEnvBoolOrDefault("DEV_MODE", false), "Relax security headers for local development")
	)
	flag.Parse()

	return &Config{
		Port:               *port,
		DatabasePath:       *dbPath,
		LogLevel:           *logLevel,
		RecommendInterval:  *interval,
		RecommendThreshold: *threshold,

		RateLimitEnabled: *rateOn,
		RateLimitRPS:     *rateRPS,
		RateLimitBurst:   *rateBurst,

		SecurityHeadersEnabled: *secHdrs,
		DevMode:                *devMode,

		DBMaxOpenConns:    DefaultDBMaxOpenConns,
		DBMaxIdleConns:    DefaultDBMaxIdleConns,
		DBConnMaxLifetime: DefaultDBConnMaxLifetime,
		DBConnMaxIdleTime: DefaultDBConnMaxIdleTime,
		DBHealthCheck:     true,
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	portNum, err := strconv.Atoi(c.Port)
	if err != nil {
		return errors.ErrInvalidPort.WithContext("port", c.Port)
	}
	if portNum < 1 || portNum > 65535 {
		return errors.ErrInvalidPort.WithContext("port", c.Port)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.ErrInvalidLogLevel.WithContext("log_level", c.LogLevel)
	}

	if c.DatabasePath == "" {
		return errors.ErrInvalidDatabasePath.WithContext("db_path", c.DatabasePath)
	}

	if c.RecommendInterval <= 0 {
		return errors.ErrInvalidInterval.WithContext("interval", c.RecommendInterval.String())
	}

	if c.RecommendThreshold <= 0 {
		return errors.ErrInvalidThreshold.WithContext("threshold", c.RecommendThreshold)
	}

	for _, origin := range c.CORSAllowOrigins {
		if origin == "*" {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return errors.ErrValidationFailed.WithContext("cors_origin", origin)
		}
	}

	return nil
}

// IsDevMode reports whether the server runs with relaxed security headers.
func (c *Config) IsDevMode() bool {
	return c.DevMode
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

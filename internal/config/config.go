// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/binance-klines/pkg/client"
	"github.com/Sternrassler/binance-klines/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config holds all runtime configuration.
type Config struct {
	// Exchange endpoints
	PrimaryEndpoint  string
	FallbackEndpoint string
	// Geolocate replaces the endpoints with the pair resolved from the
	// caller's country.
	Geolocate bool

	// Requests
	RequestTimeout time.Duration
	MaxAttempts    int
	UserAgent      string

	// Cache. Redis is nil when REDIS_URL is empty.
	Redis    *redis.Options
	CacheTTL time.Duration

	// Logging
	LogLevel  logging.LogLevel
	LogPretty bool

	// MetricsAddr enables the /metrics listener when set.
	MetricsAddr string
}

// Load reads the given .env files (default ".env"; missing files are
// ignored), then the environment. All validation errors are returned together.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	defaults := client.DefaultConfig()
	cfg := &Config{}
	var errs []string
	var err error

	cfg.PrimaryEndpoint = strings.TrimRight(getEnv("BINANCE_PRIMARY_ENDPOINT", defaults.PrimaryEndpoint), "/")
	cfg.FallbackEndpoint = strings.TrimRight(getEnv("BINANCE_FALLBACK_ENDPOINT", defaults.FallbackEndpoint), "/")
	for name, v := range map[string]string{
		"BINANCE_PRIMARY_ENDPOINT":  cfg.PrimaryEndpoint,
		"BINANCE_FALLBACK_ENDPOINT": cfg.FallbackEndpoint,
	} {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			errs = append(errs, fmt.Sprintf("%s must be an http(s) URL (got %q)", name, v))
		}
	}

	cfg.Geolocate, err = getEnvAsBool("BINANCE_GEOLOCATE", false)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BINANCE_GEOLOCATE: %v", err))
	}

	cfg.RequestTimeout, err = getEnvAsDuration("BINANCE_REQUEST_TIMEOUT", defaults.RequestTimeout)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BINANCE_REQUEST_TIMEOUT: %v", err))
	} else if cfg.RequestTimeout <= 0 {
		errs = append(errs, "BINANCE_REQUEST_TIMEOUT must be positive")
	}

	cfg.MaxAttempts, err = getEnvAsInt("BINANCE_MAX_ATTEMPTS", defaults.Retry.MaxAttempts)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BINANCE_MAX_ATTEMPTS: %v", err))
	} else if cfg.MaxAttempts < 1 {
		errs = append(errs, "BINANCE_MAX_ATTEMPTS must be at least 1")
	}

	cfg.UserAgent = getEnv("USER_AGENT", defaults.UserAgent)

	if raw := getEnv("REDIS_URL", ""); raw != "" {
		cfg.Redis, err = parseRedis(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid REDIS_URL: %v", err))
		}
	}

	cfg.CacheTTL, err = getEnvAsDuration("CACHE_TTL", defaults.CacheTTL)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CACHE_TTL: %v", err))
	} else if cfg.CacheTTL < 0 {
		errs = append(errs, "CACHE_TTL cannot be negative")
	}

	cfg.LogLevel, err = logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOG_LEVEL: %v", err))
	}
	cfg.LogPretty, err = getEnvAsBool("LOG_PRETTY", false)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOG_PRETTY: %v", err))
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors:\n - %s", strings.Join(errs, "\n - "))
	}
	return cfg, nil
}

// ClientConfig maps the loaded settings onto a client configuration. The
// caller attaches the redis client.
func (c *Config) ClientConfig() client.Config {
	cc := client.DefaultConfig()
	cc.PrimaryEndpoint = c.PrimaryEndpoint
	cc.FallbackEndpoint = c.FallbackEndpoint
	cc.RequestTimeout = c.RequestTimeout
	cc.Retry.MaxAttempts = c.MaxAttempts
	cc.UserAgent = c.UserAgent
	cc.CacheTTL = c.CacheTTL
	return cc
}

// parseRedis accepts a redis:// URL or a bare host:port.
func parseRedis(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		return redis.ParseURL(raw)
	}
	if !strings.Contains(raw, ":") {
		return nil, fmt.Errorf("expected host:port or redis:// URL, got %q", raw)
	}
	return &redis.Options{Addr: raw}, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(s)
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(s)
}

// getEnvAsDuration accepts Go durations ("5s") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

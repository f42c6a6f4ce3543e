// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// RateLimitConfig provides settings for the per-IP API rate limiter.
type RateLimitConfig interface {
	GetAPIRatePerMinute() int
}

// AdemeConfig provides settings for the ADEME data-fair open-data API.
type AdemeConfig interface {
	GetAdemeBaseURL() string
	GetAdemeDatasetID() string
	GetAdemeFetchSize() int
	GetAdemeTimeout() time.Duration
	GetAdemeRatePerSecond() float64
	GetCommunesFile() string
}

// CacheConfig provides settings for the upstream response cache.
type CacheConfig interface {
	GetCacheTTL() time.Duration
	GetCacheSize() int
	GetRedisURL() string
	IsRedisEnabled() bool
}

// SchedulerConfig provides settings for the asynq cache warm-up worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetWarmupCron() string
	IsSchedulerEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                string
	HTTPAddr           string
	CORSAllowAll       bool
	CORSOrigins        []string
	APIRatePerMinute   int
	AdemeBaseURL       string
	AdemeDatasetID     string
	AdemeFetchSize     int
	AdemeTimeout       time.Duration
	AdemeRatePerSecond float64
	CommunesFile       string
	CacheTTL           time.Duration
	CacheSize          int
	RedisURL           string
	RedisTLSInsecure   bool
	AsynqQueueName     string
	AsynqConcurrency   int
	WarmupCron         string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// RateLimitConfig implementation
func (c *Config) GetAPIRatePerMinute() int { return c.APIRatePerMinute }

// AdemeConfig implementation
func (c *Config) GetAdemeBaseURL() string         { return c.AdemeBaseURL }
func (c *Config) GetAdemeDatasetID() string       { return c.AdemeDatasetID }
func (c *Config) GetAdemeFetchSize() int          { return c.AdemeFetchSize }
func (c *Config) GetAdemeTimeout() time.Duration  { return c.AdemeTimeout }
func (c *Config) GetAdemeRatePerSecond() float64  { return c.AdemeRatePerSecond }
func (c *Config) GetCommunesFile() string         { return c.CommunesFile }

// CacheConfig implementation
func (c *Config) GetCacheTTL() time.Duration { return c.CacheTTL }
func (c *Config) GetCacheSize() int          { return c.CacheSize }
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) IsRedisEnabled() bool       { return c.RedisURL != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetWarmupCron() string     { return c.WarmupCron }
func (c *Config) IsSchedulerEnabled() bool  { return c.RedisURL != "" && c.WarmupCron != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	env := &envReader{}
	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		CORSAllowAll:       corsAllowAll,
		CORSOrigins:        corsOrigins,
		APIRatePerMinute:   env.int("API_RATE_PER_MIN", "120"),
		AdemeBaseURL:       strings.TrimRight(getEnv("ADEME_BASE_URL", "https://data.ademe.fr/data-fair/api/v1"), "/"),
		AdemeDatasetID:     getEnv("ADEME_DATASET_ID", "dpe03existant"),
		AdemeFetchSize:     env.int("ADEME_FETCH_SIZE", "1000"),
		AdemeTimeout:       env.duration("ADEME_TIMEOUT", "20s"),
		AdemeRatePerSecond: env.float("ADEME_RATE_PER_SEC", "5"),
		CommunesFile:       getEnv("COMMUNES_FILE", ""),
		CacheTTL:           env.duration("CACHE_TTL", "1h"),
		CacheSize:          env.int("CACHE_SIZE", "64"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisTLSInsecure:   strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:     getEnv("ASYNQ_QUEUE", "dpe"),
		AsynqConcurrency:   env.int("ASYNQ_CONCURRENCY", "2"),
		WarmupCron:         getEnv("WARMUP_CRON", "@every 6h"),
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}

	if cfg.AdemeFetchSize <= 0 {
		return nil, fmt.Errorf("ADEME_FETCH_SIZE must be a positive integer")
	}
	if cfg.AdemeTimeout <= 0 {
		return nil, fmt.Errorf("ADEME_TIMEOUT must be a positive duration")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be a positive duration")
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("CACHE_SIZE must be a positive integer")
	}
	if cfg.APIRatePerMinute < 0 || cfg.AdemeRatePerSecond < 0 || cfg.AsynqConcurrency < 0 {
		return nil, fmt.Errorf("API_RATE_PER_MIN, ADEME_RATE_PER_SEC and ASYNQ_CONCURRENCY must not be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// envReader parses typed variables and keeps every malformed one so Load
// can report them together.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, value, kind string) {
	r.errs = append(r.errs, fmt.Errorf("%s: %q is not a valid %s", key, value, kind))
}

func (r *envReader) duration(key, fallback string) time.Duration {
	value := strings.TrimSpace(getEnv(key, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, "duration")
		return 0
	}
	return d
}

func (r *envReader) int(key, fallback string) int {
	value := strings.TrimSpace(getEnv(key, fallback))
	result, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, "integer")
		return 0
	}
	return result
}

func (r *envReader) float(key, fallback string) float64 {
	value := strings.TrimSpace(getEnv(key, fallback))
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, value, "number")
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

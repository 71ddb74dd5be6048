package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string

	StoreTimezone      string
	Location           *time.Location
	StoreTxMaxAttempts int

	CartSessionTTL      time.Duration
	CatalogCacheTTL     time.Duration
	AnalyticsCacheTTL   time.Duration
	IdempotencyTTL      time.Duration
	WriteLimitPerMinute int
	LowStockSweepEvery  time.Duration
	AlertUniqueWindow   time.Duration
	WorkerConcurrency   int
	AuditEnabled        bool
	MaxBodyBytes        int64
	HSTSMaxAge          int

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	EnablePrometheus     bool
	EnableTracing        bool
	OTLPEndpoint         string
	TracingSamplingRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		StoreDriver:         strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), DriverPostgres)),
		DatabaseURL:         k.String("DATABASE_URL"),
		DBAutoMigrate:       parseBool(valueOrDefault(k.String("DB_AUTO_MIGRATE"), "true")),
		RedisURL:            k.String("REDIS_URL"),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		StoreTimezone:       valueOrDefault(k.String("STORE_TIMEZONE"), "Asia/Jakarta"),
		StoreTxMaxAttempts:  parseInt(k.String("STORE_TX_MAX_ATTEMPTS"), 5),
		CartSessionTTL:      parseDuration(k.String("CART_SESSION_TTL"), "12h"),
		CatalogCacheTTL:     parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		AnalyticsCacheTTL:   parseDuration(k.String("ANALYTICS_CACHE_TTL"), "30s"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		WriteLimitPerMinute: parseInt(k.String("RATE_LIMIT_WRITES_PER_MINUTE"), 120),
		LowStockSweepEvery:  parseDuration(k.String("LOW_STOCK_SWEEP_INTERVAL"), "5m"),
		AlertUniqueWindow:   parseDuration(k.String("ALERT_UNIQUE_WINDOW"), "30m"),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 5),
		AuditEnabled:        parseBool(valueOrDefault(k.String("AUDIT_ENABLED"), "true")),
		MaxBodyBytes:        int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
		HSTSMaxAge:          parseInt(k.String("HTTP_HSTS_MAX_AGE"), 0),
		Obs: ObsConfig{
			LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "kasir"),
			EnablePrometheus:     parseBool(valueOrDefault(k.String("OBS_ENABLE_PROMETHEUS"), "true")),
			EnableTracing:        parseBool(k.String("OBS_ENABLE_TRACING")),
			OTLPEndpoint:         k.String("OBS_OTLP_ENDPOINT"),
			TracingSamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	loc, err := time.LoadLocation(cfg.StoreTimezone)
	if err != nil {
		return nil, fmt.Errorf("STORE_TIMEZONE %q: %w", cfg.StoreTimezone, err)
	}
	cfg.Location = loc

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q", DriverMemory, DriverPostgres)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.StoreTxMaxAttempts < 1 {
		cfg.StoreTxMaxAttempts = 1
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

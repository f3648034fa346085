package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-kopi/internal/common"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessTokenTTL     time.Duration
	CORSAllowedOrigins []string
	CurrencyCode       string
	DefaultDeliveryFee int64
	CouponCacheTTL     time.Duration
	MenuCacheTTL       time.Duration
	IdempotencyTTL     time.Duration
	RateLimitWindow    time.Duration
	RateLimitMax       int
	RateLimitRate      string
	LockTTL            time.Duration
	LockRetryBackoff   time.Duration
	WorkerConcurrency  int
	MigrateOnStart     bool
	SecurityHeaders    bool
	HSTSEnabled        bool
	HSTSMaxAge         int
	AccessCookieName   string
	CookieDomain       string
	CookieSecure       bool
	LogFormat          string
	LogLevel           string
	MetricsEnabled     bool
	MetricsNamespace   string
	MetricsBucketsMS   string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampling    float64
	PprofEnabled       bool
	PprofUser          string
	PprofPass          string
	HealthDBTimeout    time.Duration
	HealthRedisTimeout time.Duration
	AccrualQueue       string
	AuditEnabled       bool
	AuditSamplingRate  float64
	ReportCacheTTL     time.Duration
	ReportDefaultDays  int
	EventRelayInterval time.Duration
	EventRelayGrace    time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "backend-kopi"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "kopi-web"),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "2h"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "VND")),
		DefaultDeliveryFee: common.Int64Default(k.String("DEFAULT_DELIVERY_FEE"), 15000),
		CouponCacheTTL:     parseDuration(k.String("COUPON_CACHE_TTL"), "60s"),
		MenuCacheTTL:       parseDuration(k.String("MENU_CACHE_TTL"), "5m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:       common.AtoiDefault(strings.TrimSpace(k.String("RATE_LIMIT_MAX")), 60),
		RateLimitRate:      valueOrDefault(k.String("RATE_LIMIT_RATE"), "600-M"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		WorkerConcurrency:  common.AtoiDefault(strings.TrimSpace(k.String("WORKER_CONCURRENCY")), 5),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START")),
		SecurityHeaders:    parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:        parseBool(k.String("HSTS_ENABLED")),
		HSTSMaxAge:         common.AtoiDefault(strings.TrimSpace(k.String("HSTS_MAX_AGE")), 31536000),
		AccessCookieName:   valueOrDefault(k.String("ACCESS_COOKIE_NAME"), "kopi_at"),
		CookieDomain:       strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE")),
		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:     parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "kopi"),
		MetricsBucketsMS:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
		TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		PprofEnabled:       parseBool(k.String("OBS_ENABLE_PPROF")),
		PprofUser:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		HealthDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		HealthRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		AccrualQueue:       valueOrDefault(k.String("ACCRUAL_QUEUE"), "default"),
		AuditEnabled:       parseBoolDefault(k.String("AUDIT_ENABLED"), true),
		AuditSamplingRate:  parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1.0),
		ReportCacheTTL:     parseDuration(k.String("REPORT_CACHE_TTL"), "5m"),
		ReportDefaultDays:  common.AtoiDefault(strings.TrimSpace(k.String("REPORT_DEFAULT_RANGE_DAYS")), 30),
		EventRelayInterval: parseDuration(k.String("EVENT_RELAY_INTERVAL"), "30s"),
		EventRelayGrace:    parseDuration(k.String("EVENT_RELAY_GRACE"), "1m"),
	}

	if cfg.DefaultDeliveryFee < 0 {
		cfg.DefaultDeliveryFee = 0
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
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
		return strings.TrimSpace(value)
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

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
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

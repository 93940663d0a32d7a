package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Charge    ChargeConfig

	// WebhookSecret is the shared HMAC-SHA256 secret for provider webhooks.
	WebhookSecret string
}

// RateLimitConfig configures the sliding-window limiter backing store.
type RateLimitConfig struct {
	Enabled       bool
	Store         string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// BreakerConfig configures the payment-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold       int
	RecoveryTimeoutSeconds int
}

// ChargeConfig bounds the synchronous charge retry loop.
type ChargeConfig struct {
	RetryAttempts          int
	RetryBackoffSeconds    int
	RetryMaxBackoffSeconds int
	ProviderTimeoutSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "paycore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OtelExporterProtocol: getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paycore"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", true),
			Store:         strings.ToLower(getenv("RATE_LIMIT_STORE", "memory")),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
		},
		Breaker: BreakerConfig{
			FailureThreshold:       getenvInt("BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeoutSeconds: getenvInt("BREAKER_RECOVERY_TIMEOUT", 60),
		},
		Charge: ChargeConfig{
			RetryAttempts:          getenvInt("CHARGE_RETRY_ATTEMPTS", 3),
			RetryBackoffSeconds:    getenvInt("CHARGE_RETRY_BACKOFF", 1),
			RetryMaxBackoffSeconds: getenvInt("CHARGE_RETRY_MAX_BACKOFF", 30),
			ProviderTimeoutSeconds: getenvInt("CHARGE_PROVIDER_TIMEOUT", 10),
		},

		WebhookSecret: strings.TrimSpace(getenv("PAYMENT_WEBHOOK_SECRET", "")),
	}
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewLimitsHolder),
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

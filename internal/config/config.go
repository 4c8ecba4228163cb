package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded once from the environment.
type Config struct {
	Environment string
	ServiceName string

	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	Payment  PaymentConfig
	Webhook  WebhookConfig
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the Redis connection used by the idempotency layer.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the broker settings for the outbox publisher.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// TracingConfig holds the OTLP exporter settings.
type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// PaymentConfig holds the business ceilings for payment initiation and the
// token validity window. Amounts are in kobo.
type PaymentConfig struct {
	MinAmount         int64
	MaxAmount         int64
	TokenValidityDays int
}

// WebhookConfig holds per-gateway webhook verification secrets. An empty
// secret disables verification for that gateway.
type WebhookConfig struct {
	FlutterwaveSecret string
	RemitaSecret      string
	InterswitchSecret string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Environment: getEnv("APP_ENV", "development"),
		ServiceName: getEnv("SERVICE_NAME", "powerpay-core"),
		HTTP: HTTPConfig{
			Port:         getEnv("HTTP_PORT", "8080"),
			ReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=powerpay port=5432 sslmode=disable"),
			MaxOpenConns:    getIntEnv("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
			Brokers: getSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "payment-events"),
		},
		Tracing: TracingConfig{
			Enabled:          getBoolEnv("TRACING_ENABLED", false),
			ExporterEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ExporterProtocol: getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			SamplingRatio:    getFloatEnv("TRACING_SAMPLING_RATIO", 0.1),
		},
		Payment: PaymentConfig{
			MinAmount:         getInt64Env("PAYMENT_MIN_AMOUNT", 100_00),
			MaxAmount:         getInt64Env("PAYMENT_MAX_AMOUNT", 50_000_00),
			TokenValidityDays: getIntEnv("TOKEN_VALIDITY_DAYS", 30),
		},
		Webhook: WebhookConfig{
			FlutterwaveSecret: getEnv("FLUTTERWAVE_WEBHOOK_SECRET", ""),
			RemitaSecret:      getEnv("REMITA_WEBHOOK_SECRET", ""),
			InterswitchSecret: getEnv("INTERSWITCH_WEBHOOK_SECRET", ""),
		},
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool { return c.Environment == "production" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

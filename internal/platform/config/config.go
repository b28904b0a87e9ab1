// Package config centralizes environment-driven configuration so main stays
// lean. Values come from the environment; a .env file is loaded by main in
// dev before this runs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all application configuration.
type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	DB      DBConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
	// SeedDemoData loads the demo dataset on startup. Dev only.
	SeedDemoData bool
}

// ServerConfig governs HTTP server behavior.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// AuthConfig governs token signing and session lifetime.
type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	SessionTTL    time.Duration
	PhoneRegion   string
}

// DBConfig holds the Postgres connection. An empty URL selects the in-memory
// stores, which is the dev default.
type DBConfig struct {
	URL          string
	MaxOpenConns int
}

// RedisConfig holds the session cache connection. An empty URL falls back to
// in-memory sessions.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit announce stream when brokers are set.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

// FromEnv builds the full configuration from environment variables,
// applying development defaults.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            valueOrDefault("CREDARA_ADDR", ":8080"),
			ShutdownTimeout: durationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			// Dev default only; must be overridden in production.
			JWTSigningKey: valueOrDefault("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     valueOrDefault("JWT_ISSUER", "credara"),
			JWTAudience:   valueOrDefault("JWT_AUDIENCE", "credara-portal"),
			SessionTTL:    durationOrDefault("SESSION_TTL", 24*time.Hour),
			PhoneRegion:   valueOrDefault("PHONE_REGION", "NG"),
		},
		DB: DBConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: intOrDefault("DATABASE_MAX_OPEN_CONNS", 25),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOrDefault("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOrDefault("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOrDefault("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOrDefault("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOrDefault("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: valueOrDefault("KAFKA_AUDIT_TOPIC", "credara.audit"),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", "info"),
			Format: valueOrDefault("LOG_FORMAT", "text"),
		},
		SeedDemoData: os.Getenv("SEED_DEMO_DATA") == "true",
	}
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

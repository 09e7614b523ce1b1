// Package config builds runtime configuration from the environment so main
// stays lean. Every external dependency is optional: with no Postgres DSN the
// service runs on in-memory stores, with no Redis URL the sweep lease is
// process-local, with no Kafka brokers the audit trail stays in Postgres.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures the archive service configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	PostgresDSN string
	Redis       Redis

	Kafka Kafka

	// SweepInterval is how often the retention sweep runs. Zero disables the
	// scheduler; the sweep can still be driven externally.
	SweepInterval    time.Duration
	SweepParallelism int
}

// Redis configures the sweep-lease client.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the audit outbox publisher.
type Kafka struct {
	Brokers       []string
	Topic         string
	DrainInterval time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("ARCHIVE_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("JWT_ISSUER", "digitalium-archive"),
		JWTAudience:   envOr("JWT_AUDIENCE", "archive-api"),
		PostgresDSN:   os.Getenv("ARCHIVE_POSTGRES_DSN"),
		Redis: Redis{
			URL:          os.Getenv("ARCHIVE_REDIS_URL"),
			PoolSize:     envIntOr("ARCHIVE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("ARCHIVE_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("ARCHIVE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("ARCHIVE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("ARCHIVE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:       splitList(os.Getenv("ARCHIVE_KAFKA_BROKERS")),
			Topic:         envOr("ARCHIVE_KAFKA_AUDIT_TOPIC", "archive.audit"),
			DrainInterval: envDurationOr("ARCHIVE_KAFKA_DRAIN_INTERVAL", 5*time.Second),
		},
		SweepInterval:    envDurationOr("ARCHIVE_SWEEP_INTERVAL", time.Hour),
		SweepParallelism: envIntOr("ARCHIVE_SWEEP_PARALLELISM", 4),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

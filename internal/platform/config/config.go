package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the audit engine needs from the environment so
// main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	// Record store selection. When PostgresDSN is empty the in-memory store
	// is used (development and tests only).
	PostgresDSN string

	Redis RedisConfig
	Kafka KafkaConfig

	Batch BatchConfig
}

// BatchConfig tunes the accumulator for deferred audit writes.
type BatchConfig struct {
	BatchSize     int
	BatchInterval time.Duration
	ChunkSize     int
	ChunkPause    time.Duration
	WriteTimeout  time.Duration
	MaxRetries    int
}

// RedisConfig configures the optional dashboard cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional SIEM mirror sink. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envStr("CHRONICLE_ADDR", ":8080"),
		JWTSigningKey: envStr("CHRONICLE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("CHRONICLE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("CHRONICLE_REDIS_URL"),
			PoolSize:     envInt("CHRONICLE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CHRONICLE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CHRONICLE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CHRONICLE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CHRONICLE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("CHRONICLE_KAFKA_BROKERS"),
			Topic:   envStr("CHRONICLE_KAFKA_TOPIC", "chronicle.audit.mirror"),
		},
		Batch: BatchConfig{
			BatchSize:     envInt("CHRONICLE_BATCH_SIZE", 50),
			BatchInterval: envDuration("CHRONICLE_BATCH_INTERVAL", 5*time.Second),
			ChunkSize:     envInt("CHRONICLE_CHUNK_SIZE", 10),
			ChunkPause:    envDuration("CHRONICLE_CHUNK_PAUSE", 100*time.Millisecond),
			WriteTimeout:  envDuration("CHRONICLE_WRITE_TIMEOUT", 3*time.Second),
			MaxRetries:    envInt("CHRONICLE_MAX_RETRIES", 5),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

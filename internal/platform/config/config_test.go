package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 50, cfg.Batch.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Batch.BatchInterval)
	assert.Equal(t, 10, cfg.Batch.ChunkSize)
	assert.Equal(t, 5, cfg.Batch.MaxRetries)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHRONICLE_ADDR", ":9090")
	t.Setenv("CHRONICLE_BATCH_SIZE", "25")
	t.Setenv("CHRONICLE_BATCH_INTERVAL", "250ms")
	t.Setenv("CHRONICLE_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 25, cfg.Batch.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.BatchInterval)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("CHRONICLE_BATCH_SIZE", "lots")
	t.Setenv("CHRONICLE_BATCH_INTERVAL", "soon")

	cfg := FromEnv()

	assert.Equal(t, 50, cfg.Batch.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Batch.BatchInterval)
}

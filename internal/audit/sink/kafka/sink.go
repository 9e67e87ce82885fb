// Package kafka mirrors persisted audit entries onto a topic for SIEM
// consumption. Mirroring is strictly best-effort: produce failures are
// logged and counted, never retried, and never affect trail durability.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/internal/audit"
	"chronicle/internal/platform/metrics"
)

type Sink struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Sink.
type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sink) { s.metrics = m }
}

// New connects a producer to the given brokers.
func New(brokers []string, topic string, opts ...Option) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	s := &Sink{
		client: client,
		topic:  topic,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mirror publishes the entry asynchronously, keyed by table name so
// per-table ordering survives partitioning.
func (s *Sink) Mirror(ctx context.Context, e audit.Entry) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.metrics.IncMirrorFailures()
		s.logger.ErrorContext(ctx, "marshal mirror payload failed", "entry_id", e.ID, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(e.TableName),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.metrics.IncMirrorFailures()
			s.logger.Warn("mirror produce failed", "entry_id", e.ID, "error", err)
		}
	})
}

// Close flushes outstanding produces and releases the client.
func (s *Sink) Close() {
	s.client.Flush(context.Background())
	s.client.Close()
}

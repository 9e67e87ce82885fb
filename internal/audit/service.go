package audit

import (
	"context"
	"log/slog"
	"time"

	"chronicle/internal/platform/metrics"
	pkgerrors "chronicle/pkg/errors"
)

// Config tunes the batch accumulator.
type Config struct {
	BatchSize     int
	BatchInterval time.Duration
	ChunkSize     int
	ChunkPause    time.Duration
	WriteTimeout  time.Duration
	MaxRetries    int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		BatchInterval: 5 * time.Second,
		ChunkSize:     10,
		ChunkPause:    100 * time.Millisecond,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = d.BatchInterval
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkPause < 0 {
		c.ChunkPause = d.ChunkPause
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	return c
}

// Sink mirrors persisted entries to an external system (e.g. a SIEM topic).
// Mirroring is best-effort and must never affect durability semantics.
type Sink interface {
	Mirror(ctx context.Context, e Entry)
}

// Cache is the optional dashboard cache port.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service is the audit engine: it routes each mutation to immediate or
// deferred persistence and serves queries, reports, compliance scoring, and
// security detection over the resulting trail. Construct one per store; no
// global state.
type Service struct {
	store   Store
	batcher *batcher
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sink    Sink
	cache   Cache
	cfg     Config

	checks   map[string]StandardCheck
	scanners []Scanner
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock injects the time source so tests can pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithSink mirrors persisted entries to the given sink.
func WithSink(sink Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithCache enables dashboard response caching.
func WithCache(cache Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithStandardCheck registers an additional compliance check, replacing any
// built-in check for the same standard.
func WithStandardCheck(check StandardCheck) Option {
	return func(s *Service) { s.checks[check.Standard()] = check }
}

// WithScanner registers an additional security scanner.
func WithScanner(scanner Scanner) Option {
	return func(s *Service) { s.scanners = append(s.scanners, scanner) }
}

// New builds a Service around the given record store.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "store is required")
	}

	s := &Service{
		store:    store,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		cfg:      DefaultConfig(),
		checks:   make(map[string]StandardCheck),
		scanners: defaultScanners(),
	}
	for _, check := range defaultStandardChecks() {
		s.checks[check.Standard()] = check
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg = s.cfg.withDefaults()
	s.batcher = newBatcher(store, s.cfg, s.logger, s.metrics, s.sink)
	return s, nil
}

// Log captures one business mutation. Critical operations block until the
// store write completes and surface its error; all others are acknowledged
// immediately and persisted by the next batch flush. A nil error on the
// deferred path does not yet guarantee durability.
func (s *Service) Log(ctx context.Context, op Operation, rc RequestContext) (string, error) {
	if op.TableName == "" {
		return "", pkgerrors.New(pkgerrors.CodeBadRequest, "tableName is required")
	}
	if op.RecordID == "" {
		return "", pkgerrors.New(pkgerrors.CodeBadRequest, "recordId is required")
	}
	if !op.Action.Valid() {
		return "", pkgerrors.New(pkgerrors.CodeBadRequest, "unknown action: "+string(op.Action))
	}

	entry := buildEntry(op, rc, s.now())

	if isCritical(op) {
		if err := s.store.Create(ctx, recordFromEntry(entry)); err != nil {
			s.metrics.IncCriticalWriteFailures()
			s.logger.ErrorContext(ctx, "critical audit write failed",
				"entry_id", entry.ID,
				"table", entry.TableName,
				"action", entry.Action,
				"error", err,
			)
			return "", pkgerrors.Wrap(pkgerrors.CodeUnavailable, "audit write failed", err)
		}
		s.metrics.IncCriticalWrites()
		if s.sink != nil {
			s.sink.Mirror(ctx, entry)
		}
		return entry.ID, nil
	}

	s.batcher.enqueue(entry)
	s.metrics.IncEnqueued()
	return entry.ID, nil
}

// Flush synchronously drains the pending batch. Intended for host runtimes
// to call on graceful shutdown.
func (s *Service) Flush(ctx context.Context) {
	s.batcher.flush(ctx)
}

// Close flushes any pending batch and closes the sink if it is closable.
func (s *Service) Close() error {
	s.batcher.flush(context.Background())
	if closer, ok := s.sink.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

// Pending returns the number of entries awaiting flush.
func (s *Service) Pending() int {
	return s.batcher.pendingCount()
}

// Quarantined returns entries parked after exhausting their retry budget.
func (s *Service) Quarantined() []Entry {
	return s.batcher.quarantinedEntries()
}

// RequeueQuarantined re-admits quarantined entries for flushing and returns
// how many were re-admitted.
func (s *Service) RequeueQuarantined() int {
	return s.batcher.requeueQuarantined()
}

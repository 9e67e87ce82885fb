package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chronicle/internal/platform/metrics"
)

// pendingEntry tracks an entry awaiting flush together with how many flush
// cycles have already failed to persist it.
type pendingEntry struct {
	entry    Entry
	attempts int
}

// batcher accumulates non-critical entries and flushes them to the store in
// chunks. The pending map and timer are the only shared mutable state and
// are guarded by a single mutex; a flush drains the map atomically so
// concurrent enqueues never race with chunk processing.
type batcher struct {
	store   Store
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	mu          sync.Mutex
	pending     map[string]pendingEntry
	quarantined map[string]Entry
	timer       *time.Timer
}

func newBatcher(store Store, cfg Config, logger *slog.Logger, m *metrics.Metrics, sink Sink) *batcher {
	return &batcher{
		store:       store,
		sink:        sink,
		logger:      logger,
		metrics:     m,
		cfg:         cfg,
		pending:     make(map[string]pendingEntry),
		quarantined: make(map[string]Entry),
	}
}

// enqueue inserts an entry into the pending map, arming the flush timer on
// first insert and triggering an immediate flush when the batch size
// threshold is reached.
func (b *batcher) enqueue(e Entry) {
	b.mu.Lock()
	b.pending[e.ID] = pendingEntry{entry: e}
	size := len(b.pending)
	b.metrics.SetPendingDepth(size)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.cfg.BatchInterval, func() {
			b.flush(context.Background())
		})
	}
	b.mu.Unlock()

	if size >= b.cfg.BatchSize {
		go b.flush(context.Background())
	}
}

// flush atomically drains the pending map and writes the drained entries in
// fixed-size chunks with a short inter-chunk pause. Failed entries are
// re-queued for the next cycle, or quarantined once their retry budget is
// exhausted. Safe to call concurrently: each call operates on a disjoint
// drained set.
func (b *batcher) flush(ctx context.Context) {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]pendingEntry, 0, len(b.pending))
	for _, pe := range b.pending {
		batch = append(batch, pe)
	}
	b.pending = make(map[string]pendingEntry)
	b.metrics.SetPendingDepth(0)
	b.mu.Unlock()

	start := time.Now()
	b.metrics.IncFlushes()

	var failed []pendingEntry
	for i := 0; i < len(batch); i += b.cfg.ChunkSize {
		end := min(i+b.cfg.ChunkSize, len(batch))
		failed = append(failed, b.writeChunk(ctx, batch[i:end])...)
		if end < len(batch) && b.cfg.ChunkPause > 0 {
			time.Sleep(b.cfg.ChunkPause)
		}
	}

	b.metrics.ObserveFlushDuration(time.Since(start).Seconds())

	if len(failed) > 0 {
		b.metrics.AddFlushFailures(len(failed))
		b.requeue(failed)
	}
}

// writeChunk fires the chunk's writes in parallel, waits for all of them,
// and returns the entries that failed. Write errors never propagate: the
// original caller was acknowledged at enqueue time.
func (b *batcher) writeChunk(ctx context.Context, chunk []pendingEntry) []pendingEntry {
	var (
		mu     sync.Mutex
		failed []pendingEntry
	)
	g := new(errgroup.Group)
	for _, pe := range chunk {
		g.Go(func() error {
			wctx, cancel := context.WithTimeout(ctx, b.cfg.WriteTimeout)
			defer cancel()
			if err := b.store.Create(wctx, recordFromEntry(pe.entry)); err != nil {
				b.logger.Warn("batched audit write failed",
					"entry_id", pe.entry.ID,
					"table", pe.entry.TableName,
					"attempts", pe.attempts+1,
					"error", err,
				)
				pe.attempts++
				mu.Lock()
				failed = append(failed, pe)
				mu.Unlock()
				return nil
			}
			if b.sink != nil {
				b.sink.Mirror(ctx, pe.entry)
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// requeue re-admits failed entries for the next flush cycle, moving entries
// that exhausted their retry budget into quarantine.
func (b *batcher) requeue(failed []pendingEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	retried := 0
	for _, pe := range failed {
		if pe.attempts >= b.cfg.MaxRetries {
			b.quarantined[pe.entry.ID] = pe.entry
			b.logger.Error("audit entry quarantined after exhausting retries",
				"entry_id", pe.entry.ID,
				"table", pe.entry.TableName,
				"attempts", pe.attempts,
			)
			continue
		}
		b.pending[pe.entry.ID] = pe
		retried++
	}

	b.metrics.AddRetried(retried)
	b.metrics.SetPendingDepth(len(b.pending))
	b.metrics.SetQuarantineDepth(len(b.quarantined))

	if len(b.pending) > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.cfg.BatchInterval, func() {
			b.flush(context.Background())
		})
	}
}

func (b *batcher) pendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// quarantinedEntries returns a copy of the entries parked after exhausting
// their retry budget.
func (b *batcher) quarantinedEntries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, len(b.quarantined))
	for _, e := range b.quarantined {
		out = append(out, e)
	}
	return out
}

// requeueQuarantined re-admits all quarantined entries with a fresh retry
// budget. Intended for operator use after store recovery.
func (b *batcher) requeueQuarantined() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.quarantined)
	for id, e := range b.quarantined {
		b.pending[id] = pendingEntry{entry: e}
		delete(b.quarantined, id)
	}
	b.metrics.SetPendingDepth(len(b.pending))
	b.metrics.SetQuarantineDepth(0)

	if len(b.pending) > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.cfg.BatchInterval, func() {
			b.flush(context.Background())
		})
	}
	return n
}

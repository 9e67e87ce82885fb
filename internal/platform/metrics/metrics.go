package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit engine. All service-side
// call sites are nil-safe so tests can run without registering collectors.
type Metrics struct {
	CriticalWrites        prometheus.Counter
	CriticalWriteFailures prometheus.Counter
	Enqueued              prometheus.Counter
	Flushes               prometheus.Counter
	FlushFailures         prometheus.Counter
	Retried               prometheus.Counter
	MirrorFailures        prometheus.Counter
	PendingDepth          prometheus.Gauge
	QuarantineDepth       prometheus.Gauge
	FlushDuration         prometheus.Histogram
	QueryDuration         prometheus.Histogram
}

// New creates and registers all audit engine metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		CriticalWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_critical_writes_total",
			Help: "Total number of audit entries persisted on the synchronous critical path",
		}),
		CriticalWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_critical_write_failures_total",
			Help: "Total number of failed synchronous audit writes",
		}),
		Enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_enqueued_total",
			Help: "Total number of audit entries accepted for deferred persistence",
		}),
		Flushes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_flushes_total",
			Help: "Total number of batch flush cycles",
		}),
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_flush_failures_total",
			Help: "Total number of per-entry write failures during batch flushes",
		}),
		Retried: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_retried_total",
			Help: "Total number of audit entries re-queued after a failed flush attempt",
		}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_audit_mirror_failures_total",
			Help: "Total number of failed best-effort mirror publishes",
		}),
		PendingDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_audit_pending_depth",
			Help: "Current number of audit entries awaiting batch flush",
		}),
		QuarantineDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_audit_quarantine_depth",
			Help: "Current number of audit entries quarantined after exhausting retries",
		}),
		FlushDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_audit_flush_duration_seconds",
			Help:    "Duration of batch flush cycles",
			Buckets: prometheus.DefBuckets,
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_audit_query_duration_seconds",
			Help:    "Duration of audit trail queries",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncCriticalWrites() {
	if m != nil {
		m.CriticalWrites.Inc()
	}
}

func (m *Metrics) IncCriticalWriteFailures() {
	if m != nil {
		m.CriticalWriteFailures.Inc()
	}
}

func (m *Metrics) IncEnqueued() {
	if m != nil {
		m.Enqueued.Inc()
	}
}

func (m *Metrics) IncFlushes() {
	if m != nil {
		m.Flushes.Inc()
	}
}

func (m *Metrics) AddFlushFailures(n int) {
	if m != nil {
		m.FlushFailures.Add(float64(n))
	}
}

func (m *Metrics) AddRetried(n int) {
	if m != nil {
		m.Retried.Add(float64(n))
	}
}

func (m *Metrics) IncMirrorFailures() {
	if m != nil {
		m.MirrorFailures.Inc()
	}
}

func (m *Metrics) SetPendingDepth(n int) {
	if m != nil {
		m.PendingDepth.Set(float64(n))
	}
}

func (m *Metrics) SetQuarantineDepth(n int) {
	if m != nil {
		m.QuarantineDepth.Set(float64(n))
	}
}

func (m *Metrics) ObserveFlushDuration(seconds float64) {
	if m != nil {
		m.FlushDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveQueryDuration(seconds float64) {
	if m != nil {
		m.QueryDuration.Observe(seconds)
	}
}

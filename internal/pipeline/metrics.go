package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "leadscout"

// Metrics instruments ingestion runs. A nil *Metrics records nothing.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	PostsTotal          *prometheus.CounterVec
	ScoringCallsTotal   *prometheus.CounterVec
	ScoringDuration     prometheus.Histogram
	PersistFailures     prometheus.Counter
	RunsCurrentlyActive prometheus.Gauge
}

// NewMetrics registers ingestion metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by terminal outcome",
		}, []string{"outcome"}),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of an ingestion run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PostsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "posts_total",
			Help:      "Posts seen by ingestion, by stage",
		}, []string{"stage"}),
		ScoringCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scoring",
			Name:      "calls_total",
			Help:      "Scoring endpoint calls by outcome",
		}, []string{"outcome"}),
		ScoringDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "scoring",
			Name:      "call_duration_seconds",
			Help:      "Latency of one scoring call",
			Buckets:   prometheus.DefBuckets,
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Scored leads that could not be written",
		}),
		RunsCurrentlyActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingest",
			Name:      "runs_active",
			Help:      "Ingestion runs in progress",
		}),
	}
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.RunsCurrentlyActive.Inc()
}

func (m *Metrics) runFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunsCurrentlyActive.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDurationSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) posts(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PostsTotal.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) scoringCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScoringCallsTotal.WithLabelValues(outcome).Inc()
	m.ScoringDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

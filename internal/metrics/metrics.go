// Package metrics exposes Prometheus instrumentation for the insights
// pipeline.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors
type Metrics struct {
	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	BatchFailures     prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	QueueWaitSeconds  prometheus.Histogram
	UpstreamFetchErrs prometheus.Counter
	DBStats           *prometheus.GaugeVec
}

// New registers and returns the pipeline metrics. Pass a nil registerer to
// use the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewinsights_analyses_total",
			Help: "Completed analyses by analysis type and method (ai or statistical).",
		}, []string{"analysis_type", "method"}),

		AnalysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewinsights_analysis_duration_seconds",
			Help:    "Wall-clock duration of one analysis request.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"analysis_type"}),

		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewinsights_batch_failures_total",
			Help: "Per-batch text-generation failures, including those later recovered.",
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewinsights_cache_lookups_total",
			Help: "Result cache lookups by outcome (hit or miss).",
		}, []string{"outcome"}),

		QueueWaitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewinsights_queue_wait_seconds",
			Help:    "Time an async analysis task spent queued before processing.",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 3600},
		}),

		UpstreamFetchErrs: factory.NewCounter(prometheus.CounterOpts{
			Name: "reviewinsights_upstream_fetch_errors_total",
			Help: "Per-store review fetch failures against the upstream API.",
		}),

		DBStats: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reviewinsights_db_stats",
			Help: "Database connection pool statistics.",
		}, []string{"stat"}),
	}
}

// UpdateDBStats refreshes the connection pool gauges from the pool itself.
// Called on a ticker from main.
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	stats := db.Stats()
	m.DBStats.WithLabelValues("max_open_connections").Set(float64(stats.MaxOpenConnections))
	m.DBStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
	m.DBStats.WithLabelValues("in_use").Set(float64(stats.InUse))
	m.DBStats.WithLabelValues("idle").Set(float64(stats.Idle))
	m.DBStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	m.DBStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
}

// ObserveAnalysis records one completed analysis
func (m *Metrics) ObserveAnalysis(analysisType, method string, duration time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(analysisType, method).Inc()
	m.AnalysisDuration.WithLabelValues(analysisType).Observe(duration.Seconds())
}

// ObserveCache records a cache lookup outcome
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveFetchError records one failed per-store review fetch
func (m *Metrics) ObserveFetchError() {
	if m == nil {
		return
	}
	m.UpstreamFetchErrs.Inc()
}

// ObserveBatchFailures records n failed analysis batches
func (m *Metrics) ObserveBatchFailures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.BatchFailures.Add(float64(n))
}

// ObserveQueueWait records how long a task waited in the queue
func (m *Metrics) ObserveQueueWait(wait time.Duration) {
	if m == nil {
		return
	}
	m.QueueWaitSeconds.Observe(wait.Seconds())
}

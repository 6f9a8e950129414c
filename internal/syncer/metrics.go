package syncer

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RecordsSynced  prometheus.Counter
	PendingRecords prometheus.Gauge
	RunDuration    prometheus.Histogram
}

// NewMetrics creates and registers the sync metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpost_sync_runs_total",
			Help: "Sync engine runs by outcome.",
		}, []string{"outcome"}),
		RecordsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outpost_sync_records_synced_total",
			Help: "Assessments confirmed synced to the central system.",
		}),
		PendingRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outpost_sync_pending_records",
			Help: "Assessments awaiting sync as of the last run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outpost_sync_run_duration_seconds",
			Help:    "Duration of sync engine runs.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.RunsTotal, m.RecordsSynced, m.PendingRecords, m.RunDuration)
	return m
}

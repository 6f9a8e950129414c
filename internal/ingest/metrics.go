package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the intake service's Prometheus instruments.
type Metrics struct {
	BatchesTotal     *prometheus.CounterVec
	RecordsIngested  prometheus.Counter
	DuplicateRecords prometheus.Counter
	EscalationsTotal prometheus.Counter
}

// NewMetrics creates and registers the intake metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centrald_sync_batches_total",
			Help: "Sync batches by outcome.",
		}, []string{"outcome"}),
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "centrald_records_ingested_total",
			Help: "Assessment records inserted.",
		}),
		DuplicateRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "centrald_duplicate_records_total",
			Help: "Redelivered records dropped as duplicates.",
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "centrald_escalations_total",
			Help: "Emergency escalations minted.",
		}),
	}
	reg.MustRegister(m.BatchesTotal, m.RecordsIngested, m.DuplicateRecords, m.EscalationsTotal)
	return m
}

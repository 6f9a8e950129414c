package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal       *prometheus.CounterVec
	TriageDuration     *prometheus.HistogramVec
	GuardrailOverrides *prometheus.CounterVec
	ClassifierFailures prometheus.Counter
	VitalsFailures     prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpost_triages_total",
			Help: "Total completed triages by final risk level.",
		}, []string{"risk_level"}),
		TriageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outpost_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}, []string{"risk_level"}),
		GuardrailOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outpost_guardrail_overrides_total",
			Help: "Assessments force-escalated by a safety rule, by rule name.",
		}, []string{"rule"}),
		ClassifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outpost_classifier_failures_total",
			Help: "Classifier calls that failed and degraded to the conservative default.",
		}),
		VitalsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outpost_vitals_failures_total",
			Help: "Vitals detections that failed and degraded to empty.",
		}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.GuardrailOverrides,
		m.ClassifierFailures,
		m.VitalsFailures,
	)

	return m
}

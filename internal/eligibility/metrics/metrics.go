package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for eligibility evaluation.
type Metrics struct {
	Evaluations     *prometheus.CounterVec
	EvaluateLatency prometheus.Histogram
	EvidenceLatency *prometheus.HistogramVec
}

// New registers and returns eligibility metrics collectors.
func New() *Metrics {
	return &Metrics{
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_eligibility_evaluations_total",
			Help: "Completed eligibility evaluations, labeled by badge and outcome",
		}, []string{"badge", "outcome"}),
		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "emblem_eligibility_evaluate_latency_seconds",
			Help:    "End-to-end eligibility evaluation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EvidenceLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emblem_eligibility_evidence_latency_seconds",
			Help:    "Per-source evidence fetch latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"source"}),
	}
}

// ObserveEvidenceLatency records one evidence fetch by source name.
func (m *Metrics) ObserveEvidenceLatency(source string, d time.Duration) {
	m.EvidenceLatency.WithLabelValues(source).Observe(d.Seconds())
}

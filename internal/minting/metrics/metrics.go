package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the mint lifecycle.
type Metrics struct {
	MintsInitiated *prometheus.CounterVec
	MintOutcomes   *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	Revocations    prometheus.Counter
	LedgerLatency  prometheus.Histogram
}

// New registers and returns minting metrics collectors.
func New() *Metrics {
	return &Metrics{
		MintsInitiated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_minting_mints_initiated_total",
			Help: "Mint records created and dispatched, labeled by badge",
		}, []string{"badge"}),
		MintOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_minting_mint_outcomes_total",
			Help: "Terminal mint transitions, labeled by badge and outcome",
		}, []string{"badge", "outcome"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_minting_rejections_total",
			Help: "Mint initiations refused before record creation, labeled by badge and cause",
		}, []string{"badge", "cause"}),
		Revocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emblem_minting_revocations_total",
			Help: "Completed mints invalidated by an administrative revoke",
		}),
		LedgerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "emblem_minting_ledger_latency_seconds",
			Help:    "Wall time of ledger mint submissions, confirmations and failures alike",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

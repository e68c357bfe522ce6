package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the verification session lifecycle.
type Metrics struct {
	SessionsInitiated *prometheus.CounterVec
	SessionOutcomes   *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	SessionsSwept     prometheus.Counter
}

// New registers and returns verification metrics collectors.
func New() *Metrics {
	return &Metrics{
		SessionsInitiated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_verification_sessions_initiated_total",
			Help: "Total verification sessions opened, labeled by provider",
		}, []string{"provider"}),
		SessionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_verification_session_outcomes_total",
			Help: "Terminal session transitions, labeled by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emblem_verification_provider_errors_total",
			Help: "Identity adapter failures, labeled by provider and error category",
		}, []string{"provider", "category"}),
		SessionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emblem_verification_sessions_swept_total",
			Help: "Pending sessions transitioned to expired by the cleanup worker",
		}),
	}
}

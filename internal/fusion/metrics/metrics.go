package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Attempts       *prometheus.CounterVec
	FactorFailures *prometheus.CounterVec
	TokensIssued   prometheus.Counter
	FusionDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_fusion_attempts_total",
			Help: "Authentication attempts by strategy and fused decision.",
		}, []string{"strategy", "decision"}),
		FactorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_fusion_factor_failures_total",
			Help: "Per-factor non-success outcomes by modality and decision.",
		}, []string{"modality", "decision"}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biogate_fusion_tokens_issued_total",
			Help: "Access tokens issued after successful authentication.",
		}),
		FusionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biogate_fusion_duration_seconds",
			Help:    "Wall-clock duration of complete authentication attempts.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveAttempt(strategy, decision string, seconds float64) {
	m.Attempts.WithLabelValues(strategy, decision).Inc()
	m.FusionDuration.Observe(seconds)
}

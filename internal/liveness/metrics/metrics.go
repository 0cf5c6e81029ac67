package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal     *prometheus.CounterVec
	AttacksDetected *prometheus.CounterVec
	TestFailures    *prometheus.CounterVec
	CheckDuration   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_liveness_checks_total",
			Help: "Liveness checks by final verdict.",
		}, []string{"verdict"}),
		AttacksDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_liveness_attacks_detected_total",
			Help: "Presentation attacks by classified type.",
		}, []string{"attack_type"}),
		TestFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_liveness_test_failures_total",
			Help: "Individual challenge test failures by test type.",
		}, []string{"test"}),
		CheckDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "biogate_liveness_check_duration_seconds",
			Help:    "Wall-clock duration of complete liveness checks.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveCheck(verdict string, seconds float64) {
	m.ChecksTotal.WithLabelValues(verdict).Inc()
	m.CheckDuration.Observe(seconds)
}

func (m *Metrics) IncrementAttack(attackType string) {
	m.AttacksDetected.WithLabelValues(attackType).Inc()
}

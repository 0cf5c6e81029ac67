package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TemplatesRegistered *prometheus.CounterVec
	TemplatesRejected   *prometheus.CounterVec
	TemplatesRevoked    prometheus.Counter
	TemplatesExpired    prometheus.Counter
	ActiveTemplates     prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		TemplatesRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_templates_registered_total",
			Help: "Total number of biometric templates admitted, by modality",
		}, []string{"modality"}),
		TemplatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "biogate_templates_rejected_total",
			Help: "Total number of registration attempts rejected, by reason",
		}, []string{"reason"}),
		TemplatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biogate_templates_revoked_total",
			Help: "Total number of templates revoked",
		}),
		TemplatesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "biogate_templates_expired_total",
			Help: "Total number of templates removed by expiry cleanup",
		}),
		ActiveTemplates: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "biogate_templates_active",
			Help: "Current number of active templates",
		}),
	}
}

func (m *Metrics) IncrementRegistered(modality string) {
	m.TemplatesRegistered.WithLabelValues(modality).Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.TemplatesRejected.WithLabelValues(reason).Inc()
}

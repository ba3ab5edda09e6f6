package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DeliveryMetrics exposes delivery counters on a dedicated registry so each
// run mode scrapes only its own series.
type DeliveryMetrics struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

func NewDeliveryMetrics() *DeliveryMetrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Delivery attempts by channel and attempt result.",
		},
		[]string{"channel", "result"},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_outcomes_total",
			Help: "Notification status outcomes reached by the delivery tracker.",
		},
		[]string{"status"},
	)

	registry.MustRegister(attempts, outcomes)

	return &DeliveryMetrics{
		registry: registry,
		attempts: attempts,
		outcomes: outcomes,
	}
}

func (m *DeliveryMetrics) IncAttempt(channel, result string) {
	m.attempts.WithLabelValues(channel, result).Inc()
}

func (m *DeliveryMetrics) IncOutcome(status string) {
	m.outcomes.WithLabelValues(status).Inc()
}

// Handler serves the registry for scraping.
func (m *DeliveryMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

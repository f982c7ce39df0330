// Package metrics provides Prometheus metrics for the chart audit services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drfirst/go-chartaudit/internal/extraction"
	"github.com/drfirst/go-chartaudit/pkg/circuitbreaker"
)

// Notification outcomes
const (
	NotificationSent        = "sent"
	NotificationAlreadySent = "already_sent"
	NotificationInProgress  = "in_progress"
	NotificationFailed      = "failed"
)

// Metrics holds all application metrics
type Metrics struct {
	AuditsTotal           *prometheus.CounterVec
	AuditsRejected        *prometheus.CounterVec
	AuditDuration         prometheus.Histogram
	FindingsTotal         *prometheus.CounterVec
	PersistFailures       prometheus.Counter
	NotificationsTotal    *prometheus.CounterVec
	KafkaMessagesProduced *prometheus.CounterVec
	KafkaMessagesConsumed *prometheus.CounterVec
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all metrics and registers them with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		AuditsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_audits_total",
			Help: "Audits completed, by resulting status",
		}, []string{"status"}),
		AuditsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_audits_rejected_total",
			Help: "Audit requests rejected for missing required input",
		}, []string{"field"}),
		AuditDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chart_audit_duration_seconds",
			Help:    "Engine run time per document",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_audit_communications_total",
			Help: "Communications produced, by sector and urgency",
		}, []string{"sector", "urgency"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chart_audit_persist_failures_total",
			Help: "Audits computed but not persisted",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chart_audit_notifications_total",
			Help: "Notification dispatch attempts, by outcome and trigger",
		}, []string{"outcome", "trigger"}),
		KafkaMessagesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}, []string{"topic"}),
		KafkaMessagesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}, []string{"topic"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.AuditsTotal,
		m.AuditsRejected,
		m.AuditDuration,
		m.FindingsTotal,
		m.PersistFailures,
		m.NotificationsTotal,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveAudit records one engine run.
func (m *Metrics) ObserveAudit(res *extraction.Result, took time.Duration) {
	m.AuditDuration.Observe(took.Seconds())
	m.AuditsTotal.WithLabelValues(string(res.Status)).Inc()
	for _, c := range res.Communications {
		m.FindingsTotal.WithLabelValues(c.Sector, string(c.Urgency)).Inc()
	}
}

// ObserveBreaker is suitable as a circuitbreaker.Config OnStateChange hook.
func (m *Metrics) ObserveBreaker(name string, to circuitbreaker.State) {
	var v float64
	switch to {
	case circuitbreaker.StateOpen:
		v = 1
	case circuitbreaker.StateHalfOpen:
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// Handler returns the Prometheus HTTP handler for g. A nil g serves the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

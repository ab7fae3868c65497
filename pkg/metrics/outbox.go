package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox publish results.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the outbox publisher's delivery outcomes and backlog.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	pending prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher, by topic and result.",
	}, []string{"topic", "result"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_pending_events",
		Help: "Outbox rows not yet published.",
	})
	reg.MustRegister(results, pending)
	return &OutboxMetrics{results: results, pending: pending}
}

func (m *OutboxMetrics) Record(topic, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(topic), normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) SetPending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}

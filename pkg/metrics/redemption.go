package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RedemptionMetrics records outcomes of validate and redeem calls.
type RedemptionMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	points   *prometheus.CounterVec
}

// NewRedemptionMetrics registers the redemption metrics on the provided
// registerer. A nil registerer yields a no-op recorder.
func NewRedemptionMetrics(reg prometheus.Registerer) *RedemptionMetrics {
	if reg == nil {
		return &RedemptionMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_attempts_total",
		Help: "Redemption operations by code kind, operation and result.",
	}, []string{"kind", "operation", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redemption_duration_seconds",
		Help:    "Duration of redemption operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "operation"})
	points := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_points_total",
		Help: "Points moved by redemption flows.",
	}, []string{"direction"})
	reg.MustRegister(attempts, duration, points)
	return &RedemptionMetrics{
		attempts: attempts,
		duration: duration,
		points:   points,
	}
}

// Observe records one operation outcome and its latency.
func (m *RedemptionMetrics) Observe(kind, operation, result string, elapsed time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	kind = normalizeLabel(kind)
	operation = normalizeLabel(operation)
	m.attempts.WithLabelValues(kind, operation, normalizeLabel(result)).Inc()
	m.duration.WithLabelValues(kind, operation).Observe(elapsed.Seconds())
}

// AddPoints counts points credited or debited by a redemption flow.
func (m *RedemptionMetrics) AddPoints(direction string, amount int64) {
	if m == nil || m.points == nil || amount <= 0 {
		return
	}
	m.points.WithLabelValues(normalizeLabel(direction)).Add(float64(amount))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

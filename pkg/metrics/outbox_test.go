package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsRecordsResultsAndBacklog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Record("redemption-events", OutboxPublished)
	m.Record("redemption-events", OutboxPublished)
	m.Record("", OutboxDeadLettered)
	m.SetPending(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_total", "result", OutboxPublished); err != nil {
		t.Fatalf("fetch published: %v", err)
	} else if got != 2 {
		t.Fatalf("expected published=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "outbox_events_total", "topic", "unknown"); err != nil {
		t.Fatalf("fetch unknown topic: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dead lettered=1, got %f", got)
	}

	pending := findMetricFamily(mfs, "outbox_pending_events")
	if pending == nil || pending.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Fatalf("expected pending gauge of 7")
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Record("points-events", OutboxRetried)
	m.SetPending(1)
	NewOutboxMetrics(nil).Record("points-events", OutboxRetried)
}

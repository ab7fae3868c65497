package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRedemptionMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRedemptionMetrics(reg)

	m.Observe("voucher", "redeem", "ok", 40*time.Millisecond)
	m.Observe("voucher", "redeem", "ALREADY_REDEEMED", 5*time.Millisecond)
	m.Observe("voucher", "redeem", "ok", 10*time.Millisecond)
	m.AddPoints("credit", 25)
	m.AddPoints("credit", -3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "redemption_attempts_total", "result", "ok"); err != nil {
		t.Fatalf("fetch ok attempts: %v", err)
	} else if got != 2 {
		t.Fatalf("expected ok=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "redemption_attempts_total", "result", "ALREADY_REDEEMED"); err != nil {
		t.Fatalf("fetch rejected attempts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected ALREADY_REDEEMED=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "redemption_points_total", "direction", "credit"); err != nil {
		t.Fatalf("fetch points: %v", err)
	} else if got != 25 {
		t.Fatalf("expected credited points 25, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "redemption_duration_seconds", "operation", "redeem"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewRedemptionMetrics(nil)
	m.Observe("qr", "validate", "ok", time.Millisecond)
	m.AddPoints("debit", 3)

	var nilMetrics *RedemptionMetrics
	nilMetrics.Observe("qr", "validate", "ok", time.Millisecond)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	var sum float64
	found := false
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			sum += metric.GetHistogram().GetSampleSum()
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
	}
	return sum, nil
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

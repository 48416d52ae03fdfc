package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsTrack(t *testing.T) {
	reg := prometheus.NewRegistry()
	jobs := NewJobMetrics(reg)

	jobs.Track("cart_sweep", time.Now().Add(-250*time.Millisecond), nil)
	jobs.Track("cart_sweep", time.Now(), errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "sf_job_success_total", "job", "cart_sweep"); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "sf_job_failure_total", "job", "cart_sweep"); err != nil || got != 1 {
		t.Fatalf("expected failure=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "sf_job_duration_seconds", "job", "cart_sweep"); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", got, err)
	}
}

func TestStorefrontMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefrontMetrics(reg)

	m.IncCheckout(CheckoutSucceeded)
	m.IncCheckout(CheckoutSucceeded)
	m.IncStatusUpdate("shipped")
	m.IncNotificationSent("order_shipped")
	m.IncNotificationFailed("")
	m.IncEmitFailure("order_confirmation")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	checks := []struct {
		name, label, value string
		want               float64
	}{
		{"sf_checkouts_total", "result", CheckoutSucceeded, 2},
		{"sf_order_status_updates_total", "status", "shipped", 1},
		{"sf_notifications_sent_total", "kind", "order_shipped", 1},
		{"sf_notifications_failed_total", "kind", "unknown", 1},
		{"sf_notification_emit_failures_total", "kind", "order_confirmation", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, c.label, c.value)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s expected %f got %f", c.name, c.want, got)
		}
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTPMetrics(reg)
	h.Observe("GET", "/api/v1/products/{productId}", 200, 30*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "sf_http_request_duration_seconds", "route", "/api/v1/products/{productId}"); err != nil || got <= 0 {
		t.Fatalf("expected histogram sum > 0, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var jobs *JobMetrics
	jobs.Track("x", time.Now(), nil)
	var sf *StorefrontMetrics
	sf.IncCheckout(CheckoutFailed)
	NewStorefrontMetrics(nil).IncNotificationSent("x")
	var h *HTTPMetrics
	h.Observe("GET", "/", 200, time.Millisecond)
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
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
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

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/filibuster-io/filibuster-go/internal/metrics"
)

func TestTestsRanIncrementsIndependently(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.TestsRan.Inc()
	m.TestsRan.Inc()
	m.TestsPruned.Inc()

	if got := counterValue(t, m.TestsRan); got != 2 {
		t.Errorf("expected TestsRan=2, got %v", got)
	}
	if got := counterValue(t, m.TestsPruned); got != 1 {
		t.Errorf("expected TestsPruned=1, got %v", got)
	}
}

func TestScheduleDepthGaugeTracksSetValue(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ScheduleDepth.Set(3)
	m.ScheduleDepth.Dec()

	var out dto.Metric
	if err := m.ScheduleDepth.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.GetGauge().GetValue() != 2 {
		t.Errorf("expected gauge=2, got %v", out.GetGauge().GetValue())
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.GetCounter().GetValue()
}

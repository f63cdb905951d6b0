package readiness_test

import (
	"errors"
	"testing"

	"github.com/filibuster-io/filibuster-go/internal/readiness"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cfg := readiness.CircuitBreakerConfig{FailureThreshold: 2, HalfOpenProbes: 1}
	cb := readiness.NewCircuitBreaker("payments", cfg, nil)

	cb.ReportFailure(errors.New("boom"))
	if cb.State() != readiness.StateClosed {
		t.Fatalf("expected closed after one failure, got %v", cb.State())
	}

	cb.ReportFailure(errors.New("boom"))
	if cb.State() != readiness.StateOpen {
		t.Fatalf("expected open after reaching failure threshold, got %v", cb.State())
	}
}

func TestCircuitBreakerReportFailureSkippedWhenOpen(t *testing.T) {
	cfg := readiness.CircuitBreakerConfig{FailureThreshold: 1, HalfOpenProbes: 1}
	cb := readiness.NewCircuitBreaker("orders", cfg, nil)

	cb.ReportFailure(errors.New("boom"))
	if cb.State() != readiness.StateOpen {
		t.Fatalf("expected open")
	}

	if cb.ReportFailure(errors.New("boom again")) {
		t.Fatalf("expected ReportFailure to be skipped while circuit is open")
	}
	if cb.ReportSuccess() {
		t.Fatalf("expected ReportSuccess to be skipped while circuit is open")
	}
}

func TestShouldCountAsFailure(t *testing.T) {
	cases := []struct {
		status int
		err    error
		want   bool
	}{
		{status: 200, err: nil, want: false},
		{status: 503, err: nil, want: true},
		{status: 429, err: nil, want: true},
		{status: 0, err: errors.New("dial tcp: connection refused"), want: true},
	}
	for _, tc := range cases {
		if got := readiness.ShouldCountAsFailure(tc.status, tc.err); got != tc.want {
			t.Errorf("ShouldCountAsFailure(%d, %v) = %v, want %v", tc.status, tc.err, got, tc.want)
		}
	}
}

package di

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/metrics"
)

// MetricsService wraps the Prometheus registry, the Metrics bundle passed
// into the orchestrator, and the exposition handler for GET /metrics.
type MetricsService struct {
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Handler serves GET /metrics, or is nil if MetricsConfig.Enabled is
	// false.
	Handler http.Handler
}

// NewMetrics creates a fresh Prometheus registry and the Metrics bundle
// registered against it. A fresh registry (rather than the global default)
// keeps multiple containers in the same process - as tests construct - from
// colliding on collector names.
func NewMetrics(i do.Injector) (*MetricsService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	svc := &MetricsService{Registry: registry, Metrics: m}
	if cfgSvc.Config.Metrics.Enabled {
		svc.Handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	return svc, nil
}

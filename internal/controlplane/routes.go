package controlplane

import (
	"net/http"

	"github.com/filibuster-io/filibuster-go/internal/orchestrator"
	"github.com/filibuster-io/filibuster-go/internal/ratelimit"
	"github.com/filibuster-io/filibuster-go/internal/readiness"
)

// Options configures SetupRoutes.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Tracker      *readiness.Tracker
	Limiter      ratelimit.Limiter
	ServerOnly   *orchestrator.ServerOnlyRunner

	// MetricsHandler serves GET /metrics, typically
	// promhttp.HandlerFor(registry, promhttp.HandlerOpts{}). Left nil to
	// omit the endpoint (metrics disabled).
	MetricsHandler http.Handler

	// Terminated, if set, receives a value when GET /terminate is called.
	Terminated chan<- struct{}
}

// SetupRoutes builds the control-plane's HTTP handler: every endpoint in
// §4.1, wrapped in request-id, logging, rate-limit, and recovery
// middleware.
func SetupRoutes(opts *Options) http.Handler {
	h := &Handlers{
		Orchestrator: opts.Orchestrator,
		Tracker:      opts.Tracker,
		ServerOnly:   opts.ServerOnly,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /filibuster/new-test-execution/{service}", h.NewTestExecution)
	mux.HandleFunc("PUT /filibuster/create", h.Create)
	mux.HandleFunc("POST /filibuster/update", h.Update)
	mux.HandleFunc("GET /filibuster/fault-injected", h.FaultInjected)
	mux.HandleFunc("GET /filibuster/fault-injected/service/{name}", h.FaultInjectedForService)
	mux.HandleFunc("GET /filibuster/fault-injected/method/{method}", h.FaultInjectedForMethod)
	mux.HandleFunc("POST /filibuster/complete-iteration/{n}/exception/{exception}", h.CompleteIteration)
	mux.HandleFunc("GET /health-check", h.HealthCheck)
	if opts.Terminated != nil {
		mux.HandleFunc("GET /terminate", h.Terminate(opts.Terminated))
	}
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	var handler http.Handler = mux
	handler = RateLimitMiddleware(opts.Limiter)(handler)
	handler = LoggingMiddleware()(handler)
	handler = RequestIDMiddleware()(handler)
	handler = Recoverer()(handler)
	return handler
}

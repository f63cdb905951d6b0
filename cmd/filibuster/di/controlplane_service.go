package di

import (
	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/controlplane"
)

// ControlPlaneService wraps the HTTP handler and server that expose the
// orchestrator's §4.1 endpoints to instrumented services.
type ControlPlaneService struct {
	Server     *controlplane.Server
	Terminated chan struct{}
}

// Shutdown implements do.Shutdowner.
func (s *ControlPlaneService) Shutdown() error {
	return nil
}

// NewControlPlaneServer builds the control-plane's HTTP handler and server.
func NewControlPlaneServer(i do.Injector) (*ControlPlaneService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	orchSvc := do.MustInvoke[*OrchestratorService](i)
	trackerSvc := do.MustInvoke[*ReadinessTrackerService](i)
	limiterSvc := do.MustInvoke[*RateLimiterService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)

	terminated := make(chan struct{}, 1)

	handler := controlplane.SetupRoutes(&controlplane.Options{
		Orchestrator:   orchSvc.Orchestrator,
		Tracker:        trackerSvc.Tracker,
		Limiter:        limiterSvc.Limiter,
		ServerOnly:     orchSvc.ServerOnly,
		MetricsHandler: metricsSvc.Handler,
		Terminated:     terminated,
	})

	server := controlplane.NewServer(cfgSvc.Config.Server.Listen, handler)

	return &ControlPlaneService{Server: server, Terminated: terminated}, nil
}

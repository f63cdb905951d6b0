package di

import (
	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/config"
	"github.com/filibuster-io/filibuster-go/internal/readiness"
)

// ReadinessTrackerService wraps the per-service circuit breaker tracker.
// The Tracker pointer itself never changes, so callers holding a reference
// see config changes without re-resolving from the container; Tracker.Reset
// drops existing circuits under new thresholds on hot-reload.
type ReadinessTrackerService struct {
	Tracker *readiness.Tracker
	cfgSvc  *ConfigService
}

// StartWatching rebuilds the tracker's circuit-breaker thresholds whenever
// the config reloads.
func (s *ReadinessTrackerService) StartWatching(loggerSvc *LoggerService) {
	if s.cfgSvc == nil || s.cfgSvc.watcher == nil {
		return
	}
	s.cfgSvc.watcher.OnReload(func(newCfg *config.Config) error {
		s.Tracker.Reset(newCfg.Readiness.CircuitBreaker, loggerSvc.Logger)
		return nil
	})
}

// NewReadinessTracker creates the circuit breaker tracker from configuration.
func NewReadinessTracker(i do.Injector) (*ReadinessTrackerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)

	tracker := readiness.NewTracker(cfgSvc.Config.Readiness.CircuitBreaker, loggerSvc.Logger)
	svc := &ReadinessTrackerService{Tracker: tracker, cfgSvc: cfgSvc}
	svc.StartWatching(loggerSvc)

	return svc, nil
}

// ReadinessCheckerService wraps the background health-check poller that
// probes OPEN circuits so they can recover faster than the plain cooldown
// timer would allow.
type ReadinessCheckerService struct {
	Checker *readiness.Checker
}

// RegisterService registers a health check for service. The control-plane
// handlers do not call it. baseURL may be empty, in which case the circuit is tracked but never
// actively probed (it only recovers via the cooldown timer).
func (s *ReadinessCheckerService) RegisterService(name, baseURL string) {
	s.Checker.RegisterService(readiness.NewServiceHealthCheck(name, baseURL, nil))
}

// Shutdown implements do.Shutdowner.
func (s *ReadinessCheckerService) Shutdown() error {
	if s.Checker != nil {
		s.Checker.Stop()
	}
	return nil
}

// NewReadinessChecker creates the health-check poller and starts it
// immediately; Checker.Start is a no-op when health checks are disabled.
func NewReadinessChecker(i do.Injector) (*ReadinessCheckerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	trackerSvc := do.MustInvoke[*ReadinessTrackerService](i)

	checker := readiness.NewChecker(trackerSvc.Tracker, cfgSvc.Config.Readiness.HealthCheck, loggerSvc.Logger)
	checker.Start()

	return &ReadinessCheckerService{Checker: checker}, nil
}

package di

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/orchestrator"
)

// serverOnlyPollInterval and serverOnlyMaxPolls bound how long a
// server-only orchestration run waits for an external test harness to call
// /filibuster/complete-iteration before giving up.
const (
	serverOnlyPollInterval = 1 * time.Second
	serverOnlyMaxPolls     = 100
)

// OrchestratorService wraps the Orchestrator. For local runs, the
// command-line runner (a subprocess) is wired by cmd/filibuster after
// resolving this service. For server-only runs (OrchestratorConfig.ServerOnly),
// the channel-based ServerOnlyRunner is wired here, since
// /filibuster/complete-iteration needs a reference to it before the control
// plane's routes are built.
type OrchestratorService struct {
	Orchestrator *orchestrator.Orchestrator
	ServerOnly   *orchestrator.ServerOnlyRunner
}

// NewOrchestrator builds the Orchestrator from OrchestratorConfig, wired to
// the catalog, metrics, and fault memoization cache already registered in
// the container. It always builds a fresh, non-replaying Orchestrator:
// orchestrator.New's counterexample parameter can only be supplied at
// construction, so replay builds its own Orchestrator directly from the
// container's catalog/metrics/cache services instead of resolving this one.
func NewOrchestrator(i do.Injector) (*OrchestratorService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	catalogSvc := do.MustInvoke[*CatalogService](i)
	metricsSvc := do.MustInvoke[*MetricsService](i)
	memoSvc := do.MustInvoke[*FaultMemoService](i)

	oc := cfgSvc.Config.Orchestrator
	opts := orchestrator.Options{
		DynamicReduction:       oc.DynamicReduction,
		SuppressCombinations:   oc.SuppressCombinations,
		OnlyInitialExecution:   oc.OnlyInitialExecution,
		MaxTests:               oc.GetMaxTests(),
		CounterexamplePath:     oc.CounterexamplePath,
		ForcedFailureIteration: oc.ForcedFailureIteration,
	}

	o := orchestrator.New(opts, catalogSvc.Get(), nil, *loggerSvc.Logger, nil)
	o.SetMetrics(metricsSvc.Metrics)
	o.SetCache(memoSvc.Memo)

	svc := &OrchestratorService{Orchestrator: o}
	if oc.ServerOnly {
		svc.ServerOnly = orchestrator.NewServerOnlyRunner(serverOnlyPollInterval, serverOnlyMaxPolls)
		o.SetRunner(svc.ServerOnly)
	}

	return svc, nil
}

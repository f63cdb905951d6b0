// Package orchestrator implements the test-execution state machine: it
// runs an initial fault-free execution, derives and drains a schedule of
// faulty executions, prunes the ones dynamic reduction can already
// account for, and persists a counterexample when a functional test fails.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/filibuster-io/filibuster-go/internal/cache"
	"github.com/filibuster-io/filibuster-go/internal/catalog"
	"github.com/filibuster-io/filibuster-go/internal/metrics"
	"github.com/filibuster-io/filibuster-go/internal/reduce"
	"github.com/filibuster-io/filibuster-go/internal/schedule"
	"github.com/filibuster-io/filibuster-go/internal/testexecution"
)

// State is the orchestrator's coarse lifecycle stage.
type State int

const (
	Idle State = iota
	InitialRun
	Draining
	Replay
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InitialRun:
		return "initial_run"
	case Draining:
		return "draining"
	case Replay:
		return "replay"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Runner drives one iteration of the functional test command. It is the
// boundary to process-lifecycle concerns (subprocess invocation, loadgen
// runner specifics) that are out of scope for the orchestrator itself.
type Runner interface {
	// RunSetup runs the configured setup script, if any. A non-nil error
	// is fatal to the whole orchestration run.
	RunSetup(ctx context.Context, iteration int) error

	// RunFunctionalTest runs the functional test command for one
	// iteration and returns its exit code.
	RunFunctionalTest(ctx context.Context, iteration int) (exitCode int, err error)

	// RunTeardown runs the configured teardown script, if any. A non-nil
	// error is fatal to the whole orchestration run.
	RunTeardown(ctx context.Context, iteration int) error
}

// Options configures one orchestration run.
type Options struct {
	DynamicReduction       bool
	SuppressCombinations   bool
	OnlyInitialExecution   bool
	MaxTests               int // -1 means unbounded
	CounterexamplePath     string
	ForcedFailureIteration string
}

// Summary reports the outcome of a completed orchestration run.
type Summary struct {
	Ran                int
	Pruned             int
	FailingExecution   *testexecution.TestExecution
	CounterexampleFile string
	Elapsed            time.Duration
}

// Orchestrator coordinates one end-to-end fault-injection run.
type Orchestrator struct {
	opts      Options
	catalog   *catalog.Catalog
	generator *schedule.Generator
	runner    Runner
	logger    zerolog.Logger

	state          State
	stack          *Stack
	serverState    *ServerState
	currentFailures []testexecution.Failure
	current        *testexecution.TestExecution
	ran            []*testexecution.TestExecution
	pendingBatch   []*testexecution.TestExecution
	prunedCount    int

	counterexample         *testexecution.TestExecution
	counterexampleProvided bool

	// metrics records run-level counters, if set via SetMetrics. Left nil
	// in tests and one-off tooling that doesn't run against a Prometheus
	// registry.
	metrics *metrics.Metrics

	// faultMemo memoizes FaultInjectedForService/FaultInjectedForMethod, if
	// set via SetCache. Invalidated whenever a new completed execution is
	// appended, since that can change a previously memoized answer.
	faultMemo *cache.BoolMemo
}

// SetCache attaches the memoization cache backing
// FaultInjectedForService/FaultInjectedForMethod's control-plane handlers.
func (o *Orchestrator) SetCache(m *cache.BoolMemo) { o.faultMemo = m }

// SetMetrics attaches a Metrics bundle the orchestrator and its schedule
// generator record observations to. Separate from New so callers that build
// the Orchestrator before a Prometheus registry exists (tests, dry runs)
// don't have to thread a nil through the constructor.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
	o.generator.Metrics = m
}

// New builds an Orchestrator. If counterexample is non-nil, the run
// replays exactly that schedule instead of exploring from scratch.
func New(opts Options, cat *catalog.Catalog, runner Runner, logger zerolog.Logger, counterexample *testexecution.TestExecution) *Orchestrator {
	return &Orchestrator{
		opts:                   opts,
		catalog:                cat,
		generator:              &schedule.Generator{Catalog: cat, SuppressCombinations: opts.SuppressCombinations},
		runner:                 runner,
		logger:                 logger,
		state:                  Idle,
		stack:                  NewStack(),
		serverState:            NewServerState(),
		counterexample:         counterexample,
		counterexampleProvided: counterexample != nil,
	}
}

// SetRunner replaces the Runner driving functional test iterations. It
// exists so a Runner that itself needs to call back into the orchestrator
// (to read CurrentFailures, append to ServerState, and trigger schedule
// generation) can be constructed after the Orchestrator it will drive.
func (o *Orchestrator) SetRunner(r Runner) { o.runner = r }

// State returns the orchestrator's current lifecycle stage.
func (o *Orchestrator) State() State { return o.state }

// ServerState returns the live per-execution state the control-plane reads
// and mutates for the execution currently in flight.
func (o *Orchestrator) ServerState() *ServerState { return o.serverState }

// CurrentFailures returns the forced-failure directives in effect for the
// execution currently in flight.
func (o *Orchestrator) CurrentFailures() []testexecution.Failure { return o.currentFailures }

// Run drives the full orchestration loop to completion.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if o.counterexampleProvided {
		o.state = Replay
		o.stack.Push(o.counterexample)
	} else {
		if err := o.runInitial(ctx); err != nil {
			return nil, err
		}
		if o.opts.OnlyInitialExecution {
			o.state = Done
			return o.summary(start), nil
		}
	}

	if !o.counterexampleProvided {
		o.state = Draining
	}
	iteration := 1
	for o.stack.Len() > 0 && (o.opts.MaxTests < 0 || iteration <= o.opts.MaxTests) {
		next := o.stack.Pop()
		o.currentFailures = next.Failures
		o.current = next

		if o.metrics != nil {
			o.metrics.ScheduleDepth.Set(float64(o.stack.Len()))
		}

		if !o.counterexampleProvided && o.opts.DynamicReduction {
			pruneStart := time.Now()
			shouldPrune := reduce.ShouldPrune(next, o.ran)
			if o.metrics != nil {
				o.metrics.DynamicPruningSeconds.Observe(time.Since(pruneStart).Seconds())
			}
			if shouldPrune {
				o.prunedCount++
				if o.metrics != nil {
					o.metrics.TestsPruned.Inc()
				}
				iteration++
				continue
			}
		}

		o.serverState = NewServerState()
		if err := o.runner.RunSetup(ctx, iteration); err != nil {
			return nil, fmt.Errorf("orchestrator: setup failed at iteration %d: %w", iteration, err)
		}

		exitCode, err := o.runner.RunFunctionalTest(ctx, iteration)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: functional test failed at iteration %d: %w", iteration, err)
		}

		if err := o.runner.RunTeardown(ctx, iteration); err != nil {
			return nil, fmt.Errorf("orchestrator: teardown failed at iteration %d: %w", iteration, err)
		}

		completed := testexecution.NewCompleted(o.serverState.Log(), next.Failures, o.ran)
		o.ran = append(o.ran, completed)
		if o.metrics != nil {
			o.metrics.TestsRan.Inc()
		}
		if o.faultMemo != nil {
			o.faultMemo.Clear()
		}

		failed := exitCode != 0 || (o.opts.ForcedFailureIteration != "" && o.opts.ForcedFailureIteration == fmt.Sprint(iteration))
		if failed {
			o.state = Done
			return o.fail(completed, start)
		}

		iteration++
	}

	o.state = Done
	return o.summary(start), nil
}

func (o *Orchestrator) runInitial(ctx context.Context) error {
	o.state = InitialRun
	o.serverState = NewServerState()
	o.currentFailures = nil
	o.current = nil

	if err := o.runner.RunSetup(ctx, 0); err != nil {
		return fmt.Errorf("orchestrator: initial setup failed: %w", err)
	}
	exitCode, err := o.runner.RunFunctionalTest(ctx, 0)
	if err != nil {
		return fmt.Errorf("orchestrator: initial functional test failed: %w", err)
	}
	if err := o.runner.RunTeardown(ctx, 0); err != nil {
		return fmt.Errorf("orchestrator: initial teardown failed: %w", err)
	}

	initial := testexecution.NewCompleted(o.serverState.Log(), nil, nil)
	o.ran = append(o.ran, initial)
	if o.metrics != nil {
		o.metrics.TestsRan.Inc()
	}
	if o.faultMemo != nil {
		o.faultMemo.Clear()
	}

	if exitCode != 0 {
		o.logger.Warn().Msg("initial fault-free execution exited non-zero; proceeding with exploration anyway")
	}
	return nil
}

func (o *Orchestrator) fail(completed *testexecution.TestExecution, start time.Time) (*Summary, error) {
	s := o.summary(start)
	s.FailingExecution = completed

	if o.counterexampleProvided {
		o.logger.Error().Msg("counterexample reproduced")
		return s, nil
	}

	if o.opts.CounterexamplePath != "" {
		if err := WriteCounterexample(o.opts.CounterexamplePath, completed); err != nil {
			return nil, fmt.Errorf("orchestrator: writing counterexample: %w", err)
		}
		s.CounterexampleFile = o.opts.CounterexamplePath
	}
	return s, nil
}

func (o *Orchestrator) summary(start time.Time) *Summary {
	return &Summary{
		Ran:     len(o.ran),
		Pruned:  o.prunedCount,
		Elapsed: time.Since(start),
	}
}

// ShouldSchedule reports whether candidate is new relative to the pending
// generation batch, the schedule stack, the execution currently in flight,
// and every execution already run.
func (o *Orchestrator) ShouldSchedule(candidate *testexecution.TestExecution) bool {
	for _, pending := range o.pendingBatch {
		if testexecution.Equal(pending, candidate) {
			return false
		}
	}
	if o.stack.Contains(candidate) {
		return false
	}
	if o.current != nil && testexecution.Equal(o.current, candidate) {
		return false
	}
	for _, ran := range o.ran {
		if testexecution.Equal(ran, candidate) {
			return false
		}
	}
	return true
}

// GenerateAndSchedule runs the schedule generator for one observed call and
// pushes any new candidates onto the stack. It is a no-op in replay mode,
// matching replay's fixed, non-exploratory schedule.
func (o *Orchestrator) GenerateAndSchedule(req testexecution.LogEntry, instrumentationType schedule.InstrumentationType) []*testexecution.TestExecution {
	if o.counterexampleProvided {
		return nil
	}

	deepest, ok := o.serverState.Deepest()
	if !ok || deepest.GeneratedID != req.GeneratedID {
		return nil
	}

	o.pendingBatch = nil
	candidates := o.generator.Generate(req, instrumentationType, o.serverState.Log(), o.currentFailures, o.ShouldSchedule)
	for _, c := range candidates {
		o.pendingBatch = append(o.pendingBatch, c)
		o.stack.Push(c)
	}
	o.pendingBatch = nil
	return candidates
}

// AlreadyInCurrentLog reports whether an entry matching req's call
// identity is already present in the current execution's log, used to
// avoid re-deriving schedule branches already explored on this execution.
func (o *Orchestrator) AlreadyInCurrentLog(req testexecution.LogEntry) bool {
	if o.current == nil {
		return false
	}
	for _, logged := range o.current.Log {
		if testexecution.SameCallAs(logged, req) {
			return true
		}
	}
	return false
}

// FaultInjected reports whether the execution in flight forces any fault.
func (o *Orchestrator) FaultInjected() bool {
	return len(o.currentFailures) > 0
}

// executionsToSearch returns the completed executions fault-injection
// lookups should consider: in replay mode, only the execution in flight;
// otherwise every execution run so far.
func (o *Orchestrator) executionsToSearch() []*testexecution.TestExecution {
	if o.counterexampleProvided && o.current != nil {
		return []*testexecution.TestExecution{o.current}
	}
	return o.ran
}

// FaultInjectedForService reports whether any forced failure of the
// execution in flight sits at an execution index whose response log entry,
// in a completed execution, has the (possibly retconned) target service
// name service. Callers needing this on the hot path should memoize it (see
// internal/cache) since it scans every completed execution's response log.
func (o *Orchestrator) FaultInjectedForService(service string) bool {
	for _, f := range o.currentFailures {
		for _, te := range o.executionsToSearch() {
			for _, rle := range te.ResponseLog {
				if rle.ExecutionIndex == f.ExecutionIndex && rle.TargetServiceName == service {
					return true
				}
			}
		}
	}
	return false
}

// FaultInjectedForMethod reports whether any forced failure of the
// execution in flight sits at an execution index whose response log entry,
// in a completed execution, has the method method.
func (o *Orchestrator) FaultInjectedForMethod(method string) bool {
	for _, f := range o.currentFailures {
		for _, te := range o.executionsToSearch() {
			for _, rle := range te.ResponseLog {
				if rle.ExecutionIndex == f.ExecutionIndex && rle.Method == method {
					return true
				}
			}
		}
	}
	return false
}

// FaultInjectedForServiceMemoized is FaultInjectedForService, consulting
// and populating faultMemo when set. The memoized value is safe to reuse
// until the next completed execution is appended (see SetCache).
func (o *Orchestrator) FaultInjectedForServiceMemoized(service string) bool {
	if o.faultMemo == nil {
		return o.FaultInjectedForService(service)
	}
	key := "service:" + service
	if v, ok := o.faultMemo.Lookup(key); ok {
		return v
	}
	v := o.FaultInjectedForService(service)
	o.faultMemo.Store(key, v)
	return v
}

// FaultInjectedForMethodMemoized is FaultInjectedForMethod, consulting and
// populating faultMemo when set.
func (o *Orchestrator) FaultInjectedForMethodMemoized(method string) bool {
	if o.faultMemo == nil {
		return o.FaultInjectedForMethod(method)
	}
	key := "method:" + method
	if v, ok := o.faultMemo.Lookup(key); ok {
		return v
	}
	v := o.FaultInjectedForMethod(method)
	o.faultMemo.Store(key, v)
	return v
}

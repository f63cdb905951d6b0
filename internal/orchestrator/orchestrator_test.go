package orchestrator_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/filibuster-io/filibuster-go/internal/cache"
	"github.com/filibuster-io/filibuster-go/internal/catalog"
	"github.com/filibuster-io/filibuster-go/internal/metrics"
	"github.com/filibuster-io/filibuster-go/internal/orchestrator"
	"github.com/filibuster-io/filibuster-go/internal/schedule"
	"github.com/filibuster-io/filibuster-go/internal/testexecution"
)

const oneExceptionCatalog = `{
  "requests": {
    "pattern": "requests\\.get",
    "exceptions": [{"name": "ConnectionError"}]
  }
}`

// fakeRunner simulates a functional test that, on the initial run, logs a
// single outbound call, and on any execution where that call is forced to
// fail, reports a failing exit code.
type fakeRunner struct {
	o *orchestrator.Orchestrator
}

func (f *fakeRunner) RunSetup(ctx context.Context, iteration int) error    { return nil }
func (f *fakeRunner) RunTeardown(ctx context.Context, iteration int) error { return nil }

func (f *fakeRunner) RunFunctionalTest(ctx context.Context, iteration int) (int, error) {
	entry := testexecution.LogEntry{
		SourceServiceName: "a", TargetServiceName: "b",
		Module: "requests", Method: "get", ExecutionIndex: "ei-0",
	}
	id := f.o.ServerState().AppendLogEntry(entry)
	entry.GeneratedID = id

	f.o.GenerateAndSchedule(entry, schedule.Invocation)

	for _, failure := range f.o.CurrentFailures() {
		if failure.ExecutionIndex == "ei-0" {
			return 1, nil
		}
	}
	return 0, nil
}

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(oneExceptionCatalog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestRunExploresInitialAndOneFault(t *testing.T) {
	cat := mustCatalog(t)
	opts := orchestrator.Options{DynamicReduction: false, MaxTests: -1}
	o := orchestrator.New(opts, cat, nil, zerolog.Nop(), nil)
	runner := &fakeRunner{o: o}
	o.SetRunner(runner)

	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Ran != 2 {
		t.Fatalf("expected initial run + 1 fault run, got %d", summary.Ran)
	}
	if summary.FailingExecution == nil {
		t.Fatalf("expected the forced-exception execution to be recorded as failing")
	}
}

func TestRunOnlyInitialExecutionSkipsExploration(t *testing.T) {
	cat := mustCatalog(t)
	opts := orchestrator.Options{OnlyInitialExecution: true}
	o := orchestrator.New(opts, cat, nil, zerolog.Nop(), nil)
	runner := &fakeRunner{o: o}
	o.SetRunner(runner)

	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Ran != 1 {
		t.Fatalf("expected only the initial run, got %d", summary.Ran)
	}
}

func TestRunReplayUsesExactCounterexample(t *testing.T) {
	cat := mustCatalog(t)
	counterexample := testexecution.New(
		[]testexecution.LogEntry{{Module: "requests", Method: "get", ExecutionIndex: "ei-0"}},
		[]testexecution.Failure{{ExecutionIndex: "ei-0", ForcedException: map[string]interface{}{"name": "ConnectionError"}}},
	)

	opts := orchestrator.Options{}
	o := orchestrator.New(opts, cat, nil, zerolog.Nop(), counterexample)
	runner := &fakeRunner{o: o}
	o.SetRunner(runner)

	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Ran != 1 {
		t.Fatalf("expected exactly one replayed execution, got %d", summary.Ran)
	}
	if summary.FailingExecution == nil {
		t.Fatalf("expected the replayed execution to reproduce the failure")
	}
}

func TestShouldScheduleRejectsDuplicatesAgainstRanExecutions(t *testing.T) {
	cat := mustCatalog(t)
	opts := orchestrator.Options{MaxTests: -1}
	o := orchestrator.New(opts, cat, nil, zerolog.Nop(), nil)
	runner := &fakeRunner{o: o}
	o.SetRunner(runner)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dup := testexecution.New(
		[]testexecution.LogEntry{{
			SourceServiceName: "a", TargetServiceName: "b",
			Module: "requests", Method: "get", ExecutionIndex: "ei-0",
		}},
		[]testexecution.Failure{{ExecutionIndex: "ei-0", ForcedException: map[string]interface{}{"name": "ConnectionError"}}},
	)
	if o.ShouldSchedule(dup) {
		t.Fatalf("expected duplicate of an already-run execution to be rejected")
	}
}

func TestRunRecordsMetricsAndInvalidatesFaultMemo(t *testing.T) {
	cat := mustCatalog(t)
	opts := orchestrator.Options{MaxTests: -1}
	o := orchestrator.New(opts, cat, nil, zerolog.Nop(), nil)
	runner := &fakeRunner{o: o}
	o.SetRunner(runner)

	m := metrics.New(prometheus.NewRegistry())
	o.SetMetrics(m)

	memo, err := cache.NewBoolMemo()
	if err != nil {
		t.Fatalf("NewBoolMemo: %v", err)
	}
	defer func() { _ = memo.Close() }()
	o.SetCache(memo)

	// Prime a stale memoized answer; Run must invalidate it once it
	// appends a newly completed execution.
	memo.Store("service:b", false)
	memo.Wait()

	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Ran != 2 {
		t.Fatalf("expected 2 runs, got %d", summary.Ran)
	}

	if got := o.FaultInjectedForServiceMemoized("b"); !got {
		t.Fatalf("expected fault-injected for service b after a fresh lookup, got %v", got)
	}
}

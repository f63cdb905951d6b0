package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// ServerOnlyRunner implements Runner for server-only mode, where an
// external harness (not a subprocess this orchestrator owns) drives each
// iteration and reports completion via /filibuster/complete-iteration.
// There is no setup/teardown script in this mode: the harness owns its own
// lifecycle around the control-plane.
type ServerOnlyRunner struct {
	// PollInterval and MaxPolls bound how long RunFunctionalTest waits for
	// CompleteIteration before giving up, mirroring the fixed
	// 100-iterations-at-1s lifecycle barrier used elsewhere.
	PollInterval time.Duration
	MaxPolls     int

	results chan iterationResult
}

type iterationResult struct {
	iteration     int
	exceptionSeen bool
}

// NewServerOnlyRunner returns a ServerOnlyRunner ready to receive
// completions via CompleteIteration.
func NewServerOnlyRunner(pollInterval time.Duration, maxPolls int) *ServerOnlyRunner {
	return &ServerOnlyRunner{
		PollInterval: pollInterval,
		MaxPolls:     maxPolls,
		results:      make(chan iterationResult, 1),
	}
}

func (r *ServerOnlyRunner) RunSetup(ctx context.Context, iteration int) error    { return nil }
func (r *ServerOnlyRunner) RunTeardown(ctx context.Context, iteration int) error { return nil }

// CompleteIteration is called by the control-plane's
// /filibuster/complete-iteration handler to unblock RunFunctionalTest.
func (r *ServerOnlyRunner) CompleteIteration(iteration int, exceptionSeen bool) {
	select {
	case r.results <- iterationResult{iteration: iteration, exceptionSeen: exceptionSeen}:
	default:
	}
}

func (r *ServerOnlyRunner) RunFunctionalTest(ctx context.Context, iteration int) (int, error) {
	timeout := r.PollInterval * time.Duration(r.MaxPolls)
	select {
	case res := <-r.results:
		if res.exceptionSeen {
			return 1, nil
		}
		return 0, nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("orchestrator: timed out waiting for iteration %d to complete", iteration)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Package schedule derives new candidate test executions from a single
// observed call, consulting the fault catalog for faults injectable at
// that call site.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/filibuster-io/filibuster-go/internal/catalog"
	"github.com/filibuster-io/filibuster-go/internal/metrics"
	"github.com/filibuster-io/filibuster-go/internal/testexecution"
)

// InstrumentationType distinguishes where in a call's lifecycle a
// generation request originated.
type InstrumentationType string

const (
	// Invocation means the call is about to be made (the caller's side).
	Invocation InstrumentationType = "invocation"
	// RequestReceived means the call has arrived at its target.
	RequestReceived InstrumentationType = "request_received"
)

// Generator derives additional test executions from one observed call.
type Generator struct {
	Catalog *catalog.Catalog

	// SuppressCombinations, when true, drops any candidate scheduling more
	// than one forced failure, restricting exploration to single faults.
	SuppressCombinations bool

	// Metrics records generation latency, if set. Left nil in tests and
	// one-off tooling that doesn't run against a Prometheus registry.
	Metrics *metrics.Metrics
}

// ShouldSchedule reports whether candidate is new: not already pending in
// this generation batch, not already queued, and not equal to any
// execution already run. Callers supply this because the relevant sets
// (schedule stack, current batch, run history) are orchestrator state.
type ShouldSchedule func(candidate *testexecution.TestExecution) bool

// Generate produces the new test executions reachable from req, given the
// request log and forced failures of the execution req was observed in.
//
// req must be the deepest (most recently logged) entry of currentLog; the
// caller is expected to have already checked this, since it is cheaper to
// verify once at the call site than to thread the whole log through
// Generate defensively. Generate still takes currentLog because dynamic
// reduction and branching both need the log as of req, not as of now.
func (g *Generator) Generate(
	req testexecution.LogEntry,
	instrumentationType InstrumentationType,
	currentLog []testexecution.LogEntry,
	currentFailures []testexecution.Failure,
	shouldSchedule ShouldSchedule,
) []*testexecution.TestExecution {
	if g.Metrics != nil {
		start := time.Now()
		defer func() { g.Metrics.TestGenerationSeconds.Observe(time.Since(start).Seconds()) }()
	}

	if alreadyFailedAt(currentFailures, req.ExecutionIndex) {
		return nil
	}

	var candidates []*testexecution.TestExecution

	switch instrumentationType {
	case Invocation:
		for _, mod := range g.Catalog.MatchingModules(req.Module, req.Method) {
			for _, exc := range mod.Exceptions {
				if !restrictionSatisfied(exc.Restrictions, req.Metadata) {
					continue
				}
				failure := testexecution.Failure{
					ExecutionIndex: req.ExecutionIndex,
					ForcedException: map[string]interface{}{
						"name":     exc.Name,
						"metadata": expandMetadata(exc.Metadata, req.Metadata),
					},
				}
				candidates = append(candidates, buildCandidate(currentLog, currentFailures, failure))
			}
		}

	case RequestReceived:
		if req.TargetServiceName == "" {
			// A request made outside the system under test has no service
			// to target a fault at on receipt.
			return nil
		}
		for _, errType := range g.Catalog.MatchingReceiveErrors(req.Module, req.Method, req.TargetServiceName) {
			for _, t := range errType.Types {
				meta := map[string]interface{}{}
				if t.ReturnValue != nil {
					meta["return_value"] = expandMetadata(t.ReturnValue, req.Metadata)
				}
				if t.Exception != nil {
					meta["exception"] = expandMetadata(t.Exception, req.Metadata)
				}
				failure := testexecution.Failure{
					ExecutionIndex:  req.ExecutionIndex,
					FailureMetadata: meta,
				}
				candidates = append(candidates, buildCandidate(currentLog, currentFailures, failure))
			}
		}
	}

	return lo.Filter(candidates, func(c *testexecution.TestExecution, _ int) bool {
		if g.SuppressCombinations && len(c.Failures) != 1 {
			return false
		}
		if shouldSchedule != nil && !shouldSchedule(c) {
			return false
		}
		return true
	})
}

func alreadyFailedAt(failures []testexecution.Failure, executionIndex string) bool {
	for _, f := range failures {
		if f.ExecutionIndex == executionIndex {
			return true
		}
	}
	return false
}

func restrictionSatisfied(restriction string, metadata map[string]interface{}) bool {
	if restriction == "" {
		return true
	}
	v, ok := metadata[restriction]
	return ok && v != nil
}

func buildCandidate(currentLog []testexecution.LogEntry, currentFailures []testexecution.Failure, newFailure testexecution.Failure) *testexecution.TestExecution {
	logCopy := make([]testexecution.LogEntry, len(currentLog))
	copy(logCopy, currentLog)

	failuresCopy := make([]testexecution.Failure, len(currentFailures), len(currentFailures)+1)
	copy(failuresCopy, currentFailures)
	failuresCopy = append(failuresCopy, newFailure)
	testexecution.SortFailuresByExecutionIndex(failuresCopy)

	return testexecution.New(logCopy, failuresCopy)
}

// expandMetadata copies src, expanding any "@expr(metadata['k']±n)" string
// value against the request's own metadata. Only the three literal forms
// below are recognized, matching the originating catalog format; this is
// not a general expression evaluator.
func expandMetadata(src map[string]interface{}, requestMetadata map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = expandExprValue(v, requestMetadata)
	}
	return out
}

func expandExprValue(v interface{}, requestMetadata map[string]interface{}) interface{} {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "@expr(") || !strings.HasSuffix(s, ")") {
		return v
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "@expr("), ")")

	for _, key := range []string{"timeout"} {
		base := fmt.Sprintf("metadata['%s']", key)
		timeout, ok := numericMetadata(requestMetadata, key)
		if !ok {
			continue
		}
		switch inner {
		case base:
			return timeout
		case base + "-1":
			return timeout - 1
		case base + "+1":
			return timeout + 1
		}
	}
	return v
}

func numericMetadata(metadata map[string]interface{}, key string) (float64, bool) {
	v, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

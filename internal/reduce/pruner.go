// Package reduce implements dynamic reduction: deciding whether a
// scheduled test execution's outcome is already implied by executions
// that have already run, so it can be skipped.
package reduce

import (
	"encoding/json"

	"github.com/filibuster-io/filibuster-go/internal/executionindex"
	"github.com/filibuster-io/filibuster-go/internal/testexecution"
	"github.com/filibuster-io/filibuster-go/internal/vclock"
)

// rootKey identifies the synthetic root of the causal-descendant tree: the
// test's entry point, which has no originating request.
var rootKey = mustRootKey()

func mustRootKey() string {
	s, err := executionindex.ToString(executionindex.New())
	if err != nil {
		panic(err)
	}
	return s
}

// DeriveCausalDescendants maps each execution index in te (plus the
// synthetic root) to the execution indexes of requests directly caused by
// it, determined by matching a request's origin vector clock against its
// parent's vector clock.
func DeriveCausalDescendants(te *testexecution.TestExecution) map[string][]string {
	vclockToIndex := make(map[string]string, len(te.Log))
	for _, entry := range te.Log {
		vclockToIndex[clockKey(entry.VClock)] = entry.ExecutionIndex
	}

	descendants := map[string][]string{}
	for _, entry := range te.Log {
		if len(entry.OriginVClock) == 0 {
			descendants[rootKey] = append(descendants[rootKey], entry.ExecutionIndex)
			continue
		}
		if parentEI, ok := vclockToIndex[clockKey(entry.OriginVClock)]; ok {
			descendants[parentEI] = append(descendants[parentEI], entry.ExecutionIndex)
		}
	}
	return descendants
}

func clockKey(c vclock.Clock) string {
	s, _ := vclock.ToString(c)
	return s
}

// OutcomesMatch reports whether, at one execution index, te's scheduled
// treatment (forcing a fault, or letting the call proceed) is consistent
// with what previouslyRan actually observed there.
//
// failure is te's forced-failure directive at this execution index, or nil
// if te does not force anything there. scheduled is te's own log entry at
// this execution index (used only in the no-fault branch, to compare the
// call shape actually being scheduled). observed is the response log entry
// previouslyRan produced at this execution index.
func OutcomesMatch(failure *testexecution.Failure, scheduled *testexecution.LogEntry, observed testexecution.ResponseLogEntry) bool {
	switch {
	case failure != nil && failure.ForcedException != nil:
		if mapsEqual(observed.ForcedException, failure.ForcedException) {
			return true
		}
		if observed.Exception != nil && isSubsetMatch(observed.Exception, failure.ForcedException) {
			return true
		}
		return false

	case failure != nil && failure.FailureMetadata != nil:
		if rv, ok := asMap(failure.FailureMetadata["return_value"]); ok {
			return isSubsetMatch(observed.ReturnValue, rv)
		}
		if exc, ok := asMap(failure.FailureMetadata["exception"]); ok {
			return isSubsetMatch(observed.Exception, exc)
		}
		return false

	default:
		if observed.FaultInjection {
			return false
		}
		if scheduled == nil {
			return false
		}
		return isSubsetMatch(callIdentity(observed.Module, observed.Method, observed.TargetServiceName, observed.ExecutionIndex),
			callIdentity(scheduled.Module, scheduled.Method, scheduled.TargetServiceName, scheduled.ExecutionIndex))
	}
}

// callIdentity projects a log entry (scheduled or observed) down to the
// fields that identify which call it is, independent of which concrete
// struct (LogEntry or ResponseLogEntry) it came from. OutcomesMatch's
// no-fault branch compares a scheduled LogEntry against an observed
// ResponseLogEntry; the observed entry carries extra outcome fields and a
// possibly retconned target_service_name, so the comparison is limited to
// this shared identity.
func callIdentity(module, method, targetServiceName, executionIndex string) map[string]interface{} {
	return map[string]interface{}{
		"module":              module,
		"method":              method,
		"target_service_name": targetServiceName,
		"execution_index":     executionIndex,
	}
}

// isSubsetMatch reports whether every key of b is present in a with an
// equal value: b is a subset of a.
func isSubsetMatch(a, b map[string]interface{}) bool {
	if b == nil {
		return true
	}
	if a == nil {
		return false
	}
	for k, v := range b {
		av, ok := a[k]
		if !ok || !equalJSON(av, v) {
			return false
		}
	}
	return true
}

func mapsEqual(a, b map[string]interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return equalJSON(a, b)
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func equalJSON(a, b interface{}) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return aerr == berr
	}
	return string(ab) == string(bb)
}

// ShouldPrune reports whether te's outcome is fully subsumed by executions
// already in ran: for every key of te's causal-descendant tree (including
// the synthetic root), some single prior execution must account for every
// direct descendant of that key. Different keys may be satisfied by
// different prior executions.
func ShouldPrune(te *testexecution.TestExecution, ran []*testexecution.TestExecution) bool {
	descendants := DeriveCausalDescendants(te)
	if len(descendants) == 0 {
		// No causal structure to subsume against; nothing observed yet
		// that could stand in for this execution.
		return false
	}

	failureByIndex := make(map[string]*testexecution.Failure, len(te.Failures))
	for i := range te.Failures {
		failureByIndex[te.Failures[i].ExecutionIndex] = &te.Failures[i]
	}
	logByIndex := make(map[string]*testexecution.LogEntry, len(te.Log))
	for i := range te.Log {
		logByIndex[te.Log[i].ExecutionIndex] = &te.Log[i]
	}

	for _, keyDescendants := range descendants {
		if !anyPriorAccountsFor(keyDescendants, ran, failureByIndex, logByIndex) {
			return false
		}
	}
	return true
}

func anyPriorAccountsFor(
	descendantIndexes []string,
	ran []*testexecution.TestExecution,
	failureByIndex map[string]*testexecution.Failure,
	logByIndex map[string]*testexecution.LogEntry,
) bool {
	for _, prior := range ran {
		if prior == nil || !prior.Completed {
			continue
		}
		observedByIndex := make(map[string]testexecution.ResponseLogEntry, len(prior.ResponseLog))
		for _, rle := range prior.ResponseLog {
			observedByIndex[rle.ExecutionIndex] = rle
		}

		allMatch := true
		for _, d := range descendantIndexes {
			observed, ok := observedByIndex[d]
			if !ok {
				allMatch = false
				break
			}
			if !OutcomesMatch(failureByIndex[d], logByIndex[d], observed) {
				allMatch = false
				break
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}

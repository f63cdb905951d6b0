// Package testexecution models a single scheduled run: the faults it
// forces, the request log it produces, and (once run) the resolved
// response log used by the dynamic-reduction pruner.
package testexecution

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/filibuster-io/filibuster-go/internal/vclock"
)

// LogEntry is a call observed during an execution, as recorded at
// /filibuster/create and enriched by /filibuster/update.
type LogEntry struct {
	GeneratedID       int                    `json:"generated_id"`
	SourceServiceName string                 `json:"source_service_name"`
	TargetServiceName string                 `json:"target_service_name,omitempty"`
	Module            string                 `json:"module"`
	Method            string                 `json:"method"`
	Args              interface{}            `json:"args,omitempty"`
	Kwargs            interface{}            `json:"kwargs,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CallsiteFile      string                 `json:"callsite_file,omitempty"`
	CallsiteLine      int                    `json:"callsite_line,omitempty"`
	FullTraceback     string                 `json:"full_traceback,omitempty"`
	VClock            vclock.Clock           `json:"vclock"`
	OriginVClock      vclock.Clock           `json:"origin_vclock"`
	ExecutionIndex    string                 `json:"execution_index"`

	// Populated by /filibuster/update once the call completes.
	ReturnValue map[string]interface{} `json:"return_value,omitempty"`
	Exception   map[string]interface{} `json:"exception,omitempty"`
}

// Failure is a forced-fault directive, keyed to the execution index at
// which it should be applied.
type Failure struct {
	ExecutionIndex  string                 `json:"execution_index"`
	ForcedException map[string]interface{} `json:"forced_exception,omitempty"`
	FailureMetadata map[string]interface{} `json:"failure_metadata,omitempty"`
	Args            interface{}            `json:"args,omitempty"`
}

// ResponseLogEntry is the resolved outcome of one log entry, built once an
// execution completes, with target_service_name retconned in where it was
// unknown at the time of the call. It carries every field the request log
// entry it was built from carried, plus the outcome fields resolved at
// completion, so it can be compared against a scheduled LogEntry without an
// asymmetric field set on either side.
type ResponseLogEntry struct {
	CallsiteLine      int                    `json:"callsite_line,omitempty"`
	CallsiteFile      string                 `json:"callsite_file,omitempty"`
	ExecutionIndex    string                 `json:"execution_index"`
	FullTraceback     string                 `json:"full_traceback,omitempty"`
	Module            string                 `json:"module"`
	Method            string                 `json:"method"`
	Args              interface{}            `json:"args,omitempty"`
	Kwargs            interface{}            `json:"kwargs,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	VClock            vclock.Clock           `json:"vclock"`
	OriginVClock      vclock.Clock           `json:"origin_vclock"`
	SourceServiceName string                 `json:"source_service_name"`
	TargetServiceName string                 `json:"target_service_name"`
	GeneratedID       int                    `json:"generated_id"`
	ReturnValue       map[string]interface{} `json:"return_value,omitempty"`
	Exception         map[string]interface{} `json:"exception,omitempty"`
	FaultInjection    bool                   `json:"fault_injection"`
	FailureMetadata   map[string]interface{} `json:"failure_metadata,omitempty"`
	ForcedException   map[string]interface{} `json:"forced_exception,omitempty"`
}

// projectedLog is the subset of LogEntry fields that participate in
// equality/hashing: the call's identity, not its timing or raw metadata.
type projectedLog struct {
	GeneratedID       int                    `json:"generated_id"`
	Module            string                 `json:"module"`
	Method            string                 `json:"method"`
	Args              interface{}            `json:"args,omitempty"`
	Kwargs            interface{}            `json:"kwargs,omitempty"`
	CallsiteLine      int                    `json:"callsite_line,omitempty"`
	CallsiteFile      string                 `json:"callsite_file,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	SourceServiceName string                 `json:"source_service_name"`
	FullTraceback     string                 `json:"full_traceback,omitempty"`
	VClock            vclock.Clock           `json:"vclock"`
	OriginVClock      vclock.Clock           `json:"origin_vclock"`
	ExecutionIndex    string                 `json:"execution_index"`
}

func projectLog(e LogEntry) projectedLog {
	return projectedLog{
		GeneratedID:       e.GeneratedID,
		Module:            e.Module,
		Method:            e.Method,
		Args:              e.Args,
		Kwargs:            e.Kwargs,
		CallsiteLine:      e.CallsiteLine,
		CallsiteFile:      e.CallsiteFile,
		Metadata:          e.Metadata,
		SourceServiceName: e.SourceServiceName,
		FullTraceback:     e.FullTraceback,
		VClock:            e.VClock,
		OriginVClock:      e.OriginVClock,
		ExecutionIndex:    e.ExecutionIndex,
	}
}

type projectedFailure struct {
	ExecutionIndex  string                 `json:"execution_index"`
	ForcedException map[string]interface{} `json:"forced_exception,omitempty"`
	FailureMetadata map[string]interface{} `json:"failure_metadata,omitempty"`
	Args            interface{}            `json:"args,omitempty"`
}

func projectFailure(f Failure) projectedFailure {
	return projectedFailure{
		ExecutionIndex:  f.ExecutionIndex,
		ForcedException: f.ForcedException,
		FailureMetadata: f.FailureMetadata,
		Args:            f.Args,
	}
}

// TestExecution is an equatable, hashable schedule plus (once run) its
// resolved outcomes.
type TestExecution struct {
	Log         []LogEntry
	Failures    []Failure
	Completed   bool
	ResponseLog []ResponseLogEntry

	projLog      []projectedLog
	projFailures []projectedFailure
}

// New builds a not-yet-run test execution from a request log and the
// forced failures scheduled against it.
func New(log []LogEntry, failures []Failure) *TestExecution {
	te := &TestExecution{Log: log, Failures: failures}
	te.project()
	return te
}

// NewCompleted builds a completed test execution, resolving each log
// entry's fault-injection outcome and retconning unknown
// target_service_names by searching retcon (prior completed executions, in
// the order given; the first matching call wins) for a matching call.
func NewCompleted(log []LogEntry, failures []Failure, retcon []*TestExecution) *TestExecution {
	te := &TestExecution{Log: log, Failures: failures, Completed: true}
	te.project()
	te.ResponseLog = buildResponseLog(log, failures, retcon)
	return te
}

func (te *TestExecution) project() {
	te.projLog = make([]projectedLog, len(te.Log))
	for i, e := range te.Log {
		te.projLog[i] = projectLog(e)
	}
	te.projFailures = make([]projectedFailure, len(te.Failures))
	for i, f := range te.Failures {
		te.projFailures[i] = projectFailure(f)
	}
}

// SameCallAs reports whether entry describes the same call as a request
// log entry previously recorded for a test execution: same module, method,
// args, full_traceback and execution index.
func SameCallAs(a, b LogEntry) bool {
	return a.Module == b.Module &&
		a.Method == b.Method &&
		a.FullTraceback == b.FullTraceback &&
		a.ExecutionIndex == b.ExecutionIndex &&
		equalJSON(a.Args, b.Args) &&
		equalJSON(a.Kwargs, b.Kwargs)
}

func buildResponseLog(log []LogEntry, failures []Failure, retcon []*TestExecution) []ResponseLogEntry {
	failureByIndex := make(map[string]Failure, len(failures))
	for _, f := range failures {
		failureByIndex[f.ExecutionIndex] = f
	}

	out := make([]ResponseLogEntry, 0, len(log))
	for _, entry := range log {
		target := entry.TargetServiceName
		if target == "" {
			target = resolveTargetFromRetcon(entry, retcon)
		}

		rle := ResponseLogEntry{
			CallsiteLine:      entry.CallsiteLine,
			CallsiteFile:      entry.CallsiteFile,
			ExecutionIndex:    entry.ExecutionIndex,
			FullTraceback:     entry.FullTraceback,
			Module:            entry.Module,
			Method:            entry.Method,
			Args:              entry.Args,
			Kwargs:            entry.Kwargs,
			Metadata:          entry.Metadata,
			VClock:            entry.VClock,
			OriginVClock:      entry.OriginVClock,
			SourceServiceName: entry.SourceServiceName,
			TargetServiceName: target,
			GeneratedID:       entry.GeneratedID,
			ReturnValue:       entry.ReturnValue,
			Exception:         entry.Exception,
		}

		if f, ok := failureByIndex[entry.ExecutionIndex]; ok {
			rle.FaultInjection = true
			rle.FailureMetadata = f.FailureMetadata
			rle.ForcedException = f.ForcedException
		}

		out = append(out, rle)
	}
	return out
}

func resolveTargetFromRetcon(entry LogEntry, retcon []*TestExecution) string {
	for _, prior := range retcon {
		if prior == nil {
			continue
		}
		for _, priorEntry := range prior.Log {
			if priorEntry.TargetServiceName == "" {
				continue
			}
			if SameCallAs(entry, priorEntry) {
				return priorEntry.TargetServiceName
			}
		}
	}
	return "external"
}

// Equal compares two test executions by their projected log and failures,
// matching the upstream value semantics (response log is derived, not
// part of identity).
func Equal(a, b *TestExecution) bool {
	if a == nil || b == nil {
		return a == b
	}
	return equalJSON(a.projLog, b.projLog) && equalJSON(a.projFailures, b.projFailures)
}

// Hash returns a stable content hash over the projected log and failures,
// suitable for deduplication in a set or map.
func Hash(te *TestExecution) string {
	b, _ := json.Marshal(struct {
		Log      []projectedLog     `json:"log"`
		Failures []projectedFailure `json:"failures"`
	}{te.projLog, te.projFailures})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Clone returns a copy of te with its own Log and Failures slices; maps and
// other values inside the entries are shared with te. This is the same
// copy the schedule generator makes when branching a new candidate off an
// existing execution.
func Clone(te *TestExecution) *TestExecution {
	logCopy := make([]LogEntry, len(te.Log))
	copy(logCopy, te.Log)
	failuresCopy := make([]Failure, len(te.Failures))
	copy(failuresCopy, te.Failures)

	out := New(logCopy, failuresCopy)
	return out
}

// ToJSON serializes te with sorted, indented output, mirroring the
// upstream counterexample format.
func ToJSON(te *TestExecution) ([]byte, error) {
	return json.MarshalIndent(struct {
		Log         []LogEntry         `json:"log"`
		Failures    []Failure          `json:"failures"`
		Completed   bool               `json:"completed"`
		ResponseLog []ResponseLogEntry `json:"response_log,omitempty"`
	}{te.Log, te.Failures, te.Completed, te.ResponseLog}, "", "  ")
}

// FromJSON parses a test execution serialized by ToJSON.
func FromJSON(data []byte) (*TestExecution, error) {
	var wire struct {
		Log         []LogEntry         `json:"log"`
		Failures    []Failure          `json:"failures"`
		Completed   bool               `json:"completed"`
		ResponseLog []ResponseLogEntry `json:"response_log,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	te := New(wire.Log, wire.Failures)
	te.Completed = wire.Completed
	te.ResponseLog = wire.ResponseLog
	return te, nil
}

// SortFailuresByExecutionIndex sorts failures in place by execution index,
// matching the deterministic ordering the generator relies on when
// deduplicating candidate schedules.
func SortFailuresByExecutionIndex(failures []Failure) {
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ExecutionIndex < failures[j].ExecutionIndex
	})
}

func equalJSON(a, b interface{}) bool {
	ab, aerr := json.Marshal(a)
	bb, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return aerr == berr
	}
	return string(ab) == string(bb)
}

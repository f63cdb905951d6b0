package controlplane

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/filibuster-io/filibuster-go/internal/orchestrator"
	"github.com/filibuster-io/filibuster-go/internal/readiness"
	"github.com/filibuster-io/filibuster-go/internal/schedule"
	"github.com/filibuster-io/filibuster-go/internal/testexecution"
)

// Handlers bundles the orchestrator and readiness dependencies the
// control-plane's HTTP handlers close over.
type Handlers struct {
	Orchestrator *orchestrator.Orchestrator
	Tracker      *readiness.Tracker
	Logger       zerolog.Logger

	// ServerOnly, when non-nil, receives /filibuster/complete-iteration
	// posts. Left nil when the orchestrator drives its own subprocess.
	ServerOnly *orchestrator.ServerOnlyRunner
}

// createRequest is the wire shape of PUT /filibuster/create: a request log
// entry the caller has not yet been assigned a generated_id for.
type createRequest struct {
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
	VClock            map[string]int         `json:"vclock"`
	OriginVClock      map[string]int         `json:"origin_vclock"`
	ExecutionIndex    string                 `json:"execution_index"`
}

type createResponse struct {
	GeneratedID     int                    `json:"generated_id"`
	ExecutionIndex  string                 `json:"execution_index"`
	ForcedException map[string]interface{} `json:"forced_exception,omitempty"`
	FailureMetadata map[string]interface{} `json:"failure_metadata,omitempty"`
}

// Create handles PUT /filibuster/create.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	if req.ExecutionIndex == "" {
		WriteError(w, http.StatusBadRequest, "execution_index is required")
		return
	}

	entry := testexecution.LogEntry{
		SourceServiceName: req.SourceServiceName,
		TargetServiceName: req.TargetServiceName,
		Module:            req.Module,
		Method:            req.Method,
		Args:              req.Args,
		Kwargs:            req.Kwargs,
		Metadata:          req.Metadata,
		CallsiteFile:      req.CallsiteFile,
		CallsiteLine:      req.CallsiteLine,
		FullTraceback:     req.FullTraceback,
		VClock:            req.VClock,
		OriginVClock:      req.OriginVClock,
		ExecutionIndex:    req.ExecutionIndex,
	}

	generatedID := h.Orchestrator.ServerState().AppendLogEntry(entry)
	entry.GeneratedID = generatedID

	resp := createResponse{GeneratedID: generatedID, ExecutionIndex: entry.ExecutionIndex}
	for _, f := range h.Orchestrator.CurrentFailures() {
		if f.ExecutionIndex != entry.ExecutionIndex {
			continue
		}
		resp.ForcedException = f.ForcedException
		resp.FailureMetadata = f.FailureMetadata
		break
	}

	h.Orchestrator.GenerateAndSchedule(entry, schedule.Invocation)

	writeJSON(w, http.StatusOK, resp)
}

// updateRequest is the wire shape of POST /filibuster/update.
type updateRequest struct {
	GeneratedID         int                    `json:"generated_id"`
	ReturnValue         map[string]interface{} `json:"return_value,omitempty"`
	Exception           map[string]interface{} `json:"exception,omitempty"`
	InstrumentationType string                 `json:"instrumentation_type,omitempty"`
}

// Update handles POST /filibuster/update.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "malformed json body")
		return
	}

	var patched testexecution.LogEntry
	err := h.Orchestrator.ServerState().UpdateLogEntry(req.GeneratedID, func(e *testexecution.LogEntry) {
		if req.ReturnValue != nil {
			e.ReturnValue = req.ReturnValue
		}
		if req.Exception != nil {
			e.Exception = req.Exception
		}
		patched = *e
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, "unknown generated_id")
		return
	}

	if req.InstrumentationType == string(schedule.RequestReceived) && !h.Orchestrator.AlreadyInCurrentLog(patched) {
		h.Orchestrator.GenerateAndSchedule(patched, schedule.RequestReceived)
	}

	writeJSON(w, http.StatusOK, map[string]any{})
}

// NewTestExecution handles GET /filibuster/new-test-execution/{service}.
func (h *Handlers) NewTestExecution(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	isNew := h.Orchestrator.ServerState().MarkSeenFirstRequestFrom(service)
	writeJSON(w, http.StatusOK, map[string]bool{"new-test-execution": isNew})
}

// FaultInjected handles GET /filibuster/fault-injected.
func (h *Handlers) FaultInjected(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"fault-injected": h.Orchestrator.FaultInjected()})
}

// FaultInjectedForService handles GET /filibuster/fault-injected/service/{name}.
func (h *Handlers) FaultInjectedForService(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	writeJSON(w, http.StatusOK, map[string]bool{"fault-injected": h.Orchestrator.FaultInjectedForServiceMemoized(name)})
}

// FaultInjectedForMethod handles GET /filibuster/fault-injected/method/{method}.
func (h *Handlers) FaultInjectedForMethod(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	writeJSON(w, http.StatusOK, map[string]bool{"fault-injected": h.Orchestrator.FaultInjectedForMethodMemoized(method)})
}

// HealthCheck handles GET /health-check, reporting whether every tracked
// service's circuit is not open.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	states := h.Tracker.AllStates()
	ready := true
	for _, s := range states {
		if s == readiness.StateOpen {
			ready = false
			break
		}
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "services": states})
}

// Terminate handles GET /terminate, used by server-only mode's harness to
// signal the control-plane process should exit. It responds with an empty
// JSON object and sends one value on terminated if a send would not block.
// The serve command does not read terminated.
func (h *Handlers) Terminate(terminated chan<- struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
		select {
		case terminated <- struct{}{}:
		default:
		}
	}
}

// CompleteIteration handles POST /filibuster/complete-iteration/{n}/exception/{0|1}.
func (h *Handlers) CompleteIteration(w http.ResponseWriter, r *http.Request) {
	if h.ServerOnly == nil {
		WriteError(w, http.StatusNotFound, "not running in server-only mode")
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid iteration number")
		return
	}
	exceptionFlag, err := strconv.Atoi(r.PathValue("exception"))
	if err != nil || (exceptionFlag != 0 && exceptionFlag != 1) {
		WriteError(w, http.StatusBadRequest, "exception flag must be 0 or 1")
		return
	}
	h.ServerOnly.CompleteIteration(n, exceptionFlag == 1)
	writeJSON(w, http.StatusOK, map[string]any{})
}

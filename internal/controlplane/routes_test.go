package controlplane_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/filibuster-io/filibuster-go/internal/catalog"
	"github.com/filibuster-io/filibuster-go/internal/controlplane"
	"github.com/filibuster-io/filibuster-go/internal/orchestrator"
	"github.com/filibuster-io/filibuster-go/internal/ratelimit"
	"github.com/filibuster-io/filibuster-go/internal/readiness"
)

const oneExceptionCatalog = `{
  "requests": {
    "pattern": "requests\\.get",
    "exceptions": [{"name": "ConnectionError"}]
  }
}`

func newTestHandler(t *testing.T) (http.Handler, *orchestrator.Orchestrator) {
	t.Helper()
	cat, err := catalog.Parse([]byte(oneExceptionCatalog))
	require.NoError(t, err)

	o := orchestrator.New(orchestrator.Options{MaxTests: -1}, cat, nil, zerolog.Nop(), nil)
	tracker := readiness.NewTracker(readiness.CircuitBreakerConfig{}, nil)

	handler := controlplane.SetupRoutes(&controlplane.Options{
		Orchestrator: o,
		Tracker:      tracker,
		Limiter:      ratelimit.NewTokenBucketLimiter(0, 0),
	})
	return handler, o
}

func TestCreateAssignsGeneratedIDWithoutForcedException(t *testing.T) {
	handler, _ := newTestHandler(t)

	// No forced failures yet: generated_id 0, no forced exception.
	body := `{"source_service_name":"a","target_service_name":"b","module":"requests","method":"get","execution_index":"ei-0"}`
	req := httptest.NewRequest(http.MethodPut, "/filibuster/create", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.InDelta(t, float64(0), resp["generated_id"], 0)
	require.Equal(t, "ei-0", resp["execution_index"])
	require.Nil(t, resp["forced_exception"])
}

func TestCreateRejectsMissingExecutionIndex(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/filibuster/create", bytes.NewBufferString(`{"module":"requests","method":"get"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMergesReturnValue(t *testing.T) {
	handler, _ := newTestHandler(t)

	createReq := httptest.NewRequest(http.MethodPut, "/filibuster/create", bytes.NewBufferString(
		`{"module":"requests","method":"get","execution_index":"ei-0"}`))
	createRec := httptest.NewRecorder()
	handler.ServeHTTP(createRec, createReq)

	updateReq := httptest.NewRequest(http.MethodPost, "/filibuster/update", bytes.NewBufferString(
		`{"generated_id":0,"return_value":{"status_code":200}}`))
	updateRec := httptest.NewRecorder()
	handler.ServeHTTP(updateRec, updateReq)

	require.Equal(t, http.StatusOK, updateRec.Code)
}

func TestUpdateRejectsUnknownGeneratedID(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/filibuster/update", bytes.NewBufferString(`{"generated_id":99}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewTestExecutionTrueOnlyOnFirstSighting(t *testing.T) {
	handler, _ := newTestHandler(t)

	first := httptest.NewRequest(http.MethodGet, "/filibuster/new-test-execution/checkout", nil)
	firstRec := httptest.NewRecorder()
	handler.ServeHTTP(firstRec, first)

	var firstResp map[string]bool
	require.NoError(t, json.NewDecoder(firstRec.Body).Decode(&firstResp))
	require.True(t, firstResp["new-test-execution"])

	second := httptest.NewRequest(http.MethodGet, "/filibuster/new-test-execution/checkout", nil)
	secondRec := httptest.NewRecorder()
	handler.ServeHTTP(secondRec, second)

	var secondResp map[string]bool
	require.NoError(t, json.NewDecoder(secondRec.Body).Decode(&secondResp))
	require.False(t, secondResp["new-test-execution"])
}

func TestHealthCheckReportsReadyWithNoTrackedServices(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health-check", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCompleteIterationNotFoundWithoutServerOnlyRunner(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/filibuster/complete-iteration/1/exception/0", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

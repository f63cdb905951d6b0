package readiness

import "errors"

// Sentinel errors for readiness tracking.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and rejecting requests.
	ErrCircuitOpen = errors.New("readiness: circuit breaker is open")

	// ErrHealthCheckFailed is returned when a synthetic health check fails.
	ErrHealthCheckFailed = errors.New("readiness: health check failed")

	// ErrServiceUnready is returned when a service is marked as not ready.
	ErrServiceUnready = errors.New("readiness: service is not ready")
)

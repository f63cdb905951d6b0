package readiness

import (
	"sync"

	"github.com/rs/zerolog"
)

// Tracker manages per-service circuit breakers.
// It provides thread-safe access to circuit breakers and exposes
// IsReadyFunc closures that report whether a service's circuit is open.
type Tracker struct {
	circuits map[string]*CircuitBreaker
	logger   *zerolog.Logger
	config   CircuitBreakerConfig
	mu       sync.RWMutex
}

// NewTracker creates a new Tracker with the given configuration.
func NewTracker(cfg CircuitBreakerConfig, logger *zerolog.Logger) *Tracker {
	return &Tracker{
		circuits: make(map[string]*CircuitBreaker),
		config:   cfg,
		logger:   logger,
	}
}

// GetOrCreateCircuit returns the circuit breaker for a service, creating it if necessary.
// This method is thread-safe and uses lazy initialization.
func (t *Tracker) GetOrCreateCircuit(serviceName string) *CircuitBreaker {
	t.mu.RLock()
	cb, exists := t.circuits[serviceName]
	t.mu.RUnlock()

	if exists {
		return cb
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, exists = t.circuits[serviceName]; exists {
		return cb
	}

	cb = NewCircuitBreaker(serviceName, t.config, t.logger)
	t.circuits[serviceName] = cb

	if t.logger != nil {
		t.logger.Debug().
			Str("service", serviceName).
			Msg("created circuit breaker")
	}

	return cb
}

// Reset replaces the tracker's configuration and drops all existing
// circuits, so that later calls to GetOrCreateCircuit build fresh circuits
// under the new thresholds. Used on config hot-reload; the Tracker pointer
// itself is kept stable so handlers holding a reference see the update.
func (t *Tracker) Reset(cfg CircuitBreakerConfig, logger *zerolog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.config = cfg
	t.logger = logger
	t.circuits = make(map[string]*CircuitBreaker)
}

// IsReadyFunc returns a closure that checks if a service is ready to
// receive scheduled faults. A service is considered ready if its circuit is:
//   - CLOSED: Normal operation
//   - HALF-OPEN: Testing recovery, probe requests are allowed
//
// A service is unready only if the circuit is OPEN.
func (t *Tracker) IsReadyFunc(serviceName string) func() bool {
	return func() bool {
		cb := t.GetOrCreateCircuit(serviceName)
		return cb.State() != StateOpen
	}
}

// GetState returns the current state of a service's circuit breaker.
// Returns StateClosed if no circuit exists for the service (ready by default).
func (t *Tracker) GetState(serviceName string) State {
	t.mu.RLock()
	cb, exists := t.circuits[serviceName]
	t.mu.RUnlock()

	if !exists {
		return StateClosed
	}
	return cb.State()
}

// RecordSuccess records a successful health check for a service.
func (t *Tracker) RecordSuccess(serviceName string) {
	cb := t.GetOrCreateCircuit(serviceName)
	cb.ReportSuccess()

	if t.logger != nil {
		t.logger.Debug().
			Str("service", serviceName).
			Str("state", cb.State().String()).
			Msg("recorded success")
	}
}

// RecordFailure records a failed health check for a service.
func (t *Tracker) RecordFailure(serviceName string, err error) {
	cb := t.GetOrCreateCircuit(serviceName)
	cb.ReportFailure(err)

	if t.logger != nil {
		t.logger.Debug().
			Str("service", serviceName).
			Str("state", cb.State().String()).
			Err(err).
			Msg("recorded failure")
	}
}

// AllStates returns a snapshot of all service circuit states. Used by the
// /health-check control-plane endpoint to report overall readiness.
func (t *Tracker) AllStates() map[string]State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make(map[string]State, len(t.circuits))
	for name, cb := range t.circuits {
		states[name] = cb.State()
	}
	return states
}

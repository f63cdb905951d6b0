// Package readiness keeps a circuit breaker per instrumented service and
// polls, on a fixed interval, the /health-check endpoint of each service
// whose circuit is OPEN; a successful probe closes it. Circuits open only
// through Tracker.RecordFailure: the checker does not record failed probes,
// and the orchestrator does not wait on or consult these circuits.
package readiness

import "time"

// Default configuration values.
const (
	DefaultFailureThreshold = 5     // consecutive failures to open circuit
	DefaultOpenDurationMS   = 30000 // 30 seconds before half-open
	DefaultHalfOpenProbes   = 3     // probes allowed in half-open state
	DefaultCheckIntervalMS  = 10000 // 10 seconds between health checks
	DefaultCheckEnabled     = true  // health checks enabled by default
)

// CircuitBreakerConfig defines circuit breaker behavior for one service.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// OpenDurationMS is the duration in milliseconds the circuit stays open before
	// transitioning to half-open state. Default: 30000 (30 seconds)
	OpenDurationMS int `yaml:"open_duration_ms"`

	// HalfOpenProbes is the number of probe requests allowed in half-open state.
	// If all probes succeed, circuit closes. If any fails, circuit reopens.
	// Default: 3
	HalfOpenProbes int `yaml:"half_open_probes"`
}

// GetFailureThreshold returns the configured failure threshold or default 5.
func (c *CircuitBreakerConfig) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetOpenDuration returns the open duration as time.Duration.
// Returns default 30s if not set or negative.
func (c *CircuitBreakerConfig) GetOpenDuration() time.Duration {
	if c.OpenDurationMS <= 0 {
		return time.Duration(DefaultOpenDurationMS) * time.Millisecond
	}
	return time.Duration(c.OpenDurationMS) * time.Millisecond
}

// GetHalfOpenProbes returns the configured half-open probes or default 3.
func (c *CircuitBreakerConfig) GetHalfOpenProbes() int {
	if c.HalfOpenProbes <= 0 {
		return DefaultHalfOpenProbes
	}
	return c.HalfOpenProbes
}

// CheckConfig defines health check polling behavior.
type CheckConfig struct {
	Enabled    *bool `yaml:"enabled"`
	IntervalMS int   `yaml:"interval_ms"`
}

// GetInterval returns the health check interval as time.Duration.
// Returns default 10s if not set or negative.
func (c *CheckConfig) GetInterval() time.Duration {
	if c.IntervalMS <= 0 {
		return time.Duration(DefaultCheckIntervalMS) * time.Millisecond
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// IsEnabled returns whether health checks are enabled.
// Returns true by default if not explicitly set.
func (c *CheckConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return DefaultCheckEnabled
	}
	return *c.Enabled
}

// Config combines circuit breaker and health check configuration for the
// readiness subsystem.
type Config struct {
	HealthCheck    CheckConfig          `yaml:"health_check"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

package config

import (
	"github.com/filibuster-io/filibuster-go/internal/readiness"
)

// DetectFormat exports detectFormat for testing.
var DetectFormat = detectFormat

// MakeTestConfig returns a minimal valid Config with all fields set.
func MakeTestConfig() *Config {
	return &Config{
		Server:       MakeTestServerConfig(),
		Logging:      MakeTestLoggingConfig(),
		Readiness:    MakeTestReadinessConfig(),
		RateLimit:    RateLimitConfig{PerSecond: 50, Burst: 100},
		Catalog:      CatalogConfig{Path: "catalog.json", HotReload: true},
		Orchestrator: MakeTestOrchestratorConfig(),
		Metrics:      MetricsConfig{Enabled: true, Listen: "127.0.0.1:9090"},
	}
}

// MakeTestServerConfig returns a minimal ServerConfig with all fields set.
func MakeTestServerConfig() ServerConfig {
	return ServerConfig{
		Listen:        "127.0.0.1:8787",
		TimeoutMS:     60000,
		MaxConcurrent: 0,
		MaxBodyBytes:  0,
	}
}

// MakeTestLoggingConfig returns a minimal LoggingConfig with all fields set.
func MakeTestLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:        "info",
		Format:       "json",
		Output:       "stdout",
		Pretty:       false,
		DebugOptions: MakeTestDebugOptions(),
	}
}

// MakeTestDebugOptions returns a minimal DebugOptions with all fields set.
func MakeTestDebugOptions() DebugOptions {
	return DebugOptions{
		LogRequestBody: false,
		LogHeaders:     false,
		MaxBodyLogSize: 1000,
	}
}

// MakeTestReadinessConfig returns a minimal readiness.Config with all fields set.
func MakeTestReadinessConfig() readiness.Config {
	return readiness.Config{
		HealthCheck: readiness.CheckConfig{
			Enabled:    boolPtr(true),
			IntervalMS: 10000,
		},
		CircuitBreaker: readiness.CircuitBreakerConfig{
			OpenDurationMS:   30000,
			FailureThreshold: 5,
			HalfOpenProbes:   3,
		},
	}
}

// MakeTestOrchestratorConfig returns a minimal OrchestratorConfig with all fields set.
func MakeTestOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		DynamicReduction:       true,
		SuppressCombinations:   false,
		OnlyInitialExecution:   false,
		MaxTests:               0,
		CounterexamplePath:     "",
		ForcedFailureIteration: "",
	}
}

// MakeTestValidationError returns a ValidationError with Errors initialized.
func MakeTestValidationError() *ValidationError {
	return &ValidationError{
		Errors: []string{},
	}
}

// boolPtr returns a pointer to a bool.
func boolPtr(b bool) *bool {
	return &b
}

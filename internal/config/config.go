// Package config provides configuration loading and parsing for the
// control-plane process.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/filibuster-io/filibuster-go/internal/readiness"
)

// Configuration errors.
var (
	ErrKeyRequired = errors.New("config: key is required")
)

// RuntimeConfig defines the interface for accessing runtime configuration that supports hot-reload.
// Components that need to observe config changes should use this interface instead of
// holding a direct *Config pointer, which would become stale after hot-reload.
//
// Usage pattern:
//
//	func (o *Orchestrator) applyLimits(runtime config.RuntimeConfig) {
//		cfg := runtime.Get()
//		limiter.SetLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
//	}
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config represents the complete control-plane configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" toml:"server"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Readiness    readiness.Config   `yaml:"readiness" toml:"readiness"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit" toml:"rate_limit"`
	Catalog      CatalogConfig      `yaml:"catalog" toml:"catalog"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" toml:"orchestrator"`
	Metrics      MetricsConfig      `yaml:"metrics" toml:"metrics"`
}

// ServerConfig defines control-plane HTTP server settings.
type ServerConfig struct {
	Listen        string `yaml:"listen" toml:"listen"`
	TimeoutMS     int    `yaml:"timeout_ms" toml:"timeout_ms"`
	MaxConcurrent int    `yaml:"max_concurrent" toml:"max_concurrent"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// GetTimeoutOption returns the timeout as an Option.
// Returns None if TimeoutMS is zero (use default).
func (s *ServerConfig) GetTimeoutOption() mo.Option[time.Duration] {
	if s.TimeoutMS <= 0 {
		return mo.None[time.Duration]()
	}
	return mo.Some(time.Duration(s.TimeoutMS) * time.Millisecond)
}

// GetMaxConcurrentOption returns the max concurrent setting as an Option.
// Returns None if MaxConcurrent is zero (unlimited).
func (s *ServerConfig) GetMaxConcurrentOption() mo.Option[int] {
	if s.MaxConcurrent <= 0 {
		return mo.None[int]()
	}
	return mo.Some(s.MaxConcurrent)
}

// RateLimitConfig tunes the token bucket shared by every control-plane
// endpoint, guarding against inbound callback floods from instrumented
// services.
type RateLimitConfig struct {
	// PerSecond is the sustained rate of accepted callbacks. Non-positive
	// means unlimited.
	PerSecond int `yaml:"per_second" toml:"per_second"`

	// Burst is the maximum burst size above PerSecond.
	Burst int `yaml:"burst" toml:"burst"`
}

// CatalogConfig locates and tunes the fault catalog.
type CatalogConfig struct {
	// Path is the filesystem location of the fault catalog JSON document.
	Path string `yaml:"path" toml:"path"`

	// HotReload enables watching Path for changes and reloading the
	// catalog without restarting the control-plane.
	HotReload bool `yaml:"hot_reload" toml:"hot_reload"`
}

// OrchestratorConfig tunes one orchestration run.
type OrchestratorConfig struct {
	DynamicReduction       bool   `yaml:"dynamic_reduction" toml:"dynamic_reduction"`
	SuppressCombinations   bool   `yaml:"suppress_combinations" toml:"suppress_combinations"`
	OnlyInitialExecution   bool   `yaml:"only_initial_execution" toml:"only_initial_execution"`
	MaxTests               int    `yaml:"max_tests" toml:"max_tests"`
	CounterexamplePath     string `yaml:"counterexample_path" toml:"counterexample_path"`
	ForcedFailureIteration string `yaml:"forced_failure_iteration" toml:"forced_failure_iteration"`

	// ServerOnly runs the control-plane without driving a local test
	// command: the functional test lives in a separate process (or
	// language) that polls /filibuster/complete-iteration itself.
	ServerOnly bool `yaml:"server_only" toml:"server_only"`
}

// GetMaxTests returns the configured test ceiling, or -1 (unbounded) if unset.
func (o *OrchestratorConfig) GetMaxTests() int {
	if o.MaxTests == 0 {
		return -1
	}
	return o.MaxTests
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Listen  string `yaml:"listen" toml:"listen"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level        string       `yaml:"level" toml:"level"`                 // debug, info, warn, error
	Format       string       `yaml:"format" toml:"format"`               // json, console
	Output       string       `yaml:"output" toml:"output"`               // stdout, stderr, or file path
	Pretty       bool         `yaml:"pretty" toml:"pretty"`               // enable colored console output
	DebugOptions DebugOptions `yaml:"debug_options" toml:"debug_options"` // granular debug logging controls
}

// ParseLevel converts a string log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// EnableAllDebugOptions turns on all debug logging features.
// No command-line flag calls it.
func (l *LoggingConfig) EnableAllDebugOptions() {
	l.Level = LevelDebug
	l.DebugOptions = DebugOptions{
		LogRequestBody: true,
		LogHeaders:     true,
		MaxBodyLogSize: 1000,
	}
}

// DebugOptions defines granular debug logging controls.
type DebugOptions struct {
	// LogRequestBody is the setting for logging callback request bodies
	// (new-test-execution, create, update payloads). It is counted by
	// IsEnabled; no control-plane handler or middleware reads it, so no
	// body is logged.
	LogRequestBody bool `yaml:"log_request_body" toml:"log_request_body"`

	// LogHeaders is the setting for logging the causality headers
	// (X-Filibuster-Execution-Index, X-Filibuster-Vclock, ...). It is
	// counted by IsEnabled; no control-plane handler or middleware reads
	// it, so no header is logged.
	LogHeaders bool `yaml:"log_headers" toml:"log_headers"`

	// MaxBodyLogSize is the maximum number of bytes to log from request bodies.
	// Default: 1000 bytes. Zero or negative values fall back to the default.
	MaxBodyLogSize int `yaml:"max_body_log_size" toml:"max_body_log_size"`
}

// GetMaxBodyLogSize returns the effective max body log size with default fallback.
func (d *DebugOptions) GetMaxBodyLogSize() int {
	if d.MaxBodyLogSize <= 0 {
		return 1000 // Default: 1KB
	}
	return d.MaxBodyLogSize
}

// IsEnabled returns true if any debug option is enabled.
func (d *DebugOptions) IsEnabled() bool {
	return d.LogRequestBody || d.LogHeaders
}

// GetMaxBodyLogSizeOption returns the max body log size as an Option.
// Returns None if the value is not explicitly set (zero or negative).
func (d *DebugOptions) GetMaxBodyLogSizeOption() mo.Option[int] {
	if d.MaxBodyLogSize <= 0 {
		return mo.None[int]()
	}
	return mo.Some(d.MaxBodyLogSize)
}

// Package config provides configuration loading, parsing, and validation for
// the control-plane process.
package config

import (
	"net"
	"strings"
)

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":      true, // Empty defaults to info
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // Empty: console on a terminal, json otherwise
	"json":    true,
	"console": true,
	"text":    true, // Alias for console
	"pretty":  true,
}

// Validate checks the configuration for errors.
// It validates all required fields, valid values, and cross-field constraints.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{Errors: nil}

	validateServer(c, errs)
	validateCatalog(c, errs)
	validateRateLimit(c, errs)
	validateOrchestrator(c, errs)
	validateLogging(c, errs)

	return errs.ToError()
}

// validateServer validates the server configuration section.
func validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Listen == "" {
		errs.Add("server.listen is required")
	} else {
		validateListenAddress(cfg.Server.Listen, errs)
	}

	if cfg.Server.TimeoutMS < 0 {
		errs.Add("server.timeout_ms must be >= 0")
	}
	if cfg.Server.MaxConcurrent < 0 {
		errs.Add("server.max_concurrent must be >= 0")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs.Add("server.max_body_bytes must be >= 0")
	}
}

// validateListenAddress validates a listen address in host:port format.
func validateListenAddress(addr string, errs *ValidationError) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		errs.Addf("server.listen must be in host:port format (got %q)", addr)
		return
	}

	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			if strings.ContainsAny(host, " \t\n") {
				errs.Add("server.listen host contains invalid characters")
			}
		}
	}

	if port == "" {
		errs.Add("server.listen port is required")
	}
}

// validateCatalog validates the catalog configuration section.
func validateCatalog(cfg *Config, errs *ValidationError) {
	if cfg.Catalog.Path == "" {
		errs.Add("catalog.path is required")
	}
}

// validateRateLimit validates the rate_limit configuration section.
func validateRateLimit(cfg *Config, errs *ValidationError) {
	if cfg.RateLimit.Burst < 0 {
		errs.Add("rate_limit.burst must be >= 0")
	}
}

// validateOrchestrator validates the orchestrator configuration section.
func validateOrchestrator(cfg *Config, errs *ValidationError) {
	if cfg.Orchestrator.MaxTests < 0 {
		errs.Add("orchestrator.max_tests must be >= 0 (0 means unbounded)")
	}
}

// validateLogging validates the logging configuration section.
func validateLogging(cfg *Config, errs *ValidationError) {
	if !validLogLevels[cfg.Logging.Level] {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error)",
			cfg.Logging.Level)
	}

	if !validLogFormats[cfg.Logging.Format] {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, text, pretty)",
			cfg.Logging.Format)
	}

	if cfg.Logging.DebugOptions.MaxBodyLogSize < 0 {
		errs.Add("logging.debug_options.max_body_log_size must be >= 0")
	}
}

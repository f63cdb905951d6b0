package config

import "testing"

func validMinimalConfig() *Config {
	return &Config{
		Server:  ServerConfig{Listen: "127.0.0.1:8787"},
		Catalog: CatalogConfig{Path: "catalog.json"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateValidMinimalConfig(t *testing.T) {
	cfg := validMinimalConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected minimal config to be valid, got: %v", err)
	}
}

func TestValidateMissingServerListen(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Server.Listen = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing server.listen")
	}
}

func TestValidateInvalidListenFormat(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Server.Listen = "not-a-valid-address"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid listen address format")
	}
}

func TestValidateValidListenFormats(t *testing.T) {
	addrs := []string{"127.0.0.1:8787", ":8787", "0.0.0.0:9000", "localhost:8080"}
	for _, addr := range addrs {
		cfg := validMinimalConfig()
		cfg.Server.Listen = addr
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected %q to be a valid listen address, got: %v", addr, err)
		}
	}
}

func TestValidateMissingCatalogPath(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Catalog.Path = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing catalog.path")
	}
}

func TestValidateNegativeRateLimitBurst(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.RateLimit.Burst = -1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative rate_limit.burst")
	}
}

func TestValidateNegativeMaxTests(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Orchestrator.MaxTests = -5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative orchestrator.max_tests")
	}
}

func TestValidateInvalidLoggingLevel(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Logging.Level = "verbose"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid logging.level")
	}
}

func TestValidateInvalidLoggingFormat(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Logging.Format = "xml"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid logging.format")
	}
}

func TestValidateNegativeMaxBodyLogSize(t *testing.T) {
	cfg := validMinimalConfig()
	cfg.Logging.DebugOptions.MaxBodyLogSize = -10

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max_body_log_size")
	}
}

func TestValidateMultipleErrors(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Listen: ""},
		Catalog: CatalogConfig{Path: ""},
		Logging: LoggingConfig{Level: "bogus", Format: "bogus"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected multiple validation errors")
	}

	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Errors) < 4 {
		t.Errorf("expected at least 4 errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
}

func TestValidationErrorSingleError(t *testing.T) {
	errs := &ValidationError{Errors: []string{"server.listen is required"}}
	want := "config validation failed: server.listen is required"
	if got := errs.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrorEmpty(t *testing.T) {
	errs := &ValidationError{}
	if errs.HasErrors() {
		t.Error("expected HasErrors() to be false for empty errors")
	}
	if errs.ToError() != nil {
		t.Error("expected ToError() to be nil for empty errors")
	}
}

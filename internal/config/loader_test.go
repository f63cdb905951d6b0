package config

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
server:
  listen: "127.0.0.1:8787"
  timeout_ms: 60000
  max_concurrent: 10

catalog:
  path: "catalog.json"
  hot_reload: true

rate_limit:
  per_second: 50
  burst: 100

logging:
  level: "info"
  format: "json"
`

	cfg, err := LoadFromReader(strings.NewReader(yamlContent))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:8787" {
		t.Errorf("Expected listen=127.0.0.1:8787, got %s", cfg.Server.Listen)
	}
	if cfg.Server.TimeoutMS != 60000 {
		t.Errorf("Expected timeout_ms=60000, got %d", cfg.Server.TimeoutMS)
	}
	if cfg.Server.MaxConcurrent != 10 {
		t.Errorf("Expected max_concurrent=10, got %d", cfg.Server.MaxConcurrent)
	}
	if cfg.Catalog.Path != "catalog.json" {
		t.Errorf("Expected catalog.path=catalog.json, got %s", cfg.Catalog.Path)
	}
	if !cfg.Catalog.HotReload {
		t.Error("Expected catalog.hot_reload=true, got false")
	}
	if cfg.RateLimit.PerSecond != 50 || cfg.RateLimit.Burst != 100 {
		t.Errorf("Expected rate_limit 50/100, got %d/%d", cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Expected logging info/json, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvironmentExpansion(t *testing.T) {
	t.Parallel()

	testKey := "TEST_CATALOG_PATH_12345"
	testValue := "/etc/filibuster/catalog.json"
	os.Setenv(testKey, testValue)
	defer os.Unsetenv(testKey)

	yamlContent := `
server:
  listen: "127.0.0.1:8787"

catalog:
  path: "${` + testKey + `}"

logging:
  level: "info"
`

	cfg, err := LoadFromReader(strings.NewReader(yamlContent))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.Catalog.Path != testValue {
		t.Errorf("Expected catalog.path=%s, got %s", testValue, cfg.Catalog.Path)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
server:
  listen: "127.0.0.1:8787
  timeout_ms: not_a_number
`

	_, err := LoadFromReader(strings.NewReader(yamlContent))
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse config YAML") {
		t.Errorf("Expected parse error message, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to open config file") {
		t.Errorf("Expected open error message, got: %v", err)
	}
}

func TestLoadTOMLFormat(t *testing.T) {
	t.Parallel()

	tomlContent := `
[server]
listen = "127.0.0.1:8787"
timeout_ms = 60000
max_concurrent = 10

[catalog]
path = "catalog.json"
hot_reload = true

[orchestrator]
dynamic_reduction = true
max_tests = 200

[logging]
level = "info"
format = "json"
`

	cfg, err := LoadFromReaderWithFormat(strings.NewReader(tomlContent), FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromReaderWithFormat failed: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:8787" {
		t.Errorf("Expected listen=127.0.0.1:8787, got %s", cfg.Server.Listen)
	}
	if !cfg.Orchestrator.DynamicReduction {
		t.Error("Expected orchestrator.dynamic_reduction=true, got false")
	}
	if cfg.Orchestrator.MaxTests != 200 {
		t.Errorf("Expected orchestrator.max_tests=200, got %d", cfg.Orchestrator.MaxTests)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	tomlPath := tmpDir + "/config.toml"

	tomlContent := `
[server]
listen = "127.0.0.1:8787"

[catalog]
path = "catalog.json"

[logging]
level = "info"
`

	if err := os.WriteFile(tomlPath, []byte(tomlContent), 0o644); err != nil {
		t.Fatalf("Failed to write temp TOML file: %v", err)
	}

	cfg, err := Load(tomlPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:8787" {
		t.Errorf("Expected listen=127.0.0.1:8787, got %s", cfg.Server.Listen)
	}
	if cfg.Catalog.Path != "catalog.json" {
		t.Errorf("Expected catalog.path=catalog.json, got %s", cfg.Catalog.Path)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := Load("/path/to/config.json")
	if err == nil {
		t.Fatal("Expected error for unsupported format, got nil")
	}

	var unsupportedErr *UnsupportedFormatError
	if !errors.As(err, &unsupportedErr) {
		t.Fatalf("Expected UnsupportedFormatError, got %T: %v", err, err)
	}
	if unsupportedErr.Extension != ".json" {
		t.Errorf("Expected extension=.json, got %s", unsupportedErr.Extension)
	}
	if !strings.Contains(err.Error(), "unsupported config format") {
		t.Errorf("Expected unsupported format error message, got: %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		expected Format
		wantErr  bool
	}{
		{"config.yaml", FormatYAML, false},
		{"config.yml", FormatYAML, false},
		{"config.YAML", FormatYAML, false},
		{"config.toml", FormatTOML, false},
		{"/path/to/config.yaml", FormatYAML, false},
		{"/path/to/config.toml", FormatTOML, false},
		{"config.json", "", true},
		{"config", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			format, err := detectFormat(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("detectFormat(%q) expected error, got nil", tt.path)
				}
				return
			}
			if err != nil {
				t.Errorf("detectFormat(%q) unexpected error: %v", tt.path, err)
			}
			if format != tt.expected {
				t.Errorf("detectFormat(%q) = %v, want %v", tt.path, format, tt.expected)
			}
		})
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	t.Parallel()

	tomlContent := `
[server]
listen = "127.0.0.1:8787
`

	_, err := LoadFromReaderWithFormat(strings.NewReader(tomlContent), FormatTOML)
	if err == nil {
		t.Fatal("Expected error for invalid TOML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse config TOML") {
		t.Errorf("Expected parse error message, got: %v", err)
	}
}

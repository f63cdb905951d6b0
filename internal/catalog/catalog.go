// Package catalog loads and queries the fault catalog: the per-call-site
// table of injectable faults that the schedule generator consults. The
// catalog itself is produced by static analysis of service source, which is
// out of scope here; only the catalog's file format and query surface are
// implemented.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/tidwall/gjson"
)

// Exception describes one exception the generator may force on invocation.
type Exception struct {
	Name         string                 `json:"name"`
	Restrictions string                 `json:"restrictions,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ErrorType is one shape of fault the generator may force when a request is
// received, either a synthesized return value or a synthesized exception.
type ErrorType struct {
	ReturnValue map[string]interface{} `json:"return_value,omitempty"`
	Exception   map[string]interface{} `json:"exception,omitempty"`
}

// ReceiveError describes faults forceable at request-received time for
// services whose name matches ServiceNameRegex.
type ReceiveError struct {
	ServiceNameRegex string      `json:"service_name"`
	Types            []ErrorType `json:"types"`
}

// Module is one entry of the catalog, matched against "module.method" call
// descriptors via Pattern.
type Module struct {
	Pattern    string         `json:"pattern"`
	Exceptions []Exception    `json:"exceptions,omitempty"`
	Errors     []ReceiveError `json:"errors,omitempty"`
}

// Catalog is the full parsed fault catalog, keyed by an arbitrary module id
// (not interpreted, only used for diagnostics).
type Catalog struct {
	modules map[string]compiledModule
}

type compiledModule struct {
	id      string
	pattern *regexp.Regexp
	raw     Module
}

// rawCatalog is the wire format: a JSON object of module id to Module.
type rawCatalog map[string]Module

// Parse compiles a catalog from its JSON representation, validating every
// pattern and service-name regex up front so that a malformed catalog fails
// fast at load time rather than mid-run.
func Parse(data []byte) (*Catalog, error) {
	// A hot-reload can observe a file mid-write (temp file not yet fully
	// flushed before the rename fsnotify reports). gjson.ValidBytes is a
	// cheap syntax check that rejects a truncated document before paying
	// for a full unmarshal and per-module regexp compilation below.
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("catalog: invalid json")
	}

	var raw rawCatalog
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: invalid json: %w", err)
	}

	modules := make(map[string]compiledModule, len(raw))
	for id, m := range raw {
		pat, err := regexp.Compile(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog: module %q: invalid pattern %q: %w", id, m.Pattern, err)
		}
		for _, e := range m.Errors {
			if _, err := regexp.Compile(e.ServiceNameRegex); err != nil {
				return nil, fmt.Errorf("catalog: module %q: invalid service_name regex %q: %w", id, e.ServiceNameRegex, err)
			}
		}
		modules[id] = compiledModule{id: id, pattern: pat, raw: m}
	}
	return &Catalog{modules: modules}, nil
}

// Load reads and parses a catalog file from path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// MatchingModules returns every module whose pattern matches "module.method".
func (c *Catalog) MatchingModules(module, method string) []Module {
	descriptor := module + "." + method
	var out []Module
	for _, m := range c.modules {
		if m.pattern.MatchString(descriptor) {
			out = append(out, m.raw)
		}
	}
	return out
}

// MatchingReceiveErrors returns every ReceiveError across all matching
// modules whose service_name regex matches targetService.
func (c *Catalog) MatchingReceiveErrors(module, method, targetService string) []ReceiveError {
	var out []ReceiveError
	for _, m := range c.MatchingModules(module, method) {
		for _, e := range m.Errors {
			re, err := regexp.Compile(e.ServiceNameRegex)
			if err != nil {
				continue // already validated at Parse time; defensive only
			}
			if re.MatchString(targetService) {
				out = append(out, e)
			}
		}
	}
	return out
}

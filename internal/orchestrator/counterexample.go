package orchestrator

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/filibuster-io/filibuster-go/internal/testexecution"
)

// counterexampleSchemaVersion is stamped onto every written counterexample
// so replay can reject a document from an incompatible future format
// without needing to unmarshal it first.
const counterexampleSchemaVersion = 1

// WriteCounterexample persists the failing execution to path for later
// replay.
func WriteCounterexample(path string, te *testexecution.TestExecution) error {
	data, err := testexecution.ToJSON(te)
	if err != nil {
		return fmt.Errorf("counterexample: encode: %w", err)
	}
	// sjson.SetBytes patches in the schema_version field without
	// unmarshaling and re-marshaling the whole document.
	data, err = sjson.SetBytes(data, "schema_version", counterexampleSchemaVersion)
	if err != nil {
		return fmt.Errorf("counterexample: stamp schema version: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("counterexample: write %s: %w", path, err)
	}
	return nil
}

// LoadCounterexample reads a counterexample previously written by
// WriteCounterexample, for replay.
func LoadCounterexample(path string) (*testexecution.TestExecution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("counterexample: read %s: %w", path, err)
	}
	// Reject a document from a newer schema before paying for a full
	// unmarshal; gjson.GetBytes reads a single field without decoding the
	// rest of the document.
	if v := gjson.GetBytes(data, "schema_version"); v.Exists() && v.Int() > counterexampleSchemaVersion {
		return nil, fmt.Errorf("counterexample: %s has schema_version %d, this binary supports up to %d",
			path, v.Int(), counterexampleSchemaVersion)
	}
	te, err := testexecution.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("counterexample: decode %s: %w", path, err)
	}
	return te, nil
}

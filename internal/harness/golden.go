package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/omnistate/internal/ir"
)

// Snapshot renders a scenario run for golden comparison: the trace and
// the final state, as sorted-key JSON indented by two spaces.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.IRArray, len(result.Trace))
	for i, e := range result.Trace {
		trace[i] = e.IR()
	}
	snap := ir.IRObject{
		"scenario": ir.IRString(name),
		"trace":    trace,
	}
	if result.State != nil {
		snap["state"] = result.State
	}

	compact, err := ir.MarshalIRValue(snap)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

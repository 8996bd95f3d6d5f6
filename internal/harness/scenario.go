package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a store test scenario.
// A scenario loads a schema, runs steps against the store it defines and
// asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the CUE store schema.
	// Relative paths resolve against the scenario file location.
	Schema string `yaml:"schema,omitempty"`

	// Source is an inline CUE store schema, used when Schema is empty.
	Source string `yaml:"source,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation on the store.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Path is a dotted state path (set, expect).
	Path string `yaml:"path,omitempty"`

	// Value is written by set and compared by expect.
	Value any `yaml:"value,omitempty"`

	// Collection names the collection (query and writes).
	Collection string `yaml:"collection,omitempty"`

	// Query options. Where keys are applied in sorted order.
	Where   map[string]any `yaml:"where,omitempty"`
	OrderBy []OrderKey     `yaml:"order_by,omitempty"`
	Limit   *int           `yaml:"limit,omitempty"`
	Offset  *int           `yaml:"offset,omitempty"`
	Include []string       `yaml:"include,omitempty"`
	Get     any            `yaml:"get,omitempty"`

	// ID is the primary key for update, delete and optimistic.
	ID any `yaml:"id,omitempty"`

	// Data is the row or patch for add, update and optimistic.
	Data map[string]any `yaml:"data,omitempty"`

	// Expect checks the step outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// OrderKey is one sort key of a query step.
type OrderKey struct {
	Field     string `yaml:"field"`
	Direction string `yaml:"direction,omitempty"`
}

// ExpectClause specifies an expected step outcome.
type ExpectClause struct {
	// Rows is the expected row count of a query, or the expected length
	// of the list at an expect step's path.
	Rows *int `yaml:"rows,omitempty"`

	// Error is a substring the step's error must contain. A step with an
	// expected error fails when it succeeds.
	Error string `yaml:"error,omitempty"`

	// Status is the expected meta status of the node at an expect
	// step's path.
	Status string `yaml:"status,omitempty"`
}

// Step op constants.
const (
	OpSet        = "set"
	OpQuery      = "query"
	OpAdd        = "add"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpOptimistic = "optimistic"
	OpExpect     = "expect"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an op on a collection appears in trace
	// - "trace_order": Check ops appear in order
	// - "trace_count": Check an op appears exactly N times
	// - "final_state": Check a row or object in the final state
	Type string `yaml:"type"`

	// Op is the step op (used by trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Collection narrows trace_contains and trace_count to one collection.
	Collection string `yaml:"collection,omitempty"`

	// Ops is the expected op order (used by trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Path is the dotted state path (used by final_state).
	Path string `yaml:"path,omitempty"`

	// Where selects exactly one row when Path holds a list
	// (used by final_state). All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// schema path against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Schema == "" && s.Source == "":
		return fmt.Errorf("schema or source is required")
	case s.Schema != "" && s.Source != "":
		return fmt.Errorf("schema and source are mutually exclusive")
	case s.Schema != "":
		if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", s.Schema)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpSet:
		if s.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for set", index)
		}
	case OpExpect:
		if s.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for expect", index)
		}
		if s.Value == nil && s.Expect == nil {
			return fmt.Errorf("steps[%d]: expect needs value or an expect clause", index)
		}
	case OpQuery:
		if s.Collection == "" {
			return fmt.Errorf("steps[%d]: collection is required for query", index)
		}
	case OpAdd:
		if s.Collection == "" || s.Data == nil {
			return fmt.Errorf("steps[%d]: collection and data are required for add", index)
		}
	case OpUpdate, OpOptimistic:
		if s.Collection == "" || s.ID == nil || s.Data == nil {
			return fmt.Errorf("steps[%d]: collection, id and data are required for %s", index, s.Op)
		}
	case OpDelete:
		if s.Collection == "" || s.ID == nil {
			return fmt.Errorf("steps[%d]: collection and id are required for delete", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	for j, k := range s.OrderBy {
		if k.Field == "" {
			return fmt.Errorf("steps[%d].order_by[%d]: field is required", index, j)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

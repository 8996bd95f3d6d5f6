package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/omnistate/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			target := event.Collection
			if target == "" {
				target = event.Path
			}
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Op, target)
		}
	}

	return buf.String()
}

func matchesEvent(event TraceEvent, op, collection string) bool {
	return event.Op == op && (collection == "" || event.Collection == collection)
}

// assertTraceContains checks if the trace contains an op, optionally on
// one collection.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchesEvent(event, assertion.Op, assertion.Collection) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s on %q", assertion.Op, assertion.Collection),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening ops are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, event := range trace {
		if pos < len(assertion.Ops) && event.Op == assertion.Ops[pos] {
			pos++
		}
	}
	if pos == len(assertion.Ops) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
		Actual:   fmt.Sprintf("matched %v, then no %s", assertion.Ops[:pos], assertion.Ops[pos]),
		Trace:    trace,
	}
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesEvent(event, assertion.Op, assertion.Collection) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the node at assertion.Path in the final state.
// A list is narrowed to exactly one row by Where; an object is checked
// directly. Expected values use subset semantics.
func assertFinalState(final ir.IRObject, assertion Assertion) error {
	target, err := resolvePath(final, assertion.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("path %s", assertion.Path),
			Actual:   err.Error(),
		}
	}

	where, err := convertArgsToIRObject(assertion.Where)
	if err != nil {
		return fmt.Errorf("final_state where: %w", err)
	}
	expect, err := convertArgsToIRObject(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state expect: %w", err)
	}

	var row ir.IRObject
	switch t := target.(type) {
	case ir.IRObject:
		row = t
	case ir.IRArray:
		var matched []ir.IRObject
		for _, item := range t {
			obj, ok := item.(ir.IRObject)
			if ok && subsetMatch(obj, where) {
				matched = append(matched, obj)
			}
		}
		switch len(matched) {
		case 0:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("row in %s where %s", assertion.Path, formatObject(where)),
				Actual:   "row not found",
			}
		case 1:
			row = matched[0]
		default:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Path, formatObject(where)),
				Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
			}
		}
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("object or list at %s", assertion.Path),
			Actual:   fmt.Sprintf("%T", target),
		}
	}

	for _, key := range expect.SortedKeys() {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields present: %v", row.SortedKeys()),
			}
		}
		if !ir.Equal(expect[key], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %s", key, render(expect[key])),
				Actual:   fmt.Sprintf("field %q = %s", key, render(actual)),
			}
		}
	}

	return nil
}

// resolvePath walks a dotted path through objects and lists.
func resolvePath(root ir.IRObject, path string) (ir.IRValue, error) {
	var cur ir.IRValue = root
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case ir.IRObject:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("no field %q", part)
			}
			cur = next
		case ir.IRArray:
			var i int
			if _, err := fmt.Sscanf(part, "%d", &i); err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("no index %q (len %d)", part, len(node))
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("%q is inside a scalar", part)
		}
	}
	return cur, nil
}

// subsetMatch reports whether row holds every field of want.
func subsetMatch(row, want ir.IRObject) bool {
	for k, v := range want {
		got, ok := row[k]
		if !ok || !ir.Equal(v, got) {
			return false
		}
	}
	return true
}

// formatObject creates a human-readable description of conditions.
func formatObject(obj ir.IRObject) string {
	if len(obj) == 0 {
		return "(no conditions)"
	}
	keys := obj.SortedKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, render(obj[k])))
	}
	return strings.Join(parts, " AND ")
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

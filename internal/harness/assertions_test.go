package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/ir"
)

var sampleTrace = []TraceEvent{
	{Seq: 1, Op: OpQuery, Collection: "tasks"},
	{Seq: 2, Op: OpOptimistic, Collection: "tasks"},
	{Seq: 3, Op: OpQuery, Collection: "tags"},
	{Seq: 4, Op: OpExpect, Path: "tasks.0"},
}

func TestAssertTraceContains(t *testing.T) {
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Op: OpQuery, Collection: "tags"}))
	assert.NoError(t, assertTraceContains(sampleTrace, Assertion{Op: OpExpect}))

	err := assertTraceContains(sampleTrace, Assertion{Op: OpOptimistic, Collection: "tags"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
	assert.Contains(t, err.Error(), "[2] optimistic tasks")
}

func TestAssertTraceOrder(t *testing.T) {
	assert.NoError(t, assertTraceOrder(sampleTrace, Assertion{Ops: []string{OpQuery, OpQuery, OpExpect}}))

	err := assertTraceOrder(sampleTrace, Assertion{Ops: []string{OpExpect, OpQuery}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "then no query")
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Op: OpQuery, Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Op: OpQuery, Collection: "tasks", Count: 1}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Op: OpAdd, Count: 0}))

	err := assertTraceCount(sampleTrace, Assertion{Op: OpQuery, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertFinalState(t *testing.T) {
	final := ir.IRObject{
		"tasks": ir.IRArray{
			ir.IRObject{"id": ir.IRString("1"), "status": ir.IRString("todo")},
			ir.IRObject{"id": ir.IRString("2"), "status": ir.IRString("todo")},
		},
		"user": ir.IRObject{"name": ir.IRString("Ada")},
	}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "row match",
			assertion: Assertion{Path: "tasks", Where: map[string]any{"id": "2"}, Expect: map[string]any{"status": "todo"}},
		},
		{
			name:      "object",
			assertion: Assertion{Path: "user", Expect: map[string]any{"name": "Ada"}},
		},
		{
			name:      "indexed",
			assertion: Assertion{Path: "tasks.1", Expect: map[string]any{"id": "2"}},
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Path: "tasks", Where: map[string]any{"status": "todo"}, Expect: map[string]any{"id": "1"}},
			wantErr:   "2 rows matched",
		},
		{
			name:      "no row",
			assertion: Assertion{Path: "tasks", Where: map[string]any{"id": "9"}, Expect: map[string]any{"id": "9"}},
			wantErr:   "row not found",
		},
		{
			name:      "missing field",
			assertion: Assertion{Path: "user", Expect: map[string]any{"age": 3}},
			wantErr:   `field "age" to exist`,
		},
		{
			name:      "value mismatch",
			assertion: Assertion{Path: "user", Expect: map[string]any{"name": "Grace"}},
			wantErr:   `field "name" = "Ada"`,
		},
		{
			name:      "bad path",
			assertion: Assertion{Path: "tasks.7", Expect: map[string]any{"id": "1"}},
			wantErr:   "no index",
		},
		{
			name:      "scalar",
			assertion: Assertion{Path: "user.name", Expect: map[string]any{"id": "1"}},
			wantErr:   "object or list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(final, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: "vibes"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "unknown assertion type")
}

// Package harness runs YAML scenarios against a schema-defined store.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: kanban.cue          # relative to the scenario file
//	steps:
//	  - op: query
//	    collection: tasks
//	    where: { status: todo }
//	    order_by: [{ field: priority, direction: desc }]
//	    limit: 2
//	    expect: { rows: 2 }
//	  - op: set
//	    path: filter
//	    value: done
//	  - op: optimistic
//	    collection: tasks
//	    id: "2"
//	    data: { status: doing }
//	  - op: expect
//	    path: tasks.0.status
//	    value: doing
//	assertions:
//	  - type: trace_contains
//	    op: query
//	    collection: tasks
//	  - type: final_state
//	    path: tasks
//	    where: { id: "2" }
//	    expect: { status: doing }
//
// Step ops: set, query, add, update, delete, optimistic, expect.
//
// # Determinism
//
// Each scenario runs on a fresh memory adapter seeded from the schema, with
// sequential row ids and a logical clock numbering trace events. The trace
// and the final state are compared against golden files with goldie.
package harness

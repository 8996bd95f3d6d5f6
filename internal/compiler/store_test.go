package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/store"
)

const kanbanSchema = `
store: {
	state: {
		filter: "all"
		user: {name: "Ada", admin: true}
	}
	collection: tasks: {
		fields: {
			id:       string
			title:    string
			priority: int
			done:     bool
			board_id: string
			tags: [...string]
		}
		seed: [
			{id: "1", title: "Setup Repo", priority: 1, done: false, board_id: "b1", tags: ["infra"]},
			{id: "2", title: "Write Docs", priority: 2, done: true, board_id: "b1", tags: []},
		]
	}
	collection: board: {
		primary_key: "slug"
		fields: {
			slug: string
			name: string
			meta: {...}
		}
	}
}
`

func compile(t *testing.T, src string) *StoreSpec {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	spec, err := CompileStore(v.LookupPath(cue.ParsePath("store")))
	require.NoError(t, err)
	return spec
}

func TestCompileStore_Kanban(t *testing.T) {
	spec := compile(t, kanbanSchema)

	assert.Equal(t, ir.IRObject{
		"filter": ir.IRString("all"),
		"user":   ir.IRObject{"name": ir.IRString("Ada"), "admin": ir.IRBool(true)},
	}, spec.State)

	require.Len(t, spec.Collections, 2)
	tasks := spec.Collections[0]
	assert.Equal(t, "tasks", tasks.Name)
	assert.Equal(t, "id", tasks.PrimaryKey)
	assert.Equal(t, []Field{
		{Name: "id", Type: FieldString},
		{Name: "title", Type: FieldString},
		{Name: "priority", Type: FieldInt},
		{Name: "done", Type: FieldBool},
		{Name: "board_id", Type: FieldString},
		{Name: "tags", Type: FieldArray},
	}, tasks.Fields)
	require.Len(t, tasks.Seed, 2)
	assert.Equal(t, ir.IRArray{ir.IRString("infra")}, tasks.Seed[0]["tags"])
	assert.Equal(t, ir.IRInt(2), tasks.Seed[1]["priority"])

	board, ok := spec.Collection("board")
	require.True(t, ok)
	assert.Equal(t, "slug", board.PrimaryKey)
	assert.Equal(t, FieldObject, board.Fields[2].Type)
	assert.Empty(t, board.Seed)

	_, ok = spec.Collection("missing")
	assert.False(t, ok)

	assert.Empty(t, Validate(spec))
}

func TestStoreSpec_InitialState(t *testing.T) {
	spec := compile(t, kanbanSchema)
	initial := spec.InitialState()

	assert.Equal(t, ir.IRArray{}, initial["tasks"])
	assert.Equal(t, ir.IRArray{}, initial["board"])
	assert.Equal(t, ir.IRString("all"), initial["filter"])

	// The declared state is not aliased.
	initial["filter"] = ir.IRString("done")
	assert.Equal(t, ir.IRString("all"), spec.State["filter"])
}

func TestCollectionSpec_Table(t *testing.T) {
	spec := compile(t, kanbanSchema)
	tasks, _ := spec.Collection("tasks")

	table := tasks.Table()
	assert.Equal(t, store.TableSpec{
		Name:       "tasks",
		PrimaryKey: "id",
		Columns: []store.Column{
			{Name: "id", Type: store.TypeText},
			{Name: "title", Type: store.TypeText},
			{Name: "priority", Type: store.TypeInteger},
			{Name: "done", Type: store.TypeBoolean},
			{Name: "board_id", Type: store.TypeText},
			{Name: "tags", Type: store.TypeJSON},
		},
	}, table)
	require.NoError(t, table.Validate())
}

func TestCompileStore_FloatsForbidden(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "field type",
			src:   `store: collection: tasks: fields: {id: string, weight: float}`,
			field: "collection.tasks.fields.weight",
		},
		{
			name:  "number type",
			src:   `store: collection: tasks: fields: {id: string, weight: number}`,
			field: "collection.tasks.fields.weight",
		},
		{
			name:  "state value",
			src:   `store: state: ratio: 0.5`,
			field: "state.ratio",
		},
		{
			name:  "seed value",
			src:   `store: collection: tasks: seed: [{id: "1", weight: 1.5}]`,
			field: "collection.tasks.seed[0].weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			_, err := CompileStore(v.LookupPath(cue.ParsePath("store")))
			require.Error(t, err)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr))
			assert.Equal(t, tt.field, compileErr.Field)
			assert.Contains(t, compileErr.Message, "forbidden")
		})
	}
}

func TestCompileStore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{name: "missing store", src: `other: 1`, wantMsg: "store is required"},
		{name: "state not struct", src: `store: state: [1]`, wantMsg: "state must be a struct"},
		{name: "seed not list", src: `store: collection: t: seed: {a: 1}`, wantMsg: "seed must be a list"},
		{name: "seed row not struct", src: `store: collection: t: seed: [1]`, wantMsg: "seed rows must be structs"},
		{name: "incomplete state", src: `store: state: name: string`, wantMsg: "concrete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			_, err := CompileStore(v.LookupPath(cue.ParsePath("store")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCompileSource(t *testing.T) {
	spec, err := CompileSource(kanbanSchema, "kanban.cue")
	require.NoError(t, err)
	assert.Len(t, spec.Collections, 2)

	_, err = CompileSource(`store: {`, "broken.cue")
	require.Error(t, err)
	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "cue", compileErr.Field)
	assert.Contains(t, err.Error(), "broken.cue")
}

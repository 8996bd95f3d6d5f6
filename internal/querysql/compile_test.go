package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/queryir"
)

func compileOpts(t *testing.T, o queryir.Options) (string, []any) {
	t.Helper()
	c := NewSQLCompiler("")
	sql, params, err := c.Compile(o.Select("tasks", c.PrimaryKey))
	require.NoError(t, err)
	return sql, params
}

func TestCompile_Shapes(t *testing.T) {
	tests := []struct {
		name       string
		opts       queryir.Options
		wantSQL    string
		wantParams []any
	}{
		{
			name:    "bare",
			opts:    queryir.Options{},
			wantSQL: "SELECT * FROM tasks",
		},
		{
			name:       "pk",
			opts:       queryir.Options{}.WithPK(ir.IRString("4")),
			wantSQL:    "SELECT * FROM tasks WHERE id = ?",
			wantParams: []any{"4"},
		},
		{
			name: "conjunction",
			opts: queryir.Options{}.WithWhere(
				queryir.Eq("status", ir.IRString("todo")),
				queryir.Eq("priority", ir.IRInt(1)),
			),
			wantSQL:    "SELECT * FROM tasks WHERE status = ? AND priority = ?",
			wantParams: []any{"todo", int64(1)},
		},
		{
			name: "order limit offset",
			opts: queryir.Options{}.
				WithOrderBy(queryir.By("priority", queryir.Desc), queryir.By("title", queryir.Asc)).
				WithLimit(10).
				WithOffset(20),
			wantSQL:    "SELECT * FROM tasks ORDER BY priority DESC, title ASC LIMIT ? OFFSET ?",
			wantParams: []any{int64(10), int64(20)},
		},
		{
			name:       "offset without limit",
			opts:       queryir.Options{}.WithOffset(5),
			wantSQL:    "SELECT * FROM tasks LIMIT -1 OFFSET ?",
			wantParams: []any{int64(5)},
		},
		{
			name: "include",
			opts: queryir.Options{}.
				WithInclude("board").
				WithWhere(queryir.Eq("status", ir.IRBool(true))).
				WithOrderBy(queryir.By("id", queryir.Asc)),
			wantSQL: "SELECT tasks.* FROM tasks LEFT JOIN board ON tasks.board_id = board.id" +
				" WHERE tasks.status = ? ORDER BY tasks.id ASC",
			wantParams: []any{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := compileOpts(t, tt.opts)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	sql, params := compileOpts(t, queryir.Options{}.WithWhere(
		queryir.Eq("title", ir.IRString("'; DROP TABLE tasks; --")),
	))
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{"'; DROP TABLE tasks; --"}, params)
}

func TestCompile_RejectsBadIdentifiers(t *testing.T) {
	c := NewSQLCompiler("id")

	_, _, err := c.Compile(queryir.Select{From: "tasks; --"})
	require.Error(t, err)

	_, _, err = c.Compile(queryir.Options{}.
		WithWhere(queryir.Eq("a b", ir.IRInt(1))).
		Select("tasks", "id"))
	require.Error(t, err)

	_, _, err = c.Compile(queryir.Options{}.
		WithOrderBy(queryir.By("x", "up")).
		Select("tasks", "id"))
	require.Error(t, err)
}

func TestCompile_RejectsCompositeValues(t *testing.T) {
	c := NewSQLCompiler("id")
	_, _, err := c.Compile(queryir.Options{}.
		WithWhere(queryir.Eq("tags", ir.IRArray{ir.IRString("a")})).
		Select("tasks", "id"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IRArray")
}

func TestCompileMutation(t *testing.T) {
	c := NewSQLCompiler("id")

	tests := []struct {
		name       string
		m          queryir.Mutation
		wantSQL    string
		wantParams []any
	}{
		{
			name: "create with id",
			m: queryir.Mutation{
				Type:       queryir.Create,
				Collection: "tasks",
				ID:         ir.IRString("9"),
				Data:       ir.IRObject{"title": ir.IRString("Ship"), "priority": ir.IRInt(2)},
			},
			wantSQL:    "INSERT INTO tasks (id, priority, title) VALUES (?, ?, ?)",
			wantParams: []any{"9", int64(2), "Ship"},
		},
		{
			name: "update skips pk column",
			m: queryir.Mutation{
				Type:       queryir.Update,
				Collection: "tasks",
				ID:         ir.IRString("9"),
				Data:       ir.IRObject{"id": ir.IRString("9"), "status": ir.IRString("done"), "note": ir.IRNull{}},
			},
			wantSQL:    "UPDATE tasks SET note = ?, status = ? WHERE id = ?",
			wantParams: []any{nil, "done", "9"},
		},
		{
			name:       "delete",
			m:          queryir.Mutation{Type: queryir.Delete, Collection: "tasks", ID: ir.IRInt(3)},
			wantSQL:    "DELETE FROM tasks WHERE id = ?",
			wantParams: []any{int64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := c.CompileMutation(tt.m)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCompileMutation_Invalid(t *testing.T) {
	c := NewSQLCompiler("id")

	_, _, err := c.CompileMutation(queryir.Mutation{Type: queryir.Delete, Collection: "tasks"})
	require.Error(t, err)
	assert.True(t, queryir.IsValidationError(err))

	_, _, err = c.CompileMutation(queryir.Mutation{
		Type:       queryir.Update,
		Collection: "tasks",
		ID:         ir.IRString("1"),
		Data:       ir.IRObject{"id": ir.IRString("1")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changes no columns")
}

func TestCompileMutation_CompositeColumnsAsJSON(t *testing.T) {
	c := NewSQLCompiler("id")
	sql, params, err := c.CompileMutation(queryir.Mutation{
		Type:       queryir.Create,
		Collection: "tasks",
		Data: ir.IRObject{
			"id":   ir.IRString("1"),
			"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO tasks (id, tags) VALUES (?, ?)", sql)
	assert.Equal(t, []any{"1", `["a","b"]`}, params)
}

func TestCompileLookup(t *testing.T) {
	c := NewSQLCompiler("id")
	sql, params, err := c.CompileLookup("board", "id", []ir.IRValue{ir.IRString("b1"), ir.IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM board WHERE id IN (?, ?) ORDER BY id ASC", sql)
	assert.Equal(t, []any{"b1", int64(2)}, params)

	_, _, err = c.CompileLookup("board", "id", nil)
	require.Error(t, err)

	_, _, err = c.CompileLookup("board x", "id", []ir.IRValue{ir.IRInt(1)})
	require.Error(t, err)
}

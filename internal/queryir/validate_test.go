package queryir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/ir"
)

func TestOptionsValidate_Valid(t *testing.T) {
	o := Options{}.
		WithWhere(Eq("status", ir.IRString("todo")), Eq("done", ir.IRBool(false))).
		WithOrderBy(By("priority", Desc)).
		WithLimit(10).
		WithOffset(0).
		WithInclude("board")

	assert.NoError(t, o.Validate())
}

func TestOptionsValidate_CollectsAllIssues(t *testing.T) {
	o := Options{}.
		WithWhere(Eq("bad field", ir.IRString("x")), Eq("owner", ir.IRNull{})).
		WithOrderBy(By("priority", "sideways")).
		WithLimit(-1).
		WithOffset(-2).
		WithInclude("1board")

	err := o.Validate()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Issues, 6)
	assert.Contains(t, err.Error(), `where field "bad field"`)
	assert.Contains(t, err.Error(), `field "owner" compared to null`)
	assert.Contains(t, err.Error(), "limit -1 is negative")
}

func TestOptionsValidate_NonScalarPK(t *testing.T) {
	err := Options{}.WithPK(ir.IRArray{ir.IRInt(1)}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-scalar")
}

func TestValidIdentifier(t *testing.T) {
	for _, name := range []string{"tasks", "_x", "Task2", "board_id"} {
		assert.True(t, ValidIdentifier(name), name)
	}
	for _, name := range []string{"", "2x", "a-b", "a;drop table x", "a.b"} {
		assert.False(t, ValidIdentifier(name), name)
	}
}

func TestMutationValidate(t *testing.T) {
	tests := []struct {
		m       Mutation
		wantErr string
	}{
		{Mutation{Type: Create, Collection: "tasks", Data: ir.IRObject{"title": ir.IRString("x")}}, ""},
		{Mutation{Type: Create, Collection: "tasks"}, "create requires data"},
		{Mutation{Type: Update, Collection: "tasks", Data: ir.IRObject{"a": ir.IRInt(1)}}, "update requires an id"},
		{Mutation{Type: Update, Collection: "tasks", ID: ir.IRString("1")}, "update requires data"},
		{Mutation{Type: Delete, Collection: "tasks", ID: ir.IRString("1")}, ""},
		{Mutation{Type: Delete, Collection: "tasks"}, "delete requires an id"},
		{Mutation{Type: "upsert", Collection: "tasks"}, "unknown mutation type"},
		{Mutation{Type: Delete, Collection: "ta sks", ID: ir.IRInt(1)}, "collection"},
		{Mutation{Type: Create, Collection: "tasks", Data: ir.IRObject{"x y": ir.IRInt(1)}}, "data field"},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

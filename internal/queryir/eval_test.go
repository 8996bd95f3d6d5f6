package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/omnistate/internal/ir"
)

func task(id string, status string, priority int64) ir.IRObject {
	return ir.IRObject{
		"id":       ir.IRString(id),
		"status":   ir.IRString(status),
		"priority": ir.IRInt(priority),
	}
}

func ids(rows ir.IRArray) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r.(ir.IRObject)["id"].(ir.IRString))
	}
	return out
}

func fixture() ir.IRArray {
	return ir.IRArray{
		task("1", "todo", 2),
		task("2", "done", 1),
		task("3", "todo", 1),
		task("4", "todo", 3),
		task("5", "doing", 2),
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"no options", Options{}, []string{"1", "2", "3", "4", "5"}},
		{"where", Options{}.WithWhere(Eq("status", ir.IRString("todo"))), []string{"1", "3", "4"}},
		{"conjunction", Options{}.WithWhere(Eq("status", ir.IRString("todo")), Eq("priority", ir.IRInt(1))), []string{"3"}},
		{"type sensitive", Options{}.WithWhere(Eq("priority", ir.IRString("1"))), []string{}},
		{"missing field", Options{}.WithWhere(Eq("owner", ir.IRString("a"))), []string{}},
		{"order desc", Options{}.WithOrderBy(By("priority", Desc)), []string{"4", "1", "5", "2", "3"}},
		{
			"multi-key order",
			Options{}.WithOrderBy(By("priority", Asc), By("id", Desc)),
			[]string{"3", "2", "5", "1", "4"},
		},
		{"offset then limit", Options{}.WithOrderBy(By("id", Asc)).WithLimit(2).WithOffset(1), []string{"2", "3"}},
		{"offset past end", Options{}.WithOffset(10), []string{}},
		{"limit zero", Options{}.WithLimit(0), []string{}},
		{"pk", Options{}.WithWhere(Eq("status", ir.IRString("done"))).WithPK(ir.IRString("4")), []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Eval(fixture(), tt.opts, "id")))
		})
	}
}

func TestEval_StableForEqualKeys(t *testing.T) {
	got := Eval(fixture(), Options{}.WithOrderBy(By("status", Asc)), "id")
	assert.Equal(t, []string{"5", "2", "1", "3", "4"}, ids(got))
}

func TestEval_SkipsNonObjects(t *testing.T) {
	rows := ir.IRArray{ir.IRString("junk"), task("1", "todo", 1)}
	assert.Equal(t, []string{"1"}, ids(Eval(rows, Options{}, "id")))
}

func TestEval_DoesNotReorderInput(t *testing.T) {
	rows := fixture()
	Eval(rows, Options{}.WithOrderBy(By("priority", Desc)), "id")
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(rows))
}

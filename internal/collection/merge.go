package collection

import (
	"fmt"

	"github.com/roach88/omnistate/internal/ir"
	"github.com/roach88/omnistate/internal/state"
)

// Merge folds rows into the list at root[name] by primary key.
//
// A row whose key matches an existing entry is assigned over it in place,
// so the entry keeps its identity and any fields the row lacks. Other rows
// are appended, and repeats of a new key within rows fold into the row
// appended for it. A missing list is created. Merged entries are marked clean.
func Merge(root *state.View, name string, rows ir.IRArray, pk string) error {
	if pk == "" {
		pk = "id"
	}
	target := root.Child(name)
	if target == nil {
		if root.Peek(name) != nil {
			return fmt.Errorf("merge %s: %w: field holds a scalar", name, state.ErrWrongKind)
		}
		if err := root.Set(name, ir.IRArray{}); err != nil {
			return fmt.Errorf("merge %s: %w", name, err)
		}
		target = root.Child(name)
	}
	if _, ok := target.Node().(*state.List); !ok {
		return fmt.Errorf("merge %s: %w: not a list", name, state.ErrWrongKind)
	}

	index := make(map[string]*state.View, target.Len())
	for _, k := range target.Keys() {
		item := target.Child(k)
		if item == nil {
			continue
		}
		if id, ok := RowKey(item.Peek(pk)); ok {
			index[id] = item
		}
	}

	var added []any
	fresh := make(map[string]ir.IRObject)
	for i, r := range rows {
		row, ok := r.(ir.IRObject)
		if !ok {
			return fmt.Errorf("merge %s: row %d is %T, not an object", name, i, r)
		}
		id, ok := RowKey(row[pk])
		if !ok {
			added = append(added, row)
			continue
		}
		if existing, found := index[id]; found {
			if err := existing.Assign(row); err != nil {
				return fmt.Errorf("merge %s: row %s: %w", name, id, err)
			}
			existing.MarkClean()
			continue
		}
		if pending, found := fresh[id]; found {
			for k, v := range row {
				pending[k] = v
			}
			continue
		}
		pending := row.Clone()
		fresh[id] = pending
		added = append(added, pending)
	}

	if len(added) > 0 {
		if err := target.Append(added...); err != nil {
			return fmt.Errorf("merge %s: %w", name, err)
		}
	}
	target.MarkClean()
	return nil
}

// RowKey turns a primary key value into a map key. Missing, null and
// composite keys do not identify a row.
func RowKey(v any) (string, bool) {
	switch id := v.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
		b, err := ir.MarshalIRValue(id.(ir.IRValue))
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}

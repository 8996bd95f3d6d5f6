package queryir

import (
	"slices"

	"github.com/roach88/omnistate/internal/ir"
)

// Eval interprets o over rows the way a SQL backend would execute
// o.Select: pk selection (or the where conjunction), then a stable
// multi-key sort, then offset, then limit. Includes are left to the
// caller. Non-object rows are skipped. The returned slice shares row
// objects with the input.
func Eval(rows ir.IRArray, o Options, pk string) ir.IRArray {
	out := make(ir.IRArray, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(ir.IRObject)
		if !ok {
			continue
		}
		if Matches(row, o, pk) {
			out = append(out, row)
		}
	}

	if len(o.OrderBy) > 0 {
		slices.SortStableFunc(out, func(a, b ir.IRValue) int {
			return compareRows(a.(ir.IRObject), b.(ir.IRObject), o.OrderBy)
		})
	}

	if o.Offset != nil {
		n := min(*o.Offset, len(out))
		out = out[max(n, 0):]
	}
	if o.Limit != nil {
		n := min(*o.Limit, len(out))
		out = out[:max(n, 0)]
	}
	return out
}

// Matches reports whether row satisfies the filtering part of o.
func Matches(row ir.IRObject, o Options, pk string) bool {
	if o.PK != nil {
		return ir.Equal(fieldOf(row, pk), o.PK)
	}
	for _, c := range o.Where {
		if !ir.Equal(fieldOf(row, c.Field), c.Value) {
			return false
		}
	}
	return true
}

func fieldOf(row ir.IRObject, field string) ir.IRValue {
	v, ok := row[field]
	if !ok {
		return ir.IRNull{}
	}
	return v
}

func compareRows(a, b ir.IRObject, keys []Order) int {
	for _, k := range keys {
		c := ir.Compare(fieldOf(a, k.Field), fieldOf(b, k.Field))
		if k.Direction == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

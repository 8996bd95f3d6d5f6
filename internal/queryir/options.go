package queryir

import (
	"slices"

	"github.com/roach88/omnistate/internal/ir"
)

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Condition is one field = value constraint of a where clause.
type Condition struct {
	Field string
	Value ir.IRValue
}

// Order is one sort key.
type Order struct {
	Field     string
	Direction Direction
}

// Options is an immutable query description.
//
// Where and OrderBy keep first-seen order: re-specifying a field replaces
// its value in place, new fields are appended. Limit and Offset are nil
// when unset. PK is nil when no single-row selector was given.
type Options struct {
	Where   []Condition
	OrderBy []Order
	Limit   *int
	Offset  *int
	Include []string
	PK      ir.IRValue
}

// Eq is shorthand for a Condition.
func Eq(field string, value ir.IRValue) Condition {
	return Condition{Field: field, Value: value}
}

// By is shorthand for an Order.
func By(field string, dir Direction) Order {
	return Order{Field: field, Direction: dir}
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	out := Options{
		Where:   make([]Condition, len(o.Where)),
		OrderBy: slices.Clone(o.OrderBy),
		Include: slices.Clone(o.Include),
	}
	for i, c := range o.Where {
		out.Where[i] = Condition{Field: c.Field, Value: ir.Clone(c.Value)}
	}
	if o.Limit != nil {
		n := *o.Limit
		out.Limit = &n
	}
	if o.Offset != nil {
		n := *o.Offset
		out.Offset = &n
	}
	if o.PK != nil {
		out.PK = ir.Clone(o.PK)
	}
	return out
}

// WithWhere returns a copy of o with conds merged over the existing where
// clause.
func (o Options) WithWhere(conds ...Condition) Options {
	out := o.Clone()
	for _, c := range conds {
		c.Value = ir.Clone(c.Value)
		if i := slices.IndexFunc(out.Where, func(w Condition) bool { return w.Field == c.Field }); i >= 0 {
			out.Where[i] = c
			continue
		}
		out.Where = append(out.Where, c)
	}
	return out
}

// WithOrderBy returns a copy of o with keys merged over the existing order.
// A re-specified field keeps its priority and takes the new direction.
func (o Options) WithOrderBy(keys ...Order) Options {
	out := o.Clone()
	for _, k := range keys {
		if i := slices.IndexFunc(out.OrderBy, func(ob Order) bool { return ob.Field == k.Field }); i >= 0 {
			out.OrderBy[i] = k
			continue
		}
		out.OrderBy = append(out.OrderBy, k)
	}
	return out
}

// WithLimit returns a copy of o with the limit set to n.
func (o Options) WithLimit(n int) Options {
	out := o.Clone()
	out.Limit = &n
	return out
}

// WithOffset returns a copy of o with the offset set to n.
func (o Options) WithOffset(n int) Options {
	out := o.Clone()
	out.Offset = &n
	return out
}

// WithInclude returns a copy of o with relation appended. Duplicates are
// kept.
func (o Options) WithInclude(relation string) Options {
	out := o.Clone()
	out.Include = append(out.Include, relation)
	return out
}

// WithPK returns a copy of o selecting the single row whose primary key is
// pk.
func (o Options) WithPK(pk ir.IRValue) Options {
	out := o.Clone()
	out.PK = ir.Clone(pk)
	return out
}

// WhereValue returns the value constrained for field, if any.
func (o Options) WhereValue(field string) (ir.IRValue, bool) {
	for _, c := range o.Where {
		if c.Field == field {
			return c.Value, true
		}
	}
	return nil, false
}

// IR serializes o for cache keys and traces. Unset parts are omitted, so
// the empty Options serializes to an empty object. order_by is a list of
// [field, direction] pairs because key priority is significant.
func (o Options) IR() ir.IRObject {
	out := ir.IRObject{}
	if len(o.Where) > 0 {
		where := make(ir.IRObject, len(o.Where))
		for _, c := range o.Where {
			where[c.Field] = c.Value
		}
		out["where"] = where
	}
	if len(o.OrderBy) > 0 {
		orders := make(ir.IRArray, len(o.OrderBy))
		for i, k := range o.OrderBy {
			orders[i] = ir.IRArray{ir.IRString(k.Field), ir.IRString(k.Direction)}
		}
		out["order_by"] = orders
	}
	if o.Limit != nil {
		out["limit"] = ir.IRInt(*o.Limit)
	}
	if o.Offset != nil {
		out["offset"] = ir.IRInt(*o.Offset)
	}
	if len(o.Include) > 0 {
		include := make(ir.IRArray, len(o.Include))
		for i, rel := range o.Include {
			include[i] = ir.IRString(rel)
		}
		out["include"] = include
	}
	if o.PK != nil {
		out["pk"] = o.PK
	}
	return out
}

package queryir

import "github.com/roach88/omnistate/internal/ir"

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select is the relational form of an Options value.
//
// Semantics:
//
//	SELECT * FROM <from>
//	  [LEFT JOIN <rel> ON <from>.<rel>_id = <rel>.id ...]
//	  [WHERE <filter>]
//	  [ORDER BY <order>]
//	  [LIMIT <limit>] [OFFSET <offset>]
//
// Example:
//
//	Select{
//	  From:   "tasks",
//	  Filter: Equals{Field: "status", Value: ir.IRString("todo")},
//	  Order:  []Order{{Field: "priority", Direction: Desc}},
//	}
type Select struct {
	From   string
	Joins  []LeftJoin
	Filter Predicate // nil = no filter
	Order  []Order
	Limit  *int
	Offset *int
}

// LeftJoin pulls in a related table by foreign key:
// <from>.<LocalKey> = <Table>.<ForeignKey>.
type LeftJoin struct {
	Table      string
	LocalKey   string
	ForeignKey string
}

// Equals represents a field-equals-literal predicate.
//
// Semantics:
//
//	<field> = <value>
type Equals struct {
	Field string     // Field name in current query source
	Value ir.IRValue // Literal value (constrained to IRValue types)
}

func (Equals) predicateNode() {}

// And represents a conjunction of predicates. Empty Predicates is always
// true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Select lowers o into its relational form against table from. pk names the
// primary key column; when o.PK is set it replaces the where clause.
// Each included relation r becomes LEFT JOIN r ON from.r_id = r.id.
func (o Options) Select(from, pk string) Select {
	sel := Select{
		From:   from,
		Order:  o.OrderBy,
		Limit:  o.Limit,
		Offset: o.Offset,
	}
	for _, rel := range o.Include {
		sel.Joins = append(sel.Joins, LeftJoin{
			Table:      rel,
			LocalKey:   rel + "_id",
			ForeignKey: "id",
		})
	}

	switch {
	case o.PK != nil:
		sel.Filter = Equals{Field: pk, Value: o.PK}
	case len(o.Where) == 1:
		sel.Filter = Equals{Field: o.Where[0].Field, Value: o.Where[0].Value}
	case len(o.Where) > 1:
		and := And{Predicates: make([]Predicate, len(o.Where))}
		for i, c := range o.Where {
			and.Predicates[i] = Equals{Field: c.Field, Value: c.Value}
		}
		sel.Filter = and
	}
	return sel
}

// MutationType identifies a write.
type MutationType string

// Mutation types.
const (
	Create MutationType = "create"
	Update MutationType = "update"
	Delete MutationType = "delete"
)

// Mutation is the structured write descriptor handed to an adapter.
// ID is nil for creates that let the backend assign one; Data is nil for
// deletes.
type Mutation struct {
	Type       MutationType
	Collection string
	ID         ir.IRValue
	Data       ir.IRObject
}

// IR serializes m for traces and logs.
func (m Mutation) IR() ir.IRObject {
	out := ir.IRObject{
		"type":       ir.IRString(m.Type),
		"collection": ir.IRString(m.Collection),
	}
	if m.ID != nil {
		out["id"] = m.ID
	}
	if m.Data != nil {
		out["data"] = m.Data
	}
	return out
}

// Package queryir provides the abstract query description shared by the
// collection builder and the backend adapters.
//
// Options is the immutable set of constraints a builder accumulates:
//
//	where    conjunctive field = value conditions, in first-seen order
//	order_by multi-key sort, first key highest priority
//	limit    optional bound, applied after offset
//	offset   optional skip count, applied after ordering
//	include  relation names, appended in call order
//	pk       single-row selector that overrides where
//
// Every With* method returns a new Options; the receiver is never mutated.
//
// ARCHITECTURE:
//
// Options is the abstraction boundary between the builder and the
// backends:
//
//	[collection.Builder] → [Options] → Select → [querysql]   (SQLite)
//	                                 → Eval                  (in-memory)
//
// Select is the relational lowering of an Options value. It is what SQL
// backends compile; Eval interprets Options directly over a row set.
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern so that backends can
// switch over it exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case And:
//	}
//
// All literal values are ir.IRValue. There are no floats, and a null
// literal is rejected by Validate because SQL "= NULL" never matches.
package queryir

// Package collection implements the lazy, immutable query builder.
//
// A Builder describes a request against a named collection without running
// it. Chaining calls return new builders; Rows is the dereference that
// invokes the resolver:
//
//	todo := tasks.Where(queryir.Eq("status", ir.IRString("todo"))).Limit(20)
//	r := todo.Rows()          // Suspend(handle) until the backend answers
//	rows, err := state.Await(ctx, todo.Rows)
//
// Resolution cache. Every builder sharing a Cache shares resolutions keyed
// by (collection, options). A key moves UNSEEN → PENDING → RESOLVED; while
// PENDING every dereference gets the same handle and the resolver runs at
// most once. On completion the rows are merged into the cache's root state
// under the collection's name, by primary key, before any waiter wakes.
//
// A failed resolution is evicted so the next dereference retries. With
// WithErrorTTL the failure is kept and replayed until the TTL elapses.
// Invalidate and Evict drop entries explicitly.
package collection

// Package state implements the reactive state kernel.
//
// A state tree is made of two node kinds, *Object and *List, whose leaves
// are ir scalars. Code never touches nodes directly; it reads and writes
// through a *View, the interception layer over one node:
//
//	root := state.Define(ir.IRObject{"tasks": ir.IRArray{}})
//	root.Changes().Subscribe(func(notify.Void) { rerender() })
//	tasks := root.Get("tasks")         // Ready(*View over the list)
//	_ = root.Set("filter", "done")     // notifies root listeners
//
// # Interception policy
//
// Read (View.Get):
//  1. The pending predicate, when configured, runs first. A non-nil handle
//     aborts the read and comes back as Suspend(handle).
//  2. MetaKey returns a fresh MetaState snapshot.
//  3. ChangesKey returns the view's notification bus.
//  4. Otherwise the field value: nested nodes come back as child views,
//     scalars as-is, missing fields as nil.
//
// Write (View.Set and friends): perform the assignment, then notify the
// view's own bus, then walk up the parent chain notifying each ancestor bus,
// and finally call the global OnChange callback. Sibling subtrees are not
// notified. A rejected write (frozen node, bad index) notifies nobody.
//
// # Identity
//
// Reading the same nested node twice through the same parent view yields
// the same *View. Each view caches the wrappers of the nodes read through
// it and drops an entry once a write removes that node from the view, so
// the cache never keeps a detached node alive. Nodes themselves carry no
// wrapper references.
//
// # Suspension
//
// Reads that cannot complete return a Result holding a *Pending handle
// instead of a value. Await is the supervisory loop: it waits for the
// handle to settle and retries the read.
//
// Concurrency: each tree serializes node access with one mutex. Listeners
// run after the mutex is released, so they may read and write the tree.
// The kernel assumes a single logical writer per tree.
package state

// Package live keeps collection lists in a state tree current with
// adapter subscriptions.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Adapter subscriptions deliver row snapshots on their own goroutines.
// Each snapshot is stamped with a logical seq and enqueued; Engine.Run
// dequeues them one at a time and merges the rows into the state tree.
// Only the Run goroutine merges, so snapshots of one subscription are
// applied in the order they were delivered.
//
// Update Processing Flow:
//  1. Watch subscribes a builder's query through its adapter
//  2. Every snapshot becomes an Update stamped by Clock.Next()
//  3. Run dequeues the Update and drops it if the watch is gone
//  4. The rows are merged into root[collection] by primary key
//  5. The collection's cached resolutions are invalidated
//
// Merging only patches and appends. Rows that leave a query's result are
// not removed from state.
package live

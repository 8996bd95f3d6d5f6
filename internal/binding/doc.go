// Package binding connects collection builders to external data sources.
//
// An Adapter turns a collection name and queryir.Options into an opaque
// Descriptor, reads rows for a descriptor, applies mutations and streams
// row snapshots. Bind wraps an adapter as a collection.Builder whose
// resolver reads through the adapter and whose writes go to it.
//
// Three adapters ship with the module:
//
//	binding/memory   in-process tables evaluated with queryir.Eval
//	binding/sqlite   SQLite tables through internal/store and querysql
//	binding/graphql  GraphQL documents run by a caller-supplied Executor
package binding

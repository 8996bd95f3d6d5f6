// Package compiler turns CUE store schemas into Go values.
//
// A schema declares the initial state tree and the collections bound to
// adapters:
//
//	store: {
//		state: {
//			filter: "all"
//		}
//		collection: tasks: {
//			primary_key: "id"          // optional, default "id"
//			fields: {
//				id:       string
//				title:    string
//				priority: int
//				board_id: string
//				tags:     [...string]
//			}
//			seed: [{id: "1", title: "Setup Repo", priority: 1}]
//		}
//	}
//
// Fields describe shape only. Rows are never validated against them; the
// field kinds choose column types when a collection is backed by SQLite.
// Floats are rejected everywhere, as the ir value model has no floats.
package compiler

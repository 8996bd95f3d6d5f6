// Package store provides the SQLite storage behind the sqlite adapter.
//
// Collection tables are created from TableSpec values. Every mutation
// applied through Apply runs in a transaction together with an append to
// the omnistate_changes log, so a change's seq is visible exactly when its
// rows are.
//
// # Value mapping
//
//	TEXT     ir.IRString
//	INTEGER  ir.IRInt
//	BOOLEAN  ir.IRBool (stored as 0/1)
//	JSON     ir.IRArray / ir.IRObject (stored as sorted-key JSON text)
//	NULL     ir.IRNull
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

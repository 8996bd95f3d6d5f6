// Package ir provides the canonical value types shared by the state kernel,
// the query builder and the backend adapters.
//
// This package contains value definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Rows are IRObject; row sets are IRArray of IRObject
//   - Resolution cache keys are SHA-256 over RFC 8785 canonical JSON
//   - All JSON tags use snake_case
package ir

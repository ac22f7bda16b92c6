// Package store provides the persistent provenance store: an append-only
// accumulation of every inference delta, shared by all engine instances.
//
// Backends:
//   - Store over SQLite (Open), the default, one file per deployment
//   - Store over Postgres (OpenPostgres), for engines in several processes
//   - Memory, for tests and throwaway runs
//
// # Layout
//
//   - deltas: one row per appended delta, seq is the store-wide append order
//   - delta_facts: the delta's triples in N-Triples term syntax, in the
//     delta's canonical sorted order
//
// Rows are inserted, never updated or deleted. Delta IDs are content
// addressed (internal/ir/hash.go), which makes re-appending the same delta a
// no-op.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All reads are ordered by seq so dumps are deterministic.
package store

// Package store provides SQLite-backed durable storage for engine state
// snapshots.
//
// The store is an append-only log of committed state changes. Every
// ChangeState on a persisting engine writes one row:
//   - engine_id, seq: identity of the change (UNIQUE)
//   - state: the full committed state as canonical JSON
//   - declared_keys: the update's declared key set as canonical JSON
//   - state_hash: content hash of state (see ir.StateHash)
//
// # Critical Patterns
//
// Idempotent writes
//   - UNIQUE(engine_id, seq) with ON CONFLICT DO NOTHING
//   - Writing the same snapshot twice is harmless
//
// Logical time
//   - All ordering uses seq INTEGER from the engine clock, never timestamps
//   - History reads are ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

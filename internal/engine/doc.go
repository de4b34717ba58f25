// Package engine implements the Overfall state container and its
// dependency-indexed event bus.
//
// An Engine owns one current state (an ir.IRObject), a single checkpoint
// slot and a registry of named events. Each event carries an ordered list
// of subscribers and a set of state keys it depends on.
//
// ARCHITECTURE:
//
// Mutation Flow:
//  1. ChangeState receives a Patch or a Transform (sealed Updater union)
//  2. The updater is validated and applied to a deep copy of current state
//  3. The new state is committed and stamped with the next Clock seq
//  4. propagate() prunes dependencies on removed keys (previous keys not
//     declared by the update, even when a patch left them in state),
//     rebuilds the key index and notifies every event whose dependencies intersect the
//     declared keys, passing a projection limited to those dependencies
//  5. If a Persister is configured, the committed snapshot is handed to it
//
// Validation happens before step 3: ChangeState either commits fully or
// returns an error with state untouched.
//
// Everything runs synchronously on the caller's goroutine. An Engine is NOT
// safe for concurrent use.
//
// CRITICAL PATTERNS:
//
// Isolation:
// State never leaves the engine by reference. State(), Get(), transform
// inputs, projections, publish arguments, checkpoints and snapshots are all
// deep copies (ir.Clone).
//
// Deterministic Dispatch:
// Events fire in registration order; subscribers of one event fire in
// subscription order. The dispatch list is built before any callback runs,
// so callbacks may subscribe, unsubscribe, delete events or call
// ChangeState without corrupting iteration. Nesting depth of ChangeState is
// bounded by WithMaxDepth.
//
// Presence, Not Equality:
// Only key presence is a change signal. Writing an identical value still
// fires every event depending on that key.
package engine

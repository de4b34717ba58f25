package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/overfall/internal/ir"
)

// Persister receives every committed state change when persistence is
// enabled. Implemented by store.Store.
type Persister interface {
	PersistState(ctx context.Context, snap ir.Snapshot) error
}

// Engine is the state container and dependency-indexed event bus.
//
// The engine exclusively owns the current state, the checkpoint slot and
// the event registry. Subscriber callbacks are referenced, never copied.
//
// INVARIANTS:
//   - index holds exactly the keys of state after every committed mutation
//   - state is never handed out by reference
//   - every event in the registry has a unique name
type Engine struct {
	id         string
	state      ir.IRObject
	index      map[string]struct{}
	checkpoint ir.IRObject // nil when the slot is empty
	events     *registry
	clock      *Clock
	nextSubID  SubscriptionID // separate from clock: only commits advance seq
	depth      depthGuard
	persister  Persister
	logger     *slog.Logger
	idGen      IDGenerator
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithID sets a fixed engine id. Takes precedence over WithIDGenerator.
func WithID(id string) EngineOption {
	return func(e *Engine) {
		e.id = id
	}
}

// WithIDGenerator sets the generator used to create the engine id.
//
// Default: UUIDv7Generator
func WithIDGenerator(gen IDGenerator) EngineOption {
	return func(e *Engine) {
		e.idGen = gen
	}
}

// WithClock sets the logical clock stamping committed changes.
// Use NewClockAt to resume numbering from a persisted snapshot.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPersister enables persistence: p receives a snapshot after every
// committed ChangeState. SetState and Restore are not persisted.
func WithPersister(p Persister) EngineOption {
	return func(e *Engine) {
		e.persister = p
	}
}

// WithMaxDepth sets the maximum nesting of ChangeState calls.
//
// Default: 32 (DefaultMaxDepth)
// Use WithMaxDepth(1) to forbid subscribers from changing state.
func WithMaxDepth(maxDepth int) EngineOption {
	return func(e *Engine) {
		e.depth = newDepthGuard(maxDepth)
	}
}

// New creates an Engine holding a deep copy of initial.
// A nil initial state is an empty state.
func New(initial ir.IRObject, opts ...EngineOption) *Engine {
	e := &Engine{
		events: newRegistry(),
		clock:  NewClock(),
		depth:  newDepthGuard(DefaultMaxDepth),
		logger: slog.Default(),
		idGen:  UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.id == "" {
		e.id = e.idGen.Generate()
	}
	e.state = initial.Clone()
	e.rebuildIndex()

	return e
}

// ID returns the engine id used to key persisted snapshots.
func (e *Engine) ID() string {
	return e.id
}

// Seq returns the seq of the last committed change (0 if none).
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}

// State returns a deep copy of the current state.
// Mutating the result never affects the engine.
func (e *Engine) State() ir.IRObject {
	return e.state.Clone()
}

// Get returns a deep copy of one state value.
func (e *Engine) Get(key string) (ir.IRValue, bool) {
	v, ok := e.state[key]
	if !ok {
		return nil, false
	}
	return ir.Clone(v), true
}

// Keys returns the key index in canonical order.
func (e *Engine) Keys() []string {
	keys := make([]string, 0, len(e.index))
	for k := range e.index {
		keys = append(keys, k)
	}
	ir.SortKeys(keys)
	return keys
}

// SetState replaces the current state with a deep copy of state.
//
// No dependencies are pruned and no events fire. Used for bulk
// reinitialization, e.g. after loading a persisted snapshot.
func (e *Engine) SetState(state ir.IRObject) {
	e.state = state.Clone()
	e.rebuildIndex()
	e.logger.Debug("state replaced", "engine", e.id, "keys", len(e.state))
}

// ChangeState is the primary mutation entry point.
//
// u is either a Patch (shallow merge) or a Transform (full next state).
// Returns an INVALID_ARGUMENT error for a nil updater, a nil Transform, or a
// Transform returning nil, and a DEPTH_EXCEEDED error when called too deeply
// from subscribers. In both cases state is untouched.
//
// On success the new state is committed, subscribers of affected events
// have run, and the persister (if any) has been invoked.
func (e *Engine) ChangeState(u Updater) error {
	if u == nil {
		return NewInvalidArgumentError("updater must be a Patch or a Transform")
	}

	if err := e.depth.enter(); err != nil {
		e.logger.Error("nested state change rejected",
			"engine", e.id,
			"depth", e.depth.Current(),
			"max_depth", e.depth.maxDepth,
		)
		return err
	}
	defer e.depth.leave()

	next, declared, err := u.apply(e.state)
	if err != nil {
		return err
	}

	prev := e.index
	e.state = next
	seq := e.clock.Next()

	e.logger.Debug("state committed",
		"engine", e.id,
		"seq", seq,
		"declared", declared,
		"depth", e.depth.Current(),
	)

	// Snapshot before notifying: subscribers may commit nested changes.
	snap, snapErr := e.snapshot(seq, declared)

	e.propagate(prev, declared, seq)

	if snapErr != nil {
		e.logger.Error("persist state: snapshot failed", "engine", e.id, "seq", seq, "error", snapErr)
	} else if snap != nil {
		e.persist(*snap)
	}

	return nil
}

// Merge applies patch as a Patch.
func (e *Engine) Merge(patch ir.IRObject) error {
	return e.ChangeState(Patch(patch))
}

// Update applies fn as a Transform.
func (e *Engine) Update(fn func(ir.IRObject) ir.IRObject) error {
	return e.ChangeState(Transform(fn))
}

// rebuildIndex makes the key index equal the key set of current state.
func (e *Engine) rebuildIndex() {
	index := make(map[string]struct{}, len(e.state))
	for k := range e.state {
		index[k] = struct{}{}
	}
	e.index = index
}

// snapshot captures the committed state for the persister.
// Returns nil when persistence is disabled.
func (e *Engine) snapshot(seq int64, declared []string) (*ir.Snapshot, error) {
	if e.persister == nil {
		return nil, nil
	}

	hash, err := ir.StateHash(e.state)
	if err != nil {
		return nil, err
	}

	return &ir.Snapshot{
		EngineID:      e.id,
		Seq:           seq,
		State:         e.state.Clone(),
		DeclaredKeys:  append([]string{}, declared...),
		StateHash:     hash,
		EngineVersion: ir.EngineVersion,
	}, nil
}

// persist hands a committed snapshot to the persister.
//
// Persistence failures are logged and do not undo the commit: subscribers
// have already observed the new state.
func (e *Engine) persist(snap ir.Snapshot) {
	if err := e.persister.PersistState(context.Background(), snap); err != nil {
		e.logger.Error("persist state failed", "engine", e.id, "seq", snap.Seq, "error", err)
		return
	}
	e.logger.Debug("state persisted", "engine", e.id, "seq", snap.Seq, "hash", snap.StateHash)
}

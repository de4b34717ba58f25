package engine

// Save copies the current state into the checkpoint slot, overwriting any
// earlier checkpoint.
func (e *Engine) Save() {
	e.checkpoint = e.state.Clone()
	e.logger.Debug("checkpoint saved", "engine", e.id, "keys", len(e.checkpoint))
}

// Restore copies the checkpoint back into current state and empties the
// slot. Reports whether a checkpoint was restored; with an empty slot it is
// a no-op.
//
// Restore bypasses propagation: no dependencies are pruned and no events
// fire.
func (e *Engine) Restore() bool {
	if e.checkpoint == nil {
		return false
	}
	e.state = e.checkpoint
	e.checkpoint = nil
	e.rebuildIndex()
	e.logger.Debug("checkpoint restored", "engine", e.id, "keys", len(e.state))
	return true
}

// HasCheckpoint reports whether the checkpoint slot is occupied.
func (e *Engine) HasCheckpoint() bool {
	return e.checkpoint != nil
}

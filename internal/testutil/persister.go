package testutil

import (
	"context"
	"sync"

	"github.com/roach88/overfall/internal/ir"
)

// MemoryPersister keeps persisted snapshots in memory.
//
// Set Err to make every PersistState call fail, e.g. to check that
// persistence failures never undo a committed change.
//
// Implements engine.Persister.
type MemoryPersister struct {
	mu        sync.Mutex
	snapshots []ir.Snapshot
	Err       error
}

// NewMemoryPersister creates an empty persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// PersistState records snap, or returns Err if set.
func (p *MemoryPersister) PersistState(_ context.Context, snap ir.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.snapshots = append(p.snapshots, snap)
	return nil
}

// Snapshots returns the recorded snapshots in write order.
func (p *MemoryPersister) Snapshots() []ir.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ir.Snapshot{}, p.snapshots...)
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/overfall/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSnapshot creates a snapshot with a correct state hash.
func createTestSnapshot(engineID string, seq int64, state ir.IRObject, declared ...string) ir.Snapshot {
	if declared == nil {
		declared = state.SortedKeys()
	}
	return ir.Snapshot{
		EngineID:      engineID,
		Seq:           seq,
		State:         state,
		DeclaredKeys:  declared,
		StateHash:     ir.MustStateHash(state),
		EngineVersion: ir.EngineVersion,
	}
}

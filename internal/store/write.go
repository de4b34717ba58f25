package store

import (
	"context"
	"fmt"

	"github.com/roach88/overfall/internal/ir"
)

// PersistState inserts a snapshot into the store.
// Uses ON CONFLICT(engine_id, seq) DO NOTHING for idempotency - writing the
// same (engine, seq) twice is silently ignored. Other constraint violations
// (e.g., seq <= 0) still return errors.
//
// State and declared keys are serialized to canonical JSON per RFC 8785.
// A snapshot without a StateHash gets one computed here.
func (s *Store) PersistState(ctx context.Context, snap ir.Snapshot) error {
	stateJSON, err := marshalState(snap.State)
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	keysJSON, err := marshalKeys(snap.DeclaredKeys)
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	hash := snap.StateHash
	if hash == "" {
		if hash, err = ir.StateHash(snap.State); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
	}

	engineVersion := snap.EngineVersion
	if engineVersion == "" {
		engineVersion = ir.EngineVersion
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots
		(engine_id, seq, state, declared_keys, state_hash, engine_version, snapshot_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(engine_id, seq) DO NOTHING
	`,
		snap.EngineID,
		snap.Seq,
		stateJSON,
		keysJSON,
		hash,
		engineVersion,
		ir.SnapshotVersion,
	)
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

// DeleteHistory removes every snapshot of one engine.
// Returns the number of rows removed.
func (s *Store) DeleteHistory(ctx context.Context, engineID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE engine_id = ?`, engineID)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	return n, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/overfall/internal/ir"
)

// EngineSummary describes the persisted history of one engine.
type EngineSummary struct {
	EngineID  string `json:"engine_id"`
	Snapshots int    `json:"snapshots"`
	FirstSeq  int64  `json:"first_seq"`
	LastSeq   int64  `json:"last_seq"`
}

const snapshotColumns = `engine_id, seq, state, declared_keys, state_hash, engine_version`

// LatestSnapshot returns the highest-seq snapshot of an engine.
// Returns sql.ErrNoRows if the engine has no history.
func (s *Store) LatestSnapshot(ctx context.Context, engineID string) (ir.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE engine_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, engineID)

	return scanSnapshot(row)
}

// ReadSnapshot retrieves one snapshot by engine and seq.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSnapshot(ctx context.Context, engineID string, seq int64) (ir.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE engine_id = ? AND seq = ?
	`, engineID, seq)

	return scanSnapshot(row)
}

// ReadHistory returns every snapshot of an engine ordered by seq ASC.
//
// Returns an empty slice (not nil) if the engine has no history.
func (s *Store) ReadHistory(ctx context.Context, engineID string) ([]ir.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE engine_id = ?
		ORDER BY seq ASC
	`, engineID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectSnapshots(rows)
}

// FindByHash returns every snapshot whose state hash equals hash, ordered
// by engine id then seq. Identical states share a hash across engines.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]ir.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE state_hash = ?
		ORDER BY engine_id COLLATE BINARY ASC, seq ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("query by hash: %w", err)
	}
	return collectSnapshots(rows)
}

// ListEngines summarizes every engine with persisted history, ordered by
// engine id.
func (s *Store) ListEngines(ctx context.Context) ([]EngineSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT engine_id, COUNT(*), MIN(seq), MAX(seq)
		FROM snapshots
		GROUP BY engine_id
		ORDER BY engine_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	defer rows.Close()

	summaries := []EngineSummary{}
	for rows.Next() {
		var sum EngineSummary
		if err := rows.Scan(&sum.EngineID, &sum.Snapshots, &sum.FirstSeq, &sum.LastSeq); err != nil {
			return nil, fmt.Errorf("scan engine summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engines: %w", err)
	}

	return summaries, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collectSnapshots(rows *sql.Rows) ([]ir.Snapshot, error) {
	defer rows.Close()

	snaps := []ir.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, nil
}

// scanSnapshot reads one snapshot row. sql.ErrNoRows is returned unwrapped
// so callers can compare against it directly.
func scanSnapshot(row rowScanner) (ir.Snapshot, error) {
	var snap ir.Snapshot
	var stateJSON, keysJSON string

	err := row.Scan(
		&snap.EngineID,
		&snap.Seq,
		&stateJSON,
		&keysJSON,
		&snap.StateHash,
		&snap.EngineVersion,
	)
	if err == sql.ErrNoRows {
		return ir.Snapshot{}, err
	}
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	if snap.State, err = unmarshalState(stateJSON); err != nil {
		return ir.Snapshot{}, fmt.Errorf("scan snapshot %s/%d: %w", snap.EngineID, snap.Seq, err)
	}
	if snap.DeclaredKeys, err = unmarshalKeys(keysJSON); err != nil {
		return ir.Snapshot{}, fmt.Errorf("scan snapshot %s/%d: %w", snap.EngineID, snap.Seq, err)
	}

	return snap, nil
}

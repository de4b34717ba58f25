package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/overfall/internal/engine"
	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	EngineID string // optional - specific engine only
	Seq      int64  // optional - restore this seq instead of the latest (requires EngineID)
}

// EngineReplay holds the replay result for a single engine.
type EngineReplay struct {
	EngineID   string      `json:"engine_id"`
	Seq        int64       `json:"seq"`
	Snapshots  int         `json:"snapshots"`
	State      ir.IRObject `json:"state"`
	StateHash  string      `json:"state_hash"`
	Gaps       []int64     `json:"gaps"`
	Mismatches []int64     `json:"mismatches"`
	Restored   bool        `json:"restored"` // restored engine hashes to the stored hash
	Valid      bool        `json:"valid"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Engines  []EngineReplay `json:"engines"`
	Total    int            `json:"total"`
	AllValid bool           `json:"all_valid"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Restore the latest persisted state and verify history",
		Long: `Load the latest persisted snapshot of each engine into a fresh engine
and print its state. With --seq, the snapshot at that seq is restored
instead of the latest one.

The engine's history is verified along the way: seqs must be contiguous,
every stored state hash must match its state, and the restored engine
must hash to the same value as the snapshot it was loaded from.

Exit codes:
  0 - All histories verified
  1 - Verification failed (gaps, hash mismatches)
  2 - Command error (database not found, unknown engine, etc.)

Examples:
  overfall replay --db ./overfall.db
  overfall replay --db ./overfall.db --engine movies-engine
  overfall replay --db ./overfall.db --engine movies-engine --seq 3
  overfall replay --db ./overfall.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.EngineID, "engine", "", "replay specific engine only")
	cmd.Flags().Int64Var(&opts.Seq, "seq", 0, "restore the snapshot at this seq (requires --engine)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Seq < 0 || (opts.Seq > 0 && opts.EngineID == "") {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "--seq requires --engine and a positive seq", nil)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	engineIDs, err := selectEngines(ctx, st, opts.EngineID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list engines", err)
	}

	result := ReplayResult{
		Engines:  make([]EngineReplay, 0, len(engineIDs)),
		Total:    len(engineIDs),
		AllValid: true,
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	for _, id := range engineIDs {
		replay, err := replayEngine(ctx, st, id, opts.Seq, logger)
		if errors.Is(err, sql.ErrNoRows) {
			msg := fmt.Sprintf("no persisted history for engine %s", id)
			if opts.Seq > 0 {
				msg = fmt.Sprintf("no snapshot at seq %d for engine %s", opts.Seq, id)
			}
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, msg, nil)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore,
				fmt.Sprintf("failed to replay engine %s", id), err)
		}

		result.Engines = append(result.Engines, replay)
		if !replay.Valid {
			result.AllValid = false
		}
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.AllValid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeFailed, Message: "history verification failed"}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllValid {
		return NewExitError(ExitFailure, "history verification failed")
	}
	return nil
}

// openExistingStore opens a database that must already exist.
// store.Open would otherwise create an empty file.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %s", path)
	}
	return store.Open(path)
}

// selectEngines returns the requested engine id or every engine with
// persisted history.
func selectEngines(ctx context.Context, st *store.Store, engineID string) ([]string, error) {
	if engineID != "" {
		return []string{engineID}, nil
	}

	summaries, err := st.ListEngines(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		ids = append(ids, sum.EngineID)
	}
	return ids, nil
}

// replayEngine verifies an engine's history and restores a snapshot into
// a fresh engine that continues the snapshot's numbering. seq 0 selects the
// latest snapshot.
func replayEngine(ctx context.Context, st *store.Store, engineID string, seq int64, logger *slog.Logger) (EngineReplay, error) {
	var (
		snap ir.Snapshot
		err  error
	)
	if seq > 0 {
		snap, err = st.ReadSnapshot(ctx, engineID, seq)
	} else {
		snap, err = st.LatestSnapshot(ctx, engineID)
	}
	if err != nil {
		return EngineReplay{}, err
	}

	report, err := st.VerifyHistory(ctx, engineID)
	if err != nil {
		return EngineReplay{}, err
	}

	eng := engine.New(snap.State,
		engine.WithID(engineID),
		engine.WithClock(engine.NewClockAt(snap.Seq)),
		engine.WithLogger(logger),
	)

	hash, err := ir.StateHash(eng.State())
	if err != nil {
		return EngineReplay{}, fmt.Errorf("hash restored state: %w", err)
	}
	restored := hash == snap.StateHash
	logger.Debug("engine restored", "engine", engineID, "seq", eng.Seq(), "hash", hash, "match", restored)

	return EngineReplay{
		EngineID:   engineID,
		Seq:        eng.Seq(),
		Snapshots:  report.Snapshots,
		State:      eng.State(),
		StateHash:  hash,
		Gaps:       report.Gaps,
		Mismatches: report.Mismatches,
		Restored:   restored,
		Valid:      report.Valid && restored,
	}, nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, result ReplayResult) {
	w := f.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No engines found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d engine(s)\n", result.Total)
	fmt.Fprintln(w)

	for _, e := range result.Engines {
		status := "✓"
		if !e.Valid {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Engine: %s (seq %d, %d snapshot(s))\n", status, e.EngineID, e.Seq, e.Snapshots)
		fmt.Fprintf(w, "  State: %s\n", canonicalString(e.State))
		if f.Verbose {
			fmt.Fprintf(w, "  Hash: %s\n", e.StateHash)
		}
		if len(e.Gaps) > 0 {
			fmt.Fprintf(w, "  Missing seqs: %v\n", e.Gaps)
		}
		if len(e.Mismatches) > 0 {
			fmt.Fprintf(w, "  Hash mismatches at seqs: %v\n", e.Mismatches)
		}
		if !e.Restored {
			fmt.Fprintln(w, "  Warning: restored state does not match the stored hash!")
		}
		fmt.Fprintln(w)
	}

	if result.AllValid {
		fmt.Fprintln(w, "✓ All histories verified")
		return
	}
	fmt.Fprintln(w, "✗ History verification failed")
}

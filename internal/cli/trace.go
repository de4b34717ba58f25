package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	EngineID string
	Key      string // optional - only commits that declared this key
	Hash     string // optional - find snapshots by state hash instead
}

// TraceEntry is one persisted commit in the timeline.
type TraceEntry struct {
	EngineID     string      `json:"engine_id"`
	Seq          int64       `json:"seq"`
	DeclaredKeys []string    `json:"declared_keys"`
	StateHash    string      `json:"state_hash"`
	State        ir.IRObject `json:"state"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	EngineID string                `json:"engine_id,omitempty"`
	Hash     string                `json:"hash,omitempty"`
	Timeline []TraceEntry          `json:"timeline"`
	Engines  []store.EngineSummary `json:"engines,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List the persisted snapshot history",
		Long: `List the snapshots persisted for an engine, oldest first.

Each entry shows the commit's seq, the keys the change declared and the
resulting state hash (the full state with --verbose). Without --engine
the engines with persisted history are listed instead. With --hash the
snapshots of every engine whose state has that hash are listed.

Examples:
  overfall trace --db ./overfall.db
  overfall trace --db ./overfall.db --engine movies-engine
  overfall trace --db ./overfall.db --engine movies-engine --key movies
  overfall trace --db ./overfall.db --hash <state-hash> --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.EngineID, "engine", "", "engine id to trace")
	cmd.Flags().StringVar(&opts.Key, "key", "", "only commits that declared this key")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "find snapshots with this state hash")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	result, err := buildTrace(ctx, st, opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read history", err)
	}

	if formatter.JSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	result := TraceResult{EngineID: opts.EngineID, Hash: opts.Hash}

	var snaps []ir.Snapshot
	var err error
	switch {
	case opts.Hash != "":
		snaps, err = st.FindByHash(ctx, opts.Hash)
	case opts.EngineID != "":
		snaps, err = st.ReadHistory(ctx, opts.EngineID)
	default:
		result.Timeline = []TraceEntry{}
		result.Engines, err = st.ListEngines(ctx)
		return result, err
	}
	if err != nil {
		return result, err
	}

	result.Timeline = buildTimeline(snaps, opts.Key)
	return result, nil
}

// buildTimeline converts snapshots to timeline entries. When keyFilter is
// set, only commits that declared that key are kept.
func buildTimeline(snaps []ir.Snapshot, keyFilter string) []TraceEntry {
	timeline := make([]TraceEntry, 0, len(snaps))
	for _, snap := range snaps {
		if keyFilter != "" && !slices.Contains(snap.DeclaredKeys, keyFilter) {
			continue
		}
		timeline = append(timeline, TraceEntry{
			EngineID:     snap.EngineID,
			Seq:          snap.Seq,
			DeclaredKeys: snap.DeclaredKeys,
			StateHash:    snap.StateHash,
			State:        snap.State,
		})
	}
	return timeline
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	if result.EngineID == "" && result.Hash == "" {
		fmt.Fprintln(w, "=== Engines ===")
		if len(result.Engines) == 0 {
			fmt.Fprintln(w, "  (no persisted history)")
			return
		}
		for _, sum := range result.Engines {
			fmt.Fprintf(w, "  %s: %d snapshot(s), seq %d..%d\n", sum.EngineID, sum.Snapshots, sum.FirstSeq, sum.LastSeq)
		}
		return
	}

	if result.Hash != "" {
		fmt.Fprintf(w, "Snapshots with hash: %s\n", truncateID(result.Hash))
	} else {
		fmt.Fprintf(w, "Trace for Engine: %s\n", result.EngineID)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no snapshots)")
		return
	}
	for _, entry := range result.Timeline {
		prefix := fmt.Sprintf("  [%d]", entry.Seq)
		if result.Hash != "" {
			prefix = fmt.Sprintf("  %s [%d]", entry.EngineID, entry.Seq)
		}
		fmt.Fprintf(w, "%s keys=%v hash=%s\n", prefix, entry.DeclaredKeys, truncateID(entry.StateHash))
		if verbose {
			fmt.Fprintf(w, "       State: %s\n", canonicalString(entry.State))
		}
	}
}

// truncateID truncates a long id or hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

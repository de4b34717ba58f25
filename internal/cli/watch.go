package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/overfall/internal/engine"
	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/loader"
	"github.com/roach88/overfall/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string   // optional - persist every reload
	EngineID string   // optional - fixed engine id
	Reset    bool     // delete the engine's persisted history first (requires Database and EngineID)
	CUEPath  string   // optional - CUE path selecting the state value
	On       []string // event=key,key subscriptions

	// ready, if set, is closed once the watcher is installed (for testing).
	ready chan struct{}
}

// Binding is one --on subscription.
type Binding struct {
	Event string
	Keys  []string
}

// NotificationLine is the JSON form of one printed notification.
type NotificationLine struct {
	Event string      `json:"event"`
	Seq   int64       `json:"seq"`
	Data  ir.IRObject `json:"data"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <state-file>",
		Short: "Re-apply a state document on every write",
		Long: `Load a state document into an engine, then re-apply it as a transform
every time the file is written. Each --on flag subscribes an event to a
set of keys; every notification is printed as it fires.

Keys that disappear from the document are removed from state, and events
left without dependencies are deleted.

With --db and --engine, numbering continues after the engine's latest
persisted snapshot. --reset deletes that history before starting.

Examples:
  overfall watch ./state.yaml --on movies=movies --on shelf=movies,books
  overfall watch ./state.cue --on all=movies,books --db ./overfall.db
  overfall watch ./state.toml --on movies=movies --format json
  overfall watch ./fixtures.cue --cue-path fixtures.small --on movies=movies
  overfall watch ./state.yaml --db ./overfall.db --engine dev --reset`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.On, "on", nil, "subscribe event to keys (event=key,key); repeatable")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for snapshots")
	cmd.Flags().StringVar(&opts.EngineID, "engine", "", "engine id (default: generated UUIDv7)")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete the engine's persisted history first (requires --db and --engine)")
	cmd.Flags().StringVar(&opts.CUEPath, "cue-path", "", "CUE path of the state value (CUE documents only)")

	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ParseBindings parses --on values of the form event=key,key.
func ParseBindings(specs []string) ([]Binding, error) {
	bindings := make([]Binding, 0, len(specs))
	for _, spec := range specs {
		event, keyList, ok := strings.Cut(spec, "=")
		event = strings.TrimSpace(event)
		if !ok || event == "" {
			return nil, fmt.Errorf("invalid --on %q: want event=key,key", spec)
		}

		var keys []string
		for _, k := range strings.Split(keyList, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("invalid --on %q: no keys", spec)
		}
		bindings = append(bindings, Binding{Event: event, Keys: keys})
	}
	return bindings, nil
}

func runWatch(ctx context.Context, opts *WatchOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	bindings, err := ParseBindings(opts.On)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "invalid subscription", err)
	}

	if opts.Reset && (opts.Database == "" || opts.EngineID == "") {
		return formatter.Fail(ExitCommandError, ErrCodeInvalid, "--reset requires --db and --engine", nil)
	}

	loadOpts := loadOptions(opts.CUEPath)
	initial, err := loader.LoadState(path, loadOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, "failed to load state document", err)
	}

	engineOpts := []engine.EngineOption{engine.WithLogger(logger)}
	if opts.EngineID != "" {
		engineOpts = append(engineOpts, engine.WithID(opts.EngineID))
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()

		clockOpt, err := prepareHistory(ctx, st, opts, logger)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to prepare engine history", err)
		}
		if clockOpt != nil {
			engineOpts = append(engineOpts, clockOpt)
		}
		engineOpts = append(engineOpts, engine.WithPersister(st))
	}

	eng := engine.New(initial, engineOpts...)
	out := cmd.OutOrStdout()
	for _, b := range bindings {
		eng.On(b.Event).Do(notificationPrinter(out, formatter.JSON())).When(b.Keys...)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, "failed to create file watcher", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of
	// writing it in place, which drops a watch on the file itself.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, "failed to watch directory", err)
	}

	formatter.VerboseLog("Watching %s (engine %s, %d subscription(s))", target, eng.ID(), len(bindings))
	if !formatter.JSON() {
		fmt.Fprintf(out, "Watching %s. Press Ctrl-C to stop.\n", target)
	}
	if opts.ready != nil {
		close(opts.ready)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "engine", eng.ID(), "seq", eng.Seq())
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			reload(eng, target, loadOpts, logger, formatter)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", "error", err)
		}
	}
}

// prepareHistory readies a fixed engine id's persisted history. With Reset
// the history is deleted; otherwise the returned clock option continues
// after the latest snapshot so new snapshots never collide with old ones.
// Returns a nil option when there is nothing to continue from.
func prepareHistory(ctx context.Context, st *store.Store, opts *WatchOptions, logger *slog.Logger) (engine.EngineOption, error) {
	if opts.EngineID == "" {
		return nil, nil
	}

	if opts.Reset {
		n, err := st.DeleteHistory(ctx, opts.EngineID)
		if err != nil {
			return nil, err
		}
		logger.Info("engine history reset", "engine", opts.EngineID, "snapshots", n)
		return nil, nil
	}

	latest, err := st.LatestSnapshot(ctx, opts.EngineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("engine history resumed", "engine", opts.EngineID, "seq", latest.Seq)
	return engine.WithClock(engine.NewClockAt(latest.Seq)), nil
}

// reload applies the current file content as a Transform. Load errors are
// reported and the engine keeps its state.
func reload(eng *engine.Engine, path string, loadOpts []loader.Option, logger *slog.Logger, f *OutputFormatter) {
	next, err := loader.LoadState(path, loadOpts...)
	if err != nil {
		logger.Warn("state document rejected", "path", path, "error", err)
		if !f.JSON() {
			fmt.Fprintf(f.Writer, "✗ %v\n", err)
		}
		return
	}

	if err := eng.Update(func(ir.IRObject) ir.IRObject { return next }); err != nil {
		logger.Error("apply state document", "path", path, "error", err)
		return
	}
	logger.Debug("state document applied", "path", path, "seq", eng.Seq(), "keys", len(next))
}

// notificationPrinter returns a subscriber writing each notification as a
// text line or a JSON line.
func notificationPrinter(w io.Writer, asJSON bool) engine.Subscriber {
	return func(n engine.Notification) {
		if asJSON {
			_ = json.NewEncoder(w).Encode(NotificationLine{Event: n.Event, Seq: n.Seq, Data: n.Data})
			return
		}
		fmt.Fprintf(w, "[%d] %s %s\n", n.Seq, n.Event, canonicalString(n.Data))
	}
}

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/overfall/internal/harness"
	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional - persist snapshots to this SQLite file
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scenario and print its trace",
		Long: `Execute a single scenario against a fresh engine and print every
notification, persisted commit and expected error in order.

Snapshots go to an in-memory database unless --db is given, in which
case they are kept for later replay and trace.

Exit codes:
  0 - Scenario passed
  1 - A step or assertion failed
  2 - Command error (scenario not found, database error, etc.)

Examples:
  overfall run ./scenarios/movies.yaml
  overfall run ./scenarios/movies.yaml --db ./overfall.db
  overfall run ./scenarios/movies.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: in-memory)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, "failed to load scenario", err)
	}

	runOpts := []harness.RunOption{
		harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
		formatter.VerboseLog("Persisting snapshots to %s", opts.Database)
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, "failed to run scenario", err)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeFailed, Message: "scenario failed", Details: result.Errors}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		writeTraceText(cmd.OutOrStdout(), scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// writeTraceText prints a scenario result one trace event per line.
func writeTraceText(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s (engine %s)\n", name, result.EngineID)
	fmt.Fprintln(w)

	for _, event := range result.Trace {
		switch event.Type {
		case harness.TraceNotify:
			payload := canonicalString(event.Data)
			if event.Manual {
				payload = "publish " + canonicalString(event.Args)
			}
			fmt.Fprintf(w, "  [step %d] seq=%d notify %s %s\n", event.Step, event.Seq, event.Event, payload)
		case harness.TracePersist:
			fmt.Fprintf(w, "  [step %d] seq=%d persist keys=%v\n", event.Step, event.Seq, event.Keys)
		case harness.TraceError:
			fmt.Fprintf(w, "  [step %d] seq=%d error %s\n", event.Step, event.Seq, event.Code)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Final state: %s\n", canonicalString(result.State))

	if result.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// canonicalString renders an IR value as canonical JSON for text output.
func canonicalString(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

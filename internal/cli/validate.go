package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/overfall/internal/harness"
	"github.com/roach88/overfall/internal/loader"
)

// ValidationResult describes a validated file.
type ValidationResult struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"` // "scenario" or "state"
	Format string `json:"format,omitempty"`

	// Scenario summary.
	Name       string `json:"name,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	Assertions int    `json:"assertions,omitempty"`

	// State summary.
	Keys []string `json:"keys,omitempty"`
}

func (r ValidationResult) String() string {
	if r.Kind == "scenario" {
		return fmt.Sprintf("✓ %s: scenario %q (%d steps, %d assertions)", r.Path, r.Name, r.Steps, r.Assertions)
	}
	return fmt.Sprintf("✓ %s: %s state document, keys %v", r.Path, r.Format, r.Keys)
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	CUEPath string // optional - CUE path selecting the state value
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a scenario or a state document",
		Long: `Validate a scenario file or a state document without running it.

YAML files with a top-level "steps" key are checked as scenarios. Every
other supported file (.json, .yaml, .yml, .cue, .toml) is loaded as a
state document: it must evaluate to an object of nulls, strings,
integers, booleans, arrays and objects. Floats are rejected. For CUE
documents, --cue-path selects a nested value instead of the whole file.

Exit codes:
  0 - File is valid
  1 - File is invalid
  2 - Command error (file not found, unsupported format)

Examples:
  overfall validate ./scenarios/movies.yaml
  overfall validate ./state/library.cue --format json
  overfall validate ./fixtures.cue --cue-path fixtures.small`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CUEPath, "cue-path", "", "CUE path of the state value (CUE documents only)")

	return cmd
}

// loadOptions converts command flags into loader options.
func loadOptions(cuePath string) []loader.Option {
	if cuePath == "" {
		return nil
	}
	return []loader.Option{loader.WithCUEPath(cuePath)}
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, fmt.Sprintf("file not found: %s", path), nil)
	}

	format, err := loader.DetectFormat(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, "unsupported file", err)
	}

	if format == loader.FormatYAML && isScenarioFile(path) {
		formatter.VerboseLog("Validating %s as a scenario", path)
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInvalid, "invalid scenario", err)
		}
		return formatter.Success(ValidationResult{
			Path:       filepath.Clean(path),
			Kind:       "scenario",
			Name:       scenario.Name,
			Steps:      len(scenario.Steps),
			Assertions: len(scenario.Assertions),
		})
	}

	formatter.VerboseLog("Validating %s as a %s state document", path, format)
	state, err := loader.LoadState(path, loadOptions(opts.CUEPath)...)
	if err != nil {
		var loadErr *loader.LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			formatter.VerboseLog("  at %s", loadErr.Pos)
		}
		return formatter.Fail(ExitFailure, ErrCodeInvalid, "invalid state document", err)
	}

	return formatter.Success(ValidationResult{
		Path:   filepath.Clean(path),
		Kind:   "state",
		Format: string(format),
		Keys:   state.SortedKeys(),
	})
}

// isScenarioFile reports whether a YAML file has a top-level steps key.
// Unreadable or malformed files are treated as state documents so the
// loader reports the error.
func isScenarioFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var probe struct {
		Steps yaml.Node `yaml:"steps"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Steps.Kind != 0
}

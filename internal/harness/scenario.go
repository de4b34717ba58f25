package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/overfall/internal/engine"
)

// Scenario defines an engine behavior test.
// Scenarios drive a fresh engine through a list of steps and assert on the
// resulting trace, final state and event registry.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// EngineID is an optional fixed engine id for deterministic tests.
	// If empty, defaults to "test-engine-default".
	EngineID string `yaml:"engine_id,omitempty"`

	// MaxDepth overrides engine.DefaultMaxDepth when positive.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// InitialState is the engine's initial state.
	InitialState map[string]any `yaml:"initial_state,omitempty"`

	// StateFile is a state document (.json/.yaml/.yml/.cue/.toml) used as
	// the initial state instead of InitialState. Relative paths are
	// resolved against the scenario file's directory.
	StateFile string `yaml:"state_file,omitempty"`

	// Steps are executed in order against the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace, final state and registry.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation on the engine. Exactly one operation field must be
// set.
type Step struct {
	// Patch merges its keys into state (engine.Patch).
	Patch map[string]any `yaml:"patch,omitempty"`

	// Transform replaces state with its value (engine.Transform).
	Transform map[string]any `yaml:"transform,omitempty"`

	// TransformFile is a state document applied as a Transform.
	TransformFile string `yaml:"transform_file,omitempty"`

	// SetState replaces state without propagation.
	SetState map[string]any `yaml:"set_state,omitempty"`

	// Publish manually fires an event.
	Publish *PublishStep `yaml:"publish,omitempty"`

	// Subscribe attaches a recording subscriber to an event.
	Subscribe *SubscribeStep `yaml:"subscribe,omitempty"`

	// Unsubscribe removes the most recent harness subscriber of the event.
	Unsubscribe string `yaml:"unsubscribe,omitempty"`

	// AddDependencies adds keys to an existing event.
	AddDependencies *DependenciesStep `yaml:"add_dependencies,omitempty"`

	// CreateEvent creates an event with no subscribers.
	CreateEvent string `yaml:"create_event,omitempty"`

	// DeleteEvent deletes an event and its subscribers.
	DeleteEvent string `yaml:"delete_event,omitempty"`

	// Save copies state into the checkpoint slot.
	Save bool `yaml:"save,omitempty"`

	// Restore copies the checkpoint back into state.
	Restore bool `yaml:"restore,omitempty"`

	// ExpectError is the engine error code this step must fail with
	// (e.g. "UNKNOWN_EVENT"). A step with ExpectError that succeeds fails
	// the scenario.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// PublishStep fires an event with arguments.
type PublishStep struct {
	Event string `yaml:"event"`
	Args  []any  `yaml:"args,omitempty"`
}

// SubscribeStep attaches a recording subscriber.
type SubscribeStep struct {
	Event string   `yaml:"event"`
	When  []string `yaml:"when,omitempty"`

	// Patch, if set, is applied as a nested change every time the
	// subscriber is notified.
	Patch map[string]any `yaml:"patch,omitempty"`
}

// DependenciesStep adds dependency keys to an event.
type DependenciesStep struct {
	Event string   `yaml:"event"`
	Keys  []string `yaml:"keys"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": State contains Expect (subset match)
	// - "keys": State has exactly Keys
	// - "fired": Event was notified exactly Count times
	// - "fired_with": Event was notified with Data (automatic) or Args (publish)
	// - "fire_order": Events were first notified in this order
	// - "dependencies": Event exists with exactly Keys as dependencies
	// - "event_exists": Event exists
	// - "event_deleted": Event does not exist
	// - "persisted": Store holds Count valid snapshots
	Type string `yaml:"type"`

	Event  string         `yaml:"event,omitempty"`
	Events []string       `yaml:"events,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Keys   []string       `yaml:"keys,omitempty"`
	Data   map[string]any `yaml:"data,omitempty"`
	Args   []any          `yaml:"args,omitempty"`
	Count  int            `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertKeys         = "keys"
	AssertFired        = "fired"
	AssertFiredWith    = "fired_with"
	AssertFireOrder    = "fire_order"
	AssertDependencies = "dependencies"
	AssertEventExists  = "event_exists"
	AssertEventDeleted = "event_deleted"
	AssertPersisted    = "persisted"
)

// LoadScenario reads and parses a scenario YAML file. Relative state
// document paths are resolved against the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving state document paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve paths BEFORE validation
	scenario.StateFile = resolvePath(scenario.StateFile, basePath)
	for i := range scenario.Steps {
		scenario.Steps[i].TransformFile = resolvePath(scenario.Steps[i].TransformFile, basePath)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without validating it.
// Unknown fields are rejected to catch typos like "assertion:" vs
// "assertions:".
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

func resolvePath(path, basePath string) string {
	if path == "" || filepath.IsAbs(path) || basePath == "" {
		return path
	}
	return filepath.Join(basePath, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.InitialState != nil && s.StateFile != "" {
		return fmt.Errorf("initial_state and state_file are mutually exclusive")
	}

	if s.StateFile != "" {
		if _, err := os.Stat(s.StateFile); os.IsNotExist(err) {
			return fmt.Errorf("state file not found: %s", s.StateFile)
		}
	}

	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that exactly one operation is set and that its
// required fields are present.
func validateStep(index int, st *Step) error {
	ops := st.operations()
	if len(ops) == 0 {
		return fmt.Errorf("steps[%d]: no operation set", index)
	}
	if len(ops) > 1 {
		return fmt.Errorf("steps[%d]: exactly one operation allowed, got %v", index, ops)
	}

	switch {
	case st.TransformFile != "":
		if _, err := os.Stat(st.TransformFile); os.IsNotExist(err) {
			return fmt.Errorf("steps[%d]: transform file not found: %s", index, st.TransformFile)
		}
	case st.Publish != nil:
		if st.Publish.Event == "" {
			return fmt.Errorf("steps[%d].publish: event is required", index)
		}
	case st.Subscribe != nil:
		if st.Subscribe.Event == "" {
			return fmt.Errorf("steps[%d].subscribe: event is required", index)
		}
	case st.AddDependencies != nil:
		if st.AddDependencies.Event == "" {
			return fmt.Errorf("steps[%d].add_dependencies: event is required", index)
		}
	}

	switch engine.ErrorCode(st.ExpectError) {
	case "", engine.ErrCodeInvalidArgument, engine.ErrCodeUnknownEvent, engine.ErrCodeDepthExceeded:
	default:
		return fmt.Errorf("steps[%d]: unknown expect_error code %q", index, st.ExpectError)
	}

	return nil
}

// operations lists the operation fields set on the step.
func (st *Step) operations() []string {
	var ops []string
	if st.Patch != nil {
		ops = append(ops, "patch")
	}
	if st.Transform != nil {
		ops = append(ops, "transform")
	}
	if st.TransformFile != "" {
		ops = append(ops, "transform_file")
	}
	if st.SetState != nil {
		ops = append(ops, "set_state")
	}
	if st.Publish != nil {
		ops = append(ops, "publish")
	}
	if st.Subscribe != nil {
		ops = append(ops, "subscribe")
	}
	if st.Unsubscribe != "" {
		ops = append(ops, "unsubscribe")
	}
	if st.AddDependencies != nil {
		ops = append(ops, "add_dependencies")
	}
	if st.CreateEvent != "" {
		ops = append(ops, "create_event")
	}
	if st.DeleteEvent != "" {
		ops = append(ops, "delete_event")
	}
	if st.Save {
		ops = append(ops, "save")
	}
	if st.Restore {
		ops = append(ops, "restore")
	}
	return ops
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertKeys:
		if a.Keys == nil {
			return fmt.Errorf("assertions[%d]: keys is required for keys (use [] for empty state)", index)
		}
	case AssertFired:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for fired", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fired", index)
		}
	case AssertFiredWith:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for fired_with", index)
		}
		if a.Data == nil && a.Args == nil {
			return fmt.Errorf("assertions[%d]: data or args is required for fired_with", index)
		}
	case AssertFireOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for fire_order", index)
		}
	case AssertDependencies:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for dependencies", index)
		}
		if a.Keys == nil {
			return fmt.Errorf("assertions[%d]: keys is required for dependencies", index)
		}
	case AssertEventExists, AssertEventDeleted:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
	case AssertPersisted:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for persisted", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

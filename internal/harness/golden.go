package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/overfall/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
// State hashes are left out so golden files stay readable.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	EngineID     string       `json:"engine_id"`
	Trace        []TraceEvent `json:"trace"`
	FinalState   ir.IRObject  `json:"final_state"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"step": event.Step,
			"seq":  event.Seq,
		}
		if event.Event != "" {
			eventMap["event"] = event.Event
		}
		if event.Type == TraceNotify {
			if event.Manual {
				eventMap["manual"] = true
				eventMap["args"] = event.Args
			} else {
				eventMap["data"] = event.Data
			}
		}
		if len(event.Keys) > 0 {
			eventMap["keys"] = event.Keys
		}
		if event.Code != "" {
			eventMap["code"] = event.Code
		}
		traceList[i] = eventMap
	}

	finalState := s.FinalState
	if finalState == nil {
		finalState = ir.IRObject{}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"engine_id":     s.EngineID,
		"trace":         traceList,
		"final_state":   finalState,
	}
}

// MarshalTrace renders a result as canonical trace JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		EngineID:     result.EngineID,
		Trace:        result.Trace,
		FinalState:   result.State,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

package harness

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/overfall/internal/engine"
	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			switch event.Type {
			case TraceNotify:
				payload := any(event.Data)
				if event.Manual {
					payload = event.Args
				}
				fmt.Fprintf(&buf, "  [%d] step %d notify %s %v\n", i+1, event.Step, event.Event, payload)
			case TracePersist:
				fmt.Fprintf(&buf, "  [%d] step %d persist seq=%d keys=%v\n", i+1, event.Step, event.Seq, event.Keys)
			case TraceError:
				fmt.Fprintf(&buf, "  [%d] step %d error %s\n", i+1, event.Step, event.Code)
			}
		}
	}

	return buf.String()
}

// assertFinalState checks that the final state contains every expected
// key with an equal value (subset match).
func assertFinalState(state ir.IRObject, assertion Assertion) error {
	expected, err := ir.ObjectFromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	for _, key := range expected.SortedKeys() {
		actual, exists := state[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("key %q to exist", key),
				Actual:   fmt.Sprintf("key %q not present, state keys: %v", key, state.SortedKeys()),
			}
		}
		if !reflect.DeepEqual(expected[key], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %s", key, formatValue(expected[key])),
				Actual:   fmt.Sprintf("%s = %s", key, formatValue(actual)),
			}
		}
	}
	return nil
}

// assertKeys checks that the final state has exactly the expected keys.
func assertKeys(state ir.IRObject, assertion Assertion) error {
	want := append([]string{}, assertion.Keys...)
	ir.SortKeys(want)
	got := state.SortedKeys()

	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertKeys,
			Expected: fmt.Sprintf("keys %v", want),
			Actual:   fmt.Sprintf("keys %v", got),
		}
	}
	return nil
}

// assertFired checks that the event was notified exactly Count times.
func assertFired(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == TraceNotify && event.Event == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertFired,
			Expected: fmt.Sprintf("%d notifications of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d notifications", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFiredWith checks that some notification of the event carried
// exactly the expected projection (Data) or published arguments (Args).
func assertFiredWith(trace []TraceEvent, assertion Assertion) error {
	var wantData ir.IRObject
	var wantArgs ir.IRArray
	var err error

	if assertion.Data != nil {
		if wantData, err = ir.ObjectFromGo(assertion.Data); err != nil {
			return fmt.Errorf("fired_with.data: %w", err)
		}
	}
	if assertion.Args != nil {
		v, err := ir.FromGo(assertion.Args)
		if err != nil {
			return fmt.Errorf("fired_with.args: %w", err)
		}
		wantArgs = v.(ir.IRArray)
	}

	for _, event := range trace {
		if event.Type != TraceNotify || event.Event != assertion.Event {
			continue
		}
		if wantData != nil && (event.Manual || !reflect.DeepEqual(event.Data, wantData)) {
			continue
		}
		if wantArgs != nil && (!event.Manual || !reflect.DeepEqual(event.Args, wantArgs)) {
			continue
		}
		return nil
	}

	expected := fmt.Sprintf("%s notified with data %s", assertion.Event, formatValue(wantData))
	if wantArgs != nil {
		expected = fmt.Sprintf("%s published with args %s", assertion.Event, formatValue(wantArgs))
	}
	return &AssertionError{
		Type:     AssertFiredWith,
		Expected: expected,
		Actual:   "no matching notification in trace",
		Trace:    trace,
	}
}

// assertFireOrder checks that events were first notified in the given
// order. Events don't need to be consecutive.
func assertFireOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != TraceNotify {
			continue
		}
		if _, seen := positions[event.Event]; !seen {
			positions[event.Event] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range assertion.Events {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("all events notified: %v", assertion.Events),
				Actual:   fmt.Sprintf("never notified: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertFireOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertDependencies checks an event's dependency list, in registration
// order.
func assertDependencies(eng *engine.Engine, assertion Assertion) error {
	info, ok := eng.Event(assertion.Event)
	if !ok {
		return &AssertionError{
			Type:     AssertDependencies,
			Expected: fmt.Sprintf("event %s with dependencies %v", assertion.Event, assertion.Keys),
			Actual:   "event does not exist",
		}
	}
	if !slices.Equal(info.Dependencies, assertion.Keys) {
		return &AssertionError{
			Type:     AssertDependencies,
			Expected: fmt.Sprintf("%s depends on %v", assertion.Event, assertion.Keys),
			Actual:   fmt.Sprintf("%s depends on %v", assertion.Event, info.Dependencies),
		}
	}
	return nil
}

func assertEventExists(eng *engine.Engine, assertion Assertion, want bool) error {
	if eng.HasEvent(assertion.Event) == want {
		return nil
	}
	expected, actual := "event exists", "event does not exist"
	if !want {
		expected, actual = actual, expected
	}
	return &AssertionError{
		Type:     assertion.Type,
		Expected: fmt.Sprintf("%s: %s", assertion.Event, expected),
		Actual:   actual,
	}
}

// assertPersisted checks that the store holds exactly Count snapshots of
// the engine and that the history verifies.
func assertPersisted(ctx context.Context, st *store.Store, engineID string, assertion Assertion) error {
	report, err := st.VerifyHistory(ctx, engineID)
	if err != nil {
		return fmt.Errorf("persisted: %w", err)
	}
	if report.Snapshots != assertion.Count || !report.Valid {
		return &AssertionError{
			Type:     AssertPersisted,
			Expected: fmt.Sprintf("%d valid snapshots", assertion.Count),
			Actual: fmt.Sprintf("%d snapshots (gaps %v, hash mismatches %v)",
				report.Snapshots, report.Gaps, report.Mismatches),
		}
	}
	return nil
}

// formatValue renders an IR value as canonical JSON for messages.
func formatValue(v ir.IRValue) string {
	if v == nil {
		return "null"
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store  *store.Store
	Engine *engine.Engine
	Ctx    context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides engine and store access for registry and
// persistence assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertKeys:
			err = assertKeys(result.State, assertion)
		case AssertFired:
			err = assertFired(result.Trace, assertion)
		case AssertFiredWith:
			err = assertFiredWith(result.Trace, assertion)
		case AssertFireOrder:
			err = assertFireOrder(result.Trace, assertion)
		case AssertDependencies, AssertEventExists, AssertEventDeleted:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertDependencies:
				err = assertDependencies(actx.Engine, assertion)
			case AssertEventExists:
				err = assertEventExists(actx.Engine, assertion, true)
			default:
				err = assertEventExists(actx.Engine, assertion, false)
			}
		case AssertPersisted:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: persisted requires database context", i)
			} else {
				err = assertPersisted(actx.Ctx, actx.Store, result.EngineID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

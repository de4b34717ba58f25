package harness

import (
	"github.com/roach88/overfall/internal/engine"
	"github.com/roach88/overfall/internal/ir"
)

// Trace event types.
const (
	TracePersist = "persist" // a committed change reached the store
	TraceNotify  = "notify"  // a harness subscriber was invoked
	TraceError   = "error"   // a step failed with an expected engine error
)

// TraceEvent is one observable effect of a scenario step.
type TraceEvent struct {
	Type   string      `json:"type"`
	Step   int         `json:"step"`
	Event  string      `json:"event,omitempty"`
	Seq    int64       `json:"seq"`
	Data   ir.IRObject `json:"data,omitempty"`
	Args   ir.IRArray  `json:"args,omitempty"`
	Manual bool        `json:"manual,omitempty"`
	Keys   []string    `json:"keys,omitempty"`
	Code   string      `json:"code,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// EngineID is the id of the engine the scenario ran on.
	EngineID string `json:"engine_id"`

	// Trace contains persisted commits, notifications and expected errors
	// in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step failures and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the engine's final state.
	State ir.IRObject `json:"state"`

	// Events is the engine's final event registry.
	Events []engine.EventInfo `json:"events"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  ir.IRObject{},
		Events: []engine.EventInfo{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPersistTrace adds a persisted commit to the trace.
func (r *Result) AddPersistTrace(step int, snap ir.Snapshot) {
	r.Trace = append(r.Trace, TraceEvent{
		Type: TracePersist,
		Step: step,
		Seq:  snap.Seq,
		Keys: append([]string{}, snap.DeclaredKeys...),
	})
}

// AddNotifyTrace adds a subscriber notification to the trace.
func (r *Result) AddNotifyTrace(step int, n engine.Notification) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   TraceNotify,
		Step:   step,
		Event:  n.Event,
		Seq:    n.Seq,
		Data:   n.Data,
		Args:   n.Args,
		Manual: n.Manual,
	})
}

// AddErrorTrace adds an expected engine error to the trace.
func (r *Result) AddErrorTrace(step int, code engine.ErrorCode, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type: TraceError,
		Step: step,
		Seq:  seq,
		Code: string(code),
	})
}

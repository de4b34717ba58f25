package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/overfall/internal/engine"
	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/loader"
	"github.com/roach88/overfall/internal/store"
	"github.com/roach88/overfall/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios against a real engine with a fixed engine id, and
// persists every committed change to a store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
	result *Result

	// step is the index of the step being executed. Notifications and
	// persisted commits are attributed to it, including nested changes.
	step int

	// subs holds harness subscriptions per event, most recent last.
	subs map[string][]engine.Subscription
}

type runConfig struct {
	store  *store.Store
	logger *slog.Logger
}

// RunOption configures Run.
type RunOption func(*runConfig)

// WithStore persists snapshots to st instead of a fresh in-memory database.
// The caller keeps ownership of st.
func WithStore(st *store.Store) RunOption {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithLogger sets the logger handed to the engine.
//
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// tracingPersister records each persisted commit in the trace before
// forwarding it to the store.
type tracingPersister struct {
	h *Harness
}

func (p tracingPersister) PersistState(ctx context.Context, snap ir.Snapshot) error {
	p.h.result.AddPersistTrace(p.h.step, snap)
	return p.h.store.PersistState(ctx, snap)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Open a fresh in-memory store (unless WithStore is given)
// 2. Load the initial state and create the engine
// 3. Execute steps, checking expected errors
// 4. Evaluate assertions
//
// Step and assertion failures are reported in Result.Errors. The returned
// error is reserved for scenarios that cannot run at all, e.g. a state
// document that fails to load.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	st := cfg.store
	if st == nil {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	initial, err := initialState(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial state: %w", err)
	}

	h := &Harness{
		store:  st,
		logger: cfg.logger,
		result: NewResult(),
		subs:   make(map[string][]engine.Subscription),
	}

	engineOpts := []engine.EngineOption{
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.EngineID)),
		engine.WithPersister(tracingPersister{h: h}),
		engine.WithLogger(cfg.logger),
	}
	if scenario.MaxDepth > 0 {
		engineOpts = append(engineOpts, engine.WithMaxDepth(scenario.MaxDepth))
	}
	h.engine = engine.New(initial, engineOpts...)
	h.result.EngineID = h.engine.ID()

	ctx := context.Background()

	if err := h.executeSteps(scenario.Steps); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	h.result.State = h.engine.State()
	h.result.Events = h.engine.Events()

	actx := &AssertionContext{
		Store:  st,
		Engine: h.engine,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

func initialState(scenario *Scenario) (ir.IRObject, error) {
	if scenario.StateFile != "" {
		return loader.LoadState(scenario.StateFile)
	}
	return ir.ObjectFromGo(scenario.InitialState)
}

// executeSteps runs all steps in order.
func (h *Harness) executeSteps(steps []Step) error {
	for i, step := range steps {
		h.step = i

		engErr, err := h.apply(step)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		h.checkExpectedError(i, step, engErr)

		h.logger.Debug("step completed",
			"step", i,
			"ops", step.operations(),
			"seq", h.engine.Seq(),
		)
	}
	return nil
}

// apply performs one step. engErr is the engine's answer to the operation;
// err means the step itself is unusable (bad values, unknown subscription).
func (h *Harness) apply(step Step) (engErr error, err error) {
	eng := h.engine

	switch {
	case step.Patch != nil:
		patch, err := ir.ObjectFromGo(step.Patch)
		if err != nil {
			return nil, fmt.Errorf("patch: %w", err)
		}
		return eng.Merge(patch), nil

	case step.Transform != nil:
		next, err := ir.ObjectFromGo(step.Transform)
		if err != nil {
			return nil, fmt.Errorf("transform: %w", err)
		}
		return eng.Update(func(ir.IRObject) ir.IRObject { return next }), nil

	case step.TransformFile != "":
		next, err := loader.LoadState(step.TransformFile)
		if err != nil {
			return nil, fmt.Errorf("transform_file: %w", err)
		}
		return eng.Update(func(ir.IRObject) ir.IRObject { return next }), nil

	case step.SetState != nil:
		state, err := ir.ObjectFromGo(step.SetState)
		if err != nil {
			return nil, fmt.Errorf("set_state: %w", err)
		}
		eng.SetState(state)
		return nil, nil

	case step.Publish != nil:
		args := make([]ir.IRValue, len(step.Publish.Args))
		for i, raw := range step.Publish.Args {
			if args[i], err = ir.FromGo(raw); err != nil {
				return nil, fmt.Errorf("publish.args[%d]: %w", i, err)
			}
		}
		return eng.Publish(step.Publish.Event, args...), nil

	case step.Subscribe != nil:
		return nil, h.subscribe(step.Subscribe)

	case step.Unsubscribe != "":
		subs := h.subs[step.Unsubscribe]
		if len(subs) == 0 {
			return nil, fmt.Errorf("unsubscribe: no harness subscription on %q", step.Unsubscribe)
		}
		subs[len(subs)-1].Unsubscribe()
		h.subs[step.Unsubscribe] = subs[:len(subs)-1]
		return nil, nil

	case step.AddDependencies != nil:
		return eng.AddDependencies(step.AddDependencies.Event, step.AddDependencies.Keys...), nil

	case step.CreateEvent != "":
		eng.CreateEvent(step.CreateEvent)
		return nil, nil

	case step.DeleteEvent != "":
		eng.DeleteEvent(step.DeleteEvent)
		return nil, nil

	case step.Save:
		eng.Save()
		return nil, nil

	case step.Restore:
		eng.Restore()
		return nil, nil
	}

	return nil, errors.New("no operation set")
}

// subscribe attaches a recording subscriber. If the step carries a
// reaction patch, the subscriber applies it as a nested change.
func (h *Harness) subscribe(s *SubscribeStep) error {
	var reaction ir.IRObject
	if s.Patch != nil {
		var err error
		if reaction, err = ir.ObjectFromGo(s.Patch); err != nil {
			return fmt.Errorf("subscribe.patch: %w", err)
		}
	}

	fn := func(n engine.Notification) {
		h.result.AddNotifyTrace(h.step, n)
		if reaction == nil {
			return
		}
		if err := h.engine.Merge(reaction); err != nil {
			var engErr *engine.Error
			if errors.As(err, &engErr) {
				h.result.AddErrorTrace(h.step, engErr.Code, h.engine.Seq())
			}
		}
	}

	sub := h.engine.On(s.Event).Do(fn).When(s.When...)
	h.subs[s.Event] = append(h.subs[s.Event], sub)
	return nil
}

// checkExpectedError compares a step's engine error with its expect_error.
func (h *Harness) checkExpectedError(i int, step Step, engErr error) {
	if engErr == nil {
		if step.ExpectError != "" {
			h.result.AddError(fmt.Sprintf("steps[%d]: expected %s error, step succeeded", i, step.ExpectError))
		}
		return
	}

	var e *engine.Error
	if errors.As(engErr, &e) && string(e.Code) == step.ExpectError {
		h.result.AddErrorTrace(i, e.Code, h.engine.Seq())
		return
	}
	h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, engErr))
}

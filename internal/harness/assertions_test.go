package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/overfall/internal/engine"
	"github.com/roach88/overfall/internal/ir"
	"github.com/roach88/overfall/internal/store"
)

func notify(event string, seq int64, data ir.IRObject) TraceEvent {
	return TraceEvent{Type: TraceNotify, Event: event, Seq: seq, Data: data}
}

func published(event string, args ...ir.IRValue) TraceEvent {
	return TraceEvent{Type: TraceNotify, Event: event, Args: ir.IRArray(args), Manual: true}
}

func TestAssertFinalState(t *testing.T) {
	state := ir.IRObject{
		"movies": ir.IRArray{ir.IRString("Heat")},
		"count":  ir.IRInt(1),
	}

	t.Run("subset matches", func(t *testing.T) {
		err := assertFinalState(state, Assertion{Type: AssertFinalState, Expect: map[string]any{"count": 1}})
		assert.NoError(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		err := assertFinalState(state, Assertion{Type: AssertFinalState, Expect: map[string]any{"books": []any{}}})
		var aerr *AssertionError
		require.ErrorAs(t, err, &aerr)
		assert.Contains(t, aerr.Actual, `key "books" not present`)
	})

	t.Run("value differs", func(t *testing.T) {
		err := assertFinalState(state, Assertion{Type: AssertFinalState, Expect: map[string]any{"movies": []any{"Ronin"}}})
		var aerr *AssertionError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, `movies = ["Ronin"]`, aerr.Expected)
		assert.Equal(t, `movies = ["Heat"]`, aerr.Actual)
	})
}

func TestAssertKeys(t *testing.T) {
	state := ir.IRObject{"b": ir.IRInt(1), "a": ir.IRInt(2)}

	assert.NoError(t, assertKeys(state, Assertion{Keys: []string{"b", "a"}}))
	assert.Error(t, assertKeys(state, Assertion{Keys: []string{"a"}}))
	assert.NoError(t, assertKeys(ir.IRObject{}, Assertion{Keys: []string{}}))
}

func TestAssertFired(t *testing.T) {
	trace := []TraceEvent{
		notify("update_movies", 1, ir.IRObject{}),
		{Type: TracePersist, Seq: 1},
		notify("update_movies", 2, ir.IRObject{}),
	}

	assert.NoError(t, assertFired(trace, Assertion{Event: "update_movies", Count: 2}))
	assert.NoError(t, assertFired(trace, Assertion{Event: "update_books", Count: 0}))

	err := assertFired(trace, Assertion{Event: "update_movies", Count: 1})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "2 notifications", aerr.Actual)
	assert.Len(t, aerr.Trace, 3)
}

func TestAssertFiredWith(t *testing.T) {
	trace := []TraceEvent{
		notify("update_movies", 1, ir.IRObject{"movies": ir.IRArray{ir.IRString("Heat")}}),
		published("update_movies", ir.IRString("manual"), ir.IRInt(2)),
	}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{
			name:      "data matches",
			assertion: Assertion{Event: "update_movies", Data: map[string]any{"movies": []any{"Heat"}}},
		},
		{
			name:      "args match",
			assertion: Assertion{Event: "update_movies", Args: []any{"manual", 2}},
		},
		{
			name:      "data differs",
			assertion: Assertion{Event: "update_movies", Data: map[string]any{"movies": []any{}}},
			wantErr:   true,
		},
		{
			name:      "args never match automatic notifications",
			assertion: Assertion{Event: "update_movies", Args: []any{}},
			wantErr:   true,
		},
		{
			name:      "other event",
			assertion: Assertion{Event: "update_books", Data: map[string]any{"movies": []any{"Heat"}}},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFiredWith(trace, tt.assertion)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssertFireOrder(t *testing.T) {
	trace := []TraceEvent{
		notify("a", 1, nil),
		{Type: TracePersist, Seq: 1},
		notify("b", 2, nil),
		notify("a", 3, nil),
		notify("c", 3, nil),
	}

	assert.NoError(t, assertFireOrder(trace, Assertion{Events: []string{"a", "b", "c"}}))
	assert.NoError(t, assertFireOrder(trace, Assertion{Events: []string{"a", "c"}}))

	err := assertFireOrder(trace, Assertion{Events: []string{"b", "a"}})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Actual, "b (pos 3) should be before a (pos 1)")

	err = assertFireOrder(trace, Assertion{Events: []string{"a", "d"}})
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "never notified: d", aerr.Actual)
}

func TestRegistryAssertions(t *testing.T) {
	eng := engine.New(ir.IRObject{"movies": ir.IRArray{}, "books": ir.IRArray{}})
	eng.On("library").Do(func(engine.Notification) {}).When("movies", "books")

	assert.NoError(t, assertDependencies(eng, Assertion{Event: "library", Keys: []string{"movies", "books"}}))
	assert.Error(t, assertDependencies(eng, Assertion{Event: "library", Keys: []string{"books", "movies"}}))
	assert.Error(t, assertDependencies(eng, Assertion{Event: "ghost", Keys: []string{}}))

	assert.NoError(t, assertEventExists(eng, Assertion{Type: AssertEventExists, Event: "library"}, true))
	assert.NoError(t, assertEventExists(eng, Assertion{Type: AssertEventDeleted, Event: "ghost"}, false))

	err := assertEventExists(eng, Assertion{Type: AssertEventDeleted, Event: "library"}, false)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertEventDeleted, aerr.Type)
	assert.Equal(t, "event exists", aerr.Actual)
}

func TestAssertPersisted(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	state := ir.IRObject{"a": ir.IRInt(1)}
	require.NoError(t, st.PersistState(ctx, ir.Snapshot{EngineID: "e", Seq: 1, State: state, DeclaredKeys: []string{"a"}}))

	assert.NoError(t, assertPersisted(ctx, st, "e", Assertion{Count: 1}))
	assert.Error(t, assertPersisted(ctx, st, "e", Assertion{Count: 2}))
	assert.NoError(t, assertPersisted(ctx, st, "other", Assertion{Count: 0}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.State = ir.IRObject{"a": ir.IRInt(1)}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertKeys, Keys: []string{"a"}},
		{Type: AssertKeys, Keys: []string{"b"}},
		{Type: AssertEventExists, Event: "x"},
		{Type: AssertPersisted, Count: 0},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "Assertion failed: keys")
	assert.Contains(t, errs[1], "requires engine context")
	assert.Contains(t, errs[2], "requires database context")
	assert.Contains(t, errs[3], `unknown assertion type "bogus"`)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFired,
		Expected: "1 notifications of e",
		Actual:   "0 notifications",
		Trace: []TraceEvent{
			{Type: TracePersist, Step: 0, Seq: 1, Keys: []string{"a"}},
			{Type: TraceError, Step: 1, Code: "UNKNOWN_EVENT"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: fired")
	assert.Contains(t, msg, "[1] step 0 persist seq=1 keys=[a]")
	assert.Contains(t, msg, "[2] step 1 error UNKNOWN_EVENT")
}

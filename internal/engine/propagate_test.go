package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/overfall/internal/ir"
)

func moviesAndBooks() ir.IRObject {
	return ir.IRObject{"movies": ir.IRArray{}, "books": ir.IRArray{}}
}

func TestPropagate_PatchFiresDependentEvent(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	movies := &recorder{}
	books := &recorder{}
	eng.On("update_movies").Do(movies.record).When("movies")
	eng.On("update_books").Do(books.record).When("books")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{ir.IRString("X")}}))

	require.Equal(t, 1, movies.count())
	assert.Equal(t, Notification{
		Event: "update_movies",
		Seq:   1,
		Data:  ir.IRObject{"movies": ir.IRArray{ir.IRString("X")}},
	}, movies.last())
	assert.Equal(t, 0, books.count())
	assert.False(t, eng.HasEvent("update_books"), "books was not declared by the patch")
}

func TestPropagate_TransformRemovalPrunesAndDeletes(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	movies := &recorder{}
	books := &recorder{}
	eng.On("update_movies").Do(movies.record).When("movies")
	eng.On("update_books").Do(books.record).When("books")

	require.NoError(t, eng.Update(func(prev ir.IRObject) ir.IRObject {
		return ir.IRObject{"movies": ir.IRArray{ir.IRString("Up")}}
	}))

	assert.Equal(t, ir.IRObject{"movies": ir.IRArray{ir.IRString("Up")}}, eng.State())
	assert.Equal(t, []string{"movies"}, eng.Keys())

	assert.False(t, eng.HasEvent("update_books"), "event left with no dependencies is deleted")
	assert.Equal(t, 0, books.count())

	require.Equal(t, 1, movies.count())
	assert.Equal(t, ir.IRObject{"movies": ir.IRArray{ir.IRString("Up")}}, movies.last().Data)
}

func TestPropagate_PartialPruneKeepsEvent(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("shelf").Do(rec.record).When("movies", "books")

	require.NoError(t, eng.Update(func(prev ir.IRObject) ir.IRObject {
		return ir.IRObject{"movies": prev["movies"]}
	}))

	info, ok := eng.Event("shelf")
	require.True(t, ok)
	assert.Equal(t, []string{"movies"}, info.Dependencies)
	assert.Equal(t, 1, info.Subscribers)

	require.Equal(t, 1, rec.count())
	assert.Equal(t, ir.IRObject{"movies": ir.IRArray{}}, rec.last().Data)
}

func TestPropagate_RemovalOnlyFiresNothing(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("update_books").Do(rec.record).When("books")

	require.NoError(t, eng.Update(func(ir.IRObject) ir.IRObject { return ir.IRObject{} }))

	assert.Empty(t, eng.State())
	assert.False(t, eng.HasEvent("update_books"))
	assert.Equal(t, 0, rec.count())
}

func TestPropagate_PatchPrunesUndeclaredDependencies(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	shelf := &recorder{}
	books := &recorder{}
	eng.On("shelf").Do(shelf.record).When("books", "movies")
	eng.On("update_books").Do(books.record).When("books")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{ir.IRString("X")}}))

	// The key itself stays in state.
	assert.Equal(t, []string{"books", "movies"}, eng.Keys())
	v, ok := eng.Get("books")
	require.True(t, ok)
	assert.Equal(t, ir.IRArray{}, v)

	info, ok := eng.Event("shelf")
	require.True(t, ok)
	assert.Equal(t, []string{"movies"}, info.Dependencies)
	assert.False(t, eng.HasEvent("update_books"))

	require.Equal(t, 1, shelf.count())
	assert.Equal(t, ir.IRObject{"movies": ir.IRArray{ir.IRString("X")}}, shelf.last().Data)
	assert.Equal(t, 0, books.count())

	// books is still in the index, so it can be depended on again.
	eng.On("update_books").Do(books.record).When("books")
	require.NoError(t, eng.Merge(ir.IRObject{"books": ir.IRArray{ir.IRString("Dune")}}))
	require.Equal(t, 1, books.count())
	assert.Equal(t, ir.IRObject{"books": ir.IRArray{ir.IRString("Dune")}}, books.last().Data)
}

func TestPropagate_EmptyPatchPrunesEveryDependency(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("media").Do(rec.record).When("movies", "books")

	require.NoError(t, eng.Merge(ir.IRObject{}))

	assert.Equal(t, moviesAndBooks(), eng.State())
	assert.False(t, eng.HasEvent("media"))
	assert.Equal(t, 0, rec.count())
}

func TestPropagate_ProjectionHoldsOnlyDependencies(t *testing.T) {
	eng := newTestEngine(t, ir.IRObject{
		"movies": ir.IRArray{},
		"books":  ir.IRArray{},
		"user":   ir.IRString("ada"),
	})
	rec := &recorder{}
	eng.On("media").Do(rec.record).When("movies", "books")

	require.NoError(t, eng.Merge(ir.IRObject{
		"movies": ir.IRArray{ir.IRString("X")},
		"books":  ir.IRArray{},
		"user":   ir.IRString("grace"),
	}))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, ir.IRObject{
		"movies": ir.IRArray{ir.IRString("X")},
		"books":  ir.IRArray{},
	}, rec.last().Data)
	assert.False(t, rec.last().Manual)
	assert.Nil(t, rec.last().Args)
}

func TestPropagate_EventFiresOncePerChange(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("media").Do(rec.record).When("movies", "books")

	require.NoError(t, eng.Merge(ir.IRObject{
		"movies": ir.IRArray{ir.IRString("X")},
		"books":  ir.IRArray{ir.IRString("Y")},
	}))

	assert.Equal(t, 1, rec.count())
}

func TestPropagate_UnchangedValueStillFires(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("update_movies").Do(rec.record).When("movies")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))

	assert.Equal(t, 1, rec.count())
}

func TestPropagate_SubscribersInOrder(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	var order []string
	eng.On("update_movies").
		Do(func(Notification) { order = append(order, "first") }).
		When("movies")
	eng.On("update_movies").Do(func(Notification) { order = append(order, "second") })
	eng.On("update_movies").Do(func(Notification) { order = append(order, "third") })

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPropagate_EventsInRegistrationOrder(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	var order []string
	eng.On("b_event").Do(func(n Notification) { order = append(order, n.Event) }).When("books")
	eng.On("a_event").Do(func(n Notification) { order = append(order, n.Event) }).When("movies")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}, "books": ir.IRArray{}}))

	assert.Equal(t, []string{"b_event", "a_event"}, order)
}

func TestPropagate_ProjectionIsIsolated(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	var first, second Notification
	eng.On("update_movies").Do(func(n Notification) {
		first = n
		n.Data["movies"] = ir.IRString("mutated")
	}).When("movies")
	eng.On("update_movies").Do(func(n Notification) { second = n })

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{ir.IRString("X")}}))

	assert.Equal(t, ir.IRString("mutated"), first.Data["movies"])
	assert.Equal(t, ir.IRArray{ir.IRString("X")}, second.Data["movies"])
	v, _ := eng.Get("movies")
	assert.Equal(t, ir.IRArray{ir.IRString("X")}, v)
}

func TestPropagate_EventWithoutDependenciesNeverFires(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("manual").Do(rec.record)

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}, "books": ir.IRArray{}}))

	assert.Equal(t, 0, rec.count())
	assert.True(t, eng.HasEvent("manual"))
}

func TestPropagate_UnsubscribeDuringDispatch(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	second := &recorder{}

	var secondSub Subscription
	eng.On("update_movies").Do(func(Notification) {
		secondSub.Unsubscribe()
	}).When("movies")
	secondSub = eng.On("update_movies").Do(second.record)

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))

	assert.Equal(t, 0, second.count())
}

func TestPropagate_SubscribeDuringDispatchWaitsForNextChange(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	late := &recorder{}

	subscribed := false
	eng.On("update_movies").Do(func(Notification) {
		if !subscribed {
			subscribed = true
			eng.On("update_movies").Do(late.record)
		}
	}).When("movies")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))
	assert.Equal(t, 0, late.count())

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))
	assert.Equal(t, 1, late.count())
}

func TestPropagate_DeleteEventDuringDispatch(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	books := &recorder{}

	eng.On("update_movies").Do(func(Notification) {
		eng.DeleteEvent("update_books")
	}).When("movies")
	eng.On("update_books").Do(books.record).When("books")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}, "books": ir.IRArray{}}))

	assert.Equal(t, 0, books.count())
}

func TestPropagate_NestedChangeState(t *testing.T) {
	eng := newTestEngine(t, ir.IRObject{"movies": ir.IRArray{}, "count": ir.IRInt(0)})
	counts := &recorder{}

	eng.On("update_movies").Do(func(n Notification) {
		movies := n.Data["movies"].(ir.IRArray)
		require.NoError(t, eng.Merge(ir.IRObject{"count": ir.IRInt(len(movies))}))
	}).When("movies")
	eng.On("update_count").Do(counts.record).When("count")

	require.NoError(t, eng.Merge(ir.IRObject{
		"movies": ir.IRArray{ir.IRString("A"), ir.IRString("B")},
		"count":  ir.IRInt(0),
	}))

	// The nested change is delivered first; the outer dispatch then
	// continues with the projection it froze before any callback ran.
	require.Equal(t, 2, counts.count())
	calls := counts.calls
	assert.Equal(t, ir.IRObject{"count": ir.IRInt(2)}, calls[0].Data)
	assert.Equal(t, int64(2), calls[0].Seq)
	assert.Equal(t, ir.IRObject{"count": ir.IRInt(0)}, calls[1].Data)
	assert.Equal(t, int64(1), calls[1].Seq)

	v, _ := eng.Get("count")
	assert.Equal(t, ir.IRInt(2), v)
	assert.Equal(t, int64(2), eng.Seq())
	// The nested patch did not declare movies.
	assert.False(t, eng.HasEvent("update_movies"))
}

func TestPropagate_RunawayRecursionIsBounded(t *testing.T) {
	eng := newTestEngine(t, ir.IRObject{"n": ir.IRInt(0)}, WithMaxDepth(4))

	var errs []error
	calls := 0
	eng.On("loop").Do(func(n Notification) {
		calls++
		next := n.Data["n"].(ir.IRInt) + 1
		if err := eng.Merge(ir.IRObject{"n": next}); err != nil {
			errs = append(errs, err)
		}
	}).When("n")

	require.NoError(t, eng.Merge(ir.IRObject{"n": ir.IRInt(1)}))

	assert.Equal(t, 4, calls)
	require.Len(t, errs, 1)
	assert.True(t, IsDepthExceeded(errs[0]))

	// The state reflects the deepest successful change.
	v, _ := eng.Get("n")
	assert.Equal(t, ir.IRInt(4), v)

	// The guard unwinds: a fresh top-level change works again.
	require.NoError(t, eng.Merge(ir.IRObject{"n": ir.IRInt(100)}))
}

func TestPropagate_MaxDepthOneForbidsNestedChanges(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks(), WithMaxDepth(1))

	var nestedErr error
	eng.On("update_movies").Do(func(Notification) {
		nestedErr = eng.Merge(ir.IRObject{"books": ir.IRArray{}})
	}).When("movies")

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))
	require.Error(t, nestedErr)
	assert.True(t, IsDepthExceeded(nestedErr))
}

func TestPropagate_SetStateThenPatchDoesNotPrune(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("update_books").Do(rec.record).When("books")

	// books disappears without propagation; the dependency survives.
	eng.SetState(ir.IRObject{"movies": ir.IRArray{}})
	require.NoError(t, eng.Merge(ir.IRObject{"books": ir.IRArray{ir.IRString("Dune")}}))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, ir.IRObject{"books": ir.IRArray{ir.IRString("Dune")}}, rec.last().Data)
}

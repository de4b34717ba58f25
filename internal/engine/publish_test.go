package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/overfall/internal/ir"
)

func TestPublish_UnknownEvent(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())

	err := eng.Publish("nonexistent")
	require.Error(t, err)
	assert.True(t, IsUnknownEvent(err))

	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "nonexistent", engErr.Event)
}

func TestPublish_BundlesArguments(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("greet").Do(rec.record)

	require.NoError(t, eng.Publish("greet", ir.IRString("hello"), ir.IRInt(42), nil))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, Notification{
		Event:  "greet",
		Seq:    0,
		Args:   ir.IRArray{ir.IRString("hello"), ir.IRInt(42), ir.IRNull{}},
		Manual: true,
	}, rec.last())
}

func TestPublish_NoArguments(t *testing.T) {
	eng := newTestEngine(t, nil)
	rec := &recorder{}
	eng.On("ping").Do(rec.record)

	require.NoError(t, eng.Publish("ping"))

	require.Equal(t, 1, rec.count())
	assert.Equal(t, ir.IRArray{}, rec.last().Args)
	assert.Nil(t, rec.last().Data)
}

func TestPublish_IgnoresDependencies(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("update_movies").Do(rec.record).When("movies")
	eng.On("update_movies").Do(rec.record)

	require.NoError(t, eng.Publish("update_movies", ir.IRString("x")))

	assert.Equal(t, 2, rec.count())
	info, _ := eng.Event("update_movies")
	assert.Equal(t, []string{"movies"}, info.Dependencies)
	assert.Equal(t, moviesAndBooks(), eng.State())
}

func TestPublish_EventWithoutSubscribers(t *testing.T) {
	eng := newTestEngine(t, nil)
	eng.CreateEvent("quiet")

	assert.NoError(t, eng.Publish("quiet", ir.IRBool(true)))
}

func TestPublish_ArgsAreIsolated(t *testing.T) {
	eng := newTestEngine(t, nil)
	var seen []ir.IRArray
	eng.On("e").Do(func(n Notification) {
		seen = append(seen, n.Args)
		n.Args[0] = ir.IRString("mutated")
	})
	eng.On("e").Do(func(n Notification) { seen = append(seen, n.Args) })

	arg := ir.IRArray{ir.IRString("A")}
	require.NoError(t, eng.Publish("e", arg))
	arg[0] = ir.IRString("caller mutated")

	require.Len(t, seen, 2)
	assert.Equal(t, ir.IRArray{ir.IRArray{ir.IRString("A")}}, seen[1])
}

func TestPublish_CarriesCurrentSeq(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	rec := &recorder{}
	eng.On("e").Do(rec.record)

	require.NoError(t, eng.Merge(ir.IRObject{"movies": ir.IRArray{}}))
	require.NoError(t, eng.Publish("e"))

	assert.Equal(t, int64(1), rec.last().Seq)
}

func TestPublish_SubscriberMayChangeState(t *testing.T) {
	eng := newTestEngine(t, moviesAndBooks())
	movies := &recorder{}
	eng.On("add_movie").Do(func(n Notification) {
		require.NoError(t, eng.Update(func(prev ir.IRObject) ir.IRObject {
			prev["movies"] = append(prev["movies"].(ir.IRArray), n.Args[0])
			return prev
		}))
	})
	eng.On("update_movies").Do(movies.record).When("movies")

	require.NoError(t, eng.Publish("add_movie", ir.IRString("Alien")))

	require.Equal(t, 1, movies.count())
	assert.Equal(t, ir.IRObject{"movies": ir.IRArray{ir.IRString("Alien")}}, movies.last().Data)
}

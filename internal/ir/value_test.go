package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysCaseOrder(t *testing.T) {
	obj := IRObject{"a": IRInt(1), "A": IRInt(2), "aa": IRInt(3), "Aa": IRInt(4)}

	// 'A' = 65 < 'a' = 97
	assert.Equal(t, []string{"A", "Aa", "a", "aa"}, obj.SortedKeys())
}

func TestSortKeysMatchesSortedKeys(t *testing.T) {
	keys := []string{"movies", "books", "Authors"}
	SortKeys(keys)
	assert.Equal(t, []string{"Authors", "books", "movies"}, keys)
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, 0, compareKeysRFC8785("a", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "b"))
	assert.Equal(t, 1, compareKeysRFC8785("b", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "ab"))
	assert.Equal(t, 1, compareKeysRFC8785("ab", "a"))
}

func TestIRObjectHas(t *testing.T) {
	obj := IRObject{"movies": IRArray{}, "nothing": IRNull{}}

	assert.True(t, obj.Has("movies"))
	assert.True(t, obj.Has("nothing"))
	assert.False(t, obj.Has("books"))
}

func TestNewIRObject(t *testing.T) {
	obj := NewIRObject(O("movies", NewIRArray(IRString("X"))), O("count", IRInt(1)))

	assert.Equal(t, IRObject{
		"movies": IRArray{IRString("X")},
		"count":  IRInt(1),
	}, obj)
}

func TestMarshalIRObjectKeyOrder(t *testing.T) {
	obj := IRObject{"b": IRInt(2), "a": IRInt(1), "n": IRNull{}}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"n":null}`, string(data))
}

func TestUnmarshalIRObject(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`{"movies":[{"id":1,"name":"Harry Potter"}],"flag":true,"none":null}`), &obj)
	require.NoError(t, err)

	assert.Equal(t, IRObject{
		"movies": IRArray{IRObject{"id": IRInt(1), "name": IRString("Harry Potter")}},
		"flag":   IRBool(true),
		"none":   IRNull{},
	}, obj)
}

func TestUnmarshalIRObjectRejectsNonObject(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`[1,2]`), &obj)
	require.Error(t, err)
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	tests := []string{`1.5`, `{"a":2.0}`, `[1e10]`, `{"a":{"b":-0.1}}`}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "floats")
		})
	}
}

func TestUnmarshalLargeInt(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`9223372036854775807`))
	require.NoError(t, err)
	assert.Equal(t, IRInt(9223372036854775807), v)
}

func TestMarshalIRValueRoundTrip(t *testing.T) {
	values := []IRValue{
		IRString("hello"),
		IRInt(-7),
		IRBool(false),
		IRNull{},
		IRArray{IRInt(1), IRArray{IRString("nested")}},
		IRObject{"k": IRObject{"inner": IRBool(true)}},
	}

	for _, v := range values {
		data, err := MarshalIRValue(v)
		require.NoError(t, err)

		got, err := UnmarshalIRValue(data)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

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
	obj := IRObject{"zebra": IRInt(1), "apple": IRInt(2), "A": IRInt(3)}
	assert.Equal(t, []string{"A", "apple", "zebra"}, obj.SortedKeys())
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{"tags": IRArray{IRObject{"id": IRString("t1")}}}
	clone := orig.Clone()

	clone["tags"].(IRArray)[0].(IRObject)["id"] = IRString("changed")

	assert.Equal(t, IRString("t1"), orig["tags"].(IRArray)[0].(IRObject)["id"])
	assert.Nil(t, IRObject(nil).Clone())
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  IRValue
		equal bool
	}{
		{"same string", IRString("1"), IRString("1"), true},
		{"string vs int", IRString("1"), IRInt(1), false},
		{"nulls", IRNull{}, IRNull{}, true},
		{"nil vs null", nil, IRNull{}, false},
		{"arrays", IRArray{IRInt(1)}, IRArray{IRInt(1)}, true},
		{"array length", IRArray{IRInt(1)}, IRArray{}, false},
		{"objects", IRObject{"a": IRBool(true)}, IRObject{"a": IRBool(true)}, true},
		{"object value", IRObject{"a": IRBool(true)}, IRObject{"a": IRBool(false)}, false},
		{"object key", IRObject{"a": IRBool(true)}, IRObject{"b": IRBool(true)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Equal(tt.a, tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(IRInt(1), IRInt(2)))
	assert.Equal(t, 1, Compare(IRString("b"), IRString("a")))
	assert.Equal(t, 0, Compare(IRBool(true), IRBool(true)))
	assert.Equal(t, -1, Compare(IRBool(false), IRBool(true)))
	assert.Equal(t, -1, Compare(IRNull{}, IRInt(0)), "null sorts first")
	assert.Equal(t, -1, Compare(nil, IRString("")), "missing sorts first")
	assert.Equal(t, -1, Compare(IRInt(99), IRString("0")), "ints before strings")
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"id":    "4",
		"order": 2,
		"done":  false,
		"score": float64(3),
		"tags":  []any{"a"},
		"none":  nil,
	})
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"id":    IRString("4"),
		"order": IRInt(2),
		"done":  IRBool(false),
		"score": IRInt(3),
		"tags":  IRArray{IRString("a")},
		"none":  IRNull{},
	}, v)

	_, err = FromAny(3.5)
	assert.ErrorContains(t, err, "floats")

	_, err = FromAny(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestToAnyRoundTrip(t *testing.T) {
	orig := IRObject{"id": IRInt(1), "tags": IRArray{IRString("x")}, "ok": IRBool(true)}

	back, err := FromAny(ToAny(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, back)
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"id":"1","n":3,"x":null,"l":[true]}`))
	require.NoError(t, err)
	assert.Equal(t, IRObject{
		"id": IRString("1"),
		"n":  IRInt(3),
		"x":  IRNull{},
		"l":  IRArray{IRBool(true)},
	}, v)

	_, err = UnmarshalIRValue([]byte(`{"n":1.5}`))
	assert.Error(t, err)
}

func TestIRObjectJSON(t *testing.T) {
	obj := IRObject{"b": IRInt(2), "a": IRNull{}}
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"b":2}`, string(data))

	var back IRObject
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, obj, back)

	var arr IRArray
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1}]`), &arr))
	assert.Equal(t, IRArray{IRObject{"id": IRInt(1)}}, arr)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &back))
}

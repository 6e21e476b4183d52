package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKind_IsValid(t *testing.T) {
	assert.True(t, KindNumber.IsValid())
	assert.True(t, KindWeakMap.IsValid())
	assert.False(t, ValueKind("integer").IsValid())
}

func TestValueKind_IsReference(t *testing.T) {
	assert.False(t, KindNumber.IsReference())
	assert.False(t, KindUndefined.IsReference())
	assert.True(t, KindObject.IsReference())
	assert.True(t, KindPromise.IsReference())
}

func TestFromRaw(t *testing.T) {
	tests := []struct {
		name        string
		raw         interface{}
		wantKind    ValueKind
		wantDisplay string
	}{
		{name: "nil", raw: nil, wantKind: KindNull, wantDisplay: "null"},
		{name: "bool", raw: true, wantKind: KindBoolean, wantDisplay: "true"},
		{name: "int", raw: 42, wantKind: KindNumber, wantDisplay: "42"},
		{name: "float", raw: 1.5, wantKind: KindNumber, wantDisplay: "1.5"},
		{name: "string", raw: "hello", wantKind: KindString, wantDisplay: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := FromRaw(tt.raw)
			assert.Equal(t, tt.wantKind, value.Kind)
			assert.Equal(t, tt.wantDisplay, value.Display)
		})
	}
}

func TestFromRaw_Composite(t *testing.T) {
	value := FromRaw(map[string]interface{}{
		"name": "Ann",
		"tags": []interface{}{"a", "b"},
	})

	require.Equal(t, KindObject, value.Kind)
	assert.NotEmpty(t, value.ObjectID)

	name, ok := value.Member("name")
	require.True(t, ok)
	assert.Equal(t, "Ann", name.StringValue)

	tags, ok := value.Member("tags")
	require.True(t, ok)
	require.Equal(t, KindArray, tags.Kind)
	assert.Len(t, tags.Elements, 2)

	length, ok := tags.Member("length")
	require.True(t, ok)
	assert.Equal(t, float64(2), length.NumberValue)
}

func TestRuntimeValue_Equal_IdentityFirst(t *testing.T) {
	a := Object(map[string]RuntimeValue{"x": Number(1)})
	b := a.Clone()
	// Same id, diverged contents: still equal by identity
	b.Fields["x"] = Number(2)
	assert.True(t, a.Equal(b))

	// Distinct ids, same shape: falls back to display equality
	c := Object(map[string]RuntimeValue{"x": Number(1)})
	assert.True(t, a.Equal(c))

	assert.True(t, Number(3).Equal(Number(3)))
	assert.False(t, Number(3).Equal(String("3")))
}

func TestRuntimeValue_IsTruthy(t *testing.T) {
	assert.False(t, Undefined().IsTruthy())
	assert.False(t, Null().IsTruthy())
	assert.False(t, Boolean(false).IsTruthy())
	assert.False(t, Number(0).IsTruthy())
	assert.False(t, String("").IsTruthy())
	assert.True(t, Number(-1).IsTruthy())
	assert.True(t, String("0").IsTruthy())
	assert.True(t, Object(nil).IsTruthy())
}

func TestRuntimeValue_TypeName(t *testing.T) {
	assert.Equal(t, "undefined", Undefined().TypeName())
	assert.Equal(t, "object", Null().TypeName())
	assert.Equal(t, "number", Number(1).TypeName())
	assert.Equal(t, "function", RuntimeValue{Kind: KindFunction}.TypeName())
	assert.Equal(t, "object", RuntimeValue{Kind: KindRegExp}.TypeName())
}

func TestRuntimeValue_Clone_IsDeep(t *testing.T) {
	original := Object(map[string]RuntimeValue{
		"inner": Object(map[string]RuntimeValue{"n": Number(1)}),
	})
	clone := original.Clone()

	inner := clone.Fields["inner"]
	inner.Fields["n"] = Number(99)
	clone.Fields["inner"] = inner

	got, ok := original.Fields["inner"].Member("n")
	require.True(t, ok)
	assert.Equal(t, float64(1), got.NumberValue)
	assert.Equal(t, original.ObjectID, clone.ObjectID)
}

func TestSourceLocation_Keys(t *testing.T) {
	loc := SourceLocation{File: "app.js", Line: 10, Column: 4, Function: "main"}
	assert.Equal(t, "app.js:10:4", loc.Key())
	assert.Equal(t, "app.js:10", loc.LineKey())
	assert.True(t, loc.SameStatement(SourceLocation{File: "app.js", Line: 10, Column: 99}))
	assert.False(t, loc.SameStatement(SourceLocation{File: "app.js", Line: 11, Column: 4}))
}

func TestCallFrame_LookupAndShadowing(t *testing.T) {
	frame := &CallFrame{
		ID:   "f1",
		Name: "handler",
		Locals: []Binding{
			{Name: "x", Value: Number(1)},
			{Name: "y", Value: Number(2)},
			{Name: "x", Value: Number(3)}, // shadows the first x
		},
	}

	x, ok := frame.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, float64(3), x.NumberValue)

	_, ok = frame.Lookup("missing")
	assert.False(t, ok)
}

func TestCallFrame_Clone_IsDeep(t *testing.T) {
	this := Object(map[string]RuntimeValue{"id": Number(7)})
	frame := &CallFrame{
		ID:     "f1",
		Name:   "run",
		Locals: []Binding{{Name: "user", Value: Object(map[string]RuntimeValue{"name": String("Ann")})}},
		This:   &this,
	}

	clone := frame.Clone()
	clone.SetLocal("user", String("overwritten"))
	clone.This.Fields["id"] = Number(8)

	user, ok := frame.Lookup("user")
	require.True(t, ok)
	assert.Equal(t, KindObject, user.Kind)
	assert.Equal(t, float64(7), frame.This.Fields["id"].NumberValue)
}

func TestMemoryState_Clone_Isolation(t *testing.T) {
	mem := NewMemoryState()
	mem.Heap["obj-1"] = &HeapObject{
		ID:     "obj-1",
		Type:   KindObject,
		Fields: map[string]RuntimeValue{"count": Number(1)},
	}
	mem.Globals["version"] = String("1.0")

	clone := mem.Clone()

	// Mutate the live view; the clone must not observe it
	mem.Heap["obj-1"].Fields["count"] = Number(2)
	mem.Globals["version"] = String("2.0")
	mem.AllocationCount++

	assert.Equal(t, float64(1), clone.Heap["obj-1"].Fields["count"].NumberValue)
	assert.Equal(t, "1.0", clone.Globals["version"].StringValue)
	assert.Equal(t, int64(0), clone.AllocationCount)
}

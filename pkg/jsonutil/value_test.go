package jsonutil_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/go-graphql-guard/pkg/jsonutil"
)

func TestDecode_preservesKeyOrder(t *testing.T) {
	v, err := jsonutil.Decode([]byte(`{"zeta":1,"alpha":{"y":true,"b":null},"mid":["x",2.5]}`))
	require.NoError(t, err)

	m, ok := v.(jsonutil.Mapping)
	require.True(t, ok, "expected Mapping, got %T", v)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())

	alpha, ok := m.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []string{"y", "b"}, alpha.(jsonutil.Mapping).Keys())

	mid, _ := m.Get("mid")
	assert.Equal(t, jsonutil.Sequence{jsonutil.String("x"), jsonutil.Number("2.5")}, mid)
}

func TestDecode_scalars(t *testing.T) {
	tests := []struct {
		in   string
		want jsonutil.Value
	}{
		{`null`, jsonutil.Null{}},
		{`true`, jsonutil.Bool(true)},
		{`12345678901234567890`, jsonutil.Number("12345678901234567890")},
		{`"hi"`, jsonutil.String("hi")},
		{`[]`, jsonutil.Sequence{}},
		{`{}`, jsonutil.Mapping{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := jsonutil.Decode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_errors(t *testing.T) {
	for _, in := range []string{``, `{"a":`, `{"a":1} {}`, `[1,`} {
		_, err := jsonutil.Decode([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestEncode_roundTrip(t *testing.T) {
	in := `{"b":[1,"two",{"c":null}],"a":false,"n":-0.5e3}`
	v, err := jsonutil.Decode([]byte(in))
	require.NoError(t, err)

	out, err := jsonutil.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))

	// json.Marshal goes through the Marshaler implementations.
	viaStd, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, in, string(viaStd))
}

func TestMapping_SetDelete(t *testing.T) {
	m := jsonutil.Mapping{
		{Key: "a", Value: jsonutil.Number("1")},
		{Key: "b", Value: jsonutil.Number("2")},
	}

	set := m.Set("a", jsonutil.String("x")).Set("c", jsonutil.Bool(true))
	assert.Equal(t, []string{"a", "b", "c"}, set.Keys())
	got, _ := set.Get("a")
	assert.Equal(t, jsonutil.String("x"), got)

	del := set.Delete("b")
	assert.Equal(t, []string{"a", "c"}, del.Keys())

	// receiver untouched
	orig, _ := m.Get("a")
	assert.Equal(t, jsonutil.Number("1"), orig)
	assert.Len(t, m, 2)
}

func TestFromAny(t *testing.T) {
	in := map[string]any{
		"name":  "Rick",
		"age":   70,
		"ratio": 0.25,
		"nan":   math.NaN(),
		"tags":  []string{"a", "b"},
		"list":  []any{true, nil},
		"raw":   json.RawMessage(`{"z":1,"y":2}`),
	}
	v := jsonutil.FromAny(in)
	m, ok := v.(jsonutil.Mapping)
	require.True(t, ok)
	assert.Equal(t, []string{"age", "list", "name", "nan", "ratio", "raw", "tags"}, m.Keys())

	age, _ := m.Get("age")
	assert.Equal(t, jsonutil.Number("70"), age)
	nan, _ := m.Get("nan")
	assert.Equal(t, jsonutil.Null{}, nan)
	raw, _ := m.Get("raw")
	assert.Equal(t, []string{"z", "y"}, raw.(jsonutil.Mapping).Keys())
	list, _ := m.Get("list")
	assert.Equal(t, jsonutil.Sequence{jsonutil.Bool(true), jsonutil.Null{}}, list)
}

func TestFromAny_struct(t *testing.T) {
	type character struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	v := jsonutil.FromAny(character{ID: "1", Name: "Morty"})
	assert.Equal(t, jsonutil.Mapping{
		{Key: "id", Value: jsonutil.String("1")},
		{Key: "name", Value: jsonutil.String("Morty")},
	}, v)

	var nilPtr *character
	assert.Equal(t, jsonutil.Null{}, jsonutil.FromAny(nilPtr))
}

func TestToAnyAndUnmarshal(t *testing.T) {
	v, err := jsonutil.Decode([]byte(`{"a":[1,"x",null],"b":{"c":true}}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": []any{json.Number("1"), "x", nil},
		"b": map[string]any{"c": true},
	}, jsonutil.ToAny(v))

	var out struct {
		B struct {
			C bool `json:"c"`
		} `json:"b"`
	}
	require.NoError(t, jsonutil.Unmarshal(v, &out))
	assert.True(t, out.B.C)
}

func TestEqual(t *testing.T) {
	a, _ := jsonutil.Decode([]byte(`{"a":1,"b":[true]}`))
	b, _ := jsonutil.Decode([]byte(`{"a":1,"b":[true]}`))
	c, _ := jsonutil.Decode([]byte(`{"b":[true],"a":1}`))

	assert.True(t, jsonutil.Equal(a, b))
	assert.False(t, jsonutil.Equal(a, c), "member order is significant")
	assert.True(t, jsonutil.Equal(nil, jsonutil.Null{}))
	assert.False(t, jsonutil.Equal(jsonutil.Number("1"), jsonutil.String("1")))
}

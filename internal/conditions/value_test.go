package conditions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind Kind
		text string
	}{
		{"nil", nil, KindNull, ""},
		{"string", "Hot Lead", KindString, "Hot Lead"},
		{"integer float", float64(142), KindNumber, "142"},
		{"fraction", 10.5, KindNumber, "10.5"},
		{"int", 7, KindNumber, "7"},
		{"bool", true, KindBool, "true"},
		{"list", []any{"a", float64(2)}, KindList, "a, 2"},
		{"json number", json.Number("20.50"), KindNumber, "20.5"},
		{"large json integer", json.Number("12345678901234567"), KindNumber, "12345678901234567"},
		{"large int64", int64(9007199254740993), KindNumber, "9007199254740993"},
		{"exponent", json.Number("1e3"), KindNumber, "1000"},
		{"object", map[string]any{"k": "v"}, KindString, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FromAny(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.Text())
		})
	}
}

func TestValue_IsEmpty(t *testing.T) {
	assert.True(t, Absent().IsEmpty())
	assert.True(t, Null().IsEmpty())
	assert.True(t, String("").IsEmpty())
	assert.True(t, List().IsEmpty())

	assert.False(t, String(" ").IsEmpty())
	assert.False(t, Number(0).IsEmpty())
	assert.False(t, Bool(false).IsEmpty())
	assert.False(t, List(String("")).IsEmpty())
}

func TestValue_Float(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want float64
		ok   bool
	}{
		{"number", Number(3.5), 3.5, true},
		{"numeric string", String(" 150 "), 150, true},
		{"not numeric", String("N/A"), 0, false},
		{"bool", Bool(true), 1, true},
		{"list", List(Number(1)), 0, false},
		{"absent", Absent(), 0, false},
		{"null", Null(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Float()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_JSON(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`[10, "x", null, true, 20.50]`), &v))
	require.Equal(t, KindList, v.Kind())
	assert.Len(t, v.Items(), 5)
	assert.Equal(t, KindNull, v.Items()[2].Kind())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `[10,"x",null,true,20.50]`, string(out))

	out, err = json.Marshal(Number(1.25))
	require.NoError(t, err)
	assert.Equal(t, `1.25`, string(out))
}

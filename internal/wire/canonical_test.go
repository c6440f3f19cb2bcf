package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"int", Int(-100), "-100"},
		{"bool", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty map", Map{}, "{}"},
		{"sorted keys", Map{"zebra": Int(1), "alpha": Int(2)}, `{"alpha":2,"zebra":1}`},
		{"nested", Map{"z": Map{"b": Int(1), "a": Int(2)}, "a": Array{Bool(true)}}, `{"a":[true],"z":{"a":2,"b":1}}`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
		{"line separator", String("a\u2028b"), "\"a\u2028b\""},
		{"escaped backslash", String(`\u2028`), `"\\u2028"`},
		{"nfc", String("e\u0301"), "\"\u00e9\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	for _, v := range []Value{Double(1.5), Null{}, Data{1}, Object{Type: "A", ID: 1}} {
		_, err := MarshalCanonical(Map{"k": v})
		assert.Error(t, err, "%T", v)
	}
}

func TestSchemaHash(t *testing.T) {
	a, err := SchemaHash(Map{"x": Int(1), "y": String("z")})
	require.NoError(t, err)
	b, err := SchemaHash(Map{"y": String("z"), "x": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := SchemaHash(Map{"x": Int(2), "y": String("z")})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = SchemaHash(Double(1))
	assert.Error(t, err)
}

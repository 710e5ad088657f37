package fieldtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_String(t *testing.T) {
	assert.Equal(t, "Number", Of(Number).String())
	assert.Equal(t, "[Boolean]", ArrayOf(Boolean).String())
	assert.Equal(t, "Invalid", Type{}.String())
	assert.Equal(t, "Invalid", Kind(42).String())
}

func TestType_Valid(t *testing.T) {
	assert.True(t, Of(Object).Valid())
	assert.True(t, ArrayOf(Date).Valid())
	assert.False(t, Type{}.Valid())
	assert.False(t, ArrayOf(Invalid).Valid())
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
	}{
		{"Number", Of(Number)},
		{"boolean", Of(Boolean)},
		{" String ", Of(String)},
		{"[Date]", ArrayOf(Date)},
		{"[ object ]", ArrayOf(Object)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, k := range []Kind{Number, Boolean, String, Date, Object} {
		for _, typ := range []Type{Of(k), ArrayOf(k)} {
			got, err := Parse(typ.String())
			require.NoError(t, err)
			assert.Equal(t, typ, got)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "Array", "[Number", "[]", "Invalid"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestFromSQL(t *testing.T) {
	tests := []struct {
		sqlType  string
		expected Type
	}{
		{"int", Of(Number)},
		{"BIGINT", Of(Number)},
		{"decimal(10,2)", Of(Number)},
		{"double precision", Of(Number)},
		{"int4", Of(Number)},
		{"tinyint(1)", Of(Number)},
		{"boolean", Of(Boolean)},
		{"bool", Of(Boolean)},
		{"varchar(255)", Of(String)},
		{"text", Of(String)},
		{"character varying", Of(String)},
		{"uuid", Of(String)},
		{"datetime", Of(Date)},
		{"timestamp with time zone", Of(Date)},
		{"timestamptz", Of(Date)},
		{"date", Of(Date)},
		{"json", Of(Object)},
		{"jsonb", Of(Object)},
		{"_int4", ArrayOf(Number)},
		{"_text", ArrayOf(String)},
		{"_bool", ArrayOf(Boolean)},
		{"_timestamptz", ArrayOf(Date)},
		{"_jsonb", ArrayOf(Object)},
		{"integer[]", ArrayOf(Number)},
		{"character varying(20)[]", ArrayOf(String)},
		{"geometry", Of(String)},
		{"varchar(", Of(String)},
	}

	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromSQL(tt.sqlType))
		})
	}
}

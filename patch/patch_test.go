package patch

import (
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/luatable"
	"github.com/shibukawa/sourcelink/pathparser"
	"github.com/shopspring/decimal"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		declared sourcelink.Type
		dialect  Dialect
		expected string
	}{
		{name: "string", value: "Axe", declared: sourcelink.TypeString, expected: `"Axe"`},
		{name: "string escapes", value: "a\"b\\c\nd\te\r", declared: sourcelink.TypeString, expected: `"a\"b\\c\nd\te\r"`},
		{name: "string NUL lua", value: "a\x00b", declared: sourcelink.TypeString, expected: `"a\0b"`},
		{name: "string NUL json", value: "a\x00b", declared: sourcelink.TypeString, dialect: DialectJSON, expected: `"a\u0000b"`},
		{name: "string control json", value: "a\x01b", declared: sourcelink.TypeString, dialect: DialectJSON, expected: `"a\u0001b"`},
		{name: "int", value: 250, declared: sourcelink.TypeInt, expected: "250"},
		{name: "int64", value: int64(-3), declared: sourcelink.TypeInt, expected: "-3"},
		{name: "integral float as int", value: float64(7), declared: sourcelink.TypeInt, expected: "7"},
		{name: "float", value: 2.5, declared: sourcelink.TypeFloat, expected: "2.5"},
		{name: "float keeps point", value: float64(3), declared: sourcelink.TypeFloat, expected: "3.0"},
		{name: "decimal exact", value: decimal.RequireFromString("0.30"), declared: sourcelink.TypeFloat, expected: "0.30"},
		{name: "decimal int", value: decimal.RequireFromString("42"), declared: sourcelink.TypeInt, expected: "42"},
		{name: "bool", value: true, declared: sourcelink.TypeBool, expected: "true"},
		{name: "nil lua", value: nil, declared: sourcelink.TypeNil, expected: "nil"},
		{name: "nil json", value: nil, declared: sourcelink.TypeNil, dialect: DialectJSON, expected: "null"},
		{name: "array lua", value: []any{1, "a", true}, declared: sourcelink.TypeArray, expected: `{1, "a", true}`},
		{name: "array json", value: []any{1, "a", true}, declared: sourcelink.TypeArray, dialect: DialectJSON, expected: `[1, "a", true]`},
		{name: "nested array", value: []any{[]any{1, 2}}, declared: sourcelink.TypeArray, expected: `{{1, 2}}`},
		{name: "object lua", value: map[string]any{"hp": 10, "name": "slime"}, declared: sourcelink.TypeObject, expected: `{hp = 10, name = "slime"}`},
		{name: "object json", value: map[string]any{"hp": 10, "name": "slime"}, declared: sourcelink.TypeObject, dialect: DialectJSON, expected: `{"hp": 10, "name": "slime"}`},
		{name: "object odd key lua", value: map[string]any{"max hp": 1}, declared: sourcelink.TypeObject, expected: `{["max hp"] = 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := FormatValue(tt.value, tt.declared, tt.dialect)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestFormatValueTypeMismatch(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		declared sourcelink.Type
	}{
		{name: "string declared int", value: "abc", declared: sourcelink.TypeInt},
		{name: "fractional float declared int", value: 2.5, declared: sourcelink.TypeInt},
		{name: "int declared string", value: 5, declared: sourcelink.TypeString},
		{name: "int declared bool", value: 1, declared: sourcelink.TypeBool},
		{name: "value declared nil", value: 0, declared: sourcelink.TypeNil},
		{name: "map declared array", value: map[string]any{}, declared: sourcelink.TypeArray},
		{name: "unknown declared type", value: 1, declared: sourcelink.Type("vector")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormatValue(tt.value, tt.declared, DialectLua)
			assert.Error(t, err)
			assert.IsError(t, err, sourcelink.ErrTypeMismatch)
		})
	}
}

func TestApplyRangePatch(t *testing.T) {
	source := "Config = { HP = 100 }"

	patched, err := ApplyRangePatch(source, sourcelink.Range{Start: 16, End: 19}, "250")
	assert.NoError(t, err)
	assert.Equal(t, "Config = { HP = 250 }", patched)
}

func TestApplyRangePatchBounds(t *testing.T) {
	for _, r := range []sourcelink.Range{
		{Start: -1, End: 3},
		{Start: 0, End: 100},
		{Start: 5, End: 2},
	} {
		_, err := ApplyRangePatch("short", r, "x")
		assert.Error(t, err)
		assert.IsError(t, err, sourcelink.ErrWriteFailed)
	}
}

func TestRangeExclusivity(t *testing.T) {
	source := "aaa bbb ccc"
	r := sourcelink.Range{Start: 4, End: 7}

	patched, err := ApplyRangePatch(source, r, "XXXXX")
	assert.NoError(t, err)
	assert.Equal(t, source[:r.Start], patched[:r.Start])
	assert.Equal(t, source[r.End:], patched[r.Start+5:])
}

// Scenario A: locating a value and patching it touches nothing else.
func TestScenarioA(t *testing.T) {
	source := "Config = { HP = 100 }"

	chunk, err := luatable.Parse(source)
	assert.NoError(t, err)

	segments, err := pathparser.Parse("Config.HP")
	assert.NoError(t, err)

	node, err := chunk.Locate(segments)
	assert.NoError(t, err)

	literal, err := FormatValue(250, sourcelink.TypeInt, DialectLua)
	assert.NoError(t, err)

	patched, err := ApplyRangePatch(source, node.Range, literal)
	assert.NoError(t, err)
	assert.Equal(t, "Config = { HP = 250 }", patched)
}

// Round-trip identity: patching a value with its own literal text must
// reproduce the source byte for byte.
func TestRoundTripIdentity(t *testing.T) {
	source := `
-- tuning values, do not reorder
Config = {
    HP = 100, -- hit points
    name = "hero",
    ratio = 0.5,
}
`

	chunk, err := luatable.Parse(source)
	assert.NoError(t, err)

	for _, path := range []string{"Config.HP", "Config.name", "Config.ratio"} {
		segments, err := pathparser.Parse(path)
		assert.NoError(t, err)

		node, err := chunk.Locate(segments)
		assert.NoError(t, err)

		patched, err := ApplyRangePatch(source, node.Range, node.Raw)
		assert.NoError(t, err)
		assert.Equal(t, source, patched)
	}
}

// Byte preservation: comments survive any scalar patch unchanged and in
// order.
func TestCommentPreservation(t *testing.T) {
	source := `
-- header comment
Config = {
    HP = 100, -- inline note
    --[[ block
    comment ]]
    MP = 50,
}
-- footer comment
`

	chunk, err := luatable.Parse(source)
	assert.NoError(t, err)

	segments, err := pathparser.Parse("Config.HP")
	assert.NoError(t, err)

	node, err := chunk.Locate(segments)
	assert.NoError(t, err)

	patched, err := ApplyRangePatch(source, node.Range, "9999")
	assert.NoError(t, err)

	for _, comment := range []string{
		"-- header comment",
		"-- inline note",
		"--[[ block\n    comment ]]",
		"-- footer comment",
	} {
		assert.Equal(t, 1, strings.Count(patched, comment))
	}

	// Relative order of comments is unchanged
	assert.True(t, strings.Index(patched, "-- header comment") < strings.Index(patched, "-- inline note"))
	assert.True(t, strings.Index(patched, "-- inline note") < strings.Index(patched, "-- footer comment"))
}

package luatable

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/pathparser"
)

func mustPath(t *testing.T, path string) []pathparser.Segment {
	t.Helper()

	segments, err := pathparser.Parse(path)
	assert.NoError(t, err)

	return segments
}

func locate(t *testing.T, source, path string) *Node {
	t.Helper()

	chunk, err := Parse(source)
	assert.NoError(t, err)

	node, err := chunk.Locate(mustPath(t, path))
	assert.NoError(t, err)

	return node
}

func TestLocateScalar(t *testing.T) {
	source := "Config = { HP = 100 }"

	node := locate(t, source, "Config.HP")
	assert.Equal(t, sourcelink.KindNumber, node.Kind)
	assert.True(t, node.IsInt)
	assert.Equal(t, int64(100), node.Int)
	assert.Equal(t, "100", node.Raw)
	assert.Equal(t, "100", source[node.Range.Start:node.Range.End])
}

func TestLocateKinds(t *testing.T) {
	source := `
local Settings = {
    name = "hero",
    speed = 2.5,
    alive = true,
    ghost = nil,
    on_hit = function(dmg) return dmg * 2 end,
    max = math.huge,
    nested = { deep = { value = 42 } },
}
`

	tests := []struct {
		path string
		kind sourcelink.Kind
		raw  string
	}{
		{path: "Settings.name", kind: sourcelink.KindString, raw: `"hero"`},
		{path: "Settings.speed", kind: sourcelink.KindNumber, raw: "2.5"},
		{path: "Settings.alive", kind: sourcelink.KindBoolean, raw: "true"},
		{path: "Settings.ghost", kind: sourcelink.KindNil, raw: "nil"},
		{path: "Settings.on_hit", kind: sourcelink.KindFunction, raw: "function(dmg) return dmg * 2 end"},
		{path: "Settings.max", kind: sourcelink.KindExpression, raw: "math.huge"},
		{path: "Settings.nested.deep.value", kind: sourcelink.KindNumber, raw: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			node := locate(t, source, tt.path)
			assert.Equal(t, tt.kind, node.Kind)
			assert.Equal(t, tt.raw, node.Raw)
			assert.Equal(t, tt.raw, source[node.Range.Start:node.Range.End])
		})
	}
}

func TestLocatePositionalIndexIsOneBased(t *testing.T) {
	source := `Items = { "sword", "bow", "axe" }`

	node := locate(t, source, "Items[1]")
	assert.Equal(t, "sword", node.Str)

	node = locate(t, source, "Items[3]")
	assert.Equal(t, "axe", node.Str)

	chunk, err := Parse(source)
	assert.NoError(t, err)

	_, err = chunk.Locate(mustPath(t, "Items[0]"))
	assert.IsError(t, err, sourcelink.ErrKeyNotFound)

	_, err = chunk.Locate(mustPath(t, "Items[4]"))
	assert.IsError(t, err, sourcelink.ErrKeyNotFound)
}

func TestLocateExplicitIndexAndStringKey(t *testing.T) {
	source := `T = { [1] = "a", [2] = "b", ["odd key"] = "c" }`

	assert.Equal(t, "a", locate(t, source, "T[1]").Str)
	assert.Equal(t, "b", locate(t, source, "T[2]").Str)
	assert.Equal(t, "c", locate(t, source, `T["odd key"]`).Str)
}

func TestLocateLastRootDeclarationWins(t *testing.T) {
	// Root declared twice: the most recent declaration in source order is
	// authoritative, regardless of local vs global.
	source := "local Config = { HP = 1 }\nConfig = { HP = 2 }\n"

	node := locate(t, source, "Config.HP")
	assert.Equal(t, int64(2), node.Int)
}

func TestLocateLastDuplicateFieldWins(t *testing.T) {
	source := "Config = { HP = 10, HP = 20 }"

	node := locate(t, source, "Config.HP")
	assert.Equal(t, int64(20), node.Int)
}

func TestLocateNotFound(t *testing.T) {
	source := "Config = { HP = 100 }"
	chunk, err := Parse(source)
	assert.NoError(t, err)

	tests := []string{
		"NonExistent.Value",
		"Config.MP",
		"Config.HP.deeper",
		"Config[1]",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := chunk.Locate(mustPath(t, path))
			assert.Error(t, err)
			assert.IsError(t, err, sourcelink.ErrKeyNotFound)
		})
	}
}

func TestParseSkipsUnrelatedStatements(t *testing.T) {
	source := `
print("loading")

local function helper(x)
    local hidden = { HP = -1 }
    return hidden
end

Config = { HP = 100 }

if debug_mode then
    Config = { HP = 999 }
end

return Config
`

	chunk, err := Parse(source)
	assert.NoError(t, err)

	// The declaration inside helper() and the one inside the if block are
	// not top level; only the real one must be found.
	node, err := chunk.Locate(mustPath(t, "Config.HP"))
	assert.NoError(t, err)
	assert.Equal(t, int64(100), node.Int)

	_, err = chunk.Locate(mustPath(t, "hidden.HP"))
	assert.IsError(t, err, sourcelink.ErrKeyNotFound)
}

func TestParseMultipleLocalAssignment(t *testing.T) {
	source := "local a, b = 1, 2"
	chunk, err := Parse(source)
	assert.NoError(t, err)

	assert.Equal(t, int64(1), locate(t, source, "a").Int)
	assert.Equal(t, int64(2), locate(t, source, "b").Int)
	_ = chunk
}

func TestParseNumbers(t *testing.T) {
	source := "N = { a = 10, b = -3, c = 2.5, d = 1e3, e = 0x1F }"

	tests := []struct {
		path  string
		isInt bool
		i     int64
		f     float64
	}{
		{path: "N.a", isInt: true, i: 10},
		{path: "N.b", isInt: true, i: -3},
		{path: "N.c", isInt: false, f: 2.5},
		{path: "N.d", isInt: false, f: 1000},
		{path: "N.e", isInt: true, i: 31},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			node := locate(t, source, tt.path)
			assert.Equal(t, tt.isInt, node.IsInt)
			if tt.isInt {
				assert.Equal(t, tt.i, node.Int)
			} else {
				assert.Equal(t, tt.f, node.Num)
			}
		})
	}
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "plain", raw: `"abc"`, expected: "abc"},
		{name: "single quoted", raw: `'abc'`, expected: "abc"},
		{name: "escapes", raw: `"a\nb\tc\\d\"e"`, expected: "a\nb\tc\\d\"e"},
		{name: "decimal escape", raw: `"\65\66"`, expected: "AB"},
		{name: "hex escape", raw: `"\x41"`, expected: "A"},
		{name: "long bracket", raw: "[[line1\nline2]]", expected: "line1\nline2"},
		{name: "long bracket drops leading newline", raw: "[[\nline1]]", expected: "line1"},
		{name: "leveled bracket", raw: "[=[a ]] b]=]", expected: "a ]] b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := DecodeString(tt.raw)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, decoded)
		})
	}
}

func TestCommentsNeverInsideNodeRanges(t *testing.T) {
	source := `
-- hit points tuning
Config = {
    HP = 100, -- raise carefully
    MP = 50,
}
`

	chunk, err := Parse(source)
	assert.NoError(t, err)

	for _, path := range []string{"Config", "Config.HP", "Config.MP"} {
		node, err := chunk.Locate(mustPath(t, path))
		assert.NoError(t, err)

		text := source[node.Range.Start:node.Range.End]
		if path != "Config" {
			assert.NotContains(t, text, "--")
		}
		assert.Equal(t, node.Raw, text)
	}
}

func TestRangesSurviveNonASCIIContent(t *testing.T) {
	source := `Config = { name = "héllo", hp = 100 }`

	node := locate(t, source, "Config.name")
	assert.Equal(t, `"héllo"`, node.Raw)
	assert.Equal(t, `"héllo"`, source[node.Range.Start:node.Range.End])

	// Splicing a node's own text back must reproduce the source exactly;
	// a range widened by multi-byte characters would swallow neighbors.
	patched := source[:node.Range.Start] + node.Raw + source[node.Range.End:]
	assert.Equal(t, source, patched)

	hp := locate(t, source, "Config.hp")
	assert.Equal(t, "100", source[hp.Range.Start:hp.Range.End])
	assert.Equal(t, int64(100), hp.Int)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unterminated table", input: "Config = { HP = 100"},
		{name: "missing value", input: "Config = { HP = }"},
		{name: "unterminated string", input: `Config = { name = "x }`},
		{name: "bad bracket key", input: "Config = { [{}] = 1 }"},
		{name: "missing bracket close", input: `Config = { ["k" = 1 }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
			assert.IsError(t, err, sourcelink.ErrParseFailed)
		})
	}
}

func TestParseDepthLimit(t *testing.T) {
	source := "D = " + deepTable(10)

	_, err := Parse(source, Options{MaxDepth: 5})
	assert.Error(t, err)
	assert.IsError(t, err, sourcelink.ErrMaxDepthExceeded)

	_, err = Parse(source)
	assert.NoError(t, err)
}

func deepTable(depth int) string {
	if depth == 0 {
		return "1"
	}
	return "{ x = " + deepTable(depth-1) + " }"
}

func TestInterface(t *testing.T) {
	source := `V = { list = { 1, 2, 3 }, rec = { a = "x" }, n = 1.5 }`

	node := locate(t, source, "V")
	value := node.Interface()

	expected := map[string]any{
		"list": []any{int64(1), int64(2), int64(3)},
		"rec":  map[string]any{"a": "x"},
		"n":    1.5,
	}
	assert.Equal(t, expected, value.(map[string]any))
}

func TestExtractRows(t *testing.T) {
	source := `
Enemies = {
    { id = 1, name = "slime", hp = 10 },
    { id = 2, name = "bat", hp = 5 },
    { id = 3, name = "golem", hp = 80 },
}
`

	node := locate(t, source, "Enemies")

	table, err := ExtractRows(node)
	assert.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "hp"}, table.Columns)
	assert.Equal(t, 3, len(table.Rows))
	assert.Equal(t, "bat", table.Rows[1].Data["name"])
	assert.Equal(t, int64(80), table.Rows[2].Data["hp"].(int64))

	// Each cell's range must point at the exact value text.
	ref := table.Rows[1].Refs["name"]
	assert.NotZero(t, ref.Range)
	assert.Equal(t, `"bat"`, source[ref.Range.Start:ref.Range.End])
}

func TestExtractRowsRejectsNonArray(t *testing.T) {
	tests := []struct {
		name   string
		source string
		path   string
	}{
		{name: "record table", source: "T = { a = 1 }", path: "T"},
		{name: "scalar elements", source: "T = { 1, 2, 3 }", path: "T"},
		{name: "sparse explicit indices", source: "T = { [1] = { a = 1 }, [3] = { a = 2 } }", path: "T"},
		{name: "scalar node", source: "T = 5", path: "T"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := locate(t, tt.source, tt.path)

			_, err := ExtractRows(node)
			assert.Error(t, err)
			assert.IsError(t, err, sourcelink.ErrNotArrayNode)
		})
	}
}

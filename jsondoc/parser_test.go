package jsondoc

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

	doc, err := Parse(source)
	assert.NoError(t, err)

	node, err := doc.Locate(mustPath(t, path))
	assert.NoError(t, err)

	return node
}

func TestParseKinds(t *testing.T) {
	source := `{
  "name": "hero",
  "hp": 100,
  "speed": 2.5,
  "alive": true,
  "ghost": null,
  "tags": ["melee", "boss"],
  "stats": {"str": 8}
}`

	tests := []struct {
		path string
		kind sourcelink.Kind
		raw  string
	}{
		{path: "name", kind: sourcelink.KindString, raw: `"hero"`},
		{path: "hp", kind: sourcelink.KindNumber, raw: "100"},
		{path: "speed", kind: sourcelink.KindNumber, raw: "2.5"},
		{path: "alive", kind: sourcelink.KindBoolean, raw: "true"},
		{path: "ghost", kind: sourcelink.KindNil, raw: "null"},
		{path: "tags", kind: sourcelink.KindTable, raw: `["melee", "boss"]`},
		{path: "tags[0]", kind: sourcelink.KindString, raw: `"melee"`},
		{path: "stats.str", kind: sourcelink.KindNumber, raw: "8"},
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

func TestParseJSONCExtensions(t *testing.T) {
	source := `{
  // player tuning
  "hp": 100, /* raise carefully */
  "mp": 50,
}`

	doc, err := Parse(source)
	assert.NoError(t, err)

	node, err := doc.Locate(mustPath(t, "hp"))
	assert.NoError(t, err)
	assert.Equal(t, int64(100), node.Int)

	// Trailing comma in arrays too
	doc, err = Parse(`[1, 2, 3,]`)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(doc.Root.Elements))
}

func TestLocateTopLevelArrayRoot(t *testing.T) {
	// The root identifier denotes the array itself when the document root
	// is an array; indices are 0-based.
	source := `[{"id":1,"name":"Sword"},{"id":2,"name":"Bow"}]`

	node := locate(t, source, "Items[1].name")
	assert.Equal(t, "Bow", node.Str)
	assert.Equal(t, `"Bow"`, source[node.Range.Start:node.Range.End])

	doc, err := Parse(source)
	assert.NoError(t, err)

	_, err = doc.Locate(mustPath(t, "Items[2]"))
	assert.IsError(t, err, sourcelink.ErrKeyNotFound)
}

func TestLocateDuplicateKeyLastWins(t *testing.T) {
	source := `{"hp": 1, "hp": 2}`

	node := locate(t, source, "hp")
	assert.Equal(t, int64(2), node.Int)
}

func TestLocateNotFound(t *testing.T) {
	doc, err := Parse(`{"config": {"hp": 100}, "list": [1]}`)
	assert.NoError(t, err)

	for _, path := range []string{
		"missing",
		"config.mp",
		"config.hp.deeper",
		"config[0]",
		"list.key",
		"list[1]",
	} {
		t.Run(path, func(t *testing.T) {
			_, err := doc.Locate(mustPath(t, path))
			assert.Error(t, err)
			assert.IsError(t, err, sourcelink.ErrKeyNotFound)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bare word", input: "hello"},
		{name: "unterminated object", input: `{"a": 1`},
		{name: "unterminated string", input: `{"a": "x`},
		{name: "unterminated comment", input: `{"a": 1} /* tail`},
		{name: "missing colon", input: `{"a" 1}`},
		{name: "bad number", input: `{"a": 1.}`},
		{name: "trailing content", input: `{"a": 1} {"b": 2}`},
		{name: "bad escape", input: `{"a": "\q"}`},
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
	source := `{"a": [[[[[[1]]]]]]}`

	_, err := Parse(source, Options{MaxDepth: 3})
	assert.Error(t, err)
	assert.IsError(t, err, sourcelink.ErrMaxDepthExceeded)

	_, err = Parse(source)
	assert.NoError(t, err)
}

func TestStringDecoding(t *testing.T) {
	source := `{"s": "a\nb\t\"c\"A"}`

	node := locate(t, source, "s")
	assert.Equal(t, "a\nb\t\"c\"A", node.Str)
}

func TestStringDecodingSurrogatePair(t *testing.T) {
	source := `{"face": "\uD83D\uDE00!"}`

	node := locate(t, source, "face")
	assert.Equal(t, "\U0001F600!", node.Str)

	// Escapes never widen the node's source range.
	assert.Equal(t, `"\uD83D\uDE00!"`, source[node.Range.Start:node.Range.End])

	for _, bad := range []string{`{"s": "\uD83D"}`, `{"s": "\uD83Dx"}`, `{"s": "\uD83D\uD83D"}`} {
		_, err := Parse(bad)
		assert.IsError(t, err, ErrInvalidEscape)
	}
}

func TestExtractRows(t *testing.T) {
	source := `[
  {"id": 1, "name": "Sword", "price": 100},
  {"id": 2, "name": "Bow", "price": 150, "rare": true}
]`

	doc, err := Parse(source)
	assert.NoError(t, err)

	table, err := ExtractRows(doc.Root)
	assert.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "price", "rare"}, table.Columns)
	assert.Equal(t, 2, len(table.Rows))
	assert.Equal(t, "Sword", table.Rows[0].Data["name"])
	assert.Equal(t, true, table.Rows[1].Data["rare"])

	ref := table.Rows[1].Refs["name"]
	assert.Equal(t, `"Bow"`, source[ref.Range.Start:ref.Range.End])
}

func TestExtractRowsRejectsNonArray(t *testing.T) {
	for _, source := range []string{
		`{"a": 1}`,
		`[1, 2, 3]`,
		`[{"a": 1}, [2]]`,
	} {
		doc, err := Parse(source)
		assert.NoError(t, err)

		_, err = ExtractRows(doc.Root)
		assert.Error(t, err)
		assert.IsError(t, err, sourcelink.ErrNotArrayNode)
	}
}

func TestApplyEdits(t *testing.T) {
	source := `{"a": 1, "b": 2}`

	doc, err := Parse(source)
	assert.NoError(t, err)

	editsA, err := SetValueEdits(doc, mustPath(t, "a"), "10")
	assert.NoError(t, err)

	editsB, err := SetValueEdits(doc, mustPath(t, "b"), "20")
	assert.NoError(t, err)

	patched, err := ApplyEdits(source, append(editsA, editsB...))
	assert.NoError(t, err)
	assert.Equal(t, `{"a": 10, "b": 20}`, patched)
}

func TestApplyEditsRejectsOverlap(t *testing.T) {
	_, err := ApplyEdits("0123456789", []Edit{
		{Range: sourcelink.Range{Start: 2, End: 6}, NewText: "x"},
		{Range: sourcelink.Range{Start: 4, End: 8}, NewText: "y"},
	})
	assert.Error(t, err)
}

func TestScenarioBOnlyTargetTokenChanges(t *testing.T) {
	source := `[{"id":1,"name":"Sword"},{"id":2,"name":"Bow"}]`

	doc, err := Parse(source)
	assert.NoError(t, err)

	edits, err := SetValueEdits(doc, mustPath(t, "Items[1].name"), `"Axe"`)
	assert.NoError(t, err)

	patched, err := ApplyEdits(source, edits)
	assert.NoError(t, err)
	assert.Equal(t, `[{"id":1,"name":"Sword"},{"id":2,"name":"Axe"}]`, patched)
}

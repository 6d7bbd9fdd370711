package bindingdoc

import (
	"strings"
	"testing"

	"github.com/shibukawa/sourcelink"
	"github.com/stretchr/testify/assert"
)

const sampleDoc = `---
title: Game Tuning
base_dir: data
---

# Game Tuning

Player survivability knobs.

` + "```binding" + `
id: player-hp
name: Player HP
file: config.lua
path: Config.HP
type: int
widget: slider
` + "```" + `

Loot tables live in the item sheet.

` + "```bindings" + `
- file: items.json
  path: Items[1].name
  type: string
- file: items.xlsx
  path: Items[2].price
  type: int
` + "```" + `
`

func TestParseDocument(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDoc))
	assert.NoError(t, err)

	assert.Equal(t, "Game Tuning", doc.Title)
	assert.Equal(t, "data", doc.BaseDir)
	assert.Len(t, doc.Bindings, 3)

	first := doc.Bindings[0]
	assert.Equal(t, "player-hp", first.ID)
	assert.Equal(t, "Player HP", first.Name)
	assert.Equal(t, "config.lua", first.File)
	assert.Equal(t, "Config.HP", first.Path)
	assert.Equal(t, sourcelink.TypeInt, first.Type)
	assert.Equal(t, "slider", first.Widget)

	// Document order is preserved across blocks
	assert.Equal(t, "items.json", doc.Bindings[1].File)
	assert.Equal(t, "items.xlsx", doc.Bindings[2].File)

	// Missing ids are generated, and generated ids are distinct
	assert.NotEmpty(t, doc.Bindings[1].ID)
	assert.NotEmpty(t, doc.Bindings[2].ID)
	assert.NotEqual(t, doc.Bindings[1].ID, doc.Bindings[2].ID)
}

func TestParseBlockLines(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleDoc))
	assert.NoError(t, err)

	lines := strings.Split(sampleDoc, "\n")
	assert.Equal(t, "```binding", lines[doc.Bindings[0].Line-1])
	assert.Equal(t, "```bindings", lines[doc.Bindings[1].Line-1])
}

func TestParseTitleFromHeading(t *testing.T) {
	doc, err := Parse(strings.NewReader("# Balance Sheet\n\n```binding\nfile: a.lua\npath: A\n```\n"))
	assert.NoError(t, err)
	assert.Equal(t, "Balance Sheet", doc.Title)
}

func TestParseIgnoresOtherBlocks(t *testing.T) {
	source := "# Doc\n\n```lua\nConfig = {}\n```\n\n```yaml\nfile: x\n```\n"

	doc, err := Parse(strings.NewReader(source))
	assert.NoError(t, err)
	assert.Empty(t, doc.Bindings)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected error
	}{
		{name: "unterminated front matter", source: "---\ntitle: x\n", expected: ErrInvalidFrontMatter},
		{name: "binding missing file", source: "```binding\npath: A.b\n```\n", expected: ErrInvalidBinding},
		{name: "binding missing path", source: "```binding\nfile: a.lua\n```\n", expected: ErrInvalidBinding},
		{name: "binding bad yaml", source: "```binding\n- [unclosed\n```\n", expected: ErrInvalidBinding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.source))
			assert.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("no/such/document.md")
	assert.ErrorIs(t, err, sourcelink.ErrFileNotFound)
}

package main

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/bindingdoc"
	"github.com/shopspring/decimal"
)

func TestParseValueArg(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		declared sourcelink.Type
		expected any
	}{
		{name: "declared string keeps digits", text: "123", declared: sourcelink.TypeString, expected: "123"},
		{name: "declared int", text: "250", declared: sourcelink.TypeInt, expected: decimal.RequireFromString("250")},
		{name: "declared float exact", text: "0.30", declared: sourcelink.TypeFloat, expected: decimal.RequireFromString("0.30")},
		{name: "declared bool", text: "true", declared: sourcelink.TypeBool, expected: true},
		{name: "declared nil ignores text", text: "", declared: sourcelink.TypeNil, expected: nil},
		{name: "inferred number", text: "1.5", expected: decimal.RequireFromString("1.5")},
		{name: "inferred bool", text: "false", expected: false},
		{name: "inferred nil", text: "null", expected: nil},
		{name: "inferred string", text: "hero", expected: "hero"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := parseValueArg(tt.text, tt.declared)
			assert.NoError(t, err)

			if expected, ok := tt.expected.(decimal.Decimal); ok {
				d, ok := actual.(decimal.Decimal)
				assert.True(t, ok)
				assert.Equal(t, expected.String(), d.String())
				return
			}

			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestParseValueArgErrors(t *testing.T) {
	_, err := parseValueArg("maybe", sourcelink.TypeBool)
	assert.IsError(t, err, ErrBadValue)

	_, err = parseValueArg("lots", sourcelink.TypeInt)
	assert.IsError(t, err, ErrBadValue)

	_, err = parseValueArg("", "")
	assert.IsError(t, err, ErrValueRequired)
}

func TestDocBaseDir(t *testing.T) {
	doc := &bindingdoc.Document{}
	assert.Equal(t, "docs", docBaseDir("docs/tuning.md", doc))

	doc.BaseDir = "data"
	assert.Equal(t, "docs/data", docBaseDir("docs/tuning.md", doc))

	doc.BaseDir = "/srv/data"
	assert.Equal(t, "/srv/data", docBaseDir("docs/tuning.md", doc))
}

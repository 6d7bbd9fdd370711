package jsondoc

import (
	"fmt"
	"sort"

	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/pathparser"
)

// Edit is one text replacement against a source snapshot.
type Edit struct {
	Range   sourcelink.Range
	NewText string
}

// SetValueEdits computes the minimal edit list for "set value at path": a
// single replacement of the located value's byte range. The literal text
// must already be serialized for this format.
func SetValueEdits(doc *Document, segments []pathparser.Segment, literal string) ([]Edit, error) {
	node, err := doc.Locate(segments)
	if err != nil {
		return nil, err
	}

	return []Edit{{Range: node.Range, NewText: literal}}, nil
}

// ApplyEdits applies an edit list to a source snapshot. Edits must not
// overlap; they are applied back to front so earlier ranges stay valid.
// Bytes outside the edited ranges are untouched.
func ApplyEdits(source string, edits []Edit) (string, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start > sorted[j].Range.Start
	})

	result := source

	for i, edit := range sorted {
		if edit.Range.Start < 0 || edit.Range.End > len(source) || edit.Range.Start > edit.Range.End {
			return "", fmt.Errorf("%w: edit range [%d, %d) out of bounds", sourcelink.ErrWriteFailed, edit.Range.Start, edit.Range.End)
		}

		if i > 0 && edit.Range.End > sorted[i-1].Range.Start {
			return "", fmt.Errorf("%w: overlapping edits", sourcelink.ErrWriteFailed)
		}

		result = result[:edit.Range.Start] + edit.NewText + result[edit.Range.End:]
	}

	return result, nil
}

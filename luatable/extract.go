package luatable

import (
	"fmt"
	"strconv"

	"github.com/shibukawa/sourcelink"
)

// ExtractRows turns an array-of-records node into ordered row data with
// per-cell byte ranges for patch targeting. It returns
// sourcelink.ErrNotArrayNode when the node is not a pure 1..n sequence
// whose every element is a keyed table.
func ExtractRows(node *Node) (*sourcelink.Table, error) {
	elements, ok := node.sequentialElements()
	if !ok {
		return nil, fmt.Errorf("%w: not a sequential table", sourcelink.ErrNotArrayNode)
	}

	table := &sourcelink.Table{}
	seen := map[string]bool{}

	for i, element := range elements {
		if element.Kind != sourcelink.KindTable {
			return nil, fmt.Errorf("%w: element %d is %s, not a record", sourcelink.ErrNotArrayNode, i+1, element.Kind)
		}

		row := sourcelink.TableRow{
			Index: i,
			Data:  make(map[string]any, len(element.Entries)),
			Refs:  make(map[string]sourcelink.ValueRef, len(element.Entries)),
		}

		for _, entry := range element.Entries {
			key := entry.Name
			if !entry.HasName {
				if !entry.HasIndex {
					return nil, fmt.Errorf("%w: element %d is not a keyed record", sourcelink.ErrNotArrayNode, i+1)
				}

				key = strconv.Itoa(entry.Index)
			}

			if !seen[key] {
				seen[key] = true

				table.Columns = append(table.Columns, key)
			}

			valueRange := entry.Value.Range
			row.Data[key] = entry.Value.Interface()
			row.Refs[key] = sourcelink.ValueRef{Range: &valueRange}
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

package jsondoc

import (
	"fmt"

	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/pathparser"
)

// Locate resolves a parsed path against the document.
//
// The root identifier addresses a top-level object key. When the document
// root is an array there is no key to match, so the root identifier denotes
// the array itself; this keeps paths like `Items[1].name` working against a
// bare top-level array.
//
// Index segments are 0-based, per JSON convention. Duplicate object keys
// resolve to the last occurrence, matching what standard JSON decoders keep.
func (d *Document) Locate(segments []pathparser.Segment) (*Node, error) {
	if len(segments) == 0 || segments[0].Kind != pathparser.Key {
		return nil, fmt.Errorf("%w: path must start with a root identifier", sourcelink.ErrInvalidPath)
	}

	node := d.Root
	rest := segments[1:]

	if !d.Root.IsArray {
		root, err := descend(d.Root, segments[0])
		if err != nil {
			return nil, err
		}

		node = root
	}

	for _, segment := range rest {
		next, err := descend(node, segment)
		if err != nil {
			return nil, err
		}

		node = next
	}

	return node, nil
}

func descend(node *Node, segment pathparser.Segment) (*Node, error) {
	if node.Kind != sourcelink.KindTable {
		return nil, fmt.Errorf("%w: cannot descend into %s value with segment %q", sourcelink.ErrKeyNotFound, node.Kind, segment.String())
	}

	switch segment.Kind {
	case pathparser.Key, pathparser.StringKey:
		if node.IsArray {
			return nil, fmt.Errorf("%w: array requires an index segment, got %q", sourcelink.ErrKeyNotFound, segment.Name)
		}

		var match *Node

		for _, member := range node.Members {
			if member.Key == segment.Name {
				match = member.Value
			}
		}

		if match == nil {
			return nil, fmt.Errorf("%w: member %q", sourcelink.ErrKeyNotFound, segment.Name)
		}

		return match, nil
	case pathparser.Index:
		if !node.IsArray {
			return nil, fmt.Errorf("%w: object requires a key segment, got [%d]", sourcelink.ErrKeyNotFound, segment.Index)
		}

		if segment.Index < 0 || segment.Index >= len(node.Elements) {
			return nil, fmt.Errorf("%w: index [%d] out of range (%d elements)", sourcelink.ErrKeyNotFound, segment.Index, len(node.Elements))
		}

		return node.Elements[segment.Index], nil
	default:
		return nil, fmt.Errorf("%w: unsupported segment", sourcelink.ErrInvalidPath)
	}
}

// ExtractRows turns an array-of-objects node into ordered row data with
// per-cell byte ranges for patch targeting. Non-array nodes, or arrays with
// non-object elements, return sourcelink.ErrNotArrayNode.
func ExtractRows(node *Node) (*sourcelink.Table, error) {
	if node.Kind != sourcelink.KindTable || !node.IsArray {
		return nil, fmt.Errorf("%w: not an array", sourcelink.ErrNotArrayNode)
	}

	table := &sourcelink.Table{}
	seen := map[string]bool{}

	for i, element := range node.Elements {
		if element.Kind != sourcelink.KindTable || element.IsArray {
			return nil, fmt.Errorf("%w: element %d is not an object", sourcelink.ErrNotArrayNode, i)
		}

		row := sourcelink.TableRow{
			Index: i,
			Data:  make(map[string]any, len(element.Members)),
			Refs:  make(map[string]sourcelink.ValueRef, len(element.Members)),
		}

		for _, member := range element.Members {
			if !seen[member.Key] {
				seen[member.Key] = true

				table.Columns = append(table.Columns, member.Key)
			}

			valueRange := member.Value.Range
			row.Data[member.Key] = member.Value.Interface()
			row.Refs[member.Key] = sourcelink.ValueRef{Range: &valueRange}
		}

		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

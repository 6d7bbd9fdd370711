package luatable

import (
	"fmt"

	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/pathparser"
)

// Locate resolves a parsed path against the chunk's top-level declarations
// and descends into table constructors.
//
// Policy decisions (both tested explicitly):
//   - When a root identifier is declared more than once (local and/or
//     global), the most recent declaration in source order wins.
//   - When a constructor assigns the same named field twice, the last
//     occurrence wins, matching the source language's runtime overwrite
//     semantics.
//
// Index segments are 1-based, the source language's native array
// convention. Any unmatched segment returns sourcelink.ErrKeyNotFound.
func (c *Chunk) Locate(segments []pathparser.Segment) (*Node, error) {
	if len(segments) == 0 || segments[0].Kind != pathparser.Key {
		return nil, fmt.Errorf("%w: path must start with a root identifier", sourcelink.ErrInvalidPath)
	}

	var node *Node

	for _, decl := range c.Decls {
		if decl.Name == segments[0].Name {
			node = decl.Value
		}
	}

	if node == nil {
		return nil, fmt.Errorf("%w: no top-level declaration %q", sourcelink.ErrKeyNotFound, segments[0].Name)
	}

	for _, segment := range segments[1:] {
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
		var match *Node

		for _, entry := range node.Entries {
			if entry.HasName && entry.Name == segment.Name {
				match = entry.Value
			}
		}

		if match == nil {
			return nil, fmt.Errorf("%w: field %q", sourcelink.ErrKeyNotFound, segment.Name)
		}

		return match, nil
	case pathparser.Index:
		var match *Node

		position := 0

		for _, entry := range node.Entries {
			switch {
			case entry.HasName:
				// named fields are not part of the sequence
			case entry.HasIndex:
				if entry.Index == segment.Index {
					match = entry.Value
				}
			default:
				position++
				if position == segment.Index {
					match = entry.Value
				}
			}
		}

		if match == nil {
			return nil, fmt.Errorf("%w: index [%d] out of range", sourcelink.ErrKeyNotFound, segment.Index)
		}

		return match, nil
	default:
		return nil, fmt.Errorf("%w: unsupported segment", sourcelink.ErrInvalidPath)
	}
}

// Package pathparser implements the dotted/bracket path grammar shared by
// every format adapter:
//
//	Root ('.' Ident | '[' Integer ']' | '[' QuotedString ']')*
//
// Root is a bare identifier. The grammar is deliberately tiny: identifiers,
// non-negative integer indices, and quoted string keys are the only segment
// forms; arbitrary expressions are rejected.
package pathparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shibukawa/sourcelink"
)

// ErrInvalidPath indicates a malformed path string. It is the shared
// sentinel, re-exported so callers of this package alone match on it too.
var ErrInvalidPath = sourcelink.ErrInvalidPath

// SegmentKind represents the kind of one path segment
type SegmentKind int

const (
	// Key is a bare identifier segment (`.name` or the root).
	Key SegmentKind = iota
	// Index is an integer element index (`[3]`).
	Index
	// StringKey is a quoted key (`["key with spaces"]`).
	StringKey
)

// String returns the string representation of SegmentKind
func (k SegmentKind) String() string {
	switch k {
	case Key:
		return "key"
	case Index:
		return "index"
	case StringKey:
		return "string-key"
	default:
		return "unknown"
	}
}

// Segment is one hop in a binding's address. Name is set for Key and
// StringKey segments, Index for Index segments.
type Segment struct {
	Kind  SegmentKind
	Name  string
	Index int
}

// String returns the canonical text form of the segment as it would appear
// after the root.
func (s Segment) String() string {
	switch s.Kind {
	case Index:
		return "[" + strconv.Itoa(s.Index) + "]"
	case StringKey:
		return `["` + s.Name + `"]`
	default:
		return "." + s.Name
	}
}

// Format renders a whole segment list back to path syntax, mainly for error
// messages.
func Format(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i == 0 && seg.Kind == Key {
			b.WriteString(seg.Name)
			continue
		}
		b.WriteString(seg.String())
	}
	return b.String()
}

// Parse parses a path string into its ordered segment list. Segment 0 is
// always a root identifier. Malformed input returns an error wrapping
// ErrInvalidPath.
func Parse(text string) ([]Segment, error) {
	p := &parser{input: text}

	root, ok := p.readIdent()
	if !ok {
		return nil, fmt.Errorf("%w: path must start with an identifier: %q", ErrInvalidPath, text)
	}

	segments := []Segment{{Kind: Key, Name: root}}

	for !p.atEnd() {
		switch p.current() {
		case '.':
			p.advance()

			name, ok := p.readIdent()
			if !ok {
				return nil, fmt.Errorf("%w: expected identifier after '.' at offset %d in %q", ErrInvalidPath, p.pos, text)
			}

			segments = append(segments, Segment{Kind: Key, Name: name})
		case '[':
			p.advance()

			seg, err := p.readBracket(text)
			if err != nil {
				return nil, err
			}

			segments = append(segments, seg)
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at offset %d in %q", ErrInvalidPath, p.current(), p.pos, text)
		}
	}

	return segments, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.input)
}

func (p *parser) current() byte {
	return p.input[p.pos]
}

func (p *parser) advance() {
	p.pos++
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *parser) readIdent() (string, bool) {
	if p.atEnd() || !isIdentStart(p.current()) {
		return "", false
	}

	start := p.pos
	for !p.atEnd() && isIdentPart(p.current()) {
		p.advance()
	}

	return p.input[start:p.pos], true
}

// readBracket parses the contents of a bracket segment; the opening '[' has
// already been consumed.
func (p *parser) readBracket(text string) (Segment, error) {
	if p.atEnd() {
		return Segment{}, fmt.Errorf("%w: unterminated '[' in %q", ErrInvalidPath, text)
	}

	switch c := p.current(); {
	case c == '"' || c == '\'':
		name, err := p.readQuoted(c, text)
		if err != nil {
			return Segment{}, err
		}

		if err := p.expectClose(text); err != nil {
			return Segment{}, err
		}

		return Segment{Kind: StringKey, Name: name}, nil
	case c >= '0' && c <= '9':
		start := p.pos
		for !p.atEnd() && p.current() >= '0' && p.current() <= '9' {
			p.advance()
		}

		index, err := strconv.Atoi(p.input[start:p.pos])
		if err != nil {
			return Segment{}, fmt.Errorf("%w: bad index in %q: %w", ErrInvalidPath, text, err)
		}

		if err := p.expectClose(text); err != nil {
			return Segment{}, err
		}

		return Segment{Kind: Index, Index: index}, nil
	default:
		return Segment{}, fmt.Errorf("%w: expected integer or quoted key after '[' in %q", ErrInvalidPath, text)
	}
}

func (p *parser) readQuoted(quote byte, text string) (string, error) {
	p.advance() // opening quote

	var b strings.Builder

	for !p.atEnd() {
		c := p.current()
		switch c {
		case quote:
			p.advance()
			return b.String(), nil
		case '\\':
			p.advance()
			if p.atEnd() {
				return "", fmt.Errorf("%w: unterminated escape in %q", ErrInvalidPath, text)
			}

			switch e := p.current(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"', '\'':
				b.WriteByte(e)
			default:
				return "", fmt.Errorf("%w: unsupported escape \\%c in %q", ErrInvalidPath, e, text)
			}

			p.advance()
		default:
			b.WriteByte(c)
			p.advance()
		}
	}

	return "", fmt.Errorf("%w: unterminated string key in %q", ErrInvalidPath, text)
}

func (p *parser) expectClose(text string) error {
	if p.atEnd() || p.current() != ']' {
		return fmt.Errorf("%w: expected ']' at offset %d in %q", ErrInvalidPath, p.pos, text)
	}

	p.advance()

	return nil
}

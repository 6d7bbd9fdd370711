// Package jsondoc parses JSON and JSONC (comments and trailing commas
// tolerated) into a value tree where every node carries its exact byte
// range. It offers the same capability surface as the table-literal
// adapter: locate a value by path and extract array-of-records nodes as
// rows. Array indices are 0-based, per JSON convention.
package jsondoc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/shibukawa/sourcelink"
)

// Sentinel errors
var (
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnterminatedString  = errors.New("unterminated string literal")
	ErrUnterminatedComment = errors.New("unterminated block comment")
	ErrInvalidNumber       = errors.New("invalid number format")
	ErrInvalidEscape       = errors.New("invalid escape sequence")
)

// Node is one parsed JSON value with its exact source range.
type Node struct {
	Kind    sourcelink.Kind
	IsArray bool // distinguishes arrays from objects among KindTable nodes
	Bool    bool
	Int     int64
	Num     float64
	IsInt   bool
	Str     string

	Raw   string
	Range sourcelink.Range
	Loc   sourcelink.Location

	Members  []Member // object members, in source order
	Elements []*Node  // array elements, in source order
}

// Member is one object member.
type Member struct {
	Key   string
	Value *Node
}

// Document is the parse result for one source snapshot.
type Document struct {
	Source string
	Root   *Node
}

// Options are options for the parser
type Options struct {
	// MaxDepth bounds value nesting; zero means sourcelink.DefaultMaxDepth.
	MaxDepth int
}

// Parse builds the value tree for a JSON/JSONC source. Structural errors are
// returned wrapping sourcelink.ErrParseFailed.
func Parse(source string, options ...Options) (*Document, error) {
	opts := Options{}
	if len(options) > 0 {
		opts = options[0]
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = sourcelink.DefaultMaxDepth
	}

	p := &parser{source: source, line: 1, column: 1, maxDepth: opts.MaxDepth}

	if err := p.skipTrivia(); err != nil {
		return nil, fmt.Errorf("%w: %w", sourcelink.ErrParseFailed, err)
	}

	root, err := p.parseValue(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sourcelink.ErrParseFailed, err)
	}

	if err := p.skipTrivia(); err != nil {
		return nil, fmt.Errorf("%w: %w", sourcelink.ErrParseFailed, err)
	}

	if !p.atEnd() {
		return nil, fmt.Errorf("%w: %w: trailing content at line %d, column %d", sourcelink.ErrParseFailed, ErrUnexpectedCharacter, p.line, p.column)
	}

	return &Document{Source: source, Root: root}, nil
}

type parser struct {
	source   string
	pos      int
	line     int
	column   int
	maxDepth int
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.source)
}

func (p *parser) current() byte {
	return p.source[p.pos]
}

func (p *parser) advance() {
	if p.source[p.pos] == '\n' {
		p.line++
		p.column = 1
	} else {
		p.column++
	}

	p.pos++
}

func (p *parser) mark() (int, int, int) {
	return p.pos, p.line, p.column
}

// skipTrivia skips whitespace plus // and /* */ comments (the JSONC
// extension).
func (p *parser) skipTrivia() error {
	for !p.atEnd() {
		switch c := p.current(); {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.advance()
		case c == '/' && p.pos+1 < len(p.source) && p.source[p.pos+1] == '/':
			for !p.atEnd() && p.current() != '\n' {
				p.advance()
			}
		case c == '/' && p.pos+1 < len(p.source) && p.source[p.pos+1] == '*':
			line, column := p.line, p.column

			p.advance()
			p.advance()

			for {
				if p.atEnd() {
					return fmt.Errorf("%w at line %d, column %d", ErrUnterminatedComment, line, column)
				}

				if p.current() == '*' && p.pos+1 < len(p.source) && p.source[p.pos+1] == '/' {
					p.advance()
					p.advance()
					break
				}

				p.advance()
			}
		default:
			return nil
		}
	}

	return nil
}

func (p *parser) node(kind sourcelink.Kind, startPos, startLine, startColumn int) *Node {
	return &Node{
		Kind:  kind,
		Raw:   p.source[startPos:p.pos],
		Range: sourcelink.Range{Start: startPos, End: p.pos},
		Loc: sourcelink.Location{
			StartLine:   startLine,
			StartColumn: startColumn,
			EndLine:     p.line,
			EndColumn:   p.column,
		},
	}
}

func (p *parser) parseValue(depth int) (*Node, error) {
	if depth > p.maxDepth {
		return nil, fmt.Errorf("%w (limit %d)", sourcelink.ErrMaxDepthExceeded, p.maxDepth)
	}

	if p.atEnd() {
		return nil, fmt.Errorf("%w: unexpected end of input", ErrUnexpectedCharacter)
	}

	switch c := p.current(); {
	case c == '{':
		return p.parseObject(depth)
	case c == '[':
		return p.parseArray(depth)
	case c == '"':
		return p.parseString()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == 't' || c == 'f' || c == 'n':
		return p.parseLiteral()
	default:
		return nil, fmt.Errorf("%w: %q at line %d, column %d", ErrUnexpectedCharacter, c, p.line, p.column)
	}
}

func (p *parser) parseObject(depth int) (*Node, error) {
	startPos, startLine, startColumn := p.mark()

	p.advance() // '{'

	var members []Member

	for {
		if err := p.skipTrivia(); err != nil {
			return nil, err
		}

		if p.atEnd() {
			return nil, fmt.Errorf("%w: unterminated object at line %d, column %d", ErrUnexpectedCharacter, startLine, startColumn)
		}

		if p.current() == '}' {
			p.advance()

			node := p.node(sourcelink.KindTable, startPos, startLine, startColumn)
			node.Members = members

			return node, nil
		}

		key, err := p.parseString()
		if err != nil {
			return nil, err
		}

		if err := p.skipTrivia(); err != nil {
			return nil, err
		}

		if p.atEnd() || p.current() != ':' {
			return nil, fmt.Errorf("%w: expected ':' at line %d, column %d", ErrUnexpectedCharacter, p.line, p.column)
		}

		p.advance()

		if err := p.skipTrivia(); err != nil {
			return nil, err
		}

		value, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}

		members = append(members, Member{Key: key.Str, Value: value})

		if err := p.skipTrivia(); err != nil {
			return nil, err
		}

		if p.atEnd() {
			return nil, fmt.Errorf("%w: unterminated object at line %d, column %d", ErrUnexpectedCharacter, startLine, startColumn)
		}

		switch p.current() {
		case ',':
			p.advance() // trailing comma before '}' is tolerated
		case '}':
		default:
			return nil, fmt.Errorf("%w: expected ',' or '}' at line %d, column %d", ErrUnexpectedCharacter, p.line, p.column)
		}
	}
}

func (p *parser) parseArray(depth int) (*Node, error) {
	startPos, startLine, startColumn := p.mark()

	p.advance() // '['

	var elements []*Node

	for {
		if err := p.skipTrivia(); err != nil {
			return nil, err
		}

		if p.atEnd() {
			return nil, fmt.Errorf("%w: unterminated array at line %d, column %d", ErrUnexpectedCharacter, startLine, startColumn)
		}

		if p.current() == ']' {
			p.advance()

			node := p.node(sourcelink.KindTable, startPos, startLine, startColumn)
			node.IsArray = true
			node.Elements = elements

			return node, nil
		}

		element, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}

		elements = append(elements, element)

		if err := p.skipTrivia(); err != nil {
			return nil, err
		}

		if p.atEnd() {
			return nil, fmt.Errorf("%w: unterminated array at line %d, column %d", ErrUnexpectedCharacter, startLine, startColumn)
		}

		switch p.current() {
		case ',':
			p.advance() // trailing comma before ']' is tolerated
		case ']':
		default:
			return nil, fmt.Errorf("%w: expected ',' or ']' at line %d, column %d", ErrUnexpectedCharacter, p.line, p.column)
		}
	}
}

func (p *parser) parseString() (*Node, error) {
	if p.atEnd() || p.current() != '"' {
		return nil, fmt.Errorf("%w: expected string at line %d, column %d", ErrUnexpectedCharacter, p.line, p.column)
	}

	startPos, startLine, startColumn := p.mark()

	p.advance() // opening quote

	var b strings.Builder

	for {
		if p.atEnd() {
			return nil, fmt.Errorf("%w at line %d, column %d", ErrUnterminatedString, startLine, startColumn)
		}

		switch c := p.current(); c {
		case '"':
			p.advance()

			node := p.node(sourcelink.KindString, startPos, startLine, startColumn)
			node.Str = b.String()

			return node, nil
		case '\\':
			p.advance()

			if p.atEnd() {
				return nil, fmt.Errorf("%w at line %d, column %d", ErrUnterminatedString, startLine, startColumn)
			}

			switch e := p.current(); e {
			case '"', '\\', '/':
				b.WriteByte(e)
				p.advance()
			case 'n':
				b.WriteByte('\n')
				p.advance()
			case 't':
				b.WriteByte('\t')
				p.advance()
			case 'r':
				b.WriteByte('\r')
				p.advance()
			case 'b':
				b.WriteByte(8)
				p.advance()
			case 'f':
				b.WriteByte(12)
				p.advance()
			case 'u':
				r, err := p.unicodeEscape()
				if err != nil {
					return nil, err
				}

				if utf16.IsSurrogate(r) {
					r, err = p.surrogatePair(r)
					if err != nil {
						return nil, err
					}
				}

				b.WriteRune(r)
			default:
				return nil, fmt.Errorf("%w: \\%c at line %d, column %d", ErrInvalidEscape, e, p.line, p.column)
			}
		case '\n':
			return nil, fmt.Errorf("%w at line %d, column %d", ErrUnterminatedString, startLine, startColumn)
		default:
			b.WriteByte(c)
			p.advance()
		}
	}
}

// unicodeEscape reads the 'u' and four hex digits of a \uXXXX escape; the
// backslash has already been consumed.
func (p *parser) unicodeEscape() (rune, error) {
	if p.pos+4 >= len(p.source) {
		return 0, fmt.Errorf("%w: incomplete \\u at line %d, column %d", ErrInvalidEscape, p.line, p.column)
	}

	code, err := strconv.ParseUint(p.source[p.pos+1:p.pos+5], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad \\u at line %d, column %d", ErrInvalidEscape, p.line, p.column)
	}

	for range 5 {
		p.advance()
	}

	return rune(code), nil
}

// surrogatePair combines a high surrogate with the following \u escape.
// Astral code points (emoji and friends) arrive as two escapes that only
// decode together; a surrogate on its own is malformed.
func (p *parser) surrogatePair(high rune) (rune, error) {
	if p.pos+1 >= len(p.source) || p.source[p.pos] != '\\' || p.source[p.pos+1] != 'u' {
		return 0, fmt.Errorf("%w: unpaired surrogate \\u%04x at line %d, column %d", ErrInvalidEscape, high, p.line, p.column)
	}

	p.advance() // backslash

	low, err := p.unicodeEscape()
	if err != nil {
		return 0, err
	}

	combined := utf16.DecodeRune(high, low)
	if combined == unicode.ReplacementChar {
		return 0, fmt.Errorf("%w: invalid surrogate pair \\u%04x\\u%04x at line %d, column %d", ErrInvalidEscape, high, low, p.line, p.column)
	}

	return combined, nil
}

func (p *parser) parseNumber() (*Node, error) {
	startPos, startLine, startColumn := p.mark()

	if p.current() == '-' {
		p.advance()
	}

	digits := 0
	for !p.atEnd() && p.current() >= '0' && p.current() <= '9' {
		digits++
		p.advance()
	}

	if digits == 0 {
		return nil, fmt.Errorf("%w at line %d, column %d", ErrInvalidNumber, startLine, startColumn)
	}

	isFloat := false

	if !p.atEnd() && p.current() == '.' {
		isFloat = true

		p.advance()

		digits = 0
		for !p.atEnd() && p.current() >= '0' && p.current() <= '9' {
			digits++
			p.advance()
		}

		if digits == 0 {
			return nil, fmt.Errorf("%w at line %d, column %d", ErrInvalidNumber, startLine, startColumn)
		}
	}

	if !p.atEnd() && (p.current() == 'e' || p.current() == 'E') {
		isFloat = true

		p.advance()

		if !p.atEnd() && (p.current() == '+' || p.current() == '-') {
			p.advance()
		}

		digits = 0
		for !p.atEnd() && p.current() >= '0' && p.current() <= '9' {
			digits++
			p.advance()
		}

		if digits == 0 {
			return nil, fmt.Errorf("%w at line %d, column %d", ErrInvalidNumber, startLine, startColumn)
		}
	}

	node := p.node(sourcelink.KindNumber, startPos, startLine, startColumn)

	if !isFloat {
		if value, err := strconv.ParseInt(node.Raw, 10, 64); err == nil {
			node.Int = value
			node.IsInt = true

			return node, nil
		}
	}

	value, err := strconv.ParseFloat(node.Raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q at line %d, column %d", ErrInvalidNumber, node.Raw, startLine, startColumn)
	}

	node.Num = value

	return node, nil
}

func (p *parser) parseLiteral() (*Node, error) {
	startPos, startLine, startColumn := p.mark()

	for _, literal := range []string{"true", "false", "null"} {
		if strings.HasPrefix(p.source[p.pos:], literal) {
			for range len(literal) {
				p.advance()
			}

			switch literal {
			case "true", "false":
				node := p.node(sourcelink.KindBoolean, startPos, startLine, startColumn)
				node.Bool = literal == "true"

				return node, nil
			default:
				return p.node(sourcelink.KindNil, startPos, startLine, startColumn), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %q at line %d, column %d", ErrUnexpectedCharacter, p.current(), p.line, p.column)
}

// Interface returns the decoded Go value for the node: nil, bool, int64,
// float64, string, []any for arrays, or map[string]any for objects.
func (n *Node) Interface() any {
	switch n.Kind {
	case sourcelink.KindNil:
		return nil
	case sourcelink.KindBoolean:
		return n.Bool
	case sourcelink.KindNumber:
		if n.IsInt {
			return n.Int
		}
		return n.Num
	case sourcelink.KindString:
		return n.Str
	case sourcelink.KindTable:
		if n.IsArray {
			values := make([]any, len(n.Elements))
			for i, element := range n.Elements {
				values[i] = element.Interface()
			}
			return values
		}

		values := make(map[string]any, len(n.Members))
		for _, member := range n.Members {
			values[member.Key] = member.Value.Interface()
		}
		return values
	default:
		return n.Raw
	}
}

// Export converts the node to the shared resolution shape.
func (n *Node) Export() *sourcelink.Node {
	return &sourcelink.Node{
		Kind:  n.Kind,
		Value: n.Interface(),
		Raw:   n.Raw,
		Range: n.Range,
		Loc:   n.Loc,
	}
}

// Package luatable parses Lua-like table literal sources into a
// statement-level tree where every literal and composite node carries its
// exact byte range. It is the primary adapter behind binding resolution:
// locate a value by path, extract array-shaped tables as rows, and hand
// ranges to the patcher for format-preserving writes.
//
// Only top-level `local Name = expr` and `Name = expr` declarations are
// modeled; other statements are skipped token-wise so that configuration
// files containing stray code still parse.
package luatable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shibukawa/sourcelink"
)

// Node is one parsed value with its exact source range. Ranges are only
// valid against the exact source string that produced them.
type Node struct {
	Kind  sourcelink.Kind
	Bool  bool
	Int   int64
	Num   float64
	IsInt bool
	Str   string

	Raw   string
	Range sourcelink.Range
	Loc   sourcelink.Location

	Entries []Entry // table constructor fields, in source order
}

// Entry is one field of a table constructor: named (`k = v` / `["k"] = v`),
// explicitly indexed (`[3] = v`), or positional.
type Entry struct {
	Name     string
	HasName  bool
	Index    int
	HasIndex bool
	Value    *Node
}

// Decl is one top-level variable declaration.
type Decl struct {
	Name    string
	IsLocal bool
	Value   *Node
}

// Chunk is the parse result for one source snapshot.
type Chunk struct {
	Source string
	Decls  []Decl
}

// Options are options for the parser
type Options struct {
	// MaxDepth bounds table nesting; zero means sourcelink.DefaultMaxDepth.
	MaxDepth int
}

// Parse builds the declaration tree for a Lua-like source. Structural errors
// are returned wrapping sourcelink.ErrParseFailed; the function never
// panics on malformed input.
func Parse(source string, options ...Options) (*Chunk, error) {
	opts := Options{}
	if len(options) > 0 {
		opts = options[0]
	}

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = sourcelink.DefaultMaxDepth
	}

	tokens, err := NewTokenizer(source, TokenizerOptions{SkipComments: true}).AllTokens()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sourcelink.ErrParseFailed, err)
	}

	p := &parser{source: source, tokens: tokens, maxDepth: opts.MaxDepth}

	chunk, err := p.parseChunk()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sourcelink.ErrParseFailed, err)
	}

	return chunk, nil
}

type parser struct {
	source   string
	tokens   []Token
	pos      int
	maxDepth int
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

func (p *parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() Token {
	token := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return token
}

func (p *parser) parseChunk() (*Chunk, error) {
	chunk := &Chunk{Source: p.source}

	for {
		switch token := p.current(); token.Type {
		case EOF:
			return chunk, nil
		case SEMICOLON:
			p.advance()
		case KW_LOCAL:
			if p.peek().Type == KW_FUNCTION {
				p.skipStatement()
				continue
			}

			decls, err := p.parseLocal()
			if err != nil {
				return nil, err
			}

			chunk.Decls = append(chunk.Decls, decls...)
		case IDENT:
			if p.peek().Type == ASSIGN {
				p.advance() // name
				p.advance() // '='

				value, err := p.parseExpr(0, false)
				if err != nil {
					return nil, err
				}

				chunk.Decls = append(chunk.Decls, Decl{Name: token.Value, Value: value})
			} else {
				p.skipStatement()
			}
		default:
			p.skipStatement()
		}
	}
}

// parseLocal parses `local a, b = expr, expr`. Names without a matching
// value are dropped (they are nil and carry no patchable range).
func (p *parser) parseLocal() ([]Decl, error) {
	p.advance() // 'local'

	var names []string

	for {
		if p.current().Type != IDENT {
			return nil, fmt.Errorf("expected identifier after 'local' at line %d", p.current().Position.Line)
		}

		names = append(names, p.advance().Value)

		if p.current().Type != COMMA {
			break
		}

		p.advance()
	}

	if p.current().Type != ASSIGN {
		return nil, nil
	}

	p.advance()

	var decls []Decl

	for _, name := range names {
		value, err := p.parseExpr(0, false)
		if err != nil {
			return nil, err
		}

		decls = append(decls, Decl{Name: name, IsLocal: true, Value: value})

		if p.current().Type != COMMA {
			break
		}

		p.advance()
	}

	return decls, nil
}

// skipStatement consumes tokens up to the next plausible statement start,
// keeping bracket and block keywords balanced so that declarations inside
// skipped bodies are not mistaken for top-level ones.
func (p *parser) skipStatement() {
	bracketDepth := 0
	blockDepth := 0
	pendingDo := false
	started := false

	for {
		token := p.current()

		if token.Type == EOF {
			return
		}

		if started && bracketDepth == 0 && blockDepth == 0 {
			switch token.Type {
			case KW_LOCAL, SEMICOLON:
				return
			case IDENT:
				if p.peek().Type == ASSIGN {
					return
				}
			}
		}

		switch token.Type {
		case LBRACE, LBRACKET, LPAREN:
			bracketDepth++
		case RBRACE, RBRACKET, RPAREN:
			bracketDepth--
		case KW_FUNCTION, KW_IF, KW_REPEAT:
			blockDepth++
		case KW_WHILE, KW_FOR:
			blockDepth++
			pendingDo = true
		case KW_DO:
			if pendingDo {
				pendingDo = false
			} else {
				blockDepth++
			}
		case KW_END, KW_UNTIL:
			blockDepth--
		}

		started = true

		p.advance()
	}
}

// parseExpr parses one value expression. inTable controls where an opaque
// expression ends: at a field separator inside a constructor, or at the next
// statement start at the top level.
func (p *parser) parseExpr(depth int, inTable bool) (*Node, error) {
	if depth > p.maxDepth {
		return nil, fmt.Errorf("%w (limit %d)", sourcelink.ErrMaxDepthExceeded, p.maxDepth)
	}

	token := p.current()

	switch token.Type {
	case KW_NIL:
		p.advance()
		return p.scalar(sourcelink.KindNil, token, token), nil
	case KW_TRUE, KW_FALSE:
		p.advance()

		node := p.scalar(sourcelink.KindBoolean, token, token)
		node.Bool = token.Type == KW_TRUE

		return node, nil
	case NUMBER:
		p.advance()
		return p.numberNode(token, token, token.Value)
	case MINUS:
		if p.peek().Type == NUMBER {
			p.advance()
			number := p.advance()

			return p.numberNode(token, number, "-"+number.Value)
		}

		return p.opaqueExpr(inTable), nil
	case STRING:
		p.advance()

		node := p.scalar(sourcelink.KindString, token, token)

		decoded, err := DecodeString(token.Value)
		if err != nil {
			return nil, err
		}

		node.Str = decoded

		return node, nil
	case LBRACE:
		return p.parseTable(depth)
	case KW_FUNCTION:
		return p.parseFunction()
	case RBRACE, COMMA, SEMICOLON, EOF:
		return nil, fmt.Errorf("unexpected token %s at line %d, column %d", token.Type, token.Position.Line, token.Position.Column)
	default:
		return p.opaqueExpr(inTable), nil
	}
}

// scalar builds a leaf node spanning first..last.
func (p *parser) scalar(kind sourcelink.Kind, first, last Token) *Node {
	return &Node{
		Kind:  kind,
		Raw:   p.source[first.Position.Offset:last.End()],
		Range: sourcelink.Range{Start: first.Position.Offset, End: last.End()},
		Loc:   p.locationOf(first, last),
	}
}

func (p *parser) locationOf(first, last Token) sourcelink.Location {
	endLine := last.Position.Line
	endColumn := last.Position.Column

	for _, r := range last.Value {
		if r == '\n' {
			endLine++
			endColumn = 0
		} else {
			endColumn++
		}
	}

	return sourcelink.Location{
		StartLine:   first.Position.Line,
		StartColumn: first.Position.Column,
		EndLine:     endLine,
		EndColumn:   endColumn,
	}
}

func (p *parser) numberNode(first, last Token, text string) (*Node, error) {
	node := p.scalar(sourcelink.KindNumber, first, last)

	negative := strings.HasPrefix(text, "-")
	digits := strings.TrimPrefix(text, "-")

	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		value, err := strconv.ParseInt(digits[2:], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q at line %d", ErrInvalidNumber, text, first.Position.Line)
		}

		if negative {
			value = -value
		}

		node.Int = value
		node.IsInt = true

		return node, nil
	}

	if !strings.ContainsAny(digits, ".eE") {
		if value, err := strconv.ParseInt(text, 10, 64); err == nil {
			node.Int = value
			node.IsInt = true

			return node, nil
		}
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q at line %d", ErrInvalidNumber, text, first.Position.Line)
	}

	node.Num = value

	return node, nil
}

// parseTable parses a table constructor `{ ... }`.
func (p *parser) parseTable(depth int) (*Node, error) {
	open := p.advance() // '{'

	node := &Node{Kind: sourcelink.KindTable}

	for {
		switch token := p.current(); token.Type {
		case RBRACE:
			closing := p.advance()
			node.Raw = p.source[open.Position.Offset:closing.End()]
			node.Range = sourcelink.Range{Start: open.Position.Offset, End: closing.End()}
			node.Loc = p.locationOf(open, closing)

			return node, nil
		case EOF:
			return nil, fmt.Errorf("unterminated table constructor at line %d, column %d", open.Position.Line, open.Position.Column)
		case COMMA, SEMICOLON:
			p.advance()
		default:
			entry, err := p.parseField(depth)
			if err != nil {
				return nil, err
			}

			node.Entries = append(node.Entries, entry)

			// Field separator or closing brace must follow
			if t := p.current().Type; t != COMMA && t != SEMICOLON && t != RBRACE {
				return nil, fmt.Errorf("expected ',' or '}' at line %d, column %d", p.current().Position.Line, p.current().Position.Column)
			}
		}
	}
}

func (p *parser) parseField(depth int) (Entry, error) {
	switch token := p.current(); token.Type {
	case LBRACKET:
		p.advance()

		key := p.current()
		switch key.Type {
		case STRING:
			p.advance()

			decoded, err := DecodeString(key.Value)
			if err != nil {
				return Entry{}, err
			}

			if err := p.expectFieldAssign(); err != nil {
				return Entry{}, err
			}

			value, err := p.parseExpr(depth+1, true)
			if err != nil {
				return Entry{}, err
			}

			return Entry{Name: decoded, HasName: true, Value: value}, nil
		case NUMBER:
			p.advance()

			index, err := strconv.Atoi(key.Value)
			if err != nil {
				return Entry{}, fmt.Errorf("unsupported table key %q at line %d", key.Value, key.Position.Line)
			}

			if err := p.expectFieldAssign(); err != nil {
				return Entry{}, err
			}

			value, err := p.parseExpr(depth+1, true)
			if err != nil {
				return Entry{}, err
			}

			return Entry{Index: index, HasIndex: true, Value: value}, nil
		default:
			return Entry{}, fmt.Errorf("unsupported table key at line %d, column %d", key.Position.Line, key.Position.Column)
		}
	case IDENT:
		if p.peek().Type == ASSIGN {
			p.advance() // name
			p.advance() // '='

			value, err := p.parseExpr(depth+1, true)
			if err != nil {
				return Entry{}, err
			}

			return Entry{Name: token.Value, HasName: true, Value: value}, nil
		}

		fallthrough
	default:
		value, err := p.parseExpr(depth+1, true)
		if err != nil {
			return Entry{}, err
		}

		return Entry{Value: value}, nil
	}
}

func (p *parser) expectFieldAssign() error {
	if p.current().Type != RBRACKET {
		return fmt.Errorf("expected ']' at line %d, column %d", p.current().Position.Line, p.current().Position.Column)
	}

	p.advance()

	if p.current().Type != ASSIGN {
		return fmt.Errorf("expected '=' at line %d, column %d", p.current().Position.Line, p.current().Position.Column)
	}

	p.advance()

	return nil
}

// parseFunction captures `function ... end` as one opaque node; the body is
// never interpreted, only skipped with balanced block keywords.
func (p *parser) parseFunction() (*Node, error) {
	open := p.advance() // 'function'

	blockDepth := 1
	pendingDo := false

	for {
		token := p.current()

		switch token.Type {
		case EOF:
			return nil, fmt.Errorf("unterminated function at line %d, column %d", open.Position.Line, open.Position.Column)
		case KW_FUNCTION, KW_IF, KW_REPEAT:
			blockDepth++
		case KW_WHILE, KW_FOR:
			blockDepth++
			pendingDo = true
		case KW_DO:
			if pendingDo {
				pendingDo = false
			} else {
				blockDepth++
			}
		case KW_END, KW_UNTIL:
			blockDepth--
			if blockDepth == 0 && token.Type == KW_END {
				closing := p.advance()

				node := &Node{
					Kind:  sourcelink.KindFunction,
					Raw:   p.source[open.Position.Offset:closing.End()],
					Range: sourcelink.Range{Start: open.Position.Offset, End: closing.End()},
					Loc:   p.locationOf(open, closing),
				}

				return node, nil
			}
		}

		p.advance()
	}
}

// opaqueExpr captures a non-literal expression (identifier chain, call,
// arithmetic) as a single expression node so the binding still resolves and
// can be overwritten by range.
func (p *parser) opaqueExpr(inTable bool) *Node {
	first := p.current()
	last := first

	bracketDepth := 0
	blockDepth := 0
	pendingDo := false

	for {
		token := p.current()

		if token.Type == EOF {
			break
		}

		if bracketDepth == 0 && blockDepth == 0 {
			if inTable && (token.Type == COMMA || token.Type == SEMICOLON || token.Type == RBRACE || token.Type == RBRACKET) {
				break
			}

			if !inTable {
				if token.Type == KW_LOCAL || token.Type == SEMICOLON || token.Type == KW_RETURN {
					break
				}

				if token.Type == IDENT && p.peek().Type == ASSIGN && token.Position.Offset > first.Position.Offset {
					break
				}
			}
		}

		switch token.Type {
		case LBRACE, LBRACKET, LPAREN:
			bracketDepth++
		case RBRACE, RBRACKET, RPAREN:
			bracketDepth--
		case KW_FUNCTION, KW_IF, KW_REPEAT:
			blockDepth++
		case KW_WHILE, KW_FOR:
			blockDepth++
			pendingDo = true
		case KW_DO:
			if pendingDo {
				pendingDo = false
			} else {
				blockDepth++
			}
		case KW_END, KW_UNTIL:
			blockDepth--
		}

		last = token

		p.advance()
	}

	return &Node{
		Kind:  sourcelink.KindExpression,
		Raw:   p.source[first.Position.Offset:last.End()],
		Range: sourcelink.Range{Start: first.Position.Offset, End: last.End()},
		Loc:   p.locationOf(first, last),
	}
}

// DecodeString decodes a string token's raw text (quotes included) into its
// value. Long bracket strings drop a single leading newline, matching the
// source language.
func DecodeString(raw string) (string, error) {
	if strings.HasPrefix(raw, "[") {
		level := 0
		for level+1 < len(raw) && raw[level+1] == '=' {
			level++
		}

		body := raw[level+2 : len(raw)-(level+2)]
		body = strings.TrimPrefix(body, "\n")

		return body, nil
	}

	body := raw[1 : len(raw)-1]

	var b strings.Builder

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(body) {
			return "", fmt.Errorf("%w: trailing backslash in %q", ErrInvalidEscape, raw)
		}

		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte(7)
		case 'b':
			b.WriteByte(8)
		case 'f':
			b.WriteByte(12)
		case 'v':
			b.WriteByte(11)
		case '\\', '"', '\'', '\n':
			b.WriteByte(e)
		case 'x':
			if i+2 >= len(body) {
				return "", fmt.Errorf("%w: incomplete \\x in %q", ErrInvalidEscape, raw)
			}

			value, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("%w: bad \\x in %q", ErrInvalidEscape, raw)
			}

			b.WriteByte(byte(value))

			i += 2
		default:
			if e >= '0' && e <= '9' {
				j := i
				for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '9' {
					j++
				}

				value, err := strconv.Atoi(body[i:j])
				if err != nil || value > 255 {
					return "", fmt.Errorf("%w: bad decimal escape in %q", ErrInvalidEscape, raw)
				}

				b.WriteByte(byte(value))

				i = j - 1
			} else {
				return "", fmt.Errorf("%w: \\%c in %q", ErrInvalidEscape, e, raw)
			}
		}
	}

	return b.String(), nil
}

// Interface returns the decoded Go value for the node: nil, bool, int64,
// float64, string, []any for sequential tables, or map[string]any for keyed
// tables. Function and expression nodes decode to their raw source text.
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
		if elements, ok := n.sequentialElements(); ok {
			values := make([]any, len(elements))
			for i, element := range elements {
				values[i] = element.Interface()
			}
			return values
		}

		values := make(map[string]any, len(n.Entries))
		for _, entry := range n.Entries {
			values[entryKey(entry)] = entry.Value.Interface()
		}
		return values
	default:
		return n.Raw
	}
}

func entryKey(entry Entry) string {
	if entry.HasName {
		return entry.Name
	}
	return strconv.Itoa(entry.Index)
}

// sequentialElements returns the table's elements in index order when the
// table is a pure 1..n sequence (positional fields, or explicit integer
// keys covering exactly 1..n).
func (n *Node) sequentialElements() ([]*Node, bool) {
	if n.Kind != sourcelink.KindTable || len(n.Entries) == 0 {
		return nil, false
	}

	byIndex := map[int]*Node{}
	next := 1

	for _, entry := range n.Entries {
		switch {
		case entry.HasName:
			return nil, false
		case entry.HasIndex:
			byIndex[entry.Index] = entry.Value
		default:
			byIndex[next] = entry.Value
			next++
		}
	}

	indices := make([]int, 0, len(byIndex))
	for index := range byIndex {
		indices = append(indices, index)
	}

	sort.Ints(indices)

	elements := make([]*Node, 0, len(indices))

	for i, index := range indices {
		if index != i+1 {
			return nil, false
		}

		elements = append(elements, byIndex[index])
	}

	return elements, true
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

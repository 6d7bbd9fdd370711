package luatable

import (
	"fmt"
	"strings"
	"unicode"
)

// Tokenizer splits Lua-like source into tokens with exact byte offsets.
type Tokenizer struct {
	input   string
	options TokenizerOptions
}

// TokenizerOptions are options for the tokenizer
type TokenizerOptions struct {
	SkipComments bool
}

// NewTokenizer creates a new Tokenizer
func NewTokenizer(input string, options ...TokenizerOptions) *Tokenizer {
	opts := TokenizerOptions{}
	if len(options) > 0 {
		opts = options[0]
	}

	return &Tokenizer{input: input, options: opts}
}

// AllTokens tokenizes the whole input. The returned slice always ends with
// an EOF token on success.
func (t *Tokenizer) AllTokens() ([]Token, error) {
	lexer := &lexer{
		input:  t.input,
		line:   1,
		column: 0,
	}
	lexer.readChar()

	tokens := make([]Token, 0, 64)

	for {
		token, err := lexer.nextToken()
		if err != nil {
			return nil, err
		}

		if t.options.SkipComments && token.Type == COMMENT {
			continue
		}

		tokens = append(tokens, token)

		if token.Type == EOF {
			return tokens, nil
		}
	}
}

// Internal lexer implementation
type lexer struct {
	input    string
	position int
	line     int
	column   int
	current  rune
}

// readChar reads the next character
func (l *lexer) readChar() {
	if l.position >= len(l.input) {
		l.current = 0
		l.position++
		return
	}

	l.current = rune(l.input[l.position])
	l.position++

	if l.current == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

// peekChar looks ahead at the next character
func (l *lexer) peekChar() rune {
	return l.peekAt(0)
}

func (l *lexer) peekAt(n int) rune {
	if l.position+n >= len(l.input) {
		return 0
	}
	return rune(l.input[l.position+n])
}

func (l *lexer) mark() Position {
	return Position{
		Line:   l.line,
		Column: l.column,
		Offset: l.position - 1,
	}
}

// text returns the source bytes from a marked start up to (excluding) the
// current character. Token values are always slices of the input so their
// lengths match the source byte for byte, non-ASCII content included.
func (l *lexer) text(start Position) string {
	end := l.position - 1
	if end > len(l.input) {
		end = len(l.input)
	}

	return l.input[start.Offset:end]
}

// nextToken gets the next token
func (l *lexer) nextToken() (Token, error) {
	for l.current == ' ' || l.current == '\t' || l.current == '\r' || l.current == '\n' {
		l.readChar()
	}

	switch l.current {
	case 0:
		return Token{Type: EOF, Position: l.mark()}, nil
	case '-':
		if l.peekChar() == '-' {
			return l.readComment()
		}

		token := l.punct(MINUS)
		return token, nil
	case '=':
		return l.punct(ASSIGN), nil
	case ',':
		return l.punct(COMMA), nil
	case ';':
		return l.punct(SEMICOLON), nil
	case ':':
		return l.punct(COLON), nil
	case '{':
		return l.punct(LBRACE), nil
	case '}':
		return l.punct(RBRACE), nil
	case '[':
		if level, ok := l.longBracketLevel(); ok {
			return l.readLongString(level)
		}

		return l.punct(LBRACKET), nil
	case ']':
		return l.punct(RBRACKET), nil
	case '(':
		return l.punct(LPAREN), nil
	case ')':
		return l.punct(RPAREN), nil
	case '.':
		if unicode.IsDigit(l.peekChar()) {
			return l.readNumber()
		}

		return l.punct(DOT), nil
	case '\'', '"':
		return l.readString(l.current)
	default:
		if unicode.IsLetter(l.current) || l.current == '_' {
			return l.readIdent(), nil
		}

		if unicode.IsDigit(l.current) {
			return l.readNumber()
		}

		// Operators and anything else the declaration scanner just skips
		token := l.punct(OTHER)

		return token, nil
	}
}

// punct consumes the current single character as a token.
func (l *lexer) punct(tokenType TokenType) Token {
	start := l.mark()
	l.readChar()

	return Token{
		Type:     tokenType,
		Value:    l.text(start),
		Position: start,
	}
}

// readIdent reads identifiers and keywords
func (l *lexer) readIdent() Token {
	start := l.mark()

	for unicode.IsLetter(l.current) || unicode.IsDigit(l.current) || l.current == '_' {
		l.readChar()
	}

	word := l.text(start)

	tokenType := IDENT
	if kw, ok := keywords[word]; ok {
		tokenType = kw
	}

	return Token{Type: tokenType, Value: word, Position: start}
}

// readNumber reads numeric literals: decimal, hexadecimal, fractional and
// exponent forms.
func (l *lexer) readNumber() (Token, error) {
	start := l.mark()

	if l.current == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()

		if !isHexDigit(l.current) {
			return Token{}, fmt.Errorf("%w: incomplete hex literal at line %d, column %d", ErrInvalidNumber, start.Line, start.Column)
		}

		for isHexDigit(l.current) {
			l.readChar()
		}

		return Token{Type: NUMBER, Value: l.text(start), Position: start}, nil
	}

	for unicode.IsDigit(l.current) {
		l.readChar()
	}

	if l.current == '.' {
		l.readChar()

		for unicode.IsDigit(l.current) {
			l.readChar()
		}
	}

	if l.current == 'e' || l.current == 'E' {
		l.readChar()

		if l.current == '+' || l.current == '-' {
			l.readChar()
		}

		if !unicode.IsDigit(l.current) {
			return Token{}, fmt.Errorf("%w: invalid exponent at line %d, column %d", ErrInvalidNumber, start.Line, start.Column)
		}

		for unicode.IsDigit(l.current) {
			l.readChar()
		}
	}

	return Token{Type: NUMBER, Value: l.text(start), Position: start}, nil
}

// readString reads short string literals; Value keeps the quotes and raw
// escape sequences so the token's byte range matches the source exactly.
func (l *lexer) readString(delimiter rune) (Token, error) {
	start := l.mark()

	l.readChar()

	for l.current != 0 && l.current != delimiter {
		if l.current == '\n' {
			return Token{}, fmt.Errorf("%w: %c at line %d, column %d", ErrUnterminatedString, delimiter, start.Line, start.Column)
		}

		if l.current == '\\' {
			l.readChar()

			if l.current != 0 {
				l.readChar()
			}
		} else {
			l.readChar()
		}
	}

	if l.current == 0 {
		return Token{}, fmt.Errorf("%w: %c at line %d, column %d", ErrUnterminatedString, delimiter, start.Line, start.Column)
	}

	l.readChar()

	return Token{Type: STRING, Value: l.text(start), Position: start}, nil
}

// longBracketLevel reports whether the current '[' opens a long bracket
// ("[[", "[=[", "[==[", ...) and at which level. Nothing is consumed.
func (l *lexer) longBracketLevel() (int, bool) {
	if l.current != '[' {
		return 0, false
	}

	level := 0
	for l.peekAt(level) == '=' {
		level++
	}

	if l.peekAt(level) == '[' {
		return level, true
	}

	return 0, false
}

// readLongString reads a long bracket string [[...]] / [=[...]=].
func (l *lexer) readLongString(level int) (Token, error) {
	start := l.mark()

	// opening bracket
	for range level + 2 {
		l.readChar()
	}

	closing := "]" + strings.Repeat("=", level) + "]"

	for l.current != 0 {
		if l.current == ']' && l.matchesAhead(closing) {
			for range len(closing) {
				l.readChar()
			}

			return Token{Type: STRING, Value: l.text(start), Position: start}, nil
		}

		l.readChar()
	}

	return Token{}, fmt.Errorf("%w at line %d, column %d", ErrUnterminatedString, start.Line, start.Column)
}

// matchesAhead reports whether the source at the current character starts
// with the given text.
func (l *lexer) matchesAhead(text string) bool {
	from := l.position - 1
	if from < 0 || from+len(text) > len(l.input) {
		return false
	}

	return l.input[from:from+len(text)] == text
}

// readComment reads '--' line comments and '--[[ ]]' long comments.
func (l *lexer) readComment() (Token, error) {
	start := l.mark()

	// '--'
	l.readChar()
	l.readChar()

	if level, ok := l.longBracketLevel(); ok {
		if _, err := l.readLongString(level); err != nil {
			return Token{}, fmt.Errorf("%w at line %d, column %d", ErrUnterminatedComment, start.Line, start.Column)
		}

		return Token{Type: COMMENT, Value: l.text(start), Position: start}, nil
	}

	for l.current != 0 && l.current != '\n' {
		l.readChar()
	}

	return Token{Type: COMMENT, Value: l.text(start), Position: start}, nil
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

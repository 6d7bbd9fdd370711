package luatable

import "errors"

// Sentinel errors
var (
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnterminatedString  = errors.New("unterminated string literal")
	ErrUnterminatedComment = errors.New("unterminated long comment")
	ErrInvalidNumber       = errors.New("invalid number format")
	ErrInvalidEscape       = errors.New("invalid escape sequence")
)

// TokenType represents the type of a token
type TokenType int

const (
	// Basic tokens
	EOF TokenType = iota
	IDENT
	NUMBER
	STRING  // quoted string, value keeps the quotes
	COMMENT // line or long comment, never part of any value node's range

	// Punctuation
	ASSIGN    // =
	COMMA     // ,
	SEMICOLON // ;
	DOT       // .
	COLON     // :
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
	LPAREN    // (
	RPAREN    // )
	MINUS     // -

	// Keywords
	KW_LOCAL
	KW_NIL
	KW_TRUE
	KW_FALSE
	KW_FUNCTION
	KW_END
	KW_IF
	KW_THEN
	KW_ELSE
	KW_ELSEIF
	KW_FOR
	KW_WHILE
	KW_REPEAT
	KW_UNTIL
	KW_DO
	KW_RETURN

	// Anything else (operators and other statement-level syntax the
	// declaration scanner only needs to skip over)
	OTHER
)

// String returns the string representation of TokenType
func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case IDENT:
		return "IDENT"
	case NUMBER:
		return "NUMBER"
	case STRING:
		return "STRING"
	case COMMENT:
		return "COMMENT"
	case ASSIGN:
		return "ASSIGN"
	case COMMA:
		return "COMMA"
	case SEMICOLON:
		return "SEMICOLON"
	case DOT:
		return "DOT"
	case COLON:
		return "COLON"
	case LBRACE:
		return "LBRACE"
	case RBRACE:
		return "RBRACE"
	case LBRACKET:
		return "LBRACKET"
	case RBRACKET:
		return "RBRACKET"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case MINUS:
		return "MINUS"
	case KW_LOCAL:
		return "LOCAL"
	case KW_NIL:
		return "NIL"
	case KW_TRUE:
		return "TRUE"
	case KW_FALSE:
		return "FALSE"
	case KW_FUNCTION:
		return "FUNCTION"
	case KW_END:
		return "END"
	case KW_IF:
		return "IF"
	case KW_THEN:
		return "THEN"
	case KW_ELSE:
		return "ELSE"
	case KW_ELSEIF:
		return "ELSEIF"
	case KW_FOR:
		return "FOR"
	case KW_WHILE:
		return "WHILE"
	case KW_REPEAT:
		return "REPEAT"
	case KW_UNTIL:
		return "UNTIL"
	case KW_DO:
		return "DO"
	case KW_RETURN:
		return "RETURN"
	case OTHER:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

var keywords = map[string]TokenType{
	"local":    KW_LOCAL,
	"nil":      KW_NIL,
	"true":     KW_TRUE,
	"false":    KW_FALSE,
	"function": KW_FUNCTION,
	"end":      KW_END,
	"if":       KW_IF,
	"then":     KW_THEN,
	"else":     KW_ELSE,
	"elseif":   KW_ELSEIF,
	"for":      KW_FOR,
	"while":    KW_WHILE,
	"repeat":   KW_REPEAT,
	"until":    KW_UNTIL,
	"do":       KW_DO,
	"return":   KW_RETURN,
}

// Position represents a position in the source code
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // byte offset, 0-based
}

// Token represents a token. Value always holds the exact source text,
// quotes and escapes included, so byte ranges reconstruct perfectly.
type Token struct {
	Type     TokenType
	Value    string
	Position Position
}

// End returns the byte offset one past the token's last byte.
func (t Token) End() int {
	return t.Position.Offset + len(t.Value)
}

// String returns the string representation of Token
func (t Token) String() string {
	return t.Type.String() + ": " + t.Value
}

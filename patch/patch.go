// Package patch serializes values into format-native literal text and
// splices them into source snapshots. Serialization follows the binding's
// declared type, never the value's inferred type: a mismatch is a caller
// error and is reported, not guessed around.
//
// Patches are single-shot. Every write re-parses and re-locates against a
// fresh snapshot before splicing; there is no multi-edit builder across
// calls, because ranges shift after any edit of different length.
package patch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shibukawa/sourcelink"
	"github.com/shopspring/decimal"
)

// Dialect selects the literal syntax of the target format.
type Dialect int

const (
	// DialectLua emits table constructor syntax: nil, { a = 1 }, { 1, 2 }.
	DialectLua Dialect = iota
	// DialectJSON emits JSON syntax: null, {"a": 1}, [1, 2].
	DialectJSON
)

// FormatValue serializes a value per the declared type into literal text for
// the given dialect. Composite values (arrays/objects) serialize their
// elements by runtime type. A declared type that does not match the value
// returns sourcelink.ErrTypeMismatch.
func FormatValue(value any, declared sourcelink.Type, dialect Dialect) (string, error) {
	switch declared {
	case sourcelink.TypeString:
		s, ok := value.(string)
		if !ok {
			return "", mismatch(declared, value)
		}

		return quote(s, dialect), nil
	case sourcelink.TypeInt:
		switch v := value.(type) {
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			if v != float64(int64(v)) {
				return "", mismatch(declared, value)
			}

			return strconv.FormatInt(int64(v), 10), nil
		case decimal.Decimal:
			if v.Exponent() < 0 && !v.Equal(v.Truncate(0)) {
				return "", mismatch(declared, value)
			}

			return v.Truncate(0).String(), nil
		default:
			return "", mismatch(declared, value)
		}
	case sourcelink.TypeFloat:
		switch v := value.(type) {
		case int:
			return formatFloat(float64(v)), nil
		case int64:
			return formatFloat(float64(v)), nil
		case float64:
			return formatFloat(v), nil
		case decimal.Decimal:
			// Decimal keeps the exact digits the caller supplied; no
			// float64 round trip.
			return ensureFloatText(v.String()), nil
		default:
			return "", mismatch(declared, value)
		}
	case sourcelink.TypeBool:
		b, ok := value.(bool)
		if !ok {
			return "", mismatch(declared, value)
		}

		return strconv.FormatBool(b), nil
	case sourcelink.TypeNil:
		if value != nil {
			return "", mismatch(declared, value)
		}

		if dialect == DialectJSON {
			return "null", nil
		}

		return "nil", nil
	case sourcelink.TypeArray:
		items, ok := value.([]any)
		if !ok {
			return "", mismatch(declared, value)
		}

		return formatArray(items, dialect)
	case sourcelink.TypeObject:
		record, ok := value.(map[string]any)
		if !ok {
			return "", mismatch(declared, value)
		}

		return formatObject(record, dialect)
	default:
		return "", fmt.Errorf("%w: unknown declared type %q", sourcelink.ErrTypeMismatch, declared)
	}
}

func mismatch(declared sourcelink.Type, value any) error {
	return fmt.Errorf("%w: declared %q, got %T", sourcelink.ErrTypeMismatch, declared, value)
}

// formatAuto serializes a composite element by its runtime type.
func formatAuto(value any, dialect Dialect) (string, error) {
	switch v := value.(type) {
	case nil:
		return FormatValue(nil, sourcelink.TypeNil, dialect)
	case bool:
		return FormatValue(v, sourcelink.TypeBool, dialect)
	case string:
		return FormatValue(v, sourcelink.TypeString, dialect)
	case int, int64:
		return FormatValue(v, sourcelink.TypeInt, dialect)
	case float64:
		if v == float64(int64(v)) {
			return FormatValue(v, sourcelink.TypeInt, dialect)
		}

		return FormatValue(v, sourcelink.TypeFloat, dialect)
	case decimal.Decimal:
		if v.Exponent() >= 0 || v.Equal(v.Truncate(0)) {
			return FormatValue(v, sourcelink.TypeInt, dialect)
		}

		return FormatValue(v, sourcelink.TypeFloat, dialect)
	case []any:
		return FormatValue(v, sourcelink.TypeArray, dialect)
	case map[string]any:
		return FormatValue(v, sourcelink.TypeObject, dialect)
	default:
		return "", fmt.Errorf("%w: unsupported element type %T", sourcelink.ErrTypeMismatch, value)
	}
}

func formatArray(items []any, dialect Dialect) (string, error) {
	parts := make([]string, len(items))

	for i, item := range items {
		text, err := formatAuto(item, dialect)
		if err != nil {
			return "", err
		}

		parts[i] = text
	}

	if dialect == DialectJSON {
		return "[" + strings.Join(parts, ", ") + "]", nil
	}

	return "{" + strings.Join(parts, ", ") + "}", nil
}

func formatObject(record map[string]any, dialect Dialect) (string, error) {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}

	// Maps carry no source order; sorted keys keep output deterministic.
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))

	for _, key := range keys {
		text, err := formatAuto(record[key], dialect)
		if err != nil {
			return "", err
		}

		if dialect == DialectJSON {
			parts = append(parts, quote(key, dialect)+": "+text)
			continue
		}

		if isIdent(key) {
			parts = append(parts, key+" = "+text)
		} else {
			parts = append(parts, "["+quote(key, dialect)+"] = "+text)
		}
	}

	if dialect == DialectJSON {
		return "{" + strings.Join(parts, ", ") + "}", nil
	}

	return "{" + strings.Join(parts, ", ") + "}", nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

// QuoteString emits a double-quoted literal escaping backslash, double
// quote, newline, carriage return, tab and NUL, using table constructor
// escape syntax.
func QuoteString(s string) string {
	return quote(s, DialectLua)
}

func quote(s string, dialect Dialect) string {
	var b strings.Builder

	b.WriteByte('"')

	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				// JSON has no \0 shorthand and forbids raw control bytes.
				if dialect == DialectJSON {
					fmt.Fprintf(&b, `\u%04x`, c)
				} else if c == 0 {
					b.WriteString(`\0`)
				} else {
					b.WriteByte(c)
				}

				continue
			}

			b.WriteByte(c)
		}
	}

	b.WriteByte('"')

	return b.String()
}

// formatFloat keeps a decimal point or exponent in the output so the
// integer-vs-float distinction survives a round trip through the file.
func formatFloat(f float64) string {
	return ensureFloatText(strconv.FormatFloat(f, 'g', -1, 64))
}

func ensureFloatText(text string) string {
	if strings.ContainsAny(text, ".eE") {
		return text
	}

	return text + ".0"
}

// ApplyRangePatch splices literal text over the half-open byte range in a
// source snapshot. This is the entire write mechanism for range-addressable
// adapters: every byte outside [Start, End) is guaranteed unchanged.
func ApplyRangePatch(source string, r sourcelink.Range, literal string) (string, error) {
	if r.Start < 0 || r.End > len(source) || r.Start > r.End {
		return "", fmt.Errorf("%w: range [%d, %d) out of bounds for %d bytes", sourcelink.ErrWriteFailed, r.Start, r.End, len(source))
	}

	return source[:r.Start] + literal + source[r.End:], nil
}

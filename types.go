package sourcelink

// Kind classifies a parsed value node.
type Kind int

const (
	KindInvalid Kind = iota
	KindNil
	KindBoolean
	KindNumber
	KindString
	KindTable
	KindFunction
	// KindExpression marks a value that is not a plain literal (a function
	// call, identifier reference, arithmetic...). It still carries an exact
	// range and raw text, so it can be located and overwritten, but it has
	// no decoded value beyond its source text.
	KindExpression
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	case KindFunction:
		return "function"
	case KindExpression:
		return "expression"
	default:
		return "invalid"
	}
}

// Range is a half-open byte interval [Start, End) into the exact source text
// that produced it. A range is invalidated the moment the source text changes;
// write paths must re-derive ranges from a fresh snapshot.
type Range struct {
	Start int
	End   int
}

// Location is the line/column form of a range, for jump-to-source
// affordances. Lines and columns are 1-based.
type Location struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// CellAddress is the spreadsheet analogue of Range: no character range
// exists, the location is logical.
type CellAddress struct {
	Sheet  string
	Row    int    // 0-based data row; the first row below the header is 0
	Column string // column key from the header row
}

// Node is one located value: its kind, decoded value, exact source text, and
// either a byte range (text adapters) or a cell address (spreadsheet).
// Nodes are produced fresh on every parse and must never be reused against a
// different snapshot of the source.
type Node struct {
	Kind  Kind
	Value any    // nil, bool, int64, float64, string, []any or map[string]any
	Raw   string // exact literal text as it appears in the source
	Range Range
	Loc   Location
	Cell  *CellAddress // set instead of Range for spreadsheet cells
}

// ValueRef points at where one table cell lives: a byte range for text
// adapters or a cell address for spreadsheets.
type ValueRef struct {
	Range *Range
	Cell  *CellAddress
}

// TableRow is one element of an array-of-records node.
type TableRow struct {
	Index int
	Data  map[string]any
	Refs  map[string]ValueRef
}

// Table is the row/column shape handed to table-editing consumers.
type Table struct {
	Columns []string
	Rows    []TableRow

	// SourceRowIndices maps visible row i back to the absolute underlying
	// data row, so writes target the correct physical row under a tail
	// window. Nil when no windowing was applied.
	SourceRowIndices []int
}

// Type is the declared value type carried by a binding descriptor. The
// patcher serializes per declared type, never per inferred type.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	TypeNil    Type = "nil"
	TypeArray  Type = "array"
	TypeObject Type = "object"
)

// Descriptor is one binding as declared by the document layer: a target
// file, a path into it, a declared type, and display hints the engine
// ignores.
type Descriptor struct {
	ID    string `yaml:"id,omitempty"`
	Name  string `yaml:"name,omitempty"`
	File  string `yaml:"file"`
	Path  string `yaml:"path"`
	Type  Type   `yaml:"type,omitempty"`
	Label string `yaml:"label,omitempty"`

	// Widget is a display hint for the presentation layer (slider, input,
	// table...). The engine carries it through untouched.
	Widget string `yaml:"widget,omitempty"`
}

// Resolved is the outcome of locating one binding's path in its target file.
type Resolved struct {
	Descriptor

	Status       Status
	Error        string // underlying message for parse-error and friends
	CurrentValue any
	Node         *Node
	AbsolutePath string
}

// WriteResult reports how a write was performed. FallbackUsed is the
// non-fatal "fallback-used" signal: the rich spreadsheet backend failed and
// the compatibility backend succeeded.
type WriteResult struct {
	Backend      string
	FallbackUsed bool
	FallbackFrom string // error message of the rich backend when a fallback happened
}

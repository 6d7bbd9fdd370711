package sourcelink

import "errors"

// Common errors used throughout the sourcelink package
var (
	// ErrFileNotFound indicates the binding's target file does not exist.
	ErrFileNotFound = errors.New("target file not found")
	// ErrParseFailed indicates the target file could not be parsed; it wraps
	// the underlying parser message.
	ErrParseFailed = errors.New("failed to parse source")
	// ErrKeyNotFound indicates a path segment could not be matched, including
	// an out-of-range index.
	ErrKeyNotFound = errors.New("key not found at path")
	// ErrInvalidPath indicates a malformed binding path string.
	ErrInvalidPath = errors.New("invalid path syntax")
	// ErrTypeMismatch indicates the declared type does not match the value
	// being serialized.
	ErrTypeMismatch = errors.New("declared type does not match value")
	// ErrWriteFailed indicates an I/O error while saving patched content.
	ErrWriteFailed = errors.New("failed to write target file")
	// ErrUnsupportedFormat indicates no adapter is registered for the target
	// file's extension.
	ErrUnsupportedFormat = errors.New("unsupported source format")
	// ErrMaxDepthExceeded indicates a literal nested deeper than the
	// configured recursion limit.
	ErrMaxDepthExceeded = errors.New("maximum nesting depth exceeded")
	// ErrNotArrayNode indicates table extraction was requested on a node that
	// is not a sequential array of records.
	ErrNotArrayNode = errors.New("node is not an array of records")

	// ErrSheetNotFound indicates the requested worksheet does not exist.
	ErrSheetNotFound = errors.New("worksheet not found")
	// ErrColumnNotFound indicates the column key is absent from the header row.
	ErrColumnNotFound = errors.New("column not found in header row")
	// ErrRowOutOfRange indicates the row index is outside the sheet's data rows.
	ErrRowOutOfRange = errors.New("row index out of range")
)

// Status classifies the outcome of resolving one binding. The presentation
// layer surfaces it per binding; one failed binding never affects the rest of
// a batch.
type Status string

const (
	StatusOK           Status = "ok"
	StatusFileNotFound Status = "file-not-found"
	StatusKeyNotFound  Status = "key-not-found"
	StatusParseError   Status = "parse-error"
	StatusInvalidPath  Status = "invalid-path"
)

// StatusForError maps an adapter-boundary error onto the binding status
// taxonomy. Unknown errors are reported as parse errors so that the caller
// always receives a tagged result.
func StatusForError(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrFileNotFound):
		return StatusFileNotFound
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrSheetNotFound),
		errors.Is(err, ErrColumnNotFound), errors.Is(err, ErrRowOutOfRange),
		errors.Is(err, ErrNotArrayNode):
		return StatusKeyNotFound
	case errors.Is(err, ErrInvalidPath):
		return StatusInvalidPath
	default:
		return StatusParseError
	}
}

package spreadsheet

import (
	"errors"
	"fmt"
	"os"

	"github.com/shibukawa/sourcelink"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// WriteBackend writes one cell value at 1-based sheet coordinates (row 1 is
// the header row).
type WriteBackend interface {
	Name() string
	WriteCell(path, sheet string, row, col int, value any) error
}

// Writer routes cell writes through the rich backend and falls back to the
// compatibility backend when the rich one fails for any reason. The rich
// backend rewrites the workbook through a full xlsx model, preserving
// styles and formulas; the compatibility backend patches the one cell
// element inside the sheet XML and copies every other archive entry
// byte for byte.
type Writer struct {
	rich   WriteBackend
	compat WriteBackend
	mode   string // "auto", "rich" or "compat"
}

// NewWriter returns a writer in automatic fallback mode.
func NewWriter() *Writer {
	return NewWriterBackends(excelizeBackend{}, compatBackend{})
}

// NewWriterBackends wires explicit backends, mainly so tests can inject a
// failing rich backend and observe the fallback path.
func NewWriterBackends(rich, compat WriteBackend) *Writer {
	return &Writer{rich: rich, compat: compat, mode: "auto"}
}

// CompatBackend returns the raw-XML compatibility backend for callers that
// wire their own backend pair.
func CompatBackend() WriteBackend {
	return compatBackend{}
}

// SetMode pins the writer to one backend: "rich" or "compat" disables the
// fallback, "auto" (the default) restores it.
func (w *Writer) SetMode(mode string) {
	w.mode = mode
}

// WriteCell writes a value into the cell addressed by 0-based data row and
// header column key. The returned WriteResult names the backend that
// performed the write; FallbackUsed reports a rich-backend failure that the
// compatibility backend recovered from.
func (w *Writer) WriteCell(path, sheet string, rowIndex int, columnKey string, value any) (*sourcelink.WriteResult, error) {
	rows, err := sheetRows(path, sheet)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no header row", sourcelink.ErrColumnNotFound, sheet)
	}

	col, err := headerIndex(rows[0], sheet, columnKey)
	if err != nil {
		return nil, err
	}

	if rowIndex < 0 || rowIndex >= len(rows)-1 {
		return nil, fmt.Errorf("%w: row [%d] in sheet %q (%d data rows)", sourcelink.ErrRowOutOfRange, rowIndex, sheet, len(rows)-1)
	}

	// Header occupies sheet row 1; data row 0 is sheet row 2.
	sheetRow := rowIndex + 2
	sheetCol := col + 1

	if w.mode == "compat" {
		if err := w.compat.WriteCell(path, sheet, sheetRow, sheetCol, value); err != nil {
			return nil, err
		}

		return &sourcelink.WriteResult{Backend: w.compat.Name()}, nil
	}

	richErr := w.rich.WriteCell(path, sheet, sheetRow, sheetCol, value)
	if richErr == nil {
		return &sourcelink.WriteResult{Backend: w.rich.Name()}, nil
	}

	if w.mode == "rich" {
		return nil, richErr
	}

	if err := w.compat.WriteCell(path, sheet, sheetRow, sheetCol, value); err != nil {
		return nil, errors.Join(richErr, err)
	}

	return &sourcelink.WriteResult{
		Backend:      w.compat.Name(),
		FallbackUsed: true,
		FallbackFrom: richErr.Error(),
	}, nil
}

type excelizeBackend struct{}

func (excelizeBackend) Name() string { return "rich" }

func (excelizeBackend) WriteCell(path, sheet string, row, col int, value any) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", sourcelink.ErrFileNotFound, path)
		}

		return fmt.Errorf("%w: %s: %s", sourcelink.ErrWriteFailed, path, err)
	}
	defer f.Close()

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	if d, ok := value.(decimal.Decimal); ok {
		// Keep the exact digits instead of the binary float nearest to them.
		if err := f.SetCellDefault(sheet, cell, d.String()); err != nil {
			return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
		}
	} else if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	return nil
}

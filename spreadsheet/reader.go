// Package spreadsheet adapts xlsx workbooks to the table and cell contract
// shared by the text adapters. Cells have no byte range in a zipped binary
// format, so every located value carries a logical CellAddress instead.
//
// Reads are windowed: at most MaxRowWindow data rows are materialized per
// call, with an optional tail offset for "show me the end of the sheet".
// The workbook file is opened, read and closed within each call; no handle
// is held between calls.
package spreadsheet

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/pathparser"
	"github.com/xuri/excelize/v2"
)

// Options controls the read window.
type Options struct {
	// MaxRows caps materialized data rows. Zero means the hard ceiling.
	// Values above sourcelink.HardRowCeiling are clamped down.
	MaxRows int

	// TailRows, when positive, starts the window so that the last TailRows
	// data rows are visible (subject to MaxRows).
	TailRows int
}

func (o Options) window(total int) (offset, limit int) {
	limit = o.MaxRows
	if limit <= 0 || limit > sourcelink.HardRowCeiling {
		limit = sourcelink.HardRowCeiling
	}

	if o.TailRows > 0 {
		offset = total - o.TailRows
		if offset < 0 {
			offset = 0
		}
	}

	if offset+limit > total {
		limit = total - offset
	}

	return offset, limit
}

// ReadTable reads one sheet as a header-plus-rows table. The first sheet row
// is the header; each following row becomes a data row keyed by header cell
// text. SourceRowIndices maps every visible row back to its absolute 0-based
// data row so a windowed view still addresses the right physical cells.
func ReadTable(path, sheet string, opts Options) (*sourcelink.Table, error) {
	rows, err := sheetRows(path, sheet)
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return &sourcelink.Table{}, nil
	}

	header := rows[0]
	data := rows[1:]
	offset, limit := opts.window(len(data))

	table := &sourcelink.Table{}
	for _, cell := range header {
		if strings.TrimSpace(cell) != "" {
			table.Columns = append(table.Columns, cell)
		}
	}

	for i := 0; i < limit; i++ {
		abs := offset + i
		cells := data[abs]

		row := sourcelink.TableRow{
			Index: i,
			Data:  make(map[string]any, len(table.Columns)),
			Refs:  make(map[string]sourcelink.ValueRef, len(table.Columns)),
		}

		for col, name := range header {
			if strings.TrimSpace(name) == "" {
				continue
			}

			var text string
			if col < len(cells) {
				text = cells[col]
			}

			row.Data[name] = decodeCell(text)
			row.Refs[name] = sourcelink.ValueRef{
				Cell: &sourcelink.CellAddress{Sheet: sheet, Row: abs, Column: name},
			}
		}

		table.Rows = append(table.Rows, row)
		table.SourceRowIndices = append(table.SourceRowIndices, abs)
	}

	return table, nil
}

// ReadCell reads one data cell addressed by 0-based data row and header
// column key.
func ReadCell(path, sheet string, rowIndex int, columnKey string) (*sourcelink.Node, error) {
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

	data := rows[1:]
	if rowIndex < 0 || rowIndex >= len(data) {
		return nil, fmt.Errorf("%w: row [%d] in sheet %q (%d data rows)", sourcelink.ErrRowOutOfRange, rowIndex, sheet, len(data))
	}

	var text string
	if col < len(data[rowIndex]) {
		text = data[rowIndex][col]
	}

	value := decodeCell(text)

	return &sourcelink.Node{
		Kind:  kindOf(value),
		Value: value,
		Raw:   text,
		Cell:  &sourcelink.CellAddress{Sheet: sheet, Row: rowIndex, Column: columnKey},
	}, nil
}

// CellTarget is a parsed spreadsheet path: either a whole-sheet table
// request or one cell.
type CellTarget struct {
	Sheet  string
	Row    int
	Column string
	Table  bool // bare sheet path, extract the whole table
}

// ResolveCell maps a path onto a sheet target. Accepted shapes are `Sheet`,
// `Sheet[row].Column` and `Sheet.Column[row]`, with 0-based data rows.
func ResolveCell(segments []pathparser.Segment) (*CellTarget, error) {
	if len(segments) == 0 || segments[0].Kind == pathparser.Index {
		return nil, fmt.Errorf("%w: spreadsheet path must start with a sheet name", sourcelink.ErrInvalidPath)
	}

	sheet := segments[0].Name

	switch len(segments) {
	case 1:
		return &CellTarget{Sheet: sheet, Table: true}, nil
	case 3:
		a, b := segments[1], segments[2]

		if a.Kind == pathparser.Index && b.Kind != pathparser.Index {
			return &CellTarget{Sheet: sheet, Row: a.Index, Column: b.Name}, nil
		}

		if a.Kind != pathparser.Index && b.Kind == pathparser.Index {
			return &CellTarget{Sheet: sheet, Row: b.Index, Column: a.Name}, nil
		}
	}

	return nil, fmt.Errorf("%w: expected Sheet, Sheet[row].Column or Sheet.Column[row]", sourcelink.ErrInvalidPath)
}

// sheetRows loads all cell texts of one sheet and closes the workbook before
// returning.
func sheetRows(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", sourcelink.ErrFileNotFound, path)
		}

		return nil, fmt.Errorf("%w: %s: %s", sourcelink.ErrParseFailed, path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %q in %s", sourcelink.ErrSheetNotFound, sheet, path)
	}

	return rows, nil
}

func headerIndex(header []string, sheet, columnKey string) (int, error) {
	for i, name := range header {
		if name == columnKey {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: %q in sheet %q", sourcelink.ErrColumnNotFound, columnKey, sheet)
}

// decodeCell maps cell text onto a typed value: integer, float, boolean or
// string. Empty cells decode to the empty string, not nil, because a sheet
// cannot distinguish the two.
func decodeCell(text string) any {
	if text == "" {
		return ""
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f
	}

	switch text {
	case "TRUE", "true":
		return true
	case "FALSE", "false":
		return false
	}

	return text
}

func kindOf(value any) sourcelink.Kind {
	switch value.(type) {
	case bool:
		return sourcelink.KindBoolean
	case int64, float64:
		return sourcelink.KindNumber
	default:
		return sourcelink.KindString
	}
}

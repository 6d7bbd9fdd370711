package spreadsheet

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shibukawa/sourcelink"
	"github.com/shopspring/decimal"
)

// compatBackend patches a single cell element inside the target sheet's XML
// part and copies every other archive entry untouched. It understands far
// less of the format than the rich backend, which is the point: a workbook
// the rich backend cannot round-trip can still take a one-cell edit.
//
// Strings are written as inline strings, so the shared-string table is never
// touched. The patched cell loses its formula, if any; its style index is
// kept.
type compatBackend struct{}

func (compatBackend) Name() string { return "compat" }

func (compatBackend) WriteCell(path, sheet string, row, col int, value any) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", sourcelink.ErrFileNotFound, path)
		}

		return fmt.Errorf("%w: %s: %s", sourcelink.ErrWriteFailed, path, err)
	}
	defer reader.Close()

	sheetPart, err := sheetPartPath(&reader.Reader, sheet)
	if err != nil {
		return err
	}

	patched, err := patchSheetXML(&reader.Reader, sheetPart, row, col, value)
	if err != nil {
		return err
	}

	return rewriteArchive(path, &reader.Reader, sheetPart, patched)
}

// sheetPartPath maps a sheet name to its XML part via the workbook manifest
// and its relationships file.
func sheetPartPath(reader *zip.Reader, sheet string) (string, error) {
	workbook, err := readPartXML(reader, "xl/workbook.xml")
	if err != nil {
		return "", err
	}

	var relID string

	if sheets := workbook.Root().SelectElement("sheets"); sheets != nil {
		for _, el := range sheets.SelectElements("sheet") {
			if el.SelectAttrValue("name", "") == sheet {
				relID = el.SelectAttrValue("r:id", "")
				break
			}
		}
	}

	if relID == "" {
		return "", fmt.Errorf("%w: %q", sourcelink.ErrSheetNotFound, sheet)
	}

	rels, err := readPartXML(reader, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return "", err
	}

	for _, el := range rels.Root().SelectElements("Relationship") {
		if el.SelectAttrValue("Id", "") != relID {
			continue
		}

		target := el.SelectAttrValue("Target", "")
		if strings.HasPrefix(target, "/") {
			return target[1:], nil
		}

		return "xl/" + target, nil
	}

	return "", fmt.Errorf("%w: no worksheet part for %q", sourcelink.ErrSheetNotFound, sheet)
}

func readPartXML(reader *zip.Reader, name string) (*etree.Document, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s", sourcelink.ErrWriteFailed, name, err)
		}
		defer rc.Close()

		doc := etree.NewDocument()
		if _, err := doc.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", sourcelink.ErrWriteFailed, name, err)
		}

		return doc, nil
	}

	return nil, fmt.Errorf("%w: missing archive entry %s", sourcelink.ErrWriteFailed, name)
}

func patchSheetXML(reader *zip.Reader, sheetPart string, row, col int, value any) ([]byte, error) {
	doc, err := readPartXML(reader, sheetPart)
	if err != nil {
		return nil, err
	}

	sheetData := doc.Root().SelectElement("sheetData")
	if sheetData == nil {
		return nil, fmt.Errorf("%w: %s has no sheetData element", sourcelink.ErrWriteFailed, sheetPart)
	}

	rowEl := findOrInsertRow(sheetData, row)
	cellEl := findOrInsertCell(rowEl, row, col)
	setCellElement(cellEl, value)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	return out, nil
}

// findOrInsertRow returns the <row r="N"> element, creating it in ascending
// r order when the sheet stores no cells on that row yet.
func findOrInsertRow(sheetData *etree.Element, row int) *etree.Element {
	at := len(sheetData.Child)

	for _, el := range sheetData.SelectElements("row") {
		r, _ := strconv.Atoi(el.SelectAttrValue("r", ""))
		if r == row {
			return el
		}

		if r > row {
			if idx := elementIndex(sheetData, el); idx >= 0 {
				at = idx
			}
			break
		}
	}

	rowEl := etree.NewElement("row")
	rowEl.CreateAttr("r", strconv.Itoa(row))
	sheetData.InsertChildAt(at, rowEl)

	return rowEl
}

// findOrInsertCell returns the <c r="A1"> element for the given coordinates,
// creating it in ascending column order when absent.
func findOrInsertCell(rowEl *etree.Element, row, col int) *etree.Element {
	ref := columnName(col) + strconv.Itoa(row)
	at := len(rowEl.Child)

	for _, el := range rowEl.SelectElements("c") {
		r := el.SelectAttrValue("r", "")
		if r == ref {
			return el
		}

		if columnOf(r) > col {
			if idx := elementIndex(rowEl, el); idx >= 0 {
				at = idx
			}
			break
		}
	}

	cellEl := etree.NewElement("c")
	cellEl.CreateAttr("r", ref)
	rowEl.InsertChildAt(at, cellEl)

	return cellEl
}

// setCellElement rewrites the cell's type attribute and children for the new
// value. The style attribute survives; any formula does not.
func setCellElement(cellEl *etree.Element, value any) {
	cellEl.RemoveAttr("t")

	for _, child := range cellEl.ChildElements() {
		cellEl.RemoveChild(child)
	}

	switch v := value.(type) {
	case string:
		cellEl.CreateAttr("t", "inlineStr")

		is := cellEl.CreateElement("is")
		t := is.CreateElement("t")
		t.SetText(v)

		if v != strings.TrimSpace(v) {
			t.CreateAttr("xml:space", "preserve")
		}
	case bool:
		cellEl.CreateAttr("t", "b")

		text := "0"
		if v {
			text = "1"
		}

		cellEl.CreateElement("v").SetText(text)
	case decimal.Decimal:
		cellEl.CreateElement("v").SetText(v.String())
	case int:
		cellEl.CreateElement("v").SetText(strconv.Itoa(v))
	case int64:
		cellEl.CreateElement("v").SetText(strconv.FormatInt(v, 10))
	case float64:
		cellEl.CreateElement("v").SetText(strconv.FormatFloat(v, 'g', -1, 64))
	default:
		cellEl.CreateAttr("t", "inlineStr")

		is := cellEl.CreateElement("is")
		is.CreateElement("t").SetText(fmt.Sprint(v))
	}
}

// rewriteArchive writes a new xlsx beside the original with one entry
// replaced, then renames it over the original.
func rewriteArchive(path string, reader *zip.Reader, replaceName string, replacement []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sourcelink-*.xlsx")
	if err != nil {
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	tmpName := tmp.Name()
	ok := false

	defer func() {
		if !ok {
			os.Remove(tmpName)
		}
	}()

	writer := zip.NewWriter(tmp)

	for _, file := range reader.File {
		header := file.FileHeader

		w, err := writer.CreateHeader(&header)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
		}

		if file.Name == replaceName {
			if _, err := w.Write(replacement); err != nil {
				tmp.Close()
				return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
			}

			continue
		}

		rc, err := file.Open()
		if err != nil {
			tmp.Close()
			return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
		}

		_, err = io.Copy(w, rc)
		rc.Close()

		if err != nil {
			tmp.Close()
			return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
		}
	}

	if err := writer.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %s", sourcelink.ErrWriteFailed, err)
	}

	ok = true

	return nil
}

// columnName converts a 1-based column number to its letter form (1 = A,
// 27 = AA).
func columnName(col int) string {
	name := ""

	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}

	return name
}

// columnOf parses the letter prefix of a cell reference back into a 1-based
// column number.
func columnOf(ref string) int {
	col := 0

	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}

		col = col*26 + int(r-'A') + 1
	}

	return col
}

// elementIndex locates a child element's position inside its parent's child
// token list.
func elementIndex(parent *etree.Element, el *etree.Element) int {
	for i, token := range parent.Child {
		if token == etree.Token(el) {
			return i
		}
	}

	return -1
}

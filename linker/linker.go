// Package linker resolves binding descriptors against their target files and
// routes writes back through the format adapters. It is the orchestration
// layer: everything here is synchronous, one descriptor never affects
// another, and every write re-reads its target from disk before patching.
package linker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/jsondoc"
	"github.com/shibukawa/sourcelink/luatable"
	"github.com/shibukawa/sourcelink/patch"
	"github.com/shibukawa/sourcelink/pathparser"
	"github.com/shibukawa/sourcelink/spreadsheet"
	"github.com/shopspring/decimal"
)

// Option configures a Linker.
type Option func(*Linker)

// WithConfig supplies a loaded configuration instead of the defaults.
func WithConfig(config *sourcelink.Config) Option {
	return func(l *Linker) {
		l.config = config
	}
}

// WithSpreadsheetWriter replaces the cell writer, mainly for tests that
// inject a failing rich backend.
func WithSpreadsheetWriter(writer *spreadsheet.Writer) Option {
	return func(l *Linker) {
		l.writer = writer
	}
}

// Linker links binding descriptors to live source locations. It keeps a
// parse cache keyed by absolute path and validated by file mtime and size;
// the cache is not locked, so concurrent use of one Linker must be
// coordinated by the caller. Writes to the same target file must likewise be
// serialized by the caller: each write re-reads the file, so interleaved
// writers follow last-writer-wins.
type Linker struct {
	baseDir string
	config  *sourcelink.Config
	cache   *parseCache
	writer  *spreadsheet.Writer
}

// New returns a Linker resolving relative descriptor files against baseDir.
func New(baseDir string, opts ...Option) *Linker {
	l := &Linker{
		baseDir: baseDir,
		config:  sourcelink.DefaultConfig(),
		cache:   newParseCache(),
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.writer == nil {
		l.writer = spreadsheet.NewWriter()
		l.writer.SetMode(l.config.Spreadsheet.WriteBackend)
	}

	return l
}

// LinkBindings resolves every descriptor and returns results in descriptor
// order. A failing binding is reported in its slot; it never aborts the
// batch.
func (l *Linker) LinkBindings(descriptors []sourcelink.Descriptor) []sourcelink.Resolved {
	results := make([]sourcelink.Resolved, len(descriptors))

	for i, descriptor := range descriptors {
		results[i] = l.Resolve(descriptor)
	}

	return results
}

// Resolve locates one descriptor's current value. Failures are reported on
// the result's Status and Error, not as a Go error, so batch callers can
// treat every outcome uniformly.
func (l *Linker) Resolve(descriptor sourcelink.Descriptor) sourcelink.Resolved {
	resolved := sourcelink.Resolved{Descriptor: descriptor}
	resolved.AbsolutePath = l.absPath(descriptor.File)

	node, value, err := l.currentValue(resolved.AbsolutePath, descriptor.Path)
	if err != nil {
		resolved.Status = sourcelink.StatusForError(err)
		resolved.Error = err.Error()

		return resolved
	}

	resolved.Status = sourcelink.StatusOK
	resolved.Node = node
	resolved.CurrentValue = value

	return resolved
}

func (l *Linker) currentValue(abs, path string) (*sourcelink.Node, any, error) {
	segments, err := pathSegments(path)
	if err != nil {
		return nil, nil, err
	}

	if formatOf(abs) == formatXLSX {
		target, err := spreadsheet.ResolveCell(segments)
		if err != nil {
			return nil, nil, err
		}

		if target.Table {
			table, err := spreadsheet.ReadTable(abs, target.Sheet, l.windowOptions())
			if err != nil {
				return nil, nil, err
			}

			return nil, table, nil
		}

		node, err := spreadsheet.ReadCell(abs, target.Sheet, target.Row, target.Column)
		if err != nil {
			return nil, nil, err
		}

		return node, node.Value, nil
	}

	doc, err := l.cache.get(abs, l.config.Parser.MaxDepth)
	if err != nil {
		return nil, nil, err
	}

	node, err := doc.locate(path)
	if err != nil {
		return nil, nil, err
	}

	return node, node.Value, nil
}

// SetValue writes a new value at the descriptor's path. Text targets are
// re-read from disk, re-located, patched in place and saved; the cache entry
// is dropped so the next read reparses. Spreadsheet targets route through
// the cell writer and may report a backend fallback.
func (l *Linker) SetValue(descriptor sourcelink.Descriptor, value any) (*sourcelink.WriteResult, error) {
	abs := l.absPath(descriptor.File)

	segments, err := pathSegments(descriptor.Path)
	if err != nil {
		return nil, err
	}

	declared := declaredType(descriptor, value)

	if formatOf(abs) == formatXLSX {
		target, err := spreadsheet.ResolveCell(segments)
		if err != nil {
			return nil, err
		}

		if target.Table {
			return nil, fmt.Errorf("%w: a whole-sheet path is not writable", sourcelink.ErrInvalidPath)
		}

		// Same declared-type gate as the text route; the literal itself is
		// discarded because cells take the raw value.
		if _, err := patch.FormatValue(value, declared, patch.DialectLua); err != nil {
			return nil, err
		}

		return l.writer.WriteCell(abs, target.Sheet, target.Row, target.Column, value)
	}

	doc, err := parseFile(abs, l.config.Parser.MaxDepth)
	if err != nil {
		return nil, err
	}

	var patched string

	switch doc.format {
	case formatLua:
		node, err := doc.lua.Locate(segments)
		if err != nil {
			return nil, err
		}

		literal, err := patch.FormatValue(value, declared, patch.DialectLua)
		if err != nil {
			return nil, err
		}

		patched, err = patch.ApplyRangePatch(doc.source, node.Range, literal)
		if err != nil {
			return nil, err
		}
	case formatJSON:
		literal, err := patch.FormatValue(value, declared, patch.DialectJSON)
		if err != nil {
			return nil, err
		}

		edits, err := jsondoc.SetValueEdits(doc.json, segments, literal)
		if err != nil {
			return nil, err
		}

		patched, err = jsondoc.ApplyEdits(doc.source, edits)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", sourcelink.ErrUnsupportedFormat, filepath.Ext(abs))
	}

	if err := writeFile(abs, patched); err != nil {
		return nil, err
	}

	l.cache.invalidate(abs)

	return &sourcelink.WriteResult{Backend: "text"}, nil
}

// ExtractTable reads the array-of-records (or sheet) behind a descriptor as
// a table with per-cell write targets.
func (l *Linker) ExtractTable(descriptor sourcelink.Descriptor) (*sourcelink.Table, error) {
	abs := l.absPath(descriptor.File)

	segments, err := pathSegments(descriptor.Path)
	if err != nil {
		return nil, err
	}

	if formatOf(abs) == formatXLSX {
		target, err := spreadsheet.ResolveCell(segments)
		if err != nil {
			return nil, err
		}

		if !target.Table {
			return nil, fmt.Errorf("%w: expected a bare sheet path", sourcelink.ErrInvalidPath)
		}

		return spreadsheet.ReadTable(abs, target.Sheet, l.windowOptions())
	}

	doc, err := l.cache.get(abs, l.config.Parser.MaxDepth)
	if err != nil {
		return nil, err
	}

	switch doc.format {
	case formatLua:
		node, err := doc.lua.Locate(segments)
		if err != nil {
			return nil, err
		}

		return luatable.ExtractRows(node)
	case formatJSON:
		node, err := doc.json.Locate(segments)
		if err != nil {
			return nil, err
		}

		return jsondoc.ExtractRows(node)
	default:
		return nil, sourcelink.ErrUnsupportedFormat
	}
}

// ClearCache drops cached parses: the named paths, or everything when called
// with no arguments.
func (l *Linker) ClearCache(paths ...string) {
	if len(paths) == 0 {
		l.cache.clear()
		return
	}

	for _, path := range paths {
		l.cache.invalidate(l.absPath(path))
	}
}

func (l *Linker) absPath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(l.baseDir, file)
}

func (l *Linker) windowOptions() spreadsheet.Options {
	return spreadsheet.Options{
		MaxRows:  l.config.Spreadsheet.MaxRowWindow,
		TailRows: l.config.Spreadsheet.TailRowWindow,
	}
}

func pathSegments(path string) ([]pathparser.Segment, error) {
	return pathparser.Parse(path)
}

// declaredType falls back to the new value's runtime type when the
// descriptor declares none.
func declaredType(descriptor sourcelink.Descriptor, value any) sourcelink.Type {
	if descriptor.Type != "" {
		return descriptor.Type
	}

	switch v := value.(type) {
	case nil:
		return sourcelink.TypeNil
	case bool:
		return sourcelink.TypeBool
	case string:
		return sourcelink.TypeString
	case int, int64:
		return sourcelink.TypeInt
	case float64:
		if v == float64(int64(v)) {
			return sourcelink.TypeInt
		}

		return sourcelink.TypeFloat
	case decimal.Decimal:
		if v.Equal(v.Truncate(0)) {
			return sourcelink.TypeInt
		}

		return sourcelink.TypeFloat
	case []any:
		return sourcelink.TypeArray
	case map[string]any:
		return sourcelink.TypeObject
	default:
		return sourcelink.TypeString
	}
}

func writeFile(path, content string) error {
	info, err := os.Stat(path)

	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}

	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("%w: %s: %s", sourcelink.ErrWriteFailed, path, err)
	}

	return nil
}

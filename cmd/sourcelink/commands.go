package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/shibukawa/sourcelink"
	"github.com/shibukawa/sourcelink/bindingdoc"
	"github.com/shibukawa/sourcelink/linker"
	"github.com/shopspring/decimal"
)

// Sentinel errors
var (
	ErrValueRequired = errors.New("a value argument is required")
	ErrBadValue      = errors.New("value does not parse as the declared type")
)

// LinkCmd represents the link command
type LinkCmd struct {
	Doc string `arg:"" help:"Markdown binding document" type:"path"`
}

func (cmd *LinkCmd) Run(ctx *Context) error {
	doc, err := bindingdoc.ParseFile(cmd.Doc)
	if err != nil {
		return err
	}

	l, err := newLinker(ctx, docBaseDir(cmd.Doc, doc))
	if err != nil {
		return err
	}

	descriptors := make([]sourcelink.Descriptor, len(doc.Bindings))
	for i, binding := range doc.Bindings {
		descriptors[i] = binding.Descriptor
	}

	results := l.LinkBindings(descriptors)

	if !ctx.Quiet && doc.Title != "" {
		color.Blue("%s: %d binding(s)", doc.Title, len(results))
	}

	failed := 0

	for _, resolved := range results {
		if resolved.Status != sourcelink.StatusOK {
			failed++
		}

		if ctx.Quiet {
			continue
		}

		printResolved(resolved, ctx.Verbose)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d binding(s) failed to resolve", failed, len(results))
	}

	return nil
}

// GetCmd represents the get command
type GetCmd struct {
	File string `short:"f" required:"" help:"Target source file" type:"path"`
	Path string `short:"p" required:"" help:"Path into the file (e.g. Config.HP, Items[1].name)"`
}

func (cmd *GetCmd) Run(ctx *Context) error {
	l, err := newLinker(ctx, filepath.Dir(cmd.File))
	if err != nil {
		return err
	}

	resolved := l.Resolve(sourcelink.Descriptor{File: filepath.Base(cmd.File), Path: cmd.Path})
	if resolved.Status != sourcelink.StatusOK {
		return fmt.Errorf("%s: %s", resolved.Status, resolved.Error)
	}

	if ctx.Verbose && resolved.Node != nil {
		fmt.Printf("%s %s\n", formatValue(resolved.CurrentValue), locationOf(resolved))
		return nil
	}

	fmt.Println(formatValue(resolved.CurrentValue))

	return nil
}

// SetCmd represents the set command
type SetCmd struct {
	File  string `short:"f" required:"" help:"Target source file" type:"path"`
	Path  string `short:"p" required:"" help:"Path into the file"`
	Type  string `short:"t" help:"Declared value type: string, int, float, bool or nil" default:""`
	Value string `arg:"" optional:"" help:"New value (omit for -t nil)"`
}

func (cmd *SetCmd) Run(ctx *Context) error {
	l, err := newLinker(ctx, filepath.Dir(cmd.File))
	if err != nil {
		return err
	}

	declared := sourcelink.Type(cmd.Type)

	value, err := parseValueArg(cmd.Value, declared)
	if err != nil {
		return err
	}

	result, err := l.SetValue(sourcelink.Descriptor{
		File: filepath.Base(cmd.File),
		Path: cmd.Path,
		Type: declared,
	}, value)
	if err != nil {
		return err
	}

	if ctx.Quiet {
		return nil
	}

	if result.FallbackUsed {
		color.Yellow("written via %s backend (fallback: %s)", result.Backend, result.FallbackFrom)
		return nil
	}

	color.Green("written (%s)", result.Backend)

	return nil
}

// TableCmd represents the table command
type TableCmd struct {
	File    string `short:"f" required:"" help:"Target source file" type:"path"`
	Path    string `short:"p" required:"" help:"Path to an array of records, or a sheet name"`
	Tail    int    `help:"Read only the last N data rows (spreadsheets)" default:"0"`
	MaxRows int    `help:"Cap the number of rows read (spreadsheets)" default:"0"`
}

func (cmd *TableCmd) Run(ctx *Context) error {
	config, err := sourcelink.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Tail > 0 {
		config.Spreadsheet.TailRowWindow = cmd.Tail
	}

	if cmd.MaxRows > 0 {
		config.Spreadsheet.MaxRowWindow = min(cmd.MaxRows, sourcelink.HardRowCeiling)
	}

	l := linker.New(filepath.Dir(cmd.File), linker.WithConfig(config))

	table, err := l.ExtractTable(sourcelink.Descriptor{File: filepath.Base(cmd.File), Path: cmd.Path})
	if err != nil {
		return err
	}

	fmt.Println(strings.Join(table.Columns, "\t"))

	for _, row := range table.Rows {
		cells := make([]string, len(table.Columns))
		for i, column := range table.Columns {
			cells[i] = formatValue(row.Data[column])
		}

		fmt.Println(strings.Join(cells, "\t"))
	}

	return nil
}

func newLinker(ctx *Context, baseDir string) (*linker.Linker, error) {
	config, err := sourcelink.LoadConfig(ctx.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return linker.New(baseDir, linker.WithConfig(config)), nil
}

// docBaseDir resolves a document's base_dir relative to the document itself.
func docBaseDir(docPath string, doc *bindingdoc.Document) string {
	dir := filepath.Dir(docPath)
	if doc.BaseDir == "" {
		return dir
	}

	if filepath.IsAbs(doc.BaseDir) {
		return doc.BaseDir
	}

	return filepath.Join(dir, doc.BaseDir)
}

func printResolved(resolved sourcelink.Resolved, verbose bool) {
	label := resolved.Name
	if label == "" {
		label = resolved.ID
	}

	target := fmt.Sprintf("%s : %s", resolved.File, resolved.Path)

	switch resolved.Status {
	case sourcelink.StatusOK:
		color.Green("  ok            %-40s %s = %s", label, target, formatValue(resolved.CurrentValue))

		if verbose && resolved.Node != nil {
			fmt.Printf("                %s\n", locationOf(resolved))
		}
	case sourcelink.StatusKeyNotFound:
		color.Yellow("  %-13s %-40s %s", resolved.Status, label, target)
	default:
		color.Red("  %-13s %-40s %s", resolved.Status, label, target)
	}

	if resolved.Status != sourcelink.StatusOK && verbose && resolved.Error != "" {
		fmt.Printf("                %s\n", resolved.Error)
	}
}

func locationOf(resolved sourcelink.Resolved) string {
	node := resolved.Node

	if node.Cell != nil {
		return fmt.Sprintf("(%s!%s row %d)", node.Cell.Sheet, node.Cell.Column, node.Cell.Row)
	}

	return fmt.Sprintf("(%s:%d:%d)", resolved.AbsolutePath, node.Loc.StartLine, node.Loc.StartColumn)
}

// parseValueArg turns the CLI text argument into a typed value. Numbers go
// through decimal so the digits the user typed survive into the file
// unchanged.
func parseValueArg(text string, declared sourcelink.Type) (any, error) {
	switch declared {
	case sourcelink.TypeNil:
		return nil, nil
	case sourcelink.TypeString:
		return text, nil
	case sourcelink.TypeBool:
		switch text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, fmt.Errorf("%w: %q is not a bool", ErrBadValue, text)
		}
	case sourcelink.TypeInt, sourcelink.TypeFloat:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrBadValue, text)
		}

		return d, nil
	}

	// No declared type: infer from the literal shape.
	if text == "" {
		return nil, ErrValueRequired
	}

	switch text {
	case "nil", "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	if d, err := decimal.NewFromString(text); err == nil {
		return d, nil
	}

	return text, nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "nil"
	case string:
		return v
	case *sourcelink.Table:
		return fmt.Sprintf("<table: %d rows>", len(v.Rows))
	default:
		return fmt.Sprint(v)
	}
}

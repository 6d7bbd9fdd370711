// Package bindingdoc reads markdown binding documents: a YAML front matter
// header plus fenced code blocks whose info string is `binding` (one
// descriptor) or `bindings` (a list). Everything else in the document is
// prose and is ignored.
package bindingdoc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/shibukawa/sourcelink"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Sentinel errors
var (
	ErrInvalidFrontMatter = fmt.Errorf("invalid front matter")
	ErrInvalidBinding     = fmt.Errorf("invalid binding block")
)

// Binding is one descriptor plus where its block starts in the document.
type Binding struct {
	sourcelink.Descriptor

	Line int // 1-based line of the opening code fence
}

// Document is a parsed binding document.
type Document struct {
	Title    string
	BaseDir  string // optional front matter override for resolving File paths
	Metadata map[string]any
	Bindings []Binding
}

// ParseFile parses the binding document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sourcelink.ErrFileNotFound, path)
		}

		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse parses a binding document. Descriptors keep document order; a
// descriptor without an id gets a generated UUID so every binding stays
// addressable.
func Parse(reader io.Reader) (*Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	frontMatter, body, err := parseFrontMatter(string(content))
	if err != nil {
		return nil, err
	}

	fmLines := len(content) - len(body)
	fmLineCount := bytes.Count(content[:fmLines], []byte("\n"))

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	source := []byte(body)
	root := md.Parser().Parse(text.NewReader(source))

	document := &Document{Metadata: frontMatter}

	if base, ok := frontMatter["base_dir"].(string); ok {
		document.BaseDir = base
	}

	if title, ok := frontMatter["title"].(string); ok {
		document.Title = title
	}

	walkErr := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && document.Title == "" {
				document.Title = headingText(node, source)
			}
		case *ast.FencedCodeBlock:
			info := blockInfo(node, source)
			if info != "binding" && info != "bindings" {
				return ast.WalkContinue, nil
			}

			line := lineOf(node, source) + fmLineCount

			bindings, err := decodeBindings(blockContent(node, source), info, line)
			if err != nil {
				return ast.WalkStop, err
			}

			document.Bindings = append(document.Bindings, bindings...)
		}

		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return document, nil
}

// parseFrontMatter extracts YAML front matter from markdown content
func parseFrontMatter(content string) (map[string]any, string, error) {
	if !strings.HasPrefix(content, "---\n") {
		return make(map[string]any), content, nil
	}

	endIndex := strings.Index(content[4:], "\n---")
	if endIndex == -1 {
		return nil, "", ErrInvalidFrontMatter
	}

	endIndex += 4

	frontMatterContent := content[4:endIndex]
	remainingContent := content[endIndex+4:]

	var frontMatter map[string]any
	if err := yaml.Unmarshal([]byte(frontMatterContent), &frontMatter); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidFrontMatter, err)
	}

	if frontMatter == nil {
		frontMatter = make(map[string]any)
	}

	return frontMatter, remainingContent, nil
}

func decodeBindings(content, info string, line int) ([]Binding, error) {
	var descriptors []sourcelink.Descriptor

	if info == "binding" {
		var one sourcelink.Descriptor
		if err := yaml.Unmarshal([]byte(content), &one); err != nil {
			return nil, fmt.Errorf("%w at line %d: %w", ErrInvalidBinding, line, err)
		}

		descriptors = []sourcelink.Descriptor{one}
	} else {
		if err := yaml.Unmarshal([]byte(content), &descriptors); err != nil {
			return nil, fmt.Errorf("%w at line %d: %w", ErrInvalidBinding, line, err)
		}
	}

	bindings := make([]Binding, 0, len(descriptors))

	for _, descriptor := range descriptors {
		if descriptor.File == "" || descriptor.Path == "" {
			return nil, fmt.Errorf("%w at line %d: file and path are required", ErrInvalidBinding, line)
		}

		if descriptor.ID == "" {
			descriptor.ID = uuid.NewString()
		}

		bindings = append(bindings, Binding{Descriptor: descriptor, Line: line})
	}

	return bindings, nil
}

func blockInfo(codeBlock *ast.FencedCodeBlock, content []byte) string {
	if codeBlock.Info == nil {
		return ""
	}

	segment := codeBlock.Info.Segment

	return strings.TrimSpace(strings.ToLower(string(content[segment.Start:segment.Stop])))
}

func blockContent(codeBlock *ast.FencedCodeBlock, content []byte) string {
	var result strings.Builder

	if codeBlock.Lines() != nil {
		for i := 0; i < codeBlock.Lines().Len(); i++ {
			line := codeBlock.Lines().At(i)
			result.Write(content[line.Start:line.Stop])
		}
	}

	return result.String()
}

func headingText(heading ast.Node, content []byte) string {
	var result strings.Builder

	ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			segment := node.Segment
			result.Write(content[segment.Start:segment.Stop])
		case *ast.String:
			result.Write(node.Value)
		}

		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(result.String())
}

// lineOf converts a node's first content offset to a 1-based line number.
// The fence line itself sits one line above the first content line.
func lineOf(node ast.Node, content []byte) int {
	if node.Lines() == nil || node.Lines().Len() == 0 {
		return 0
	}

	offset := node.Lines().At(0).Start
	if offset > len(content) {
		offset = len(content)
	}

	return bytes.Count(content[:offset], []byte("\n"))
}

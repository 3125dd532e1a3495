package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// markdownExtractor renders Markdown to plain text. Each section under a
// top-level heading becomes one page.
type markdownExtractor struct {
	parser goldmark.Markdown
}

func newMarkdownExtractor() *markdownExtractor {
	return &markdownExtractor{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

func (m *markdownExtractor) extract(content []byte) *Document {
	doc := m.parser.Parser().Parse(text.NewReader(content))

	// top-level is the shallowest heading level present
	topLevel := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && (topLevel == 0 || h.Level < topLevel) {
			topLevel = h.Level
		}
	}

	var pages []Page
	var current strings.Builder
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			pages = append(pages, Page{Number: len(pages) + 1, Text: current.String()})
		}
		current.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == topLevel {
			flush()
		}
		block := blockText(n, content)
		if block == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(block)
	}
	flush()

	return &Document{Pages: pages, TitleHint: firstHeading(doc, content)}
}

// firstHeading returns the first level 1 heading, falling back to the first level 2 heading.
func firstHeading(doc ast.Node, content []byte) string {
	var firstH1, firstH2 string

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			headingText := inlineText(heading, content)
			if heading.Level == 1 && firstH1 == "" {
				firstH1 = headingText
				return ast.WalkStop, nil
			}
			if heading.Level == 2 && firstH2 == "" {
				firstH2 = headingText
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if firstH1 != "" {
		return firstH1
	}
	return firstH2
}

// blockText renders a block node and its descendants as plain text lines.
func blockText(n ast.Node, content []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock && !isTableCell(node) && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := v.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				b.Write(line.Value(content))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(v.Value)
		}

		// table cells sit side by side
		if isTableCell(node) && node.PreviousSibling() != nil {
			b.WriteString(" | ")
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// inlineText collects the text of a node's inline descendants on one line.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func isTableCell(n ast.Node) bool {
	return strings.Contains(n.Kind().String(), "TableCell")
}

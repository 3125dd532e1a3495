// Package extract turns uploaded source files into page-level plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported is returned for file types with no extractor.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrNoText is returned when a readable file yields no text at all.
	ErrNoText = errors.New("document contains no extractable text")
)

// Page is the text of one page (or page-like section) of a document.
type Page struct {
	Number int // 1-based
	Text   string
}

// Document is the extracted content of a source file.
type Document struct {
	Pages []Page
	// TitleHint is the first heading for formats that have one. Empty otherwise.
	TitleHint string
}

// Text joins all page texts with blank lines.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Lead returns at most n leading pages.
func (d *Document) Lead(n int) []Page {
	if n <= 0 {
		return nil
	}
	if n > len(d.Pages) {
		n = len(d.Pages)
	}
	return d.Pages[:n]
}

// Extractor reads a source file into pages.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// FileExtractor dispatches on file extension.
// It implements the Extractor interface.
type FileExtractor struct {
	markdown *markdownExtractor
}

// New creates a FileExtractor for PDF, Markdown and plain text files.
func New() *FileExtractor {
	return &FileExtractor{markdown: newMarkdownExtractor()}
}

// Supported reports whether filename has an extension this package can read.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// Extract reads path and returns its pages. Empty pages are dropped.
// Returns ErrNoText if no page has any text.
func (e *FileExtractor) Extract(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		doc *Document
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc, err = extractPDF(ctx, path)
	case ".md", ".markdown":
		var content []byte
		content, err = os.ReadFile(path)
		if err == nil {
			doc = e.markdown.extract(content)
		}
	case ".txt":
		var content []byte
		content, err = os.ReadFile(path)
		if err == nil {
			doc = extractPlain(content)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	doc.Pages = compactPages(doc.Pages)
	if len(doc.Pages) == 0 {
		return nil, ErrNoText
	}
	return doc, nil
}

// compactPages drops blank pages and trims the rest, keeping original page numbers.
func compactPages(pages []Page) []Page {
	out := pages[:0]
	for _, p := range pages {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// extractPlain splits text on form feeds, the conventional page break in plain text exports.
func extractPlain(content []byte) *Document {
	raw := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\f")
	pages := make([]Page, 0, len(raw))
	for i, text := range raw {
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return &Document{Pages: pages}
}

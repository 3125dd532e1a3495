package rag

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"paperchat/internal/contextutil"
	"paperchat/internal/extract"
	"paperchat/internal/storage"
	"paperchat/internal/vectorstore"
)

const (
	// PreviewPlaceholder stands in for the lead-page preview when none is available.
	PreviewPlaceholder = "[Document preview unavailable]"

	leadPreviewRunes  = 300
	chunkPreviewRunes = 200

	blockSeparator = "\n\n"
)

// AssemblerOptions are the retrieval and bounding knobs of an Assembler.
type AssemblerOptions struct {
	TopK             int
	FetchK           int
	Diversity        float64
	MaxContextChars  int
	LeadPages        int
	IncludeLeadPages bool
	// Timeout bounds each embedding, index and external call. Zero disables it.
	Timeout time.Duration
}

// Assembler builds the bounded context for a question about one document.
type Assembler struct {
	docs      storage.DocumentStore
	extractor extract.Extractor
	embedder  Embedder
	index     vectorstore.Index
	external  []ExternalSearch
	opts      AssemblerOptions
}

// NewAssembler creates an Assembler. external lists the sources used in
// augmented mode, in the order their results are appended.
func NewAssembler(
	docs storage.DocumentStore,
	extractor extract.Extractor,
	embedder Embedder,
	index vectorstore.Index,
	external []ExternalSearch,
	opts AssemblerOptions,
) *Assembler {
	return &Assembler{
		docs:      docs,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		external:  external,
		opts:      opts,
	}
}

// Assemble returns the context for question. The text is ordered lead-page
// metadata, retrieved chunks, external results, and never exceeds
// MaxContextChars runes. When no chunk is retrieved the text is empty.
func (a *Assembler) Assemble(ctx context.Context, documentID, question string, mode Mode) ContextBundle {
	logger := contextutil.LoggerFromContext(ctx)

	lead := a.leadText(ctx, documentID)
	bundle := ContextBundle{Snippets: []string{PreviewPlaceholder}}
	if lead != "" {
		bundle.Snippets[0] = truncateRunes(lead, leadPreviewRunes)
	}

	matches, err := a.retrieve(ctx, documentID, question)
	if err != nil {
		logger.WarnContext(ctx, "retrieval failed, continuing with empty context", "error", err)
	}
	if len(matches) == 0 {
		logger.InfoContext(ctx, "no chunks retrieved", "document_id", documentID)
		return bundle
	}

	budget := newContextBudget(a.opts.MaxContextChars)
	if lead != "" {
		budget.add("[Document metadata]\n" + lead)
	}
	for _, m := range matches {
		text := normalizeWhitespace(m.Text)
		if text == "" {
			continue
		}
		if !budget.add(text) {
			break
		}
		bundle.Snippets = append(bundle.Snippets, truncateRunes(text, chunkPreviewRunes))
		bundle.Retrieved++
	}

	if mode == ModeAugmented && len(a.external) > 0 && !budget.full() {
		for i, text := range a.searchExternal(ctx, question) {
			if text == "" {
				continue
			}
			name := a.external[i].Name()
			if !budget.add("[External: " + name + "]\n" + text) {
				break
			}
			bundle.Sources = append(bundle.Sources, name)
		}
	}

	bundle.Text = budget.String()
	logger.InfoContext(ctx, "context assembled",
		"document_id", documentID,
		"retrieved", bundle.Retrieved,
		"external_sources", len(bundle.Sources),
		"context_chars", len([]rune(bundle.Text)))
	return bundle
}

// leadText loads the first pages of the source file, whitespace-normalised.
func (a *Assembler) leadText(ctx context.Context, documentID string) string {
	if !a.opts.IncludeLeadPages || a.opts.LeadPages <= 0 {
		return ""
	}
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := a.docs.Get(ctx, documentID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.WarnContext(ctx, "failed to load document for lead pages", "error", err)
		}
		return ""
	}
	extracted, err := a.extractor.Extract(ctx, doc.FilePath)
	if err != nil {
		logger.WarnContext(ctx, "failed to extract lead pages", "error", err)
		return ""
	}

	pages := extracted.Lead(a.opts.LeadPages)
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return normalizeWhitespace(strings.Join(parts, " "))
}

// retrieve embeds question and runs the diversity-aware search.
func (a *Assembler) retrieve(ctx context.Context, documentID, question string) ([]vectorstore.Match, error) {
	callCtx, cancel := a.withTimeout(ctx)
	defer cancel()

	vectors, err := a.embedder.EmbedTexts(callCtx, []string{question})
	if err != nil {
		return nil, &RetrievalError{Op: "embed", Err: err}
	}
	if len(vectors) != 1 {
		return nil, &RetrievalError{Op: "embed", Err: errors.New("no embedding returned for question")}
	}

	matches, err := a.index.SearchDiverse(callCtx, documentID, vectors[0], vectorstore.DiverseOptions{
		K:      a.opts.TopK,
		FetchK: a.opts.FetchK,
		Lambda: a.opts.Diversity,
	})
	if err != nil {
		return nil, &RetrievalError{Op: "search", Err: err}
	}
	return matches, nil
}

// searchExternal queries every external source concurrently. The result has
// one entry per source, empty where the source failed or found nothing.
func (a *Assembler) searchExternal(ctx context.Context, question string) []string {
	logger := contextutil.LoggerFromContext(ctx)
	results := make([]string, len(a.external))

	var g errgroup.Group
	for i, src := range a.external {
		g.Go(func() error {
			callCtx, cancel := a.withTimeout(ctx)
			defer cancel()

			text, err := src.Search(callCtx, question)
			if err != nil {
				logger.WarnContext(ctx, "external source failed", "source", src.Name(), "error", err)
				return nil
			}
			results[i] = normalizeWhitespace(text)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Assembler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.Timeout > 0 {
		return context.WithTimeout(ctx, a.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// normalizeWhitespace collapses every whitespace run to one space.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes returns at most n runes of s. n <= 0 means no limit.
// contextBudget joins context blocks and accepts a block only while some of
// it still fits in limit runes. The last accepted block may be cut.
type contextBudget struct {
	blocks []string
	used   int
	limit  int
}

func newContextBudget(limit int) *contextBudget {
	return &contextBudget{limit: limit}
}

func (b *contextBudget) full() bool {
	sep := 0
	if len(b.blocks) > 0 {
		sep = len(blockSeparator)
	}
	return b.limit > 0 && b.used+sep >= b.limit
}

func (b *contextBudget) add(block string) bool {
	if b.full() {
		return false
	}
	if len(b.blocks) > 0 {
		b.used += len(blockSeparator)
	}
	b.blocks = append(b.blocks, block)
	b.used += utf8.RuneCountInString(block)
	return true
}

func (b *contextBudget) String() string {
	return truncateRunes(strings.Join(b.blocks, blockSeparator), b.limit)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

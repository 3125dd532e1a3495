package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks paperchat/internal/indexer Embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paperchat/internal/contextutil"
	"paperchat/internal/extract"
	"paperchat/internal/storage"
	"paperchat/internal/vectorstore"
)

// titleLeadPages is how many leading pages are scanned for a title line.
const titleLeadPages = 2

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Summarizer produces a structured summary of a document's full text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Outcome is the result of one ingestion run.
type Outcome struct {
	DocumentID string
	Status     storage.Status
	Title      string
	Pages      int
	Chunks     int
	TokenStats ChunkTokenStats
	Err        error // Non-nil when a step failed; an *IngestionError for steps 1 to 4, storage.ErrNotFound when the document was deleted
}

// Coordinator runs the ingestion pipeline for a document and records a
// single terminal status.
type Coordinator struct {
	docs       storage.DocumentStore
	extractor  extract.Extractor
	chunker    *Chunker
	embedder   Embedder
	index      vectorstore.Index
	summarizer Summarizer
	dimension  int
}

// NewCoordinator creates an ingestion coordinator. dimension is the expected
// embedding size; zero skips the check.
func NewCoordinator(
	docs storage.DocumentStore,
	extractor extract.Extractor,
	chunker *Chunker,
	embedder Embedder,
	index vectorstore.Index,
	summarizer Summarizer,
	dimension int,
) *Coordinator {
	return &Coordinator{
		docs:       docs,
		extractor:  extractor,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		summarizer: summarizer,
		dimension:  dimension,
	}
}

// Ingest processes job and records its terminal status. Re-running a job is
// safe: the index is fully replaced and the terminal update only lands once.
func (c *Coordinator) Ingest(ctx context.Context, job Job) Outcome {
	logger := contextutil.LoggerFromContext(ctx).With("document_id", job.DocumentID)
	ctx = contextutil.WithLogger(ctx, logger)
	out := Outcome{DocumentID: job.DocumentID}

	started, err := c.docs.MarkProcessing(ctx, job.DocumentID)
	if err != nil {
		logger.WarnContext(ctx, "failed to mark document processing", "error", err)
	} else if !started {
		logger.InfoContext(ctx, "document not pending, re-running ingestion without status change")
	}

	title, summary, err := c.run(ctx, job, &out)
	if err != nil {
		logger.ErrorContext(ctx, "ingestion failed", "error", err)
		out.Err = err
		c.finish(ctx, &out, func(ctx context.Context) (bool, error) {
			return c.docs.Fail(ctx, job.DocumentID, err.Error())
		}, storage.StatusFailed)
		return out
	}

	out.Title = title
	c.finish(ctx, &out, func(ctx context.Context) (bool, error) {
		return c.docs.Complete(ctx, job.DocumentID, title, summary)
	}, storage.StatusDone)
	if out.Err != nil {
		return out
	}

	logger.InfoContext(ctx, "ingestion completed",
		"status", out.Status, "title", title, "pages", out.Pages, "chunks", out.Chunks,
		"tokens_mean", out.TokenStats.Mean, "tokens_p95", out.TokenStats.P95)
	return out
}

// run executes steps 1 to 5 and returns the title and summary to record.
func (c *Coordinator) run(ctx context.Context, job Job, out *Outcome) (string, string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := c.extractor.Extract(ctx, job.FilePath)
	if err != nil {
		return "", "", stepError(KindExtraction, err)
	}
	out.Pages = len(doc.Pages)
	text := doc.Text()

	chunks := c.chunker.Split(text)
	if len(chunks) == 0 {
		return "", "", stepError(KindChunking, errors.New("no chunks produced"))
	}
	out.Chunks = len(chunks)
	out.TokenStats = tokenStats(chunks)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := c.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return "", "", stepError(KindEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return "", "", stepError(KindEmbedding, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors)))
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, chunk := range chunks {
		if c.dimension > 0 && len(vectors[i]) != c.dimension {
			return "", "", stepError(KindEmbedding, fmt.Errorf("embedding %d has size %d, expected %d", i, len(vectors[i]), c.dimension))
		}
		entries[i] = vectorstore.Entry{
			DocumentID: job.DocumentID,
			Index:      chunk.Index,
			Offset:     chunk.Offset,
			Text:       chunk.Text,
			Vector:     vectors[i],
		}
	}

	if err := c.index.Replace(ctx, job.DocumentID, entries); err != nil {
		return "", "", stepError(KindIndex, err)
	}
	logger.DebugContext(ctx, "index replaced", "chunks", len(entries))

	title := extract.ResolveTitle(doc, doc.Lead(titleLeadPages), job.Filename)

	summary, err := c.summarizer.Summarize(ctx, text)
	if err != nil {
		logger.WarnContext(ctx, "summary generation failed", "error", err)
		summary = "Error generating summary: " + err.Error()
	}
	return title, strings.TrimSpace(summary), nil
}

// finish applies the terminal update and fills out.Status with the stored status.
// Status is left empty when the document no longer exists.
func (c *Coordinator) finish(ctx context.Context, out *Outcome, update func(context.Context) (bool, error), want storage.Status) {
	logger := contextutil.LoggerFromContext(ctx)

	// the pipeline may have run out of time; the status write must still land
	ctx = context.WithoutCancel(ctx)

	applied, err := update(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to record terminal status", "status", want, "error", err)
		if out.Err == nil {
			out.Err = fmt.Errorf("failed to record status: %w", err)
		}
		out.Status = want
		return
	}
	if applied {
		out.Status = want
		return
	}

	// already terminal from an earlier run, or deleted while the job ran
	doc, err := c.docs.Get(ctx, out.DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.WarnContext(ctx, "document deleted during ingestion, dropping its index entries")
		if err := c.index.DeleteNamespace(ctx, out.DocumentID); err != nil {
			logger.ErrorContext(ctx, "failed to delete index entries of deleted document", "error", err)
		}
		out.Status = ""
		out.Title = ""
		out.Err = errors.Join(fmt.Errorf("document %s was deleted: %w", out.DocumentID, storage.ErrNotFound), out.Err)
		return
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to read document after terminal update", "error", err)
		out.Status = want
		return
	}
	logger.InfoContext(ctx, "document already terminal, record left unchanged", "status", doc.Status)
	out.Status = doc.Status
	if doc.Title != "" {
		out.Title = doc.Title
	}
}

// Package app wires configuration, storage, models and services into a
// running paperchat instance and tears them down in reverse order.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/extract"
	"paperchat/internal/handlers"
	"paperchat/internal/http"
	"paperchat/internal/indexer"
	"paperchat/internal/llm"
	"paperchat/internal/rag"
	"paperchat/internal/search"
	"paperchat/internal/service"
	"paperchat/internal/storage"
	"paperchat/internal/uploads"
	"paperchat/internal/vectorstore"
)

// shutdownTimeout bounds how long Serve waits for in-flight requests.
const shutdownTimeout = 10 * time.Second

// App holds the wired components. Fields are exported so commands can reach
// the services they drive.
type App struct {
	Config    *config.Config
	Documents service.DocumentService
	Chat      service.ChatService
	Embedder  *llm.EmbeddingsClient

	db     *sql.DB
	index  vectorstore.Index
	queue  *indexer.Queue
	checks map[string]handlers.Pinger

	// closers run in reverse order on Close.
	closers []func() error
}

// SetupLogging configures the default slog logger from cfg. Logs go to w.
func SetupLogging(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)
	return logger
}

// New builds every component from cfg. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg, checks: make(map[string]handlers.Pinger)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// Initialize database
	a.db, err = storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)
	if err := storage.Migrate(a.db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	a.checks["database"] = handlers.PingFunc(a.db.PingContext)
	slog.Info("Database initialized", "path", cfg.DBPath)

	docs := storage.NewDocumentRepo(a.db)
	chatCipher, err := storage.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	chats := storage.NewChatRepo(a.db, chatCipher)

	if a.index, err = openIndex(ctx, cfg); err != nil {
		return nil, err
	}
	if c, ok := a.index.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	if p, ok := a.index.(handlers.Pinger); ok {
		a.checks["vector_store"] = p
	}

	files, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	httpClient := &nethttp.Client{Timeout: cfg.ModelTimeout}
	a.Embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDim, httpClient)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, httpClient)

	tuning := cfg.Tuning
	extractor := extract.New()
	chunker, err := indexer.NewChunker(tuning.ChunkSize, tuning.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	summarizer := rag.NewSummarizer(llmClient, cfg.LLMModelName, tuning.SummaryMaxChars, cfg.ModelTimeout)

	coordinator := indexer.NewCoordinator(docs, extractor, chunker, a.Embedder, a.index, summarizer, cfg.EmbeddingDim)
	a.queue = indexer.NewQueue(coordinator, docs, cfg.IngestWorkers, cfg.IngestQueueSize)
	a.closers = append(a.closers, func() error {
		a.queue.Close()
		return nil
	})

	external := []rag.ExternalSearch{
		search.NewWikipedia(cfg.WikipediaURL, httpClient, cfg.ExternalSearchRPS),
		search.NewDuckDuckGo(cfg.WebSearchURL, httpClient, cfg.ExternalSearchRPS),
	}
	assembler := rag.NewAssembler(docs, extractor, a.Embedder, a.index, external, rag.AssemblerOptions{
		TopK:             tuning.TopK,
		FetchK:           tuning.FetchK,
		Diversity:        tuning.Diversity,
		MaxContextChars:  tuning.MaxContextChars,
		LeadPages:        tuning.LeadPages,
		IncludeLeadPages: tuning.IncludeLeadPages,
		Timeout:          cfg.ModelTimeout,
	})
	controller := rag.NewController(
		rag.NewGenerator(llmClient, cfg.LLMModelName, cfg.ModelTimeout, tuning.HistoryTurns),
		rag.NewEvaluator(llmClient, cfg.EvalModelName, cfg.ModelTimeout),
	)
	engine := rag.NewEngine(assembler, controller)
	slog.Info("RAG engine initialized", "model", cfg.LLMModelName, "eval_model", cfg.EvalModelName)

	a.Documents = service.NewDocumentService(docs, chats, a.index, files, a.queue)
	a.Chat = service.NewChatService(docs, chats, engine, tuning.HistoryTurns)
	return a, nil
}

// openIndex connects the configured vector index backend.
func openIndex(ctx context.Context, cfg *config.Config) (vectorstore.Index, error) {
	switch cfg.IndexBackend {
	case config.BackendPgvector:
		idx, err := vectorstore.NewPgIndex(ctx, cfg.PgvectorDSN, cfg.EmbeddingDim)
		if err != nil {
			return nil, fmt.Errorf("failed to open pgvector index: %w", err)
		}
		slog.Info("pgvector index ready", "vector_size", cfg.EmbeddingDim)
		return idx, nil
	case config.BackendMemory:
		slog.Warn("Using in-memory index; embeddings are lost on exit")
		return vectorstore.NewMemoryIndex(cfg.EmbeddingDim), nil
	default:
		idx, err := vectorstore.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			return nil, err
		}
		// Ensure collection exists with correct vector size
		if err := idx.EnsureCollection(ctx, cfg.EmbeddingDim); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingDim)
		return idx, nil
	}
}

// ValidateEmbeddings checks that the embedding server answers with the configured size.
func (a *App) ValidateEmbeddings(ctx context.Context) error {
	vectors, err := a.Embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) != a.Config.EmbeddingDim {
		got := 0
		if len(vectors) > 0 {
			got = len(vectors[0])
		}
		return fmt.Errorf("embedding vector size mismatch: expected %d, got %d", a.Config.EmbeddingDim, got)
	}
	slog.Info("Embedding client validated", "vector_size", a.Config.EmbeddingDim)
	return nil
}

// Router returns the HTTP API.
func (a *App) Router() nethttp.Handler {
	return http.NewRouter(&http.Deps{
		Documents:    a.Documents,
		Chat:         a.Chat,
		HealthChecks: a.checks,
	})
}

// DocumentService returns the document service.
func (a *App) DocumentService() service.DocumentService { return a.Documents }

// ChatService returns the chat service.
func (a *App) ChatService() service.ChatService { return a.Chat }

// Serve validates the embedding server, then runs the HTTP API until ctx is
// cancelled and shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if err := a.ValidateEmbeddings(ctx); err != nil {
		return err
	}

	srv := &nethttp.Server{
		Addr:              ":" + a.Config.APIPort,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Drain stops accepting ingestion jobs and waits for queued ones to finish.
func (a *App) Drain() {
	if a.queue != nil {
		a.queue.Close()
	}
}

// Close releases every component in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Open loads configuration, sets up logging on stderr and builds the App.
func Open(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	SetupLogging(cfg, os.Stderr)
	return New(ctx, cfg)
}

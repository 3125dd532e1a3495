package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks paperchat/internal/service DocumentService
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingest_queue.go -package=mocks paperchat/internal/service IngestQueue

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"paperchat/internal/contextutil"
	"paperchat/internal/extract"
	"paperchat/internal/indexer"
	"paperchat/internal/storage"
	"paperchat/internal/vectorstore"
)

// IngestQueue schedules ingestion jobs. *indexer.Queue implements it.
type IngestQueue interface {
	Enqueue(ctx context.Context, job indexer.Job) error
	// Lock waits for any running job of the document and holds off new ones until unlock.
	Lock(documentID string) (unlock func())
}

// FileStore keeps uploaded source files. *uploads.Store implements it.
type FileStore interface {
	Save(id, filename string, r io.Reader) (string, error)
	Remove(path string) error
}

// DocumentService manages a user's documents.
type DocumentService interface {
	// Upload stores the file, records a pending document and queues its ingestion.
	Upload(ctx context.Context, ownerID, filename string, r io.Reader) (*storage.Document, error)
	// Get returns one of the owner's documents.
	Get(ctx context.Context, ownerID, id string) (*storage.Document, error)
	// List returns the owner's documents, newest first.
	List(ctx context.Context, ownerID string) ([]*storage.Document, error)
	// Delete removes the document with its chat history, index entries and file.
	Delete(ctx context.Context, ownerID, id string) error
	// Reingest queues the document's ingestion again. Failed documents must be uploaded again.
	Reingest(ctx context.Context, ownerID, id string) (*storage.Document, error)
}

// documentService implements DocumentService.
type documentService struct {
	docs  storage.DocumentStore
	chats storage.ChatStore
	index vectorstore.Index
	files FileStore
	queue IngestQueue
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	docs storage.DocumentStore,
	chats storage.ChatStore,
	index vectorstore.Index,
	files FileStore,
	queue IngestQueue,
) DocumentService {
	return &documentService{docs: docs, chats: chats, index: index, files: files, queue: queue}
}

// Upload stores the file, records a pending document and queues its ingestion.
// When the job cannot be queued the document is marked failed and an error is returned.
func (s *documentService) Upload(ctx context.Context, ownerID, filename string, r io.Reader) (*storage.Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(ownerID) == "" {
		return nil, &ValidationError{Field: "owner", Message: "cannot be empty"}
	}
	if strings.TrimSpace(filename) == "" {
		return nil, &ValidationError{Field: "file", Message: "filename cannot be empty"}
	}
	if !extract.Supported(filename) {
		return nil, &ValidationError{Field: "file", Message: "only PDF, Markdown and text files are allowed"}
	}

	id := uuid.New().String()
	path, err := s.files.Save(id, filename, r)
	if err != nil {
		logger.ErrorContext(ctx, "failed to store upload", "filename", filename, "error", err)
		return nil, WrapError(err, "failed to store upload")
	}

	doc := &storage.Document{ID: id, OwnerID: ownerID, Filename: filename, FilePath: path}
	if err := s.docs.Create(ctx, doc); err != nil {
		logger.ErrorContext(ctx, "failed to create document", "error", err)
		if rmErr := s.files.Remove(path); rmErr != nil {
			logger.WarnContext(ctx, "failed to remove orphaned upload", "path", path, "error", rmErr)
		}
		return nil, WrapError(err, "failed to create document")
	}

	if err := s.enqueue(ctx, doc); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "document uploaded", "document_id", doc.ID, "filename", filename)
	return doc, nil
}

// Get returns one of the owner's documents.
func (s *documentService) Get(ctx context.Context, ownerID, id string) (*storage.Document, error) {
	return s.owned(ctx, ownerID, id)
}

// List returns the owner's documents, newest first.
func (s *documentService) List(ctx context.Context, ownerID string) ([]*storage.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &ValidationError{Field: "owner", Message: "cannot be empty"}
	}
	docs, err := s.docs.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, WrapError(err, "failed to list documents")
	}
	return docs, nil
}

// Delete clears chat history, then index entries, then the record, then the file.
// It waits for a running ingestion of the document so none can write to the index afterwards.
func (s *documentService) Delete(ctx context.Context, ownerID, id string) error {
	logger := contextutil.LoggerFromContext(ctx).With("document_id", id)

	doc, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	unlock := s.queue.Lock(id)
	defer unlock()

	if err := s.chats.ClearByDocument(ctx, id); err != nil {
		return WrapError(err, "failed to clear chat history")
	}
	if err := s.index.DeleteNamespace(ctx, id); err != nil {
		return WrapError(err, "failed to delete index entries")
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return WrapError(err, "failed to delete document")
	}
	if err := s.files.Remove(doc.FilePath); err != nil {
		logger.WarnContext(ctx, "failed to remove source file", "path", doc.FilePath, "error", err)
	}

	logger.InfoContext(ctx, "document deleted")
	return nil
}

// Reingest queues the document's ingestion again. A done document keeps its
// record; only its index is rebuilt. Failed is terminal, so a failed document
// is rejected and has to be uploaded again.
func (s *documentService) Reingest(ctx context.Context, ownerID, id string) (*storage.Document, error) {
	doc, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == storage.StatusFailed {
		return nil, &ValidationError{Field: "status", Message: "document failed to process; upload the file again"}
	}
	if err := s.enqueue(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) enqueue(ctx context.Context, doc *storage.Document) error {
	logger := contextutil.LoggerFromContext(ctx)

	err := s.queue.Enqueue(ctx, indexer.Job{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		FilePath:   doc.FilePath,
		Filename:   doc.Filename,
	})
	if err == nil {
		return nil
	}

	logger.ErrorContext(ctx, "could not enqueue ingestion", "document_id", doc.ID, "error", err)
	if _, failErr := s.docs.Fail(context.WithoutCancel(ctx), doc.ID, err.Error()); failErr != nil {
		logger.ErrorContext(ctx, "failed to mark document failed", "document_id", doc.ID, "error", failErr)
	}
	return WrapError(errors.Join(ErrExternalService, err), "failed to enqueue processing task")
}

func (s *documentService) owned(ctx context.Context, ownerID, id string) (*storage.Document, error) {
	return ownedDocument(ctx, s.docs, ownerID, id)
}

// ownedDocument loads a document and checks that ownerID owns it.
func ownedDocument(ctx context.Context, docs storage.DocumentStore, ownerID, id string) (*storage.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, &ValidationError{Field: "owner", Message: "cannot be empty"}
	}
	doc, err := docs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to get document")
	}
	if doc.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return doc, nil
}

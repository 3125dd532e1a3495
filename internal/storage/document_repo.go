package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks paperchat/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// Create inserts a new document in pending status.
	// An empty ID is replaced with a fresh UUID.
	Create(ctx context.Context, doc *Document) error
	// Get returns a document by ID.
	// Returns nil and ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Document, error)
	// ListByOwner returns all documents owned by ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Document, error)
	// MarkProcessing moves a pending document to processing.
	// Reports false when the document was not pending.
	MarkProcessing(ctx context.Context, id string) (bool, error)
	// Complete moves a non-terminal document to done and records its title and summary.
	// Reports false when the document had already reached a terminal status.
	Complete(ctx context.Context, id, title, summary string) (bool, error)
	// Fail moves a non-terminal document to failed and records the cause.
	// Reports false when the document had already reached a terminal status.
	Fail(ctx context.Context, id, cause string) (bool, error)
	// Delete removes a document. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db, now: time.Now}
}

const documentColumns = "id, owner_id, filename, file_path, COALESCE(title, ''), COALESCE(summary, ''), status, COALESCE(error, ''), created_at, updated_at"

// Create inserts a new document in pending status.
func (r *DocumentRepo) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := r.now().UTC()
	doc.Status = StatusPending
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, owner_id, filename, file_path, title, summary, status, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL, NULL, ?, NULL, ?, ?)`,
		doc.ID, doc.OwnerID, doc.Filename, doc.FilePath, string(StatusPending), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Get returns a document by ID.
func (r *DocumentRepo) Get(ctx context.Context, id string) (*Document, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// ListByOwner returns all documents owned by ownerID, newest first.
func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID string) ([]*Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE owner_id = ? ORDER BY created_at DESC, id",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// MarkProcessing moves a pending document to processing.
func (r *DocumentRepo) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(StatusProcessing), formatTime(r.now()), id, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark document processing: %w", err)
	}
	return affected(res)
}

// Complete moves a non-terminal document to done.
func (r *DocumentRepo) Complete(ctx context.Context, id, title, summary string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, title = ?, summary = ?, error = NULL, updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'processing')`,
		string(StatusDone), title, summary, formatTime(r.now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete document: %w", err)
	}
	return affected(res)
}

// Fail moves a non-terminal document to failed.
func (r *DocumentRepo) Fail(ctx context.Context, id, cause string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ?, updated_at = ?
		 WHERE id = ? AND status IN ('pending', 'processing')`,
		string(StatusFailed), cause, formatTime(r.now()), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark document failed: %w", err)
	}
	return affected(res)
}

// Delete removes a document and its chat messages.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var status, createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Filename, &doc.FilePath, &doc.Title, &doc.Summary,
		&status, &doc.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Status = Status(status)

	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &doc, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

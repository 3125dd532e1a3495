package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paperchat/internal/contextutil"
	"paperchat/internal/service"
	"paperchat/internal/storage"
)

// MaxUploadBytes bounds the size of an uploaded file.
const MaxUploadBytes = 50 << 20

// DocumentHandler handles HTTP requests for documents.
type DocumentHandler struct {
	docs service.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(docs service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// DocumentResponse is the HTTP view of a document. Clients poll it for Status.
//
// swagger:model DocumentResponse
type DocumentResponse struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AcceptedResponse is returned when ingestion has been queued.
//
// swagger:model AcceptedResponse
type AcceptedResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

func toDocumentResponse(doc *storage.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID,
		Filename:  doc.Filename,
		Title:     doc.Title,
		Summary:   doc.Summary,
		Status:    string(doc.Status),
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// Upload handles POST /api/v1/documents with a multipart "file" field.
//
// swagger:route POST /api/v1/documents uploadDocument
//
// Stores the file and queues it for ingestion.
//
// responses:
//
//	'202':
//	  description: Ingestion queued
//	  schema:
//	    "$ref": "#/definitions/AcceptedResponse"
//	'400':
//	  description: Missing file or unsupported type
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		logger.WarnContext(ctx, "missing upload file", "error", err)
		writeError(w, http.StatusBadRequest, "A file is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	doc, err := h.docs.Upload(ctx, ownerID(r), header.Filename, file)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to upload document")
		return
	}

	writeJSON(ctx, w, http.StatusAccepted, AcceptedResponse{DocumentID: doc.ID, Status: string(doc.Status)})
}

// List handles GET /api/v1/documents.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.docs.List(ctx, ownerID(r))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list documents")
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toDocumentResponse(doc))
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Get handles GET /api/v1/documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	doc, err := h.docs.Get(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get document")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toDocumentResponse(doc))
}

// Delete handles DELETE /api/v1/documents/{id}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.docs.Delete(ctx, ownerID(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /api/v1/documents/{id}/reindex.
// A done document has its index rebuilt and stays done. A failed document
// is rejected with 400 and must be uploaded again.
func (h *DocumentHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := h.docs.Reingest(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to queue re-indexing")
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API", "document_id", doc.ID)
	writeJSON(ctx, w, http.StatusAccepted, AcceptedResponse{DocumentID: doc.ID, Status: string(doc.Status)})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paperchat/internal/service"
)

// HistoryHandler handles HTTP requests for a document's chat history.
type HistoryHandler struct {
	chat service.ChatService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(chat service.ChatService) *HistoryHandler {
	return &HistoryHandler{chat: chat}
}

// MessageResponse is one chat message.
//
// swagger:model MessageResponse
type MessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []string  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Get handles GET /api/v1/documents/{id}/history.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	msgs, err := h.chat.History(ctx, ownerID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load chat history")
		return
	}

	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, MessageResponse{
			Role:      string(m.Role),
			Content:   m.Content,
			Sources:   m.Sources,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/documents/{id}/history.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.chat.ClearHistory(ctx, ownerID(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to clear chat history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

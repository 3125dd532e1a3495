package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paperchat/internal/contextutil"
	"paperchat/internal/rag"
	"paperchat/internal/service"
)

// AskHandler handles HTTP requests for questions about a document.
type AskHandler struct {
	chat service.ChatService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(chat service.ChatService) *AskHandler {
	return &AskHandler{chat: chat}
}

// AskRequest represents the HTTP request payload for a question.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string `json:"question"`
	// Mode is "standard" (default) or "augmented".
	Mode string `json:"mode,omitempty"`
}

// AskResponse represents the HTTP response payload for a question.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer; never empty
	Answer string `json:"answer"`

	// Lead-page preview followed by previews of the retrieved chunks
	SourceSnippets []string `json:"source_snippets"`

	// Last reviewer feedback or evaluator error, if any
	DebugFeedback string `json:"debug_feedback,omitempty"`

	// Number of generation attempts made
	Attempts int `json:"attempts"`

	// Terminal state of the answer loop
	State string `json:"state"`

	// Debug contains the attempt trace when debug mode is enabled (via ?debug=true query parameter).
	Debug *rag.DebugInfo `json:"debug,omitempty"`
}

// ServeHTTP handles HTTP requests for questions.
//
// swagger:route POST /api/v1/documents/{id}/ask askQuestion
//
// # Ask a question about a document
//
// Answers from the document's indexed chunks. In augmented mode external
// sources are consulted as well. Use `debug=true` to include the attempt trace.
//
// responses:
//
//	'200':
//	  description: Successful response with answer and snippets
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Bad request (empty question or unknown mode)
//	'403':
//	  description: Document belongs to another owner
//	'404':
//	  description: Unknown document
//	'409':
//	  description: Document has not finished processing
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	debug := false
	if debugParam := r.URL.Query().Get("debug"); debugParam != "" {
		debug = strings.ToLower(debugParam) == "true" || debugParam == "1"
	}

	resp, err := h.chat.Ask(ctx, ownerID(r), service.AskInput{
		DocumentID: chi.URLParam(r, "id"),
		Question:   req.Question,
		Mode:       req.Mode,
		Debug:      debug,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to answer question")
		return
	}

	snippets := resp.SourceSnippets
	if snippets == nil {
		snippets = []string{}
	}
	writeJSON(ctx, w, http.StatusOK, AskResponse{
		Answer:         resp.Answer,
		SourceSnippets: snippets,
		DebugFeedback:  resp.DebugFeedback,
		Attempts:       resp.Attempts,
		State:          string(resp.State),
		Debug:          resp.Debug,
	})
}

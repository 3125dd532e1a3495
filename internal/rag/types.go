package rag

import (
	"fmt"
	"strings"
)

// Mode selects which sources the context is assembled from.
type Mode string

const (
	// ModeStandard uses the document only.
	ModeStandard Mode = "standard"
	// ModeAugmented also queries the configured external sources.
	ModeAugmented Mode = "augmented"
)

// ParseMode accepts "standard" and "augmented" in any case. Empty means standard.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeAugmented:
		return ModeAugmented, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// HistoryMessage is one earlier turn of the conversation.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextBundle is the assembled, bounded context for one question.
type ContextBundle struct {
	// Text is the context handed to the model. Empty when nothing was retrieved.
	Text string
	// Snippets starts with the lead-page preview (or a placeholder) followed
	// by chunk previews in rank order.
	Snippets []string
	// Retrieved is the number of chunks included.
	Retrieved int
	// Sources names the external sources that contributed, in order.
	Sources []string
}

// Verdict is the evaluator's judgment of one answer.
type Verdict struct {
	IsRelevant bool   `json:"is_relevant"`
	IsFaithful bool   `json:"is_faithful"`
	Reasoning  string `json:"reasoning"`
}

// Accepted reports whether the answer passed both checks.
func (v Verdict) Accepted() bool {
	return v.IsRelevant && v.IsFaithful
}

// AskRequest represents a question about one document.
type AskRequest struct {
	// DocumentID is the document the question is about.
	DocumentID string `json:"document_id"`
	// Question is the user's (already sanitised) question.
	Question string `json:"question"`
	// Mode selects standard or augmented context.
	Mode Mode `json:"mode,omitempty"`
	// History holds earlier turns, oldest first.
	History []HistoryMessage `json:"history,omitempty"`
	// Debug includes the attempt trace in the response.
	Debug bool `json:"debug,omitempty"`
}

// AskResponse represents the answer to an AskRequest.
type AskResponse struct {
	// Answer is never empty.
	Answer string `json:"answer"`
	// SourceSnippets are the previews shown alongside the answer.
	SourceSnippets []string `json:"source_snippets"`
	// DebugFeedback carries the last rejection reasoning or evaluator error.
	DebugFeedback string `json:"debug_feedback,omitempty"`
	// Attempts is the number of generation attempts made.
	Attempts int `json:"attempts"`
	// State is the terminal state of the retry loop.
	State State `json:"state"`
	// Debug contains the attempt trace when requested.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo contains detailed answer-loop information for debugging and evaluation.
type DebugInfo struct {
	// Trace lists every attempt in order.
	Trace []AttemptRecord `json:"trace"`
	// Retrieved is the number of chunks in the context.
	Retrieved int `json:"retrieved"`
	// ContextChars is the rune length of the context text.
	ContextChars int `json:"context_chars"`
	// Sources names the external sources that contributed.
	Sources []string `json:"sources,omitempty"`
}

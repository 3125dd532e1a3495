package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paperchat/internal/llm"
)

// SummaryTemperature matches the loose sampling used for summaries.
const SummaryTemperature float32 = 0.3

// Summarizer writes the structured summary stored with each document.
// It implements indexer.Summarizer.
type Summarizer struct {
	model     ChatModel
	modelName string
	maxChars  int
	timeout   time.Duration
}

// NewSummarizer creates a Summarizer. Text beyond maxChars runes is dropped
// before prompting.
func NewSummarizer(model ChatModel, modelName string, maxChars int, timeout time.Duration) *Summarizer {
	return &Summarizer{model: model, modelName: modelName, maxChars: maxChars, timeout: timeout}
}

// Summarize returns the structured summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary, err := s.model.ChatWithMessages(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf(summaryPrompt, truncateRunes(text, s.maxChars))},
	}, llm.ChatParams{
		Model:       s.modelName,
		Temperature: SummaryTemperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paperchat/internal/contextutil"
	"paperchat/internal/llm"
)

// AnswerTemperature keeps grounded answers close to deterministic.
const AnswerTemperature float32 = 0.2

// GenerateInput is everything the generator answers from.
type GenerateInput struct {
	Context  string
	History  []HistoryMessage
	Question string
	// Feedback is the reviewer reasoning from the previous rejected attempt.
	Feedback string
}

// Generator produces grounded answers with a chat model.
type Generator struct {
	model        ChatModel
	modelName    string
	timeout      time.Duration
	historyTurns int
}

// NewGenerator creates a Generator. An empty modelName uses the client default;
// a zero timeout disables the per-call deadline.
func NewGenerator(model ChatModel, modelName string, timeout time.Duration, historyTurns int) *Generator {
	return &Generator{
		model:        model,
		modelName:    modelName,
		timeout:      timeout,
		historyTurns: historyTurns,
	}
}

// Generate answers in.Question. It never returns an empty string: an empty
// context yields RefusalAnswer without a model call, and any model failure
// yields FallbackAnswer.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) string {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(in.Context) == "" {
		logger.InfoContext(ctx, "empty context, refusing without model call")
		return RefusalAnswer
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: answerSystemPrompt},
		{Role: llm.RoleUser, Content: answerUserPrompt(in.Context, formatHistory(in.History, g.historyTurns), in.Question)},
	}
	if in.Feedback != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: feedbackBlock(in.Feedback)})
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := g.model.ChatWithMessages(callCtx, messages, llm.ChatParams{
		Model:       g.modelName,
		Temperature: AnswerTemperature,
	})
	if err == nil && strings.TrimSpace(answer) == "" {
		err = llm.ErrEmptyReply
	}
	if err != nil {
		logger.ErrorContext(ctx, "answer generation failed",
			"error", fmt.Errorf("%w: %w", ErrGeneration, err),
			"duration_ms", time.Since(start).Milliseconds())
		return FallbackAnswer
	}

	logger.DebugContext(ctx, "answer generated",
		"answer_length", len(answer),
		"with_feedback", in.Feedback != "",
		"duration_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(answer)
}

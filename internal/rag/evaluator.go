package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paperchat/internal/contextutil"
	"paperchat/internal/llm"
)

// Evaluator grades answers for relevance and faithfulness in a separate,
// greedy model call.
type Evaluator struct {
	model     ChatModel
	modelName string
	timeout   time.Duration
}

// NewEvaluator creates an Evaluator. modelName may name a different model
// than the generator's; empty uses the client default.
func NewEvaluator(model ChatModel, modelName string, timeout time.Duration) *Evaluator {
	return &Evaluator{model: model, modelName: modelName, timeout: timeout}
}

// Evaluate grades answer against question and context. A failed call or an
// unparsable reply returns an *EvaluationError, never a default verdict.
func (e *Evaluator) Evaluate(ctx context.Context, question, contextText, answer string) (Verdict, error) {
	logger := contextutil.LoggerFromContext(ctx)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(evaluatorPrompt, question, contextText, answer)
	reply, err := e.model.ChatWithMessages(callCtx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.ChatParams{
		Model:       e.modelName,
		Temperature: llm.DeterministicTemperature,
	})
	if err != nil {
		return Verdict{}, &EvaluationError{Err: err}
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		logger.WarnContext(ctx, "unparsable evaluator reply", "reply_length", len(reply), "error", err)
		return Verdict{}, &EvaluationError{Err: err}
	}

	logger.DebugContext(ctx, "answer evaluated",
		"is_relevant", verdict.IsRelevant,
		"is_faithful", verdict.IsFaithful)
	return verdict, nil
}

// rawVerdict uses pointers so missing fields are detected.
type rawVerdict struct {
	IsRelevant *bool  `json:"is_relevant"`
	IsFaithful *bool  `json:"is_faithful"`
	Reasoning  string `json:"reasoning"`
}

// parseVerdict extracts the JSON object from reply, ignoring code fences and
// surrounding prose.
func parseVerdict(reply string) (Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Verdict{}, errors.New("no JSON object in evaluator reply")
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode verdict: %w", err)
	}
	if raw.IsRelevant == nil || raw.IsFaithful == nil {
		return Verdict{}, errors.New("verdict is missing is_relevant or is_faithful")
	}
	return Verdict{
		IsRelevant: *raw.IsRelevant,
		IsFaithful: *raw.IsFaithful,
		Reasoning:  strings.TrimSpace(raw.Reasoning),
	}, nil
}

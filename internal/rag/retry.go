package rag

import (
	"context"
	"fmt"

	"paperchat/internal/contextutil"
)

// MaxAttempts bounds the generate-evaluate cycle of one request.
const MaxAttempts = 3

// State is a state of the answer loop.
type State string

const (
	StateGenerating      State = "generating"
	StateEvaluating      State = "evaluating"
	StateAccepted        State = "accepted"
	StateRejected        State = "rejected"
	StateEvaluatorFailed State = "evaluator_failed"
	StateExhausted       State = "exhausted"
	StateCancelled       State = "cancelled"
)

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateEvaluatorFailed, StateExhausted, StateCancelled:
		return true
	}
	return false
}

// AnswerGenerator produces an answer; it never fails and never returns "".
type AnswerGenerator interface {
	Generate(ctx context.Context, in GenerateInput) string
}

// AnswerEvaluator grades an answer.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, question, contextText, answer string) (Verdict, error)
}

// RetryInput is one answer request.
type RetryInput struct {
	Question string
	Context  string
	History  []HistoryMessage
}

// AttemptRecord describes one generate-evaluate cycle.
type AttemptRecord struct {
	Attempt  int      `json:"attempt"`
	Feedback string   `json:"feedback,omitempty"`
	Answer   string   `json:"answer"`
	Verdict  *Verdict `json:"verdict,omitempty"`
	Error    string   `json:"error,omitempty"`
	Outcome  State    `json:"outcome"`
}

// RetryResult is the outcome of the answer loop.
type RetryResult struct {
	Answer        string
	Attempts      int
	State         State
	Verdict       *Verdict // Last verdict, nil if none was produced
	DebugFeedback string
	Trace         []AttemptRecord
}

// Controller runs generation and evaluation until an answer is accepted,
// the evaluator fails, attempts run out or the request is cancelled.
type Controller struct {
	generator AnswerGenerator
	evaluator AnswerEvaluator
}

// NewController creates a Controller.
func NewController(generator AnswerGenerator, evaluator AnswerEvaluator) *Controller {
	return &Controller{generator: generator, evaluator: evaluator}
}

// Run executes the loop. It always returns a non-empty answer.
func (c *Controller) Run(ctx context.Context, in RetryInput) RetryResult {
	logger := contextutil.LoggerFromContext(ctx)

	var (
		res      = RetryResult{Answer: FallbackAnswer}
		state    = StateGenerating
		feedback string
		current  AttemptRecord
	)

	for !state.Terminal() {
		switch state {
		case StateGenerating:
			if err := ctx.Err(); err != nil {
				state = StateCancelled
				res.DebugFeedback = joinFeedback(res.DebugFeedback, fmt.Sprintf("request cancelled: %v", err))
				continue
			}
			res.Attempts++
			current = AttemptRecord{Attempt: res.Attempts, Feedback: feedback}
			current.Answer = c.generator.Generate(ctx, GenerateInput{
				Context:  in.Context,
				History:  in.History,
				Question: in.Question,
				Feedback: feedback,
			})
			res.Answer = current.Answer
			state = StateEvaluating

		case StateEvaluating:
			verdict, err := c.evaluator.Evaluate(ctx, in.Question, in.Context, current.Answer)
			switch {
			case err != nil:
				current.Error = err.Error()
				res.DebugFeedback = "evaluator error: " + err.Error()
				state = StateEvaluatorFailed
			case verdict.Accepted():
				res.Verdict = &verdict
				current.Verdict = &verdict
				res.DebugFeedback = ""
				state = StateAccepted
			default:
				res.Verdict = &verdict
				current.Verdict = &verdict
				state = StateRejected
			}
			current.Outcome = state
			res.Trace = append(res.Trace, current)

		case StateRejected:
			feedback = res.Verdict.Reasoning
			res.DebugFeedback = feedback
			if res.Attempts >= MaxAttempts {
				state = StateExhausted
				break
			}
			state = StateGenerating
		}

		logger.DebugContext(ctx, "answer loop transition", "attempt", res.Attempts, "state", state)
	}

	res.State = state
	logger.InfoContext(ctx, "answer loop finished", "attempts", res.Attempts, "state", state)
	return res
}

func joinFeedback(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}

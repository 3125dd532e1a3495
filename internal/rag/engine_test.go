package rag

import (
	"context"
	"strings"
	"sync"
	"testing"

	"paperchat/internal/extract"
	"paperchat/internal/llm"
)

// scriptedModel serves generator and evaluator calls from separate scripts.
type scriptedModel struct {
	mu         sync.Mutex
	answers    []string
	verdicts   []string
	generated  int
	evaluated  int
	lastPrompt []llm.Message
}

func (m *scriptedModel) ChatWithMessages(_ context.Context, messages []llm.Message, _ llm.ChatParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrompt = messages
	if strings.Contains(messages[0].Content, "strict QA evaluator") {
		m.evaluated++
		return m.verdicts[m.evaluated-1], nil
	}
	m.generated++
	return m.answers[m.generated-1], nil
}

func newTestEngine(t *testing.T, f *assemblerFixture, model *scriptedModel) Engine {
	t.Helper()
	assembler := NewAssembler(f.docs, extract.New(), queryEmbedder{vector: []float32{1, 0}}, f.index, nil, defaultAssemblerOptions())
	controller := NewController(NewGenerator(model, "", 0, 10), NewEvaluator(model, "", 0))
	return NewEngine(assembler, controller)
}

func TestEngine_Ask_RefusesOffTopicQuestion(t *testing.T) {
	f := newAssemblerFixture(t)
	if err := f.index.DeleteNamespace(context.Background(), f.doc.ID); err != nil {
		t.Fatalf("DeleteNamespace() error = %v", err)
	}
	model := &scriptedModel{
		verdicts: []string{`{"is_relevant": true, "is_faithful": true, "reasoning": "correct refusal, context lacks the answer"}`},
	}

	resp := newTestEngine(t, f, model).Ask(context.Background(), AskRequest{
		DocumentID: f.doc.ID,
		Question:   "What is the capital of France?",
	})

	if resp.Answer != RefusalAnswer {
		t.Errorf("Answer = %q, want refusal", resp.Answer)
	}
	if resp.State != StateAccepted || resp.Attempts != 1 {
		t.Errorf("State = %v, Attempts = %d, want accepted on 1", resp.State, resp.Attempts)
	}
	if model.generated != 0 {
		t.Errorf("generator called the model %d times, want 0", model.generated)
	}
	if len(resp.SourceSnippets) != 1 || !strings.HasPrefix(resp.SourceSnippets[0], "Attention Is All You Need") {
		t.Errorf("SourceSnippets = %v", resp.SourceSnippets)
	}
}

func TestEngine_Ask_CorrectsUnfaithfulAnswer(t *testing.T) {
	f := newAssemblerFixture(t)
	model := &scriptedModel{
		answers: []string{
			"The Transformer relies on attention and was trained on 10B tokens.",
			"The Transformer relies on attention.",
		},
		verdicts: []string{
			`{"is_relevant": true, "is_faithful": false, "reasoning": "claim X not supported"}`,
			`{"is_relevant": true, "is_faithful": true, "reasoning": "grounded"}`,
		},
	}

	resp := newTestEngine(t, f, model).Ask(context.Background(), AskRequest{
		DocumentID: f.doc.ID,
		Question:   "What does the Transformer rely on?",
		Debug:      true,
	})

	if resp.State != StateAccepted || resp.Attempts != 2 {
		t.Fatalf("State = %v, Attempts = %d, want accepted on 2", resp.State, resp.Attempts)
	}
	if resp.Answer != "The Transformer relies on attention." {
		t.Errorf("Answer = %q", resp.Answer)
	}
	if resp.Debug == nil || len(resp.Debug.Trace) != 2 || resp.Debug.Trace[1].Feedback != "claim X not supported" {
		t.Errorf("Debug = %+v", resp.Debug)
	}
	if resp.Debug.Retrieved != 2 {
		t.Errorf("Debug.Retrieved = %d, want 2", resp.Debug.Retrieved)
	}
	if len(resp.SourceSnippets) != 3 {
		t.Errorf("SourceSnippets = %d, want 3", len(resp.SourceSnippets))
	}
}

func TestEngine_Ask_ExhaustedReturnsLastAnswer(t *testing.T) {
	f := newAssemblerFixture(t)
	model := &scriptedModel{
		answers: []string{"a1", "a2", "a3"},
		verdicts: []string{
			`{"is_relevant": false, "is_faithful": true, "reasoning": "r1"}`,
			`{"is_relevant": false, "is_faithful": true, "reasoning": "r2"}`,
			`{"is_relevant": false, "is_faithful": true, "reasoning": "r3"}`,
		},
	}

	resp := newTestEngine(t, f, model).Ask(context.Background(), AskRequest{DocumentID: f.doc.ID, Question: "q"})

	if resp.State != StateExhausted || resp.Attempts != 3 {
		t.Fatalf("State = %v, Attempts = %d", resp.State, resp.Attempts)
	}
	if resp.Answer != "a3" || resp.DebugFeedback != "r3" {
		t.Errorf("Answer = %q, DebugFeedback = %q", resp.Answer, resp.DebugFeedback)
	}
	if resp.Debug != nil {
		t.Error("Debug should be omitted unless requested")
	}
}

func TestEngine_Ask_EvaluatorErrorStopsLoop(t *testing.T) {
	f := newAssemblerFixture(t)
	model := &scriptedModel{
		answers:  []string{"a1", "a2"},
		verdicts: []string{"I refuse to grade this."},
	}

	resp := newTestEngine(t, f, model).Ask(context.Background(), AskRequest{DocumentID: f.doc.ID, Question: "q"})

	if resp.State != StateEvaluatorFailed || resp.Attempts != 1 || model.generated != 1 {
		t.Fatalf("State = %v, Attempts = %d, generated = %d", resp.State, resp.Attempts, model.generated)
	}
	if resp.Answer != "a1" || !strings.HasPrefix(resp.DebugFeedback, "evaluator error: ") {
		t.Errorf("Answer = %q, DebugFeedback = %q", resp.Answer, resp.DebugFeedback)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeStandard},
		{in: "standard", want: ModeStandard},
		{in: " Augmented ", want: ModeAugmented},
		{in: "web", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
}

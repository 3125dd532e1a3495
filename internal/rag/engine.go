package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks paperchat/internal/rag Engine

import (
	"context"
	"time"
	"unicode/utf8"

	"paperchat/internal/contextutil"
)

// Engine answers questions about indexed documents.
type Engine interface {
	// Ask answers req. It never fails: every path yields a non-empty answer,
	// possibly carrying a debug note.
	Ask(ctx context.Context, req AskRequest) AskResponse
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	assembler  *Assembler
	controller *Controller
}

// NewEngine creates a new RAG engine.
func NewEngine(assembler *Assembler, controller *Controller) Engine {
	return &ragEngine{assembler: assembler, controller: controller}
}

// Ask assembles the context and runs the answer loop.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) AskResponse {
	logger := contextutil.LoggerFromContext(ctx).With("document_id", req.DocumentID)
	ctx = contextutil.WithLogger(ctx, logger)

	mode := req.Mode
	if mode == "" {
		mode = ModeStandard
	}

	start := time.Now()
	logger.InfoContext(ctx, "RAG query started", "question_length", len(req.Question), "mode", mode, "history", len(req.History))

	bundle := e.assembler.Assemble(ctx, req.DocumentID, req.Question, mode)
	result := e.controller.Run(ctx, RetryInput{
		Question: req.Question,
		Context:  bundle.Text,
		History:  req.History,
	})

	resp := AskResponse{
		Answer:         result.Answer,
		SourceSnippets: bundle.Snippets,
		DebugFeedback:  result.DebugFeedback,
		Attempts:       result.Attempts,
		State:          result.State,
	}
	if req.Debug {
		resp.Debug = &DebugInfo{
			Trace:        result.Trace,
			Retrieved:    bundle.Retrieved,
			ContextChars: utf8.RuneCountInString(bundle.Text),
			Sources:      bundle.Sources,
		}
	}

	logger.InfoContext(ctx, "RAG query completed",
		"retrieved", bundle.Retrieved,
		"attempts", result.Attempts,
		"state", result.State,
		"duration_ms", time.Since(start).Milliseconds())
	return resp
}

package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_model.go -package=mocks paperchat/internal/rag ChatModel,Embedder,ExternalSearch

import (
	"context"

	"paperchat/internal/llm"
)

// ChatModel is a chat-completion capability. *llm.Client implements it.
type ChatModel interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Embedder turns texts into vectors. *llm.EmbeddingsClient implements it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ExternalSearch is a knowledge source consulted in augmented mode.
type ExternalSearch interface {
	// Name identifies the source in logs and context headers.
	Name() string
	// Search returns plain text relevant to query, or "" when nothing matched.
	Search(ctx context.Context, query string) (string, error)
}

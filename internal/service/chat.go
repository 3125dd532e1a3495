package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks paperchat/internal/service ChatService

import (
	"context"
	"strings"

	"paperchat/internal/contextutil"
	"paperchat/internal/rag"
	"paperchat/internal/storage"
)

// AskInput represents a question in the domain layer.
type AskInput struct {
	DocumentID string
	Question   string
	Mode       string
	Debug      bool
}

// ChatService answers questions about documents and keeps their chat history.
type ChatService interface {
	// Ask answers a question about one of the owner's processed documents.
	Ask(ctx context.Context, ownerID string, in AskInput) (rag.AskResponse, error)
	// History returns the document's chat history, oldest first.
	History(ctx context.Context, ownerID, documentID string) ([]*storage.ChatMessage, error)
	// ClearHistory deletes the document's chat history.
	ClearHistory(ctx context.Context, ownerID, documentID string) error
}

// chatService implements ChatService.
type chatService struct {
	docs         storage.DocumentStore
	chats        storage.ChatStore
	engine       rag.Engine
	historyTurns int
}

// NewChatService creates a new ChatService. historyTurns is how many earlier
// messages are handed to the engine.
func NewChatService(docs storage.DocumentStore, chats storage.ChatStore, engine rag.Engine, historyTurns int) ChatService {
	return &chatService{docs: docs, chats: chats, engine: engine, historyTurns: historyTurns}
}

// Ask answers a question about one of the owner's processed documents.
// Failing to persist the exchange is logged and does not fail the request.
func (s *chatService) Ask(ctx context.Context, ownerID string, in AskInput) (rag.AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(in.Question) == "" {
		logger.WarnContext(ctx, "empty question in ask request")
		return rag.AskResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	mode, err := rag.ParseMode(in.Mode)
	if err != nil {
		return rag.AskResponse{}, &ValidationError{Field: "mode", Message: "must be standard or augmented"}
	}

	doc, err := s.owned(ctx, ownerID, in.DocumentID)
	if err != nil {
		return rag.AskResponse{}, err
	}
	if doc.Status != storage.StatusDone {
		return rag.AskResponse{}, ErrNotReady
	}

	question := SanitizePrompt(in.Question)
	if question == "" {
		return rag.AskResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}

	var history []rag.HistoryMessage
	if s.historyTurns > 0 {
		msgs, err := s.chats.ListByDocument(ctx, doc.ID, s.historyTurns)
		if err != nil {
			logger.WarnContext(ctx, "failed to load chat history", "document_id", doc.ID, "error", err)
		}
		for _, m := range msgs {
			history = append(history, rag.HistoryMessage{Role: string(m.Role), Content: m.Content})
		}
	}

	resp := s.engine.Ask(ctx, rag.AskRequest{
		DocumentID: doc.ID,
		Question:   question,
		Mode:       mode,
		History:    history,
		Debug:      in.Debug,
	})

	err = s.chats.Append(ctx,
		&storage.ChatMessage{DocumentID: doc.ID, Role: storage.RoleUser, Content: question},
		&storage.ChatMessage{DocumentID: doc.ID, Role: storage.RoleAssistant, Content: resp.Answer, Sources: resp.SourceSnippets},
	)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save chat messages", "document_id", doc.ID, "error", err)
	}

	logger.InfoContext(ctx, "question answered",
		"document_id", doc.ID,
		"attempts", resp.Attempts,
		"state", resp.State,
		"answer_length", len(resp.Answer))
	return resp, nil
}

// History returns the document's chat history, oldest first.
func (s *chatService) History(ctx context.Context, ownerID, documentID string) ([]*storage.ChatMessage, error) {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.ListByDocument(ctx, documentID, 0)
	if err != nil {
		return nil, WrapError(err, "failed to load chat history")
	}
	return msgs, nil
}

// ClearHistory deletes the document's chat history.
func (s *chatService) ClearHistory(ctx context.Context, ownerID, documentID string) error {
	if _, err := s.owned(ctx, ownerID, documentID); err != nil {
		return err
	}
	if err := s.chats.ClearByDocument(ctx, documentID); err != nil {
		return WrapError(err, "failed to clear chat history")
	}
	return nil
}

func (s *chatService) owned(ctx context.Context, ownerID, id string) (*storage.Document, error) {
	return ownedDocument(ctx, s.docs, ownerID, id)
}

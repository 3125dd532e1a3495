package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_store.go -package=mocks paperchat/internal/storage ChatStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChatStore defines the interface for per-document chat history.
type ChatStore interface {
	// Append adds messages to the end of a document's history in one transaction.
	Append(ctx context.Context, msgs ...*ChatMessage) error
	// ListByDocument returns the most recent limit messages in chronological order.
	// A limit of zero or less returns the full history.
	ListByDocument(ctx context.Context, documentID string, limit int) ([]*ChatMessage, error)
	// ClearByDocument removes all messages for a document.
	ClearByDocument(ctx context.Context, documentID string) error
}

// ChatRepo provides methods for chat message operations.
// It implements the ChatStore interface. Content and sources are stored
// encrypted, bound to the message id.
type ChatRepo struct {
	db     *sql.DB
	cipher *Cipher
	now    func() time.Time
}

// NewChatRepo creates a new ChatRepo that encrypts messages with c.
func NewChatRepo(db *sql.DB, c *Cipher) *ChatRepo {
	return &ChatRepo{db: db, cipher: c, now: time.Now}
}

// Append adds messages to the end of a document's history.
// Messages appended together get strictly increasing timestamps so their order survives.
func (r *ChatRepo) Append(ctx context.Context, msgs ...*ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chat_messages (id, document_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	base := r.now().UTC()
	for i, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.New().String()
		}
		msg.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)

		sources := msg.Sources
		if sources == nil {
			sources = []string{}
		}
		encoded, err := json.Marshal(sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}

		content, err := r.cipher.Seal(msg.Content, msg.ID)
		if err != nil {
			return fmt.Errorf("failed to encrypt content: %w", err)
		}
		sealedSources, err := r.cipher.Seal(string(encoded), msg.ID)
		if err != nil {
			return fmt.Errorf("failed to encrypt sources: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, msg.ID, msg.DocumentID, string(msg.Role), content,
			sealedSources, formatTime(msg.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert chat message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat messages: %w", err)
	}
	return nil
}

// ListByDocument returns the most recent limit messages in chronological order.
func (r *ChatRepo) ListByDocument(ctx context.Context, documentID string, limit int) ([]*ChatMessage, error) {
	query := `SELECT id, document_id, role, content, sources, created_at FROM chat_messages
		WHERE document_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{documentID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var msgs []*ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var role, content, sources, createdAt string
		if err := rows.Scan(&msg.ID, &msg.DocumentID, &role, &content, &sources, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Role = Role(role)
		if msg.Content, err = r.cipher.Open(content, msg.ID); err != nil {
			return nil, fmt.Errorf("message %s content: %w", msg.ID, err)
		}
		if sources, err = r.cipher.Open(sources, msg.ID); err != nil {
			return nil, fmt.Errorf("message %s sources: %w", msg.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode sources: %w", err)
		}
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}

	// rows came back newest first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ClearByDocument removes all messages for a document.
func (r *ChatRepo) ClearByDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("failed to clear chat messages: %w", err)
	}
	return nil
}

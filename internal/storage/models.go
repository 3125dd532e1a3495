package storage

import "time"

// Status is the ingestion state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Document represents an uploaded document and its ingestion state.
type Document struct {
	ID        string // UUID
	OwnerID   string
	Filename  string // Original upload name
	FilePath  string // Location of the stored source file
	Title     string // Empty until ingestion succeeds
	Summary   string
	Status    Status
	Error     string // Human-readable cause when Status is failed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatMessage is a single entry in a document's append-only chat log.
type ChatMessage struct {
	ID         string // UUID
	DocumentID string
	Role       Role
	Content    string
	Sources    []string
	CreatedAt  time.Time
}

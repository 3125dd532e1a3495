package service_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"paperchat/internal/storage"
	"paperchat/internal/uploads"
	"paperchat/internal/vectorstore"
)

func init() {
	// Set default logger to discard output for cleaner test output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testContext returns a context for testing.
func testContext() context.Context {
	return context.Background()
}

type fixture struct {
	docs  *storage.DocumentRepo
	chats *storage.ChatRepo
	index *vectorstore.MemoryIndex
	files *uploads.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	files, err := uploads.NewStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("uploads.NewStore() error = %v", err)
	}
	chatCipher, err := storage.NewCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("storage.NewCipher() error = %v", err)
	}
	return &fixture{
		docs:  storage.NewDocumentRepo(db),
		chats: storage.NewChatRepo(db, chatCipher),
		index: vectorstore.NewMemoryIndex(0),
		files: files,
	}
}

// createDocument stores a document for owner and optionally completes it.
func (f *fixture) createDocument(t *testing.T, owner string, done bool) *storage.Document {
	t.Helper()
	ctx := testContext()
	doc := &storage.Document{OwnerID: owner, Filename: "paper.pdf", FilePath: filepath.Join(f.files.Dir(), "paper.pdf")}
	if err := f.docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if done {
		if _, err := f.docs.Complete(ctx, doc.ID, "A Paper", "summary"); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	}
	got, err := f.docs.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return got
}

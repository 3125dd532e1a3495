package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func createDoc(t *testing.T, repo *DocumentRepo, owner, filename string) *Document {
	t.Helper()
	doc := &Document{OwnerID: owner, Filename: filename, FilePath: "/tmp/" + filename}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return doc
}

func TestDocumentRepo_CreateAndGet(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	doc := createDoc(t, repo, "alice", "paper.pdf")
	if doc.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.OwnerID != "alice" || got.Filename != "paper.pdf" || got.Status != StatusPending {
		t.Errorf("Get() = %+v", got)
	}
	if got.Title != "" || got.Summary != "" || got.Error != "" {
		t.Errorf("Get() new document should have empty title, summary and error: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() missing error = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_ListByOwner(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first := createDoc(t, repo, "alice", "a.pdf")
	second := createDoc(t, repo, "alice", "b.pdf")
	createDoc(t, repo, "bob", "c.pdf")

	docs, err := repo.ListByOwner(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("ListByOwner() returned %d documents, want 2", len(docs))
	}
	if docs[0].ID != second.ID || docs[1].ID != first.ID {
		t.Errorf("ListByOwner() order = [%s %s], want newest first", docs[0].ID, docs[1].ID)
	}

	none, err := repo.ListByOwner(context.Background(), "carol")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListByOwner() for unknown owner = %d documents, want 0", len(none))
	}
}

func TestDocumentRepo_StatusTransitions(t *testing.T) {
	tests := []struct {
		name       string
		run        func(ctx context.Context, r *DocumentRepo, id string) []bool
		wantOK     []bool
		wantStatus Status
		wantTitle  string
		wantError  string
	}{
		{
			name: "pending to processing to done",
			run: func(ctx context.Context, r *DocumentRepo, id string) []bool {
				a, _ := r.MarkProcessing(ctx, id)
				b, _ := r.Complete(ctx, id, "A Title", "A summary")
				return []bool{a, b}
			},
			wantOK:     []bool{true, true},
			wantStatus: StatusDone,
			wantTitle:  "A Title",
		},
		{
			name: "processing twice is rejected",
			run: func(ctx context.Context, r *DocumentRepo, id string) []bool {
				a, _ := r.MarkProcessing(ctx, id)
				b, _ := r.MarkProcessing(ctx, id)
				return []bool{a, b}
			},
			wantOK:     []bool{true, false},
			wantStatus: StatusProcessing,
		},
		{
			name: "terminal status is written once",
			run: func(ctx context.Context, r *DocumentRepo, id string) []bool {
				a, _ := r.MarkProcessing(ctx, id)
				b, _ := r.Fail(ctx, id, "extraction failed")
				c, _ := r.Complete(ctx, id, "Late", "late")
				d, _ := r.Fail(ctx, id, "again")
				return []bool{a, b, c, d}
			},
			wantOK:     []bool{true, true, false, false},
			wantStatus: StatusFailed,
			wantError:  "extraction failed",
		},
		{
			name: "done cannot go back to processing",
			run: func(ctx context.Context, r *DocumentRepo, id string) []bool {
				a, _ := r.Complete(ctx, id, "T", "S")
				b, _ := r.MarkProcessing(ctx, id)
				return []bool{a, b}
			},
			wantOK:     []bool{true, false},
			wantStatus: StatusDone,
			wantTitle:  "T",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewDocumentRepo(newTestDB(t))
			ctx := context.Background()
			doc := createDoc(t, repo, "alice", "paper.pdf")

			got := tt.run(ctx, repo, doc.ID)
			for i := range tt.wantOK {
				if got[i] != tt.wantOK[i] {
					t.Errorf("transition %d ok = %v, want %v", i, got[i], tt.wantOK[i])
				}
			}

			stored, err := repo.Get(ctx, doc.ID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if stored.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", stored.Status, tt.wantStatus)
			}
			if stored.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", stored.Title, tt.wantTitle)
			}
			if stored.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", stored.Error, tt.wantError)
			}
		})
	}
}

func TestDocumentRepo_TransitionsOnMissingDocument(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))
	ctx := context.Background()

	if ok, err := repo.MarkProcessing(ctx, "missing"); err != nil || ok {
		t.Errorf("MarkProcessing() = %v, %v; want false, nil", ok, err)
	}
	if ok, err := repo.Complete(ctx, "missing", "t", "s"); err != nil || ok {
		t.Errorf("Complete() = %v, %v; want false, nil", ok, err)
	}
}

func TestDocumentRepo_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepo(db)
	chats := NewChatRepo(db, newTestCipher(t))
	ctx := context.Background()

	doc := createDoc(t, repo, "alice", "paper.pdf")
	if err := chats.Append(ctx, &ChatMessage{DocumentID: doc.ID, Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	if err := repo.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}

	msgs, err := chats.ListByDocument(ctx, doc.ID, 0)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("chat messages should cascade on delete, got %d", len(msgs))
	}

	if err := repo.Delete(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrNotFound", err)
	}
}

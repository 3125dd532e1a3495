package service_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"paperchat/internal/indexer"
	"paperchat/internal/service"
	"paperchat/internal/service/mocks"
	"paperchat/internal/storage"
	"paperchat/internal/vectorstore"
)

func TestDocumentService_Upload(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	queue := mocks.NewMockIngestQueue(ctrl)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, queue)

	var queued indexer.Job
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(func(_ any, job indexer.Job) error {
		queued = job
		return nil
	})

	doc, err := svc.Upload(testContext(), "alice", "my paper.pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != storage.StatusPending || doc.OwnerID != "alice" || doc.Filename != "my paper.pdf" {
		t.Errorf("Upload() = %+v", doc)
	}
	if !strings.HasSuffix(doc.FilePath, doc.ID+"_my_paper.pdf") {
		t.Errorf("FilePath = %q", doc.FilePath)
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		t.Errorf("stored file missing: %v", err)
	}
	want := indexer.Job{DocumentID: doc.ID, OwnerID: "alice", FilePath: doc.FilePath, Filename: "my paper.pdf"}
	if queued != want {
		t.Errorf("queued job = %+v, want %+v", queued, want)
	}
}

func TestDocumentService_Upload_Validation(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		filename string
	}{
		{name: "missing owner", owner: "", filename: "paper.pdf"},
		{name: "missing filename", owner: "alice", filename: ""},
		{name: "unsupported type", owner: "alice", filename: "slides.pptx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			f := newFixture(t)
			svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, mocks.NewMockIngestQueue(ctrl))

			_, err := svc.Upload(testContext(), tt.owner, tt.filename, strings.NewReader("x"))

			var validationErr *service.ValidationError
			if !errors.As(err, &validationErr) || !errors.Is(err, service.ErrInvalidInput) {
				t.Errorf("Upload() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestDocumentService_Upload_EnqueueFailureMarksFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	queue := mocks.NewMockIngestQueue(ctrl)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, queue)

	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(indexer.ErrQueueFull)

	_, err := svc.Upload(testContext(), "alice", "paper.pdf", strings.NewReader("%PDF"))
	if !errors.Is(err, service.ErrExternalService) || !errors.Is(err, indexer.ErrQueueFull) {
		t.Fatalf("Upload() error = %v", err)
	}

	docs, err := f.docs.ListByOwner(testContext(), "alice")
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListByOwner() = %v, %v", docs, err)
	}
	if docs[0].Status != storage.StatusFailed || docs[0].Error != indexer.ErrQueueFull.Error() {
		t.Errorf("document = %+v, want failed with queue error", docs[0])
	}
}

func TestDocumentService_Ownership(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, mocks.NewMockIngestQueue(ctrl))
	doc := f.createDocument(t, "alice", true)
	ctx := testContext()

	if got, err := svc.Get(ctx, "alice", doc.ID); err != nil || got.ID != doc.ID {
		t.Errorf("Get() = %v, %v", got, err)
	}
	if _, err := svc.Get(ctx, "bob", doc.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("Get() by other owner error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, "alice", "missing"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("Get() missing error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(ctx, "bob", doc.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("Delete() by other owner error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Reingest(ctx, "bob", doc.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("Reingest() by other owner error = %v, want ErrForbidden", err)
	}
}

func TestDocumentService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, mocks.NewMockIngestQueue(ctrl))
	f.createDocument(t, "alice", false)
	f.createDocument(t, "alice", true)
	f.createDocument(t, "bob", false)

	docs, err := svc.List(testContext(), "alice")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("List() returned %d documents, want 2", len(docs))
	}
	for _, d := range docs {
		if d.OwnerID != "alice" {
			t.Errorf("List() leaked document of %s", d.OwnerID)
		}
	}
}

func TestDocumentService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	queue := mocks.NewMockIngestQueue(ctrl)
	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, queue)
	ctx := testContext()

	doc, err := svc.Upload(ctx, "alice", "paper.txt", strings.NewReader("text"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := f.index.Replace(ctx, doc.ID, []vectorstore.Entry{{Index: 0, Text: "chunk", Vector: []float32{1}}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := f.chats.Append(ctx, &storage.ChatMessage{DocumentID: doc.ID, Role: storage.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	unlocked := 0
	queue.EXPECT().Lock(doc.ID).Return(func() { unlocked++ })

	if err := svc.Delete(ctx, "alice", doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if unlocked != 1 {
		t.Errorf("document lock released %d times, want 1", unlocked)
	}

	if _, err := f.docs.Get(ctx, doc.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("document still present: %v", err)
	}
	if n, _ := f.index.Count(ctx, doc.ID); n != 0 {
		t.Errorf("index still has %d entries", n)
	}
	if msgs, _ := f.chats.ListByDocument(ctx, doc.ID, 0); len(msgs) != 0 {
		t.Errorf("chat history still has %d messages", len(msgs))
	}
	if _, err := os.Stat(doc.FilePath); !os.IsNotExist(err) {
		t.Errorf("source file still present: %v", err)
	}
	if err := svc.Delete(ctx, "alice", doc.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentService_Reingest(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	queue := mocks.NewMockIngestQueue(ctrl)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, queue)
	doc := f.createDocument(t, "alice", true)

	queue.EXPECT().Enqueue(gomock.Any(), indexer.Job{
		DocumentID: doc.ID, OwnerID: "alice", FilePath: doc.FilePath, Filename: doc.Filename,
	}).Return(nil)

	got, err := svc.Reingest(testContext(), "alice", doc.ID)
	if err != nil {
		t.Fatalf("Reingest() error = %v", err)
	}
	if got.Status != storage.StatusDone {
		t.Errorf("Reingest() status = %v, want record left done", got.Status)
	}
}

// ingesterFunc adapts a function to indexer.Ingester.
type ingesterFunc func(ctx context.Context, job indexer.Job) indexer.Outcome

func (f ingesterFunc) Ingest(ctx context.Context, job indexer.Job) indexer.Outcome { return f(ctx, job) }

func TestDocumentService_Delete_WaitsForRunningIngestion(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	queue := indexer.NewQueue(ingesterFunc(func(ctx context.Context, job indexer.Job) indexer.Outcome {
		close(started)
		<-release
		// a job finishing late still writes its chunks
		_ = f.index.Replace(ctx, job.DocumentID, []vectorstore.Entry{{Index: 0, Text: "late chunk", Vector: []float32{1}}})
		return indexer.Outcome{DocumentID: job.DocumentID}
	}), f.docs, 1, 1)
	defer queue.Close()

	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, queue)
	ctx := testContext()

	doc, err := svc.Upload(ctx, "alice", "paper.txt", strings.NewReader("text"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	<-started

	deleted := make(chan error, 1)
	go func() { deleted <- svc.Delete(ctx, "alice", doc.ID) }()

	select {
	case err := <-deleted:
		t.Fatalf("Delete() returned %v while ingestion was running", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-deleted:
		if err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Delete() did not return after ingestion finished")
	}

	if n, _ := f.index.Count(ctx, doc.ID); n != 0 {
		t.Errorf("index holds %d entries for the deleted document, want 0", n)
	}
}

func TestDocumentService_Reingest_FailedIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t)
	svc := service.NewDocumentService(f.docs, f.chats, f.index, f.files, mocks.NewMockIngestQueue(ctrl))
	ctx := testContext()
	doc := f.createDocument(t, "alice", false)
	if _, err := f.docs.Fail(ctx, doc.ID, "no extractable text"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	_, err := svc.Reingest(ctx, "alice", doc.ID)
	var vErr *service.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "status" {
		t.Fatalf("Reingest() error = %v, want status validation error", err)
	}
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("Reingest() error = %v, want ErrInvalidInput", err)
	}
}

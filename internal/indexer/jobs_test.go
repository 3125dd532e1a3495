package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paperchat/internal/storage"
)

// recordingIngester tracks how many jobs per document run at once.
type recordingIngester struct {
	mu      sync.Mutex
	running map[string]int
	maxSeen map[string]int
	total   atomic.Int32
	delay   time.Duration
}

func newRecordingIngester(delay time.Duration) *recordingIngester {
	return &recordingIngester{running: map[string]int{}, maxSeen: map[string]int{}, delay: delay}
}

func (r *recordingIngester) Ingest(_ context.Context, job Job) Outcome {
	r.mu.Lock()
	r.running[job.DocumentID]++
	if r.running[job.DocumentID] > r.maxSeen[job.DocumentID] {
		r.maxSeen[job.DocumentID] = r.running[job.DocumentID]
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.running[job.DocumentID]--
	r.mu.Unlock()
	r.total.Add(1)
	return Outcome{DocumentID: job.DocumentID, Status: storage.StatusDone}
}

type ingesterFunc func(ctx context.Context, job Job) Outcome

func (f ingesterFunc) Ingest(ctx context.Context, job Job) Outcome { return f(ctx, job) }

func TestQueue_SerializesJobsPerDocument(t *testing.T) {
	ing := newRecordingIngester(5 * time.Millisecond)
	q := NewQueue(ing, nil, 4, 16)

	for i := 0; i < 6; i++ {
		if err := q.Enqueue(context.Background(), Job{DocumentID: "doc-a"}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		if err := q.Enqueue(context.Background(), Job{DocumentID: "doc-b"}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	q.Close()

	if got := ing.total.Load(); got != 12 {
		t.Errorf("ran %d jobs, want 12", got)
	}
	for _, id := range []string{"doc-a", "doc-b"} {
		if ing.maxSeen[id] != 1 {
			t.Errorf("document %s ran %d jobs concurrently, want 1", id, ing.maxSeen[id])
		}
	}
	if len(q.locks.locks) != 0 {
		t.Errorf("keyed locks not released: %d left", len(q.locks.locks))
	}
}

func TestQueue_PanicMarksDocumentFailed(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	docs := storage.NewDocumentRepo(db)
	doc := &storage.Document{OwnerID: "alice", Filename: "paper.pdf", FilePath: "/tmp/paper.pdf"}
	if err := docs.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	q := NewQueue(ingesterFunc(func(context.Context, Job) Outcome {
		panic("boom")
	}), docs, 1, 1)
	defer q.Close()

	out := q.run(queuedJob{ctx: context.Background(), job: Job{DocumentID: doc.ID}})
	if out.Status != storage.StatusFailed || out.Err == nil {
		t.Fatalf("run() = %+v, want failed outcome", out)
	}

	got, err := docs.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != storage.StatusFailed || got.Error != "internal error: boom" {
		t.Errorf("stored document = %+v, want failed with internal error", got)
	}
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := NewQueue(newRecordingIngester(0), nil, 1, 1)
	q.Close()
	q.Close()

	if err := q.Enqueue(context.Background(), Job{DocumentID: "doc"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() error = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_Full(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	q := NewQueue(ingesterFunc(func(_ context.Context, job Job) Outcome {
		started <- struct{}{}
		<-release
		return Outcome{DocumentID: job.DocumentID, Status: storage.StatusDone}
	}), nil, 1, 1)

	ctx := context.Background()
	if err := q.Enqueue(ctx, Job{DocumentID: "a"}); err != nil {
		t.Fatalf("Enqueue(a) error = %v", err)
	}
	<-started

	if err := q.Enqueue(ctx, Job{DocumentID: "b"}); err != nil {
		t.Fatalf("Enqueue(b) error = %v", err)
	}
	if err := q.Enqueue(ctx, Job{DocumentID: "c"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue(c) error = %v, want ErrQueueFull", err)
	}

	close(release)
	q.Close()
}

func TestQueue_JobOutlivesRequestContext(t *testing.T) {
	var cancelled atomic.Bool
	done := make(chan struct{})
	q := NewQueue(ingesterFunc(func(ctx context.Context, job Job) Outcome {
		<-done
		cancelled.Store(ctx.Err() != nil)
		return Outcome{DocumentID: job.DocumentID}
	}), nil, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := q.Enqueue(ctx, Job{DocumentID: "doc"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	cancel()
	close(done)
	q.Close()

	if cancelled.Load() {
		t.Error("job context was cancelled with the request")
	}
}

func TestQueue_LockWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQueue(ingesterFunc(func(_ context.Context, job Job) Outcome {
		close(started)
		<-release
		return Outcome{DocumentID: job.DocumentID, Status: storage.StatusDone}
	}), nil, 2, 2)
	defer q.Close()

	if err := q.Enqueue(context.Background(), Job{DocumentID: "doc"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	<-started

	acquired := make(chan func())
	go func() { acquired <- q.Lock("doc") }()

	select {
	case <-acquired:
		t.Fatal("Lock() returned while a job for the document was running")
	case <-time.After(50 * time.Millisecond):
	}

	// other documents are not blocked
	q.Lock("other")()

	close(release)
	select {
	case unlock := <-acquired:
		unlock()
	case <-time.After(2 * time.Second):
		t.Fatal("Lock() did not return after the job finished")
	}
}

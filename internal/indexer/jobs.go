package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"paperchat/internal/contextutil"
	"paperchat/internal/storage"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("ingestion queue is closed")
	// ErrQueueFull is returned by Enqueue when the buffer has no room.
	ErrQueueFull = errors.New("ingestion queue is full")
)

// Ingester runs one ingestion job.
type Ingester interface {
	Ingest(ctx context.Context, job Job) Outcome
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// Queue is a bounded worker pool for ingestion jobs. Jobs for the same
// document never run concurrently.
type Queue struct {
	ingester Ingester
	docs     storage.DocumentStore
	jobs     chan queuedJob
	locks    *keyedMutex
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers goroutines reading from a buffer of size jobs.
// docs is used to mark a document failed when its job panics.
func NewQueue(ingester Ingester, docs storage.DocumentStore, workers, size int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}

	q := &Queue{
		ingester: ingester,
		docs:     docs,
		jobs:     make(chan queuedJob, size),
		locks:    newKeyedMutex(),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue schedules job. The job runs on a context detached from ctx's
// cancellation but keeping its values, such as the request logger.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- queuedJob{ctx: context.WithoutCancel(ctx), job: job}:
		contextutil.LoggerFromContext(ctx).InfoContext(ctx, "ingestion job queued", "document_id", job.DocumentID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits until every queued job has finished.
// It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// Lock blocks until no job for documentID is running and keeps new ones
// from starting until the returned unlock is called.
func (q *Queue) Lock(documentID string) (unlock func()) {
	return q.locks.Lock(documentID)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for item := range q.jobs {
		q.run(item)
	}
}

func (q *Queue) run(item queuedJob) (out Outcome) {
	ctx, job := item.ctx, item.job
	logger := contextutil.LoggerFromContext(ctx)

	unlock := q.locks.Lock(job.DocumentID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "ingestion job panicked", "document_id", job.DocumentID, "panic", r)
			cause := fmt.Sprintf("internal error: %v", r)
			if _, err := q.docs.Fail(ctx, job.DocumentID, cause); err != nil {
				logger.ErrorContext(ctx, "failed to record panic", "document_id", job.DocumentID, "error", err)
			}
			out = Outcome{DocumentID: job.DocumentID, Status: storage.StatusFailed, Err: errors.New(cause)}
		}
	}()

	return q.ingester.Ingest(ctx, job)
}

// keyedMutex hands out one mutex per key and forgets it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

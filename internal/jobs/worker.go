// Package jobs runs document processing on a single background worker, so
// at most one document is analyzed at a time and uploads return
// immediately with a pending status.
package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/calegray/concepthub-backend/internal/platform/logger"
)

// Queue is the buffered hand-off between the upload path and the worker.
type Queue struct {
	ch chan uuid.UUID
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan uuid.UUID, size)}
}

// Enqueue is non-blocking; a full queue reports false and the document
// stays pending until an operator retries it.
func (q *Queue) Enqueue(id uuid.UUID) bool {
	select {
	case q.ch <- id:
		return true
	default:
		return false
	}
}

// ProcessFunc handles one document end to end.
type ProcessFunc func(ctx context.Context, documentID uuid.UUID) error

type Worker struct {
	queue   *Queue
	process ProcessFunc
	log     *logger.Logger

	stopOnce sync.Once
	done     chan struct{}
}

func NewWorker(queue *Queue, process ProcessFunc, log *logger.Logger) *Worker {
	return &Worker{
		queue:   queue,
		process: process,
		log:     log.With("component", "DocumentWorker"),
		done:    make(chan struct{}),
	}
}

// Start consumes the queue until the context is canceled or Stop is
// called. Processing failures are logged; the document's own status row
// carries the user-visible error.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		w.log.Info("Document worker started")
		for {
			select {
			case <-ctx.Done():
				w.log.Info("Document worker stopped", "reason", ctx.Err())
				return
			case <-w.done:
				w.log.Info("Document worker stopped")
				return
			case id := <-w.queue.ch:
				if err := w.process(ctx, id); err != nil {
					w.log.Error("Document processing failed", "document_id", id, "error", err)
				}
			}
		}
	}()
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/gupsho/sourcegraph/internal/store"
)

// Worker drains the upload queue, running the pipeline for each claimed
// upload on a bounded pool. Multiple worker processes may share one store;
// queue claims and the retention lock keep them from stepping on each other.
type Worker struct {
	store        *store.Store
	pipeline     *Pipeline
	pool         *ants.Pool
	pollInterval time.Duration
	wake         chan struct{}
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// New creates a worker with the given concurrency.
func New(st *store.Store, pipeline *Pipeline, poolSize int, pollInterval time.Duration, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &Worker{
		store:        st,
		pipeline:     pipeline,
		pool:         pool,
		pollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
		logger:       logger,
	}, nil
}

// Wake nudges the worker to poll the queue immediately. Safe to call from
// any goroutine; concurrent wakes coalesce.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until the context is cancelled, polling on a timer
// and on Wake. It returns after in-flight uploads finish.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.pool.Release()
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-w.wake:
			w.drain(ctx)
		}
	}
}

// stalledUploadAge is how long an upload may sit in processing before it is
// presumed abandoned by a dead worker and returned to the queue.
const stalledUploadAge = 30 * time.Minute

// drain claims queued uploads until the queue is empty, handing each to the
// pool.
func (w *Worker) drain(ctx context.Context) {
	if n, err := w.store.ResetStalledUploads(ctx, stalledUploadAge); err != nil {
		w.logger.Error("failed to reset stalled uploads", "error", err)
	} else if n > 0 {
		w.logger.Warn("requeued uploads abandoned by a dead worker", "count", n)
	}

	// Claimed uploads run to completion even if the run context is
	// cancelled mid-flight; Run waits for them before returning. Erroring
	// them out on shutdown would demand a manual requeue after every
	// restart.
	taskCtx := context.WithoutCancel(ctx)

	for {
		upload, err := w.store.DequeueUpload(ctx)
		if err != nil {
			w.logger.Error("failed to dequeue upload", "error", err)
			return
		}
		if upload == nil {
			return
		}

		w.wg.Add(1)
		err = w.pool.Submit(func() {
			defer w.wg.Done()
			if err := w.pipeline.Process(taskCtx, upload); err != nil {
				w.logger.Error("upload processing failed", "upload", upload.ID, "error", err)
			}
		})
		if err != nil {
			w.wg.Done()
			w.logger.Error("failed to submit upload to pool", "upload", upload.ID, "error", err)
			return
		}
	}
}

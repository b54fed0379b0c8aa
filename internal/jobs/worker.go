package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openhub-dev/openhub/internal/syncer"
)

// Worker drains the queue and dispatches jobs to the orchestrator. Jobs are
// not re-enqueued on failure; the next account sync pass covers the same
// ground because every operation is an upsert.
type Worker struct {
	queue        *Queue
	orchestrator *syncer.Orchestrator
	logger       *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(queue *Queue, orchestrator *syncer.Orchestrator, logger *slog.Logger) *Worker {
	return &Worker{
		queue:        queue,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
}

func (w *Worker) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		job, err := w.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.logger.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.handle(ctx, job); err != nil {
			w.logger.Error("job failed", "error", err, "job_id", job.ID, "kind", job.Kind)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job *Job) error {
	switch job.Kind {
	case KindSync:
		return w.orchestrator.SyncAccount(ctx, job.AccountID)
	case KindDeep:
		return w.orchestrator.DeepSyncRepository(ctx, job.AccountID, job.RepositoryID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

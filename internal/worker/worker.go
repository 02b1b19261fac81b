package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/orchestrator"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/store"
)

// Worker is the single consumer of the task queue. It claims pending tasks
// in enqueue order and drives each one through the orchestrator to a
// terminal status. One worker per queue directory; there is no cross-process
// claim protocol.
type Worker struct {
	queue        *queue.Queue
	store        *store.Store
	orch         *orchestrator.Orchestrator
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a worker.
func New(q *queue.Queue, st *store.Store, orch *orchestrator.Orchestrator, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:        q,
		store:        st,
		orch:         orch,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run polls until ctx is cancelled. Tasks already claimed keep running to
// their next stage boundary before the loop exits.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "pollInterval", w.pollInterval.String())
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain processes claimed tasks back to back until the queue is empty.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.queue.PollNext()
		if err != nil {
			w.logger.Error("poll failed", "error", err)
			return
		}
		if task == nil {
			return
		}
		w.Process(ctx, task)
	}
}

// Process runs one claimed task to a terminal status. Exported so tests and
// the embedded server loop can drive a single task synchronously.
func (w *Worker) Process(ctx context.Context, task *model.Task) {
	w.logger.Info("task started", "task", task.ID, "type", task.Type)

	final, err := w.orch.Run(ctx, task, func(progress int, step string) error {
		// Cancellation is observed here, between stages. A cancel that
		// landed on the record while a stage was running aborts the run
		// before the next stage starts.
		rec, gerr := w.queue.Get(task.ID)
		if gerr == nil && rec.Status == model.TaskStatusCancelled {
			return orchestrator.ErrCancelled
		}
		if uerr := w.queue.Update(task.ID, model.TaskUpdate{Progress: &progress, CurrentStep: &step}); uerr != nil {
			w.logger.Warn("progress update failed", "task", task.ID, "error", uerr)
		}
		return nil
	})

	switch {
	case errors.Is(err, orchestrator.ErrCancelled) || errors.Is(err, context.Canceled):
		w.markCancelled(task.ID)
	case err != nil:
		w.markFailed(task.ID, err)
	default:
		w.markCompleted(task.ID, final)
	}
}

func (w *Worker) markCompleted(id string, final *model.FinalReport) {
	result := model.TaskResult{
		Title:          final.Title,
		OutputFormat:   final.OutputFormat,
		ResultPath:     final.ResultPath,
		HTMLReportPath: final.HTMLReportPath,
		WordCount:      final.Metadata.WordCount,
		Sources:        final.Metadata.ContentSources,
	}
	if final.PPT != nil {
		result.SlideCount = final.PPT.Metadata.SlideCount
	}
	payload, _ := json.Marshal(result)

	status := model.TaskStatusCompleted
	progress := 100
	step := "Done"
	if err := w.queue.Update(id, model.TaskUpdate{
		Status:      &status,
		Progress:    &progress,
		CurrentStep: &step,
		Result:      payload,
	}); err != nil {
		w.logger.Error("completion update failed", "task", id, "error", err)
	}
	if err := w.store.UpdateStatus(id, model.TaskStatusCompleted); err != nil {
		w.logger.Warn("project status update failed", "task", id, "error", err)
	}
	w.logger.Info("task completed", "task", id, "result", final.ResultPath)
}

func (w *Worker) markCancelled(id string) {
	status := model.TaskStatusCancelled
	if err := w.queue.Update(id, model.TaskUpdate{Status: &status}); err != nil {
		w.logger.Warn("cancel update failed", "task", id, "error", err)
	}
	if err := w.store.UpdateStatus(id, model.TaskStatusCancelled); err != nil {
		w.logger.Warn("project status update failed", "task", id, "error", err)
	}
	w.logger.Info("task cancelled", "task", id)
}

func (w *Worker) markFailed(id string, cause error) {
	status := model.TaskStatusFailed
	msg := cause.Error()
	if err := w.queue.Update(id, model.TaskUpdate{Status: &status, Error: &msg}); err != nil {
		w.logger.Error("failure update failed", "task", id, "error", err)
	}
	if err := w.store.UpdateStatus(id, model.TaskStatusFailed); err != nil {
		w.logger.Warn("project status update failed", "task", id, "error", err)
	}
	w.logger.Error("task failed", "task", id, "error", msg)
}

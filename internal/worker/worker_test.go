package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xunlong/api/internal/client"
	"github.com/xunlong/api/internal/config"
	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/orchestrator"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/store"
)

func newTestWorker(t *testing.T) (*Worker, *queue.Queue, *store.Store) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(root)
	require.NoError(t, err)
	q, err := queue.New(filepath.Join(root, "tasks"))
	require.NoError(t, err)

	llm := client.NewLLMClient(&config.LLMConfig{})
	search := client.NewSearchClient(&config.SearchConfig{})
	orch := orchestrator.New(st, llm, search, 3)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(q, st, orch, 0, logger), q, st
}

func claimTask(t *testing.T, q *queue.Queue, taskType model.TaskType, query string, cfg any) *model.Task {
	t.Helper()
	_, err := q.Enqueue(taskType, query, cfg)
	require.NoError(t, err)
	task, err := q.PollNext()
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func projectStatus(t *testing.T, st *store.Store, id string) model.TaskStatus {
	t.Helper()
	projects, err := st.ListProjects()
	require.NoError(t, err)
	for _, p := range projects {
		if p.ID == id {
			return p.Status
		}
	}
	t.Fatalf("no project for task %s", id)
	return ""
}

func TestProcessCompletesTask(t *testing.T) {
	w, q, st := newTestWorker(t)
	task := claimTask(t, q, model.TaskTypeReport, "impact of remote work", nil)

	w.Process(context.Background(), task)

	rec, err := q.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, rec.Status)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, "Done", rec.CurrentStep)
	require.NotNil(t, rec.Result)

	var result model.TaskResult
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.NotEmpty(t, result.Title)
	assert.Equal(t, model.OutputFormatMD, result.OutputFormat)
	assert.NotEmpty(t, result.ResultPath)
	assert.Greater(t, result.WordCount, 0)

	assert.Equal(t, model.TaskStatusCompleted, projectStatus(t, st, task.ID))
}

func TestProcessPPTTaskRecordsSlideCount(t *testing.T) {
	w, q, _ := newTestWorker(t)
	task := claimTask(t, q, model.TaskTypePPT, "ocean plastic cleanup", model.PPTConfig{
		SlideCount: 6,
		Style:      model.PPTStyleSimple,
	})

	w.Process(context.Background(), task)

	rec, err := q.Get(task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskStatusCompleted, rec.Status)

	var result model.TaskResult
	require.NoError(t, json.Unmarshal(rec.Result, &result))
	assert.Equal(t, 6, result.SlideCount)
	assert.Equal(t, model.OutputFormatHTML, result.OutputFormat)
}

func TestProcessObservesCancelBetweenStages(t *testing.T) {
	w, q, st := newTestWorker(t)
	task := claimTask(t, q, model.TaskTypeReport, "abandoned query", nil)

	// Cancel lands on the record while the task is claimed. The worker's
	// progress callback sees it at the first stage boundary.
	_, err := q.Cancel(task.ID)
	require.NoError(t, err)

	w.Process(context.Background(), task)

	rec, err := q.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, rec.Status)
	assert.Nil(t, rec.Result)

	assert.Equal(t, model.TaskStatusCancelled, projectStatus(t, st, task.ID))
}

func TestProcessRecordsFailure(t *testing.T) {
	w, q, st := newTestWorker(t)
	task := claimTask(t, q, model.TaskTypeReport, "doomed query", nil)

	// A plain file where the project directory should go makes project
	// creation fail before any stage runs.
	require.NoError(t, os.WriteFile(filepath.Join(st.Root(), task.ID), []byte("x"), 0o644))

	w.Process(context.Background(), task)

	rec, err := q.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "failed to create project")
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	w, _, _ := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

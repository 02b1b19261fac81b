package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xunlong/api/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the given task id.
	ErrNotFound = errors.New("task not found")
	// ErrNotCompleted is returned by Result for non-completed tasks.
	ErrNotCompleted = errors.New("task not completed")
)

const indexFile = "index.json"

// Queue is a persistent FIFO of task records, one JSON file per task plus an
// index file listing ids in insertion order. The enqueuer (API) writes, a
// single worker claims; both sides see consistent state because every write
// is a whole-file replace. Multiple workers against the same directory are
// not supported.
type Queue struct {
	dir string
	mu  sync.Mutex
}

// New opens (or creates) a queue rooted at dir.
func New(dir string) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue dir: %w", err)
	}
	return &Queue{dir: dir}, nil
}

// Dir returns the queue directory.
func (q *Queue) Dir() string {
	return q.dir
}

// Enqueue persists a new pending task and appends it to the index.
func (q *Queue) Enqueue(taskType model.TaskType, query string, config any) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cfgBytes, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ids are second-resolution; bump the timestamp on collision so two
	// identical queries in the same second stay distinct.
	now := time.Now()
	id := model.NewTaskID(query, now)
	for i := 0; i < 60; i++ {
		if _, err := os.Stat(q.taskPath(id)); os.IsNotExist(err) {
			break
		}
		now = now.Add(time.Second)
		id = model.NewTaskID(query, now)
	}

	// CreatedAt carries the same (possibly bumped) timestamp the id embeds.
	task := &model.Task{
		ID:        id,
		Type:      taskType,
		Query:     query,
		Status:    model.TaskStatusPending,
		Progress:  0,
		Config:    cfgBytes,
		CreatedAt: now,
	}

	// Index first: a task file without an index entry is invisible, the
	// reverse would break FIFO ordering.
	ids, err := q.readIndex()
	if err != nil {
		return nil, err
	}
	ids = append(ids, task.ID)
	if err := q.writeIndex(ids); err != nil {
		return nil, err
	}

	if err := writeJSON(q.taskPath(task.ID), task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}
	return task, nil
}

// PollNext returns the oldest pending task, marking it running on disk
// before returning. Claiming is done by renaming the task file so a restart
// mid-claim can never hand the same task out twice. Returns (nil, nil) when
// nothing is pending.
func (q *Queue) PollNext() (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids, err := q.readIndex()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		path := q.taskPath(id)
		claim := path + ".claim"
		if err := os.Rename(path, claim); err != nil {
			// Already claimed or removed; skip.
			continue
		}

		task, err := readTask(claim)
		if err != nil {
			// Unreadable record: restore and surface the error.
			_ = os.Rename(claim, path)
			return nil, err
		}

		if task.Status != model.TaskStatusPending {
			_ = os.Rename(claim, path)
			continue
		}

		now := time.Now()
		task.Status = model.TaskStatusRunning
		task.StartedAt = &now
		if err := writeJSON(claim, task); err != nil {
			_ = os.Rename(claim, path)
			return nil, err
		}
		if err := os.Rename(claim, path); err != nil {
			return nil, err
		}
		return task, nil
	}
	return nil, nil
}

// Get returns the task record for id.
func (q *Queue) Get(id string) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.get(id)
}

func (q *Queue) get(id string) (*model.Task, error) {
	path := q.taskPath(id)
	// A sibling process holds the record under its claim name for the
	// duration of PollNext. A read that misses both names retries once in
	// case the rename back landed between the two lookups.
	for attempt := 0; attempt < 2; attempt++ {
		for _, p := range []string{path, path + ".claim"} {
			task, err := readTask(p)
			if err == nil {
				return task, nil
			}
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}
	return nil, ErrNotFound
}

// Update merges the non-nil fields of upd into the task record. Updates
// against a terminal status are dropped silently: a late worker update must
// never resurrect a cancelled task.
func (q *Queue) Update(id string, upd model.TaskUpdate) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, err := q.get(id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return nil
	}

	if upd.Progress != nil {
		task.Progress = *upd.Progress
	}
	if upd.CurrentStep != nil {
		task.CurrentStep = *upd.CurrentStep
	}
	if upd.Error != nil {
		task.Error = upd.Error
	}
	if upd.Result != nil {
		task.Result = upd.Result
	}
	if upd.Status != nil {
		task.Status = *upd.Status
		if task.Status.IsTerminal() {
			now := time.Now()
			task.CompletedAt = &now
		}
	}
	return writeJSON(q.taskPath(id), task)
}

// Result returns the final payload of a completed task.
func (q *Queue) Result(id string) (json.RawMessage, error) {
	task, err := q.Get(id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskStatusCompleted {
		return nil, ErrNotCompleted
	}
	return task.Result, nil
}

// Cancel marks a pending or running task cancelled. The worker observes the
// new status at the next stage boundary. Cancelling an already-terminal
// task is a no-op.
func (q *Queue) Cancel(id string) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, err := q.get(id)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return task, nil
	}
	task.Status = model.TaskStatusCancelled
	now := time.Now()
	task.CompletedAt = &now
	if err := writeJSON(q.taskPath(id), task); err != nil {
		return nil, err
	}
	return task, nil
}

// List returns tasks in insertion order, optionally filtered by status and
// type, newest first, capped at limit.
func (q *Queue) List(status model.TaskStatus, taskType model.TaskType, limit int) ([]*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids, err := q.readIndex()
	if err != nil {
		return nil, err
	}

	var tasks []*model.Task
	for i := len(ids) - 1; i >= 0; i-- {
		task, err := q.get(ids[i])
		if err != nil {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		if taskType != "" && task.Type != taskType {
			continue
		}
		tasks = append(tasks, task)
		if limit > 0 && len(tasks) >= limit {
			break
		}
	}
	return tasks, nil
}

func (q *Queue) taskPath(id string) string {
	return filepath.Join(q.dir, id+".json")
}

func (q *Queue) readIndex() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(q.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return ids, nil
}

func (q *Queue) writeIndex(ids []string) error {
	return writeJSON(filepath.Join(q.dir, indexFile), ids)
}

func readTask(path string) (*model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task record: %w", err)
	}
	return &task, nil
}

// writeJSON replaces path with the indented JSON encoding of v, via a
// temp-file rename so readers never see a partial record.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

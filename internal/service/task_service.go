package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/pptx"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/store"
)

var (
	// ErrUnknownFileType is returned by DownloadPath for an unsupported file_type.
	ErrUnknownFileType = errors.New("unknown file type")
	// ErrArtifactMissing is returned when the requested companion file was
	// never produced for this task.
	ErrArtifactMissing = errors.New("artifact not found")
)

// TaskService is the API-facing facade over the queue and the project store.
type TaskService struct {
	queue    *queue.Queue
	store    *store.Store
	renderer *pptx.Renderer
	logger   *slog.Logger
}

func NewTaskService(q *queue.Queue, st *store.Store, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		queue:    q,
		store:    st,
		renderer: pptx.NewRenderer(logger),
		logger:   logger,
	}
}

// CreateReport enqueues a report task.
func (s *TaskService) CreateReport(req *model.CreateReportRequest) (*model.TaskCreateResponse, error) {
	cfg := model.ReportConfig{
		ReportType:   req.ReportType,
		SearchDepth:  req.SearchDepth,
		MaxResults:   req.MaxResults,
		OutputFormat: req.OutputFormat,
	}
	return s.enqueue(model.TaskTypeReport, req.Query, cfg)
}

// CreateFiction enqueues a fiction task.
func (s *TaskService) CreateFiction(req *model.CreateFictionRequest) (*model.TaskCreateResponse, error) {
	cfg := model.FictionConfig{
		Genre:        req.Genre,
		Length:       req.Length,
		Viewpoint:    req.Viewpoint,
		OutputFormat: req.OutputFormat,
	}
	return s.enqueue(model.TaskTypeFiction, req.Query, cfg)
}

// CreatePPT enqueues a ppt task.
func (s *TaskService) CreatePPT(req *model.CreatePPTRequest) (*model.TaskCreateResponse, error) {
	cfg := model.PPTConfig{
		SlideCount:  req.SlideCount,
		Style:       req.Style,
		Theme:       req.Theme,
		SpeechScene: req.SpeechScene,
	}
	if cfg.SlideCount == 0 {
		cfg.SlideCount = 10
	}
	if cfg.Style == "" {
		cfg.Style = model.PPTStyleBusiness
	}
	return s.enqueue(model.TaskTypePPT, req.Query, cfg)
}

func (s *TaskService) enqueue(taskType model.TaskType, query string, cfg any) (*model.TaskCreateResponse, error) {
	task, err := s.queue.Enqueue(taskType, query, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	s.logger.Info("task enqueued", "task", task.ID, "type", taskType)
	return &model.TaskCreateResponse{
		TaskID:  task.ID,
		Status:  task.Status,
		Message: fmt.Sprintf("%s task accepted", taskType),
	}, nil
}

// Status returns the full task record.
func (s *TaskService) Status(id string) (*model.TaskStatusResponse, error) {
	task, err := s.queue.Get(id)
	if err != nil {
		return nil, err
	}
	return taskToStatus(task), nil
}

// Result returns the final payload of a completed task.
func (s *TaskService) Result(id string) (json.RawMessage, error) {
	return s.queue.Result(id)
}

// Cancel requests cancellation. Already-terminal tasks keep their status.
func (s *TaskService) Cancel(id string) (*model.TaskCancelResponse, error) {
	task, err := s.queue.Cancel(id)
	if err != nil {
		return nil, err
	}
	return &model.TaskCancelResponse{TaskID: task.ID, Status: task.Status}, nil
}

// List returns the newest tasks matching the filters.
func (s *TaskService) List(status model.TaskStatus, taskType model.TaskType, limit int) (*model.TaskListResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	tasks, err := s.queue.List(status, taskType, limit)
	if err != nil {
		return nil, err
	}
	resp := &model.TaskListResponse{Tasks: make([]model.TaskStatusResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, *taskToStatus(t))
	}
	resp.Total = len(resp.Tasks)
	return resp, nil
}

// DownloadPath resolves a companion file for a completed task, exporting it
// on demand where needed, and returns its path plus content type. PPTX files
// are rendered from PPT_DATA.json on first request and cached under exports/.
func (s *TaskService) DownloadPath(id, fileType string) (string, string, error) {
	task, err := s.queue.Get(id)
	if err != nil {
		return "", "", err
	}
	if task.Status != model.TaskStatusCompleted {
		return "", "", queue.ErrNotCompleted
	}
	project, err := s.store.OpenProject(id)
	if err != nil {
		return "", "", err
	}
	reports := filepath.Join(project.Dir, "reports")

	var path, contentType string
	switch fileType {
	case "md", "":
		path = filepath.Join(reports, "FINAL_REPORT.md")
		contentType = "text/markdown; charset=utf-8"
	case "html":
		path = filepath.Join(reports, "FINAL_REPORT.html")
		contentType = "text/html; charset=utf-8"
	case "json":
		path = filepath.Join(reports, "PPT_DATA.json")
		contentType = "application/json"
		if _, err := os.Stat(path); err != nil {
			path = project.StagePath(model.StageFinalize)
		}
	case "pptx":
		exported, err := s.exportPPTX(project)
		if err != nil {
			return "", "", err
		}
		path = exported
		contentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	default:
		return "", "", ErrUnknownFileType
	}

	if _, err := os.Stat(path); err != nil {
		return "", "", ErrArtifactMissing
	}
	return path, contentType, nil
}

// exportPPTX renders the deck into exports/<id>.pptx once; subsequent
// downloads reuse the file.
func (s *TaskService) exportPPTX(project *store.Project) (string, error) {
	out := filepath.Join(project.Dir, "exports", project.ID+".pptx")
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	data, err := os.ReadFile(filepath.Join(project.Dir, "reports", "PPT_DATA.json"))
	if err != nil {
		return "", ErrArtifactMissing
	}
	var doc model.PPTDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse deck data: %w", err)
	}
	if err := s.renderer.RenderFile(&doc, out); err != nil {
		return "", fmt.Errorf("pptx export failed: %w", err)
	}
	s.logger.Info("pptx exported", "task", project.ID, "path", out)
	return out, nil
}

func taskToStatus(task *model.Task) *model.TaskStatusResponse {
	resp := &model.TaskStatusResponse{
		TaskID:      task.ID,
		Type:        task.Type,
		Query:       task.Query,
		Status:      task.Status,
		Progress:    task.Progress,
		CurrentStep: task.CurrentStep,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}
	if len(task.Result) > 0 {
		var result model.TaskResult
		if err := json.Unmarshal(task.Result, &result); err == nil {
			resp.ResultPath = result.ResultPath
			resp.HTMLReportPath = result.HTMLReportPath
		}
	}
	return resp
}

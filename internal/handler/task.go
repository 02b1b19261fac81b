package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/xunlong/api/internal/model"
	"github.com/xunlong/api/internal/queue"
	"github.com/xunlong/api/internal/service"
	"github.com/xunlong/api/pkg/response"
)

type TaskHandler struct {
	service   *service.TaskService
	validator *validator.Validate
}

func NewTaskHandler(svc *service.TaskService, v *validator.Validate) *TaskHandler {
	return &TaskHandler{
		service:   svc,
		validator: v,
	}
}

// CreateReport handles POST /api/v1/tasks/report
// @Summary      Create report task
// @Description  Enqueue an asynchronous report generation task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        request body model.CreateReportRequest true "Report task request"
// @Success      202 {object} model.TaskCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks/report [post]
func (h *TaskHandler) CreateReport(c *fiber.Ctx) error {
	var req model.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateReport(&req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// CreateFiction handles POST /api/v1/tasks/fiction
// @Summary      Create fiction task
// @Description  Enqueue an asynchronous fiction generation task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        request body model.CreateFictionRequest true "Fiction task request"
// @Success      202 {object} model.TaskCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks/fiction [post]
func (h *TaskHandler) CreateFiction(c *fiber.Ctx) error {
	var req model.CreateFictionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreateFiction(&req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// CreatePPT handles POST /api/v1/tasks/ppt
// @Summary      Create presentation task
// @Description  Enqueue an asynchronous slide deck generation task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        request body model.CreatePPTRequest true "Presentation task request"
// @Success      202 {object} model.TaskCreateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks/ppt [post]
func (h *TaskHandler) CreatePPT(c *fiber.Ctx) error {
	var req model.CreatePPTRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreatePPT(&req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/v1/tasks/:id
// @Summary      Get task status
// @Description  Get the full record of a task including progress and result paths
// @Tags         Tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} model.TaskStatusResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks/{id} [get]
func (h *TaskHandler) Status(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.Status(id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/v1/tasks/:id/result
// @Summary      Get task result
// @Description  Get the final payload of a completed task
// @Tags         Tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} model.TaskResult
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks/{id}/result [get]
func (h *TaskHandler) Result(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	payload, err := h.service.Result(id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return response.NotFound(c, "Task not found")
		}
		if errors.Is(err, queue.ErrNotCompleted) {
			return response.TaskFailed(c, "Task not completed yet")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}

// Download handles GET /api/v1/tasks/:id/download
// @Summary      Download task artifact
// @Description  Stream a generated artifact (md, html, json or pptx)
// @Tags         Tasks
// @Produce      octet-stream
// @Param        id path string true "Task ID"
// @Param        file_type query string false "Artifact type" Enums(md, html, json, pptx)
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /api/v1/tasks/{id}/download [get]
func (h *TaskHandler) Download(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}
	fileType := c.Query("file_type", "md")

	path, contentType, err := h.service.DownloadPath(id, fileType)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			return response.NotFound(c, "Task not found")
		case errors.Is(err, queue.ErrNotCompleted):
			return response.TaskFailed(c, "Task not completed yet")
		case errors.Is(err, service.ErrUnknownFileType):
			return response.ValidationError(c, "Unknown file_type", nil)
		case errors.Is(err, service.ErrArtifactMissing):
			return response.NotFound(c, "Artifact not found")
		default:
			return response.ServiceError(c, err.Error())
		}
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.SendFile(path)
}

// Cancel handles DELETE /api/v1/tasks/:id
// @Summary      Cancel task
// @Description  Request cancellation of a pending or running task
// @Tags         Tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} model.TaskCancelResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks/{id} [delete]
func (h *TaskHandler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return response.ValidationError(c, "Task ID is required", nil)
	}

	result, err := h.service.Cancel(id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// List handles GET /api/v1/tasks
// @Summary      List tasks
// @Description  List tasks newest first with optional filters
// @Tags         Tasks
// @Produce      json
// @Param        status query string false "Filter by status" Enums(pending, running, completed, failed, cancelled)
// @Param        task_type query string false "Filter by type" Enums(report, fiction, ppt)
// @Param        limit query int false "Max records (default 20, max 100)"
// @Success      200 {object} model.TaskListResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /api/v1/tasks [get]
func (h *TaskHandler) List(c *fiber.Ctx) error {
	status := model.TaskStatus(c.Query("status"))
	taskType := model.TaskType(c.Query("task_type"))
	limit := c.QueryInt("limit", 20)

	result, err := h.service.List(status, taskType, limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

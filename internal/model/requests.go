package model

import "time"

// CreateReportRequest represents the request body for POST /api/v1/tasks/report
type CreateReportRequest struct {
	Query        string       `json:"query" validate:"required,min=2,max=500"`
	ReportType   string       `json:"reportType" validate:"omitempty,max=50"`
	SearchDepth  SearchDepth  `json:"searchDepth" validate:"omitempty,oneof=surface medium deep"`
	MaxResults   int          `json:"maxResults" validate:"omitempty,min=1,max=50"`
	OutputFormat OutputFormat `json:"outputFormat" validate:"omitempty,oneof=md html pdf docx"`
}

// CreateFictionRequest represents the request body for POST /api/v1/tasks/fiction
type CreateFictionRequest struct {
	Query        string        `json:"query" validate:"required,min=2,max=500"`
	Genre        string        `json:"genre" validate:"omitempty,max=50"`
	Length       FictionLength `json:"length" validate:"omitempty,oneof=short medium long"`
	Viewpoint    string        `json:"viewpoint" validate:"omitempty,max=50"`
	OutputFormat OutputFormat  `json:"outputFormat" validate:"omitempty,oneof=md html pdf docx"`
}

// CreatePPTRequest represents the request body for POST /api/v1/tasks/ppt
type CreatePPTRequest struct {
	Query       string   `json:"query" validate:"required,min=2,max=500"`
	SlideCount  int      `json:"slideCount" validate:"omitempty,min=3,max=50"`
	Style       PPTStyle `json:"style" validate:"omitempty,oneof=ted business academic creative simple"`
	Theme       string   `json:"theme" validate:"omitempty,max=100"`
	SpeechScene string   `json:"speechScene" validate:"omitempty,max=200"`
}

// TaskCreateResponse is returned when a task is accepted.
type TaskCreateResponse struct {
	TaskID  string     `json:"taskId"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message"`
}

// TaskStatusResponse is the full task record as exposed by the API.
type TaskStatusResponse struct {
	TaskID         string     `json:"taskId"`
	Type           TaskType   `json:"type"`
	Query          string     `json:"query"`
	Status         TaskStatus `json:"status"`
	Progress       int        `json:"progress"`
	CurrentStep    string     `json:"currentStep,omitempty"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ResultPath     string     `json:"resultPath,omitempty"`
	HTMLReportPath string     `json:"htmlReportPath,omitempty"`
}

// TaskListResponse wraps a filtered task listing.
type TaskListResponse struct {
	Tasks []TaskStatusResponse `json:"tasks"`
	Total int                  `json:"total"`
}

// TaskCancelResponse is returned by DELETE /api/v1/tasks/:id
type TaskCancelResponse struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
}

package model

import (
	"encoding/json"
	"time"
)

// Task represents a background generation job in the system.
// The on-disk record under tasks/<id>.json is exactly this struct.
type Task struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	Query       string          `json:"query"`
	Status      TaskStatus      `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"` // per-type config struct
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// ReportConfig is the per-type configuration for report tasks.
type ReportConfig struct {
	ReportType   string       `json:"reportType,omitempty"`
	SearchDepth  SearchDepth  `json:"searchDepth,omitempty"`
	MaxResults   int          `json:"maxResults,omitempty"`
	OutputFormat OutputFormat `json:"outputFormat,omitempty"`
}

// FictionConfig is the per-type configuration for fiction tasks.
type FictionConfig struct {
	Genre        string        `json:"genre,omitempty"`
	Length       FictionLength `json:"length,omitempty"`
	Viewpoint    string        `json:"viewpoint,omitempty"`
	OutputFormat OutputFormat  `json:"outputFormat,omitempty"`
}

// PPTConfig is the per-type configuration for ppt tasks.
type PPTConfig struct {
	SlideCount  int      `json:"slideCount,omitempty"`
	Style       PPTStyle `json:"style,omitempty"`
	Theme       string   `json:"theme,omitempty"`
	SpeechScene string   `json:"speechScene,omitempty"`
}

// TaskResult is the compact payload stored on a completed task record.
// Full artifacts live in the project directory; this points at them.
type TaskResult struct {
	Title          string       `json:"title"`
	OutputFormat   OutputFormat `json:"outputFormat"`
	ResultPath     string       `json:"resultPath,omitempty"`
	HTMLReportPath string       `json:"htmlReportPath,omitempty"`
	WordCount      int          `json:"wordCount,omitempty"`
	SlideCount     int          `json:"slideCount,omitempty"`
	Sources        int          `json:"sources,omitempty"`
}

// TaskUpdate carries a partial merge into a task record.
// Nil fields are left untouched.
type TaskUpdate struct {
	Progress    *int            `json:"progress,omitempty"`
	CurrentStep *string         `json:"currentStep,omitempty"`
	Status      *TaskStatus     `json:"status,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

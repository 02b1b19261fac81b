package model

// Task types
type TaskType string

const (
	TaskTypeReport  TaskType = "report"
	TaskTypeFiction TaskType = "fiction"
	TaskTypePPT     TaskType = "ppt"
)

var ValidTaskTypes = []TaskType{TaskTypeReport, TaskTypeFiction, TaskTypePPT}

// Task status
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Search depths
type SearchDepth string

const (
	SearchDepthSurface SearchDepth = "surface"
	SearchDepthMedium  SearchDepth = "medium"
	SearchDepthDeep    SearchDepth = "deep"
)

// Output formats
type OutputFormat string

const (
	OutputFormatMD   OutputFormat = "md"
	OutputFormatHTML OutputFormat = "html"
	OutputFormatPDF  OutputFormat = "pdf"
	OutputFormatDOCX OutputFormat = "docx"
)

// Fiction lengths
type FictionLength string

const (
	FictionLengthShort  FictionLength = "short"
	FictionLengthMedium FictionLength = "medium"
	FictionLengthLong   FictionLength = "long"
)

// PPT styles
type PPTStyle string

const (
	PPTStyleTED      PPTStyle = "ted"
	PPTStyleBusiness PPTStyle = "business"
	PPTStyleAcademic PPTStyle = "academic"
	PPTStyleCreative PPTStyle = "creative"
	PPTStyleSimple   PPTStyle = "simple"
)

var ValidPPTStyles = []PPTStyle{
	PPTStyleTED, PPTStyleBusiness, PPTStyleAcademic, PPTStyleCreative, PPTStyleSimple,
}

// Slide page types
type PageType string

const (
	PageTypeTitle      PageType = "title"
	PageTypeSection    PageType = "section"
	PageTypeContent    PageType = "content"
	PageTypeConclusion PageType = "conclusion"
)

// Pipeline stages, in execution order
type Stage int

const (
	StageDecompose Stage = iota + 1
	StageSearch
	StageEvaluate
	StageAnalyze
	StageSynthesize
	StageFinalize
)

var stageNames = map[Stage]string{
	StageDecompose:  "task_decomposition",
	StageSearch:     "search_results",
	StageEvaluate:   "content_evaluation",
	StageAnalyze:    "search_analysis",
	StageSynthesize: "content_synthesis",
	StageFinalize:   "final_report",
}

// Name returns the artifact slot name for the stage, e.g. "task_decomposition".
func (s Stage) Name() string {
	return stageNames[s]
}

// Progress returns the milestone reported after the stage completes.
func (s Stage) Progress() int {
	switch s {
	case StageDecompose:
		return 15
	case StageSearch:
		return 30
	case StageEvaluate:
		return 45
	case StageAnalyze:
		return 60
	case StageSynthesize:
		return 80
	case StageFinalize:
		return 100
	}
	return 0
}

package model

// Stage artifact types. Each stage consumes the previous stage's struct and
// produces the next one; the orchestrator persists every one of them to
// intermediate/0N_<name>.json before moving on.

// Subtask is one unit of the decomposed query.
type Subtask struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	SearchQueries []string `json:"searchQueries"`
	Priority      int      `json:"priority"`
}

// TaskPlan is the stage 1 artifact.
type TaskPlan struct {
	Subtasks []Subtask `json:"subtasks"`
}

// ContentItem is one collected search hit, tagged with its origin so later
// stages can group deterministically.
type ContentItem struct {
	Title        string `json:"title"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	Source       string `json:"source,omitempty"`
	SearchQuery  string `json:"searchQuery"`
	SubtaskID    string `json:"subtaskId"`
	SubtaskTitle string `json:"subtaskTitle"`
}

// SearchResults is the stage 2 artifact.
type SearchResults struct {
	AllContent []ContentItem            `json:"allContent"`
	BySubtask  map[string][]ContentItem `json:"bySubtask"`
	TotalHits  int                      `json:"totalHits"`
}

// EvaluatedItem is a content item with its rubric scores.
type EvaluatedItem struct {
	ContentItem
	Relevance float64 `json:"relevance"`
	Quality   float64 `json:"quality"`
	Keep      bool    `json:"keep"`
}

// Evaluation is the stage 3 artifact.
type Evaluation struct {
	Items     []EvaluatedItem `json:"items"`
	Kept      int             `json:"kept"`
	Dropped   int             `json:"dropped"`
	Threshold float64         `json:"threshold"`
}

// SubtaskAnalysis is one per-subtask analysis note.
type SubtaskAnalysis struct {
	SubtaskID      string   `json:"subtaskId"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Contradictions []string `json:"contradictions,omitempty"`
	OpenQuestions  []string `json:"openQuestions,omitempty"`
	SourceCount    int      `json:"sourceCount"`
}

// Analysis is the stage 4 artifact.
type Analysis struct {
	Notes []SubtaskAnalysis `json:"notes"`
}

// Section is one titled block of a synthesized document.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SynthesisMetadata describes how the artifact was produced.
type SynthesisMetadata struct {
	WordCount      int     `json:"wordCount"`
	GenerationTime float64 `json:"generationTime"` // seconds
	ReportType     string  `json:"reportType,omitempty"`
	ContentSources int     `json:"contentSources"`
}

// Synthesis is the stage 5 artifact. For report/fiction jobs Content and
// Sections are filled; for ppt jobs PPT carries the whole deck.
type Synthesis struct {
	OutputType  TaskType          `json:"outputType"`
	Title       string            `json:"title"`
	Content     string            `json:"content,omitempty"`
	Sections    []Section         `json:"sections,omitempty"`
	Metadata    SynthesisMetadata `json:"metadata"`
	HTMLContent string            `json:"htmlContent,omitempty"`
	PPT         *PPTDocument      `json:"ppt,omitempty"`
}

// FinalReport is the stage 6 artifact: the synthesis normalized to the
// output contract plus the paths of the companion files written for it.
type FinalReport struct {
	Synthesis
	OutputFormat   OutputFormat `json:"outputFormat"`
	ResultPath     string       `json:"resultPath,omitempty"`
	HTMLReportPath string       `json:"htmlReportPath,omitempty"`
}

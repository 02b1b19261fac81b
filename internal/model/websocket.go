package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
)

// WSProgressMessage represents a progress update pushed to subscribers.
type WSProgressMessage struct {
	Type        string     `json:"type"`
	TaskID      string     `json:"taskId"`
	Progress    int        `json:"progress"`
	Status      TaskStatus `json:"status"`
	CurrentStep string     `json:"currentStep,omitempty"`
}

// WSCompleteMessage carries the final result payload to subscribers.
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	TaskID string      `json:"taskId"`
	Result interface{} `json:"result,omitempty"`
}

// WSErrorMessage represents a task failure pushed to subscribers.
type WSErrorMessage struct {
	Type    string `json:"type"`
	TaskID  string `json:"taskId"`
	Message string `json:"message"`
}

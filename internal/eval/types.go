package eval

import (
	"time"

	"github.com/ziadkadry99/promptlab/internal/llm"
	"github.com/ziadkadry99/promptlab/internal/project"
	"github.com/ziadkadry99/promptlab/internal/store"
)

// ModelRoles assigns a model to each stage of the evaluation.
type ModelRoles struct {
	Prompt  string `json:"prompt"`
	Answer  string `json:"answer"`
	Scoring string `json:"scoring"`
}

// RunConfig configures one evaluation run.
type RunConfig struct {
	Project *project.Project
	Store   *store.Store
	Models  ModelRoles
	// Loops is the number of evaluation passes. Ignored when
	// Threshold is set.
	Loops int
	// Threshold, when above zero, keeps looping until the loop's
	// average score percentage reaches it, capped at MaxLoops.
	Threshold float64
	MaxLoops  int
	// StageDelay is the pause between model calls, giving providers
	// breathing room between stages.
	StageDelay time.Duration
	// Params overlays generation parameters on every call.
	Params llm.GenerationParams
	// ToolContext, when non-empty, is appended to the knowledge context
	// handed to the prompt-generation model.
	ToolContext string
	// Recorder receives run history; nil disables recording.
	Recorder Recorder
}

// ResultRow is the outcome for one question under one framework in
// one loop. Rows for failed answer calls carry score 0 and the error.
type ResultRow struct {
	QuestionID      string  `json:"questionId,omitempty"`
	Question        string  `json:"question"`
	ReferenceAnswer string  `json:"referenceAnswer"`
	Answer          string  `json:"answer"`
	Score           int     `json:"score"`
	MaxScore        int     `json:"maxScore"`
	Rationale       string  `json:"rationale,omitempty"`
	Cost            float64 `json:"cost"`
	DurationMS      int64   `json:"durationMs"`
	Error           string  `json:"error,omitempty"`
}

// Summary aggregates a finished run.
type Summary struct {
	RunID      string    `json:"runId"`
	RunDir     string    `json:"runDir"`
	Status     RunStatus `json:"status"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Loops      int       `json:"loops"`
	TotalCost  float64   `json:"totalCost"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Recorder persists run history. Implementations must tolerate being
// called from the run goroutine.
type Recorder interface {
	RecordRun(id, runDir string, models ModelRoles, startedAt time.Time) error
	RecordResult(runID string, loop int, framework string, row ResultRow) error
	FinishRun(id string, status RunStatus, completed, total int, cost float64, finishedAt time.Time) error
}

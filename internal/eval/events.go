package eval

import "time"

// EventType discriminates the progress events emitted during a run.
type EventType string

const (
	// EventLog is a human-readable progress line.
	EventLog EventType = "log"
	// EventUpdate advances the completed/total task counter.
	EventUpdate EventType = "update"
	// EventStateUpdate reports the current loop, framework and stage.
	EventStateUpdate EventType = "state_update"
	// EventDone is the terminal event; its Status says how the run
	// ended. It is always the last event before the channel closes.
	EventDone EventType = "done"
	// EventSkip reports a stage failure the run survived; the affected
	// task is skipped and the run continues.
	EventSkip EventType = "skip"
	// EventError reports a fatal failure. The run stops and no further
	// events follow except the terminal done event.
	EventError EventType = "error"
)

// RunStatus describes how a run ended.
type RunStatus string

const (
	StatusRunning          RunStatus = "running"
	StatusCompleted        RunStatus = "completed"
	StatusCancelled        RunStatus = "cancelled"
	StatusThresholdReached RunStatus = "threshold_reached"
	StatusFailed           RunStatus = "failed"
)

// Stage names reported by state_update events.
const (
	StagePrompt  = "prompt"
	StageAnswer  = "answer"
	StageScoring = "scoring"
)

// Event is one progress notification from a run. Consumers receive
// events in emission order on the run's channel.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Completed int       `json:"completed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Loop      int       `json:"loop,omitempty"`
	Framework string    `json:"framework,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Question  string    `json:"question,omitempty"`
	Status    RunStatus `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

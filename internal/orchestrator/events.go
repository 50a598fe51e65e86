package orchestrator

import "time"

// EventType names a progress event.
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventPhaseChanged    EventType = "phase_changed"
	EventRoundStarted    EventType = "round_started"
	EventRecordGenerated EventType = "record_generated"
	EventRecordScored    EventType = "record_scored"
	EventBestUpdated     EventType = "best_updated"
	EventRoundCompleted  EventType = "round_completed"
	EventRetry           EventType = "retry"
	EventRunCompleted    EventType = "run_completed"
	EventRunFailed       EventType = "run_failed"
)

// Event is a structured progress notification. Fields that do not apply to
// an event type are left zero.
type Event struct {
	Type  EventType `json:"type"`
	RunID string    `json:"run_id"`
	Phase Phase     `json:"phase"`
	Time  time.Time `json:"time"`

	Round       int     `json:"round,omitempty"`
	TotalRounds int     `json:"total_rounds,omitempty"`
	Agent       string  `json:"agent,omitempty"`
	Score       float64 `json:"score"`
	BestAgent   string  `json:"best_agent,omitempty"`
	BestScore   float64 `json:"best_score"`
	Records     int     `json:"records,omitempty"`

	Op      string        `json:"op,omitempty"`
	Attempt int           `json:"attempt,omitempty"`
	Wait    time.Duration `json:"wait,omitempty"`

	Percentage int    `json:"percentage"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProgressCallback receives progress events. Calls are serialized.
type ProgressCallback func(Event)

package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the closed vocabulary of progress events observers see.
type EventType string

const (
	EventStatusUpdate          EventType = "status_update"
	EventPhaseStart            EventType = "phase_start"
	EventPhaseComplete         EventType = "phase_complete"
	EventHypothesisGenerated   EventType = "hypothesis_generated"
	EventEvidenceFound         EventType = "evidence_found"
	EventContradictionDetected EventType = "contradiction_detected"
	EventCompleted             EventType = "completed"
	EventError                 EventType = "error"
)

func ValidEventType(t string) bool {
	switch EventType(t) {
	case EventStatusUpdate, EventPhaseStart, EventPhaseComplete,
		EventHypothesisGenerated, EventEvidenceFound,
		EventContradictionDetected, EventCompleted, EventError:
		return true
	}
	return false
}

// Important reports whether the event must be delivered immediately
// and in order. Only status_update events may be debounced.
func (t EventType) Important() bool {
	return t != EventStatusUpdate
}

// Terminal reports whether the event ends the job's stream.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventError
}

// Event is one progress notification for a job.
type Event struct {
	Type      EventType      `json:"type"`
	JobID     uuid.UUID      `json:"job_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

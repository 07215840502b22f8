package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobKind string

const (
	JobResearch   JobKind = "research"
	JobStressTest JobKind = "stress_test"
)

func ValidJobKind(k string) bool {
	switch JobKind(k) {
	case JobResearch, JobStressTest:
		return true
	}
	return false
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func ValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Active reports whether the job still occupies the engagement's
// one-active-job slot.
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobRunning
}

// Terminal reports whether the job has finished for good.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo enforces the forward-only job lifecycle:
// pending -> running -> {completed | failed}. A running job that loses
// its lease goes back through running on retry, never through pending.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobRunning || next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

type Intensity string

const (
	IntensityLight      Intensity = "light"
	IntensityModerate   Intensity = "moderate"
	IntensityAggressive Intensity = "aggressive"
)

func ValidIntensity(i string) bool {
	switch Intensity(i) {
	case IntensityLight, IntensityModerate, IntensityAggressive:
		return true
	}
	return false
}

// SearchBreadth returns how many adversarial query variants the
// contradiction hunter runs per hypothesis at this intensity.
func (i Intensity) SearchBreadth() int {
	switch i {
	case IntensityLight:
		return 1
	case IntensityModerate:
		return 2
	case IntensityAggressive:
		return 4
	default:
		return 2
	}
}

// MinSeverity returns the lowest severity the hunter keeps at this
// intensity. Aggressive runs keep everything.
func (i Intensity) MinSeverity() Severity {
	switch i {
	case IntensityLight:
		return SeverityHigh
	case IntensityModerate:
		return SeverityMedium
	case IntensityAggressive:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// JobConfig carries the caller's knobs for one workflow run.
type JobConfig struct {
	Thesis         string        `json:"thesis,omitempty"`
	MaxResults     int           `json:"max_results,omitempty"`
	MinCredibility float32       `json:"min_credibility,omitempty"`
	Sources        []SourceClass `json:"sources,omitempty"`
	Intensity      Intensity     `json:"intensity,omitempty"`
	HypothesisIDs  []uuid.UUID   `json:"hypothesis_ids,omitempty"`
}

// ResearchJob is one durable workflow execution. Status moves forward
// only; Results is the opaque aggregate produced by the conductor and
// ConfidenceScore is the workflow confidence scaled to 0-100.
type ResearchJob struct {
	ID              uuid.UUID       `json:"id"`
	EngagementID    uuid.UUID       `json:"engagement_id"`
	Kind            JobKind         `json:"kind"`
	Status          JobStatus       `json:"status"`
	Config          JobConfig       `json:"config"`
	Progress        int             `json:"progress"`
	Results         json.RawMessage `json:"results,omitempty"`
	ConfidenceScore *float32        `json:"confidence_score,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	Attempts        int             `json:"attempts"`
	LeaseExpiresAt  *time.Time      `json:"-"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

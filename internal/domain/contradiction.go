package domain

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Rank orders severities for threshold comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

type ContradictionStatus string

const (
	ContradictionUnresolved ContradictionStatus = "unresolved"
	ContradictionExplained  ContradictionStatus = "explained"
	ContradictionDismissed  ContradictionStatus = "dismissed"
	ContradictionCritical   ContradictionStatus = "critical"
)

func ValidContradictionStatus(s string) bool {
	switch ContradictionStatus(s) {
	case ContradictionUnresolved, ContradictionExplained,
		ContradictionDismissed, ContradictionCritical:
		return true
	}
	return false
}

// Contradiction records a conflict between a hypothesis and evidence,
// raised by the contradiction hunter or filed manually by an analyst.
type Contradiction struct {
	ID           uuid.UUID           `json:"id"`
	EngagementID uuid.UUID           `json:"engagement_id"`
	HypothesisID *uuid.UUID          `json:"hypothesis_id,omitempty"`
	EvidenceID   *uuid.UUID          `json:"evidence_id,omitempty"`
	Description  string              `json:"description"`
	Severity     Severity            `json:"severity"`
	Status       ContradictionStatus `json:"status"`
	Resolution   string              `json:"resolution,omitempty"`
	ResolvedAt   *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type HypothesisType string

const (
	HypothesisThesis     HypothesisType = "thesis"
	HypothesisSubThesis  HypothesisType = "sub_thesis"
	HypothesisAssumption HypothesisType = "assumption"
)

func ValidHypothesisType(t string) bool {
	switch HypothesisType(t) {
	case HypothesisThesis, HypothesisSubThesis, HypothesisAssumption:
		return true
	}
	return false
}

type HypothesisStatus string

const (
	StatusUntested   HypothesisStatus = "untested"
	StatusSupported  HypothesisStatus = "supported"
	StatusChallenged HypothesisStatus = "challenged"
	StatusRefuted    HypothesisStatus = "refuted"
)

func ValidHypothesisStatus(s string) bool {
	switch HypothesisStatus(s) {
	case StatusUntested, StatusSupported, StatusChallenged, StatusRefuted:
		return true
	}
	return false
}

// Terminal reports whether evidence can no longer move the status.
// Refuted hypotheses are closed by an analyst, not by the engine.
func (s HypothesisStatus) Terminal() bool {
	return s == StatusRefuted
}

// Hypothesis is one node in the engagement's hypothesis DAG.
// Confidence and status are mutated only by the evidence gatherer's
// confidence-update step and by explicit analyst edits.
type Hypothesis struct {
	ID           uuid.UUID        `json:"id"`
	EngagementID uuid.UUID        `json:"engagement_id"`
	ParentID     *uuid.UUID       `json:"parent_id,omitempty"`
	Type         HypothesisType   `json:"type"`
	Content      string           `json:"content"`
	Confidence   float32          `json:"confidence"`
	Status       HypothesisStatus `json:"status"`
	Importance   float32          `json:"importance"`
	Testability  float32          `json:"testability"`
	Embedding    []float32        `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type EdgeRelationship string

const (
	EdgeRequires    EdgeRelationship = "requires"
	EdgeSupports    EdgeRelationship = "supports"
	EdgeContradicts EdgeRelationship = "contradicts"
	EdgeImplies     EdgeRelationship = "implies"
)

func ValidEdgeRelationship(r string) bool {
	switch EdgeRelationship(r) {
	case EdgeRequires, EdgeSupports, EdgeContradicts, EdgeImplies:
		return true
	}
	return false
}

// HypothesisEdge is a typed, weighted link between two hypothesis nodes.
// Both endpoints must exist in the same engagement.
type HypothesisEdge struct {
	ID           uuid.UUID        `json:"id"`
	EngagementID uuid.UUID        `json:"engagement_id"`
	SourceID     uuid.UUID        `json:"source_id"`
	TargetID     uuid.UUID        `json:"target_id"`
	Relationship EdgeRelationship `json:"relationship"`
	Strength     float32          `json:"strength"`
	Reasoning    string           `json:"reasoning,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

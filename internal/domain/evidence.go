package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceAuditedFinancial SourceType = "audited_financial"
	SourceRegulatoryFiling SourceType = "regulatory_filing"
	SourceFinancialData    SourceType = "financial_data"
	SourceAnalystReport    SourceType = "analyst_report"
	SourceNews             SourceType = "news"
	SourceInternalDocument SourceType = "internal_document"
	SourceWeb              SourceType = "web"
	SourceSocial           SourceType = "social"
	SourceRumor            SourceType = "rumor"
)

func ValidSourceType(t string) bool {
	switch SourceType(t) {
	case SourceAuditedFinancial, SourceRegulatoryFiling, SourceFinancialData,
		SourceAnalystReport, SourceNews, SourceInternalDocument,
		SourceWeb, SourceSocial, SourceRumor:
		return true
	}
	return false
}

// BaseCredibility returns the prior trust assigned to a source type
// before recency, reputation and keyword adjustments.
func (t SourceType) BaseCredibility() float32 {
	switch t {
	case SourceAuditedFinancial:
		return 0.95
	case SourceRegulatoryFiling:
		return 0.90
	case SourceFinancialData:
		return 0.85
	case SourceAnalystReport:
		return 0.75
	case SourceNews:
		return 0.70
	case SourceInternalDocument:
		return 0.65
	case SourceWeb:
		return 0.60
	case SourceSocial:
		return 0.55
	case SourceRumor:
		return 0.40
	default:
		return 0.50
	}
}

// CredibilityRange returns the floor and ceiling a scored credibility
// is clamped to for this source type.
func (t SourceType) CredibilityRange() (min, max float32) {
	switch t {
	case SourceAuditedFinancial:
		return 0.85, 0.99
	case SourceRegulatoryFiling:
		return 0.80, 0.97
	case SourceFinancialData:
		return 0.70, 0.95
	case SourceAnalystReport:
		return 0.55, 0.90
	case SourceNews:
		return 0.45, 0.88
	case SourceInternalDocument:
		return 0.40, 0.85
	case SourceWeb:
		return 0.30, 0.80
	case SourceSocial:
		return 0.25, 0.70
	case SourceRumor:
		return 0.10, 0.55
	default:
		return 0.20, 0.80
	}
}

type Sentiment string

const (
	SentimentSupporting    Sentiment = "supporting"
	SentimentNeutral       Sentiment = "neutral"
	SentimentContradicting Sentiment = "contradicting"
)

func ValidSentiment(s string) bool {
	switch Sentiment(s) {
	case SentimentSupporting, SentimentNeutral, SentimentContradicting:
		return true
	}
	return false
}

// SourceClass names a retrieval channel the gatherer can fan out to.
type SourceClass string

const (
	ClassWeb     SourceClass = "web"
	ClassCorpus  SourceClass = "corpus"
	ClassMarket  SourceClass = "market"
	ClassFinData SourceClass = "findata"
)

func ValidSourceClass(c string) bool {
	switch SourceClass(c) {
	case ClassWeb, ClassCorpus, ClassMarket, ClassFinData:
		return true
	}
	return false
}

// AllSourceClasses is the default fan-out set when a job config
// does not narrow the enabled channels.
func AllSourceClasses() []SourceClass {
	return []SourceClass{ClassWeb, ClassCorpus, ClassMarket, ClassFinData}
}

// EvidenceSource describes where an evidence item came from.
type EvidenceSource struct {
	Type             SourceType `json:"type"`
	URL              string     `json:"url,omitempty"`
	Title            string     `json:"title,omitempty"`
	CredibilityScore float32    `json:"credibility_score"`
	RetrievedAt      time.Time  `json:"retrieved_at"`
}

// EvidenceRelevance links an evidence item to hypotheses with
// per-hypothesis cosine relevance. The two slices are index-aligned.
type EvidenceRelevance struct {
	HypothesisIDs   []uuid.UUID `json:"hypothesis_ids"`
	RelevanceScores []float32   `json:"relevance_scores"`
}

func (r EvidenceRelevance) Validate() error {
	if len(r.HypothesisIDs) != len(r.RelevanceScores) {
		return fmt.Errorf("relevance arrays differ in length: %d ids, %d scores",
			len(r.HypothesisIDs), len(r.RelevanceScores))
	}
	return nil
}

// Evidence is a scored item of diligence evidence. Content is immutable
// after creation; sentiment and credibility may be corrected by a
// reviewer. ContentHash is the sha256 of Content and is the identity
// used for idempotent writes: a duplicate submission resolves to the
// first stored item via DuplicateOf instead of creating a second row.
type Evidence struct {
	ID           uuid.UUID         `json:"id"`
	EngagementID uuid.UUID         `json:"engagement_id"`
	Content      string            `json:"content"`
	ContentHash  string            `json:"content_hash"`
	Source       EvidenceSource    `json:"source"`
	Sentiment    Sentiment         `json:"sentiment"`
	Relevance    EvidenceRelevance `json:"relevance"`
	Tags         []string          `json:"tags,omitempty"`
	Embedding    []float32         `json:"-"`
	DuplicateOf  *uuid.UUID        `json:"duplicate_of,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EvidenceWithScore is an evidence row plus a similarity score from
// a vector search.
type EvidenceWithScore struct {
	Evidence
	Score float32 `json:"score"`
}

// HashContent computes the content identity used for idempotent
// evidence writes.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

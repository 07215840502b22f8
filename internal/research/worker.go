package research

import (
	"context"

	"github.com/google/uuid"

	"github.com/convictionhq/conviction/internal/domain"
)

// Kind names a worker in the conductor's registry. The set is closed:
// phases dispatch on typed kinds, not free-form strings.
type Kind string

const (
	KindHypothesisBuilder   Kind = "hypothesis_builder"
	KindEvidenceGatherer    Kind = "evidence_gatherer"
	KindContradictionHunter Kind = "contradiction_hunter"
	KindComparablesFinder   Kind = "comparables_finder"
	KindSynthesizer         Kind = "synthesizer"
)

func ValidKind(k string) bool {
	switch Kind(k) {
	case KindHypothesisBuilder, KindEvidenceGatherer, KindContradictionHunter,
		KindComparablesFinder, KindSynthesizer:
		return true
	}
	return false
}

// Context carries the engagement-scoped dependencies every worker
// shares: the stores, the engagement under diligence and the event
// emitter. Cancellation travels on the context.Context passed to
// Execute, not here.
type Context struct {
	EngagementID   uuid.UUID
	Engagement     *domain.Engagement
	Hypotheses     domain.HypothesisStore
	Edges          domain.EdgeStore
	Content        domain.ContentStore
	Evidence       domain.EvidenceStore
	Contradictions domain.ContradictionStore
	Emit           func(domain.Event)
}

func (c *Context) emit(evt domain.Event) {
	if c.Emit != nil {
		c.Emit(evt)
	}
}

// Input narrows one worker invocation. Queries, when set, bypasses
// query-variant generation; the contradiction hunter uses this to push
// adversarial searches through the gatherer.
type Input struct {
	Thesis         string
	Query          string
	Queries        []string
	HypothesisIDs  []uuid.UUID
	Sources        []domain.SourceClass
	MaxResults     int
	MinCredibility float32
	Intensity      domain.Intensity
}

// Result aggregates what one worker produced. Workers fill the fields
// relevant to their kind and leave the rest zero.
type Result struct {
	Hypotheses     []domain.Hypothesis
	Evidence       []domain.Evidence
	Contradictions []domain.Contradiction
	SearchQueries  []string
	SourceSummary  map[string]int
	Comparables    []ComparableSummary
	Verdict        *domain.SynthesisResult
}

// ComparableSummary is one comparable-company note feeding synthesis.
type ComparableSummary struct {
	Name    string  `json:"name"`
	Symbol  string  `json:"symbol,omitempty"`
	Note    string  `json:"note"`
	PERatio float64 `json:"pe_ratio,omitempty"`
	Growth  float64 `json:"growth,omitempty"`
}

type Worker interface {
	Kind() Kind
	Execute(ctx context.Context, in Input, rctx *Context) (*Result, error)
}

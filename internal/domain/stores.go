package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EngagementStore interface {
	Create(ctx context.Context, e *Engagement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Engagement, error)
	List(ctx context.Context, limit int) ([]Engagement, error)
}

type HypothesisStore interface {
	Create(ctx context.Context, h *Hypothesis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hypothesis, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]Hypothesis, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Hypothesis, error)
	Update(ctx context.Context, h *Hypothesis) error
	// UpdateAssessment writes only confidence and status, guarded by the
	// store so concurrent readers never observe a partial assessment.
	UpdateAssessment(ctx context.Context, id uuid.UUID, confidence float32, status HypothesisStatus) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	// GetEmbedding returns nil with no error when the hypothesis has no
	// stored embedding yet.
	GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error)
}

type EdgeStore interface {
	Create(ctx context.Context, e *HypothesisEdge) error
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]HypothesisEdge, error)
}

// ContentStore is the primary evidence store: vector-indexed and the
// source of truth for workflow correctness. Writes are idempotent on
// (engagement_id, content_hash).
type ContentStore interface {
	// UpsertEvidence stores the item unless an item with the same content
	// hash already exists for the engagement. It returns the stored row
	// and created=false when the write resolved to an existing item.
	UpsertEvidence(ctx context.Context, e *Evidence) (stored *Evidence, created bool, err error)
	GetEvidence(ctx context.Context, id uuid.UUID) (*Evidence, error)
	SearchSimilar(ctx context.Context, engagementID uuid.UUID, embedding []float32, limit int) ([]EvidenceWithScore, error)
	CountByEngagement(ctx context.Context, engagementID uuid.UUID) (int, error)
}

// EvidenceStore is the secondary relational copy serving API reads.
// Writes to it are best-effort; the content store is authoritative.
type EvidenceStore interface {
	Create(ctx context.Context, e *Evidence) error
	GetByID(ctx context.Context, id uuid.UUID) (*Evidence, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]Evidence, error)
	ListByHypothesis(ctx context.Context, hypothesisID uuid.UUID) ([]Evidence, error)
	// UpdateReview applies a human reviewer's sentiment/credibility
	// correction. Content itself is immutable.
	UpdateReview(ctx context.Context, id uuid.UUID, sentiment Sentiment, credibility float32) error
}

type ContradictionStore interface {
	Create(ctx context.Context, c *Contradiction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contradiction, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]Contradiction, error)
	ListByHypothesis(ctx context.Context, hypothesisID uuid.UUID) ([]Contradiction, error)
	CountUnresolved(ctx context.Context, engagementID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ContradictionStatus, resolution string) error
}

type JobStore interface {
	// Create inserts the job unless an active job already exists for the
	// engagement, in which case it returns ErrConflict and the existing job.
	Create(ctx context.Context, j *ResearchJob) (*ResearchJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ResearchJob, error)
	GetActiveByEngagement(ctx context.Context, engagementID uuid.UUID) (*ResearchJob, error)
	ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]ResearchJob, error)

	// Claiming and leasing. ClaimNext takes the oldest claimable job:
	// pending, or running with a lapsed lease and attempts left. A retried
	// job stays in running; status never re-enters pending.
	ClaimNext(ctx context.Context, leaseTTL time.Duration, maxAttempts int) (*ResearchJob, error)
	RenewLease(ctx context.Context, id uuid.UUID, leaseTTL time.Duration) error
	// FailExpired marks running jobs whose lease lapsed after exhausting
	// maxAttempts as failed, preserving the last error message.
	FailExpired(ctx context.Context, maxAttempts int) (int64, error)

	// Lifecycle
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	MarkCompleted(ctx context.Context, id uuid.UUID, results []byte, confidenceScore float32) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// SearchOpts narrows a web search call.
type SearchOpts struct {
	MaxResults int
	Topic      string
	Days       int
}

// SearchResult is one hit from a web search provider.
type SearchResult struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

type SearchClient interface {
	Search(ctx context.Context, query string, opts SearchOpts) ([]SearchResult, error)
}

// Quote is a point-in-time market quote for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	AsOf          time.Time `json:"as_of"`
}

// Fundamentals is a condensed company financial profile.
type Fundamentals struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Sector        string  `json:"sector"`
	MarketCap     float64 `json:"market_cap"`
	PERatio       float64 `json:"pe_ratio"`
	RevenueGrowth float64 `json:"revenue_growth"`
	ProfitMargin  float64 `json:"profit_margin"`
	Description   string  `json:"description"`
}

// NewsItem is one headline from a financial news feed. SentimentScore
// is the provider's [-1,1] reading when it supplies one.
type NewsItem struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Summary        string    `json:"summary"`
	Source         string    `json:"source"`
	SentimentScore float64   `json:"sentiment_score"`
	PublishedAt    time.Time `json:"published_at"`
}

type FinDataClient interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
	Fundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
	News(ctx context.Context, topic string, limit int) ([]NewsItem, error)
}

// DecomposedHypothesis is one node proposed by thesis decomposition.
type DecomposedHypothesis struct {
	Content     string   `json:"content"`
	Importance  float32  `json:"importance"`
	Testability float32  `json:"testability"`
	Assumptions []string `json:"assumptions"`
}

// ThesisDecomposition is the LLM's breakdown of a thesis statement.
type ThesisDecomposition struct {
	RootStatement string                 `json:"root_statement"`
	SubTheses     []DecomposedHypothesis `json:"sub_theses"`
}

// ConflictAnalysis is the LLM's judgment of whether an evidence item
// conflicts with a hypothesis.
type ConflictAnalysis struct {
	Conflicts   bool     `json:"conflicts"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// SynthesisResult is the LLM's narrative verdict over a finished run.
type SynthesisResult struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
	Risks       []string `json:"risks"`
	Confidence  float32  `json:"confidence"`
}

type LLMClient interface {
	DecomposeThesis(ctx context.Context, company, sector, thesis string) (*ThesisDecomposition, error)
	ClassifySentiment(ctx context.Context, hypothesis, evidence string) (Sentiment, error)
	AnalyzeConflict(ctx context.Context, hypothesis, evidence string) (*ConflictAnalysis, error)
	GenerateQueries(ctx context.Context, company, sector, topic string, n int) ([]string, error)
	SummarizeComparable(ctx context.Context, company, comparable, detail string) (string, error)
	Synthesize(ctx context.Context, thesis string, findings []string, contradictions []string) (*SynthesisResult, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is one parsed slice of an uploaded document.
type Chunk struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

type DocumentParser interface {
	Parse(data []byte, mimeType string) ([]Chunk, error)
}

package llm

import (
	"context"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns. The Func
// hooks win over the fields when set, for methods whose answer has to
// vary per evidence item within one run. NewMockClient installs
// keywordSentiment as the sentiment hook; zero the field to get the
// fixed response instead.
type MockClient struct {
	DecomposeThesisResponse *domain.ThesisDecomposition
	DecomposeThesisError    error

	ClassifySentimentResponse domain.Sentiment
	ClassifySentimentError    error
	ClassifySentimentFunc     func(hypothesis, evidence string) domain.Sentiment

	AnalyzeConflictResponse *domain.ConflictAnalysis
	AnalyzeConflictError    error
	AnalyzeConflictFunc     func(hypothesis, evidence string) *domain.ConflictAnalysis

	GenerateQueriesResponse []string
	GenerateQueriesError    error

	SummarizeComparableResponse string
	SummarizeComparableError    error

	SynthesizeResponse *domain.SynthesisResult
	SynthesizeError    error

	// Call tracking for assertions
	DecomposeThesisCalls     []string
	ClassifySentimentCalls   []struct{ Hypothesis, Evidence string }
	AnalyzeConflictCalls     []struct{ Hypothesis, Evidence string }
	GenerateQueriesCalls     []string
	SummarizeComparableCalls []string
	SynthesizeCalls          []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		DecomposeThesisResponse: &domain.ThesisDecomposition{
			RootStatement: "The company compounds value faster than the market expects",
			SubTheses: []domain.DecomposedHypothesis{
				{
					Content:     "Revenue growth stays above 20% for the next three years",
					Importance:  0.9,
					Testability: 0.8,
					Assumptions: []string{"Core market keeps expanding", "No major share loss to competitors"},
				},
				{
					Content:     "Gross margins expand as the product mix shifts to software",
					Importance:  0.7,
					Testability: 0.7,
					Assumptions: []string{"Software attach rate keeps rising"},
				},
				{
					Content:     "Management allocates capital without dilutive acquisitions",
					Importance:  0.5,
					Testability: 0.5,
					Assumptions: []string{"Current leadership stays in place"},
				},
			},
		},
		ClassifySentimentResponse: domain.SentimentNeutral,
		ClassifySentimentFunc:     keywordSentiment,
		AnalyzeConflictResponse:   &domain.ConflictAnalysis{Conflicts: false},
		GenerateQueriesResponse: []string{
			"mock company revenue growth",
			"mock company competition",
		},
		SummarizeComparableResponse: "The comparable trades at a similar multiple with slower growth, suggesting modest upside for the target.",
		SynthesizeResponse: &domain.SynthesisResult{
			Summary:     "Mock synthesis: the evidence gathered so far is consistent with the thesis.",
			KeyFindings: []string{"Mock finding"},
			Risks:       []string{"Mock risk"},
			Confidence:  0.5,
		},
	}
}

func (c *MockClient) DecomposeThesis(ctx context.Context, company, sector, thesis string) (*domain.ThesisDecomposition, error) {
	c.DecomposeThesisCalls = append(c.DecomposeThesisCalls, thesis)
	if c.DecomposeThesisError != nil {
		return nil, c.DecomposeThesisError
	}
	return c.DecomposeThesisResponse, nil
}

func (c *MockClient) ClassifySentiment(ctx context.Context, hypothesis, evidence string) (domain.Sentiment, error) {
	c.ClassifySentimentCalls = append(c.ClassifySentimentCalls, struct{ Hypothesis, Evidence string }{hypothesis, evidence})
	if c.ClassifySentimentError != nil {
		return domain.SentimentNeutral, c.ClassifySentimentError
	}
	if c.ClassifySentimentFunc != nil {
		return c.ClassifySentimentFunc(hypothesis, evidence), nil
	}
	return c.ClassifySentimentResponse, nil
}

func (c *MockClient) AnalyzeConflict(ctx context.Context, hypothesis, evidence string) (*domain.ConflictAnalysis, error) {
	c.AnalyzeConflictCalls = append(c.AnalyzeConflictCalls, struct{ Hypothesis, Evidence string }{hypothesis, evidence})
	if c.AnalyzeConflictError != nil {
		return nil, c.AnalyzeConflictError
	}
	if c.AnalyzeConflictFunc != nil {
		return c.AnalyzeConflictFunc(hypothesis, evidence), nil
	}
	return c.AnalyzeConflictResponse, nil
}

func (c *MockClient) GenerateQueries(ctx context.Context, company, sector, topic string, n int) ([]string, error) {
	c.GenerateQueriesCalls = append(c.GenerateQueriesCalls, topic)
	if c.GenerateQueriesError != nil {
		return nil, c.GenerateQueriesError
	}
	queries := c.GenerateQueriesResponse
	if len(queries) > n {
		queries = queries[:n]
	}
	return queries, nil
}

func (c *MockClient) SummarizeComparable(ctx context.Context, company, comparable, detail string) (string, error) {
	c.SummarizeComparableCalls = append(c.SummarizeComparableCalls, comparable)
	if c.SummarizeComparableError != nil {
		return "", c.SummarizeComparableError
	}
	return c.SummarizeComparableResponse, nil
}

func (c *MockClient) Synthesize(ctx context.Context, thesis string, findings []string, contradictions []string) (*domain.SynthesisResult, error) {
	c.SynthesizeCalls = append(c.SynthesizeCalls, thesis)
	if c.SynthesizeError != nil {
		return nil, c.SynthesizeError
	}
	return c.SynthesizeResponse, nil
}

// Reset clears all recorded calls and resets responses to defaults.
func (c *MockClient) Reset() {
	*c = *NewMockClient()
}

// keywordSentiment is the default ClassifySentimentFunc: a keyword skim
// that lets mock-backed end-to-end runs produce mixed assessments.
// Negative signals win, as they would for a cautious analyst.
func keywordSentiment(_, evidence string) domain.Sentiment {
	lower := strings.ToLower(evidence)
	for _, kw := range []string{"decline", "miss", "lawsuit", "churn", "downgrade", "headwind", "shortfall", "recall"} {
		if strings.Contains(lower, kw) {
			return domain.SentimentContradicting
		}
	}
	for _, kw := range []string{"growth", "beat", "record", "expansion", "upgrade", "tailwind", "accelerat"} {
		if strings.Contains(lower, kw) {
			return domain.SentimentSupporting
		}
	}
	return domain.SentimentNeutral
}

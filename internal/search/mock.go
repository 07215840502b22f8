package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
)

// MockClient is a configurable search client for testing. Set
// SearchResponse or SearchFunc to control results; with neither set it
// fabricates a plausible result page from the query text, so a
// mock-backed server still produces full research runs.
type MockClient struct {
	SearchResponse []domain.SearchResult
	SearchError    error
	SearchFunc     func(query string, opts domain.SearchOpts) []domain.SearchResult

	// Call tracking for assertions
	SearchCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Search(ctx context.Context, query string, opts domain.SearchOpts) ([]domain.SearchResult, error) {
	c.SearchCalls = append(c.SearchCalls, query)
	if c.SearchError != nil {
		return nil, c.SearchError
	}
	if c.SearchFunc != nil {
		return c.SearchFunc(query, opts), nil
	}
	if c.SearchResponse != nil {
		return c.SearchResponse, nil
	}
	return cannedResults(query, opts), nil
}

// cannedResults derives results from the query alone, so repeated
// searches for the same query dedup naturally downstream. The three
// sources span the credibility range and carry mixed signals.
func cannedResults(query string, opts domain.SearchOpts) []domain.SearchResult {
	slug := strings.Join(strings.Fields(strings.ToLower(query)), "-")
	lastWeek := time.Now().AddDate(0, 0, -7)
	lastQuarter := time.Now().AddDate(0, -3, 0)

	results := []domain.SearchResult{
		{
			URL:           "https://www.reuters.com/markets/" + slug,
			Title:         "Coverage: " + query,
			Content:       fmt.Sprintf("Reporting on %s points to record growth and continued margin expansion this quarter.", query),
			PublishedDate: &lastWeek,
		},
		{
			URL:           "https://www.sec.gov/Archives/edgar/" + slug + ".htm",
			Title:         "Filing discussion: " + query,
			Content:       fmt.Sprintf("Management discussion touching %s flags competitive headwinds and elevated customer churn risk.", query),
			PublishedDate: &lastQuarter,
		},
		{
			URL:     "https://www.reddit.com/r/investing/comments/" + slug,
			Title:   "Thread: " + query,
			Content: fmt.Sprintf("Retail sentiment on %s is split, with no consensus on valuation.", query),
		},
	}

	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results
}

package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatherLinksEvidenceAndUpdatesConfidence(t *testing.T) {
	env := newResearchEnv()
	h := env.addHypothesis(domain.HypothesisSubThesis,
		"Revenue growth stays above 25% for the next three years", 0.5, domain.StatusUntested)

	res, err := env.gatherer.Execute(context.Background(), Input{
		Query:         h.Content,
		HypothesisIDs: []uuid.UUID{h.ID},
		Sources:       []domain.SourceClass{domain.ClassWeb},
		MaxResults:    5,
	}, env.context())
	require.NoError(t, err)
	require.NotEmpty(t, res.Evidence)

	for _, ev := range res.Evidence {
		require.NoError(t, ev.Relevance.Validate())
		assert.Contains(t, ev.Relevance.HypothesisIDs, h.ID)
		assert.Equal(t, env.engagement.ID, ev.EngagementID)
		assert.Equal(t, domain.HashContent(ev.Content), ev.ContentHash)
	}

	// The mixed canned results carry a supporting and a contradicting
	// item, so the batch must have moved the hypothesis off its prior.
	got, err := env.hypotheses.GetByID(context.Background(), h.ID)
	require.NoError(t, err)
	assert.NotEqual(t, float32(0.5), got.Confidence)
	assert.NotEqual(t, domain.StatusUntested, got.Status)

	assert.Len(t, env.eventsOf(domain.EventEvidenceFound), len(res.Evidence))
	require.Len(t, env.eventsOf(domain.EventStatusUpdate), 1)
	update := env.eventsOf(domain.EventStatusUpdate)[0]
	assert.Equal(t, "hypothesis_updated", update.Data["kind"])
	assert.Equal(t, h.ID.String(), update.Data["hypothesis_id"])
}

func TestGatherDeduplicatesByIdentity(t *testing.T) {
	env := newResearchEnv()
	env.search.SearchFunc = func(query string, opts domain.SearchOpts) []domain.SearchResult {
		r := domain.SearchResult{
			URL:     "https://www.reuters.com/markets/northstar",
			Title:   "Northstar coverage",
			Content: "Northstar Robotics reported record growth in its automated inspection segment this quarter.",
		}
		return []domain.SearchResult{r, r}
	}

	res, err := env.gatherer.Execute(context.Background(), Input{
		Queries: []string{"northstar robotics revenue"},
		Sources: []domain.SourceClass{domain.ClassWeb},
	}, env.context())
	require.NoError(t, err)
	assert.Len(t, res.Evidence, 1)
	assert.Equal(t, 1, res.SourceSummary["duplicates"])
	assert.Equal(t, 1, env.content.upserts)
}

func TestGatherContentHashConflictFlagsDuplicate(t *testing.T) {
	env := newResearchEnv()
	content := "Northstar Robotics reported record growth in its automated inspection segment this quarter."
	env.search.SearchFunc = func(query string, opts domain.SearchOpts) []domain.SearchResult {
		return []domain.SearchResult{
			{URL: "https://www.reuters.com/markets/northstar", Title: "Coverage", Content: content},
			{URL: "https://www.cnbc.com/markets/northstar", Title: "Syndicated coverage", Content: content},
		}
	}

	res, err := env.gatherer.Execute(context.Background(), Input{
		Queries: []string{"northstar robotics revenue"},
		Sources: []domain.SourceClass{domain.ClassWeb},
	}, env.context())
	require.NoError(t, err)
	require.Len(t, res.Evidence, 2)

	// Same body behind a second URL resolves to the stored row instead
	// of a second record, and only the first counts toward the batch.
	assert.Nil(t, res.Evidence[0].DuplicateOf)
	require.NotNil(t, res.Evidence[1].DuplicateOf)
	assert.Equal(t, res.Evidence[0].ID, *res.Evidence[1].DuplicateOf)
	assert.Equal(t, 1, res.SourceSummary["duplicates"])
	assert.Len(t, env.eventsOf(domain.EventEvidenceFound), 1)

	count, err := env.content.CountByEngagement(context.Background(), env.engagement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGatherDropsLowCredibility(t *testing.T) {
	env := newResearchEnv()

	res, err := env.gatherer.Execute(context.Background(), Input{
		Queries:        []string{"northstar robotics revenue"},
		Sources:        []domain.SourceClass{domain.ClassWeb},
		MinCredibility: 0.995,
	}, env.context())
	require.NoError(t, err)
	assert.Empty(t, res.Evidence)
	assert.Positive(t, res.SourceSummary["skipped_low_credibility"])
	assert.Zero(t, env.content.upserts)
}

func TestGatherSurvivesFailingSourceClass(t *testing.T) {
	env := newResearchEnv()
	env.search.SearchError = errors.New("search provider down")

	res, err := env.gatherer.Execute(context.Background(), Input{
		Queries: []string{"northstar robotics revenue"},
		Sources: []domain.SourceClass{domain.ClassWeb, domain.ClassFinData},
	}, env.context())
	require.NoError(t, err)

	// Web dropped out; the fundamentals channel still delivered.
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, domain.SourceFinancialData, res.Evidence[0].Source.Type)
	assert.Equal(t, 1, res.SourceSummary[string(domain.ClassFinData)])
	assert.Zero(t, res.SourceSummary[string(domain.ClassWeb)])
}

func TestGatherReusesCorpusHitsWithoutRewriting(t *testing.T) {
	env := newResearchEnv()
	stored := domain.Evidence{
		ID:           uuid.New(),
		EngagementID: env.engagement.ID,
		Content:      "Backlog from automotive inspection customers doubled year over year.",
		ContentHash:  domain.HashContent("Backlog from automotive inspection customers doubled year over year."),
		Source: domain.EvidenceSource{
			Type:             domain.SourceInternalDocument,
			Title:            "board-update.md (part 1)",
			CredibilityScore: 0.7,
		},
		Sentiment: domain.SentimentSupporting,
	}
	env.content.similar = []domain.EvidenceWithScore{{Evidence: stored, Score: 0.9}}

	res, err := env.gatherer.Execute(context.Background(), Input{
		Query:   "automotive inspection backlog",
		Sources: []domain.SourceClass{domain.ClassCorpus},
	}, env.context())
	require.NoError(t, err)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, stored.ID, res.Evidence[0].ID)
	assert.Zero(t, env.content.upserts, "corpus hits are never re-persisted")
	assert.Equal(t, 1, res.SourceSummary[string(domain.ClassCorpus)])
}

func TestGatherShortContentStaysNeutralWithoutModelCall(t *testing.T) {
	env := newResearchEnv()
	env.search.SearchFunc = func(query string, opts domain.SearchOpts) []domain.SearchResult {
		return []domain.SearchResult{{
			URL:     "https://example.com/note",
			Title:   "Thin note",
			Content: "Too thin to judge.",
		}}
	}

	res, err := env.gatherer.Execute(context.Background(), Input{
		Queries: []string{"northstar robotics"},
		Sources: []domain.SourceClass{domain.ClassWeb},
	}, env.context())
	require.NoError(t, err)
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, domain.SentimentNeutral, res.Evidence[0].Sentiment)
	assert.Empty(t, env.llm.ClassifySentimentCalls)
}

func TestGatherPreScoredNewsSkipsClassifier(t *testing.T) {
	env := newResearchEnv()

	res, err := env.gatherer.Execute(context.Background(), Input{
		Query:   "northstar robotics renewals",
		Sources: []domain.SourceClass{domain.ClassMarket},
	}, env.context())
	require.NoError(t, err)
	require.NotEmpty(t, res.Evidence)

	// The canned feed carries one positive and one negative headline
	// beyond the cutoff; both readings come from the provider score.
	sentiments := make(map[domain.Sentiment]int)
	for _, ev := range res.Evidence {
		if ev.Source.Type == domain.SourceNews {
			sentiments[ev.Sentiment]++
		}
	}
	assert.Equal(t, 1, sentiments[domain.SentimentSupporting])
	assert.Equal(t, 1, sentiments[domain.SentimentContradicting])
	for _, call := range env.llm.ClassifySentimentCalls {
		assert.False(t, strings.Contains(call.Evidence, "renewals slow"),
			"pre-scored headlines must not reach the classifier")
	}
}

func TestGatherRequiresATopic(t *testing.T) {
	env := newResearchEnv()

	_, err := env.gatherer.Execute(context.Background(), Input{}, env.context())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
}

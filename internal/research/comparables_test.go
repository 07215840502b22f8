package research

import (
	"context"
	"errors"
	"testing"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestComparablesEnrichesFromFundamentals(t *testing.T) {
	env := newResearchEnv()
	env.search.SearchFunc = func(query string, opts domain.SearchOpts) []domain.SearchResult {
		return []domain.SearchResult{
			{
				Title:   "Vexa Industrial | Comparables screen",
				Content: "Vexa Industrial (NASDAQ: VEXA) runs a similar inspection automation platform.",
			},
			{
				Title:   "Vexa Industrial - duplicate listing",
				Content: "Same company, different directory.",
			},
		}
	}

	c := NewComparables(env.search, env.findata, env.llm, zap.NewNop())
	res, err := c.Execute(context.Background(), Input{}, env.context())
	require.NoError(t, err)

	require.Len(t, res.Comparables, 1, "title dedupe collapses the duplicate listing")
	comp := res.Comparables[0]
	assert.Equal(t, "VEXA", comp.Symbol)
	assert.Equal(t, "VEXA Corp", comp.Name, "fundamentals name wins over the search title")
	assert.InDelta(t, 24.3, comp.PERatio, 0.001)
	assert.InDelta(t, 0.22, comp.Growth, 0.001)
	assert.Equal(t, env.llm.SummarizeComparableResponse, comp.Note)
	require.Len(t, res.SearchQueries, 1)
	assert.Contains(t, res.SearchQueries[0], env.engagement.Sector)
}

func TestComparablesSearchFailureDegrades(t *testing.T) {
	env := newResearchEnv()
	env.search.SearchError = errors.New("search down")

	c := NewComparables(env.search, env.findata, env.llm, zap.NewNop())
	res, err := c.Execute(context.Background(), Input{}, env.context())
	require.NoError(t, err, "an advisory phase never fails the run")
	assert.Empty(t, res.Comparables)
	assert.NotEmpty(t, res.SearchQueries)
}

func TestComparablesNoteFallsBackToSnippet(t *testing.T) {
	env := newResearchEnv()
	env.llm.SummarizeComparableError = errors.New("model unavailable")
	env.search.SearchFunc = func(query string, opts domain.SearchOpts) []domain.SearchResult {
		return []domain.SearchResult{{
			Title:   "Orbit Metrology",
			Content: "Orbit Metrology sells optical inspection rigs to the same automaker base.",
		}}
	}

	c := NewComparables(env.search, env.findata, env.llm, zap.NewNop())
	res, err := c.Execute(context.Background(), Input{}, env.context())
	require.NoError(t, err)
	require.Len(t, res.Comparables, 1)
	assert.Equal(t, "Orbit Metrology sells optical inspection rigs to the same automaker base.",
		res.Comparables[0].Note)
}

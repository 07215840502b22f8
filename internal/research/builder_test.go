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

func newTestBuilder(env *researchEnv) *Builder {
	return NewBuilder(env.llm, env.embedder, zap.NewNop())
}

func countByType(hs []domain.Hypothesis) map[domain.HypothesisType]int {
	counts := make(map[domain.HypothesisType]int)
	for _, h := range hs {
		counts[h.Type]++
	}
	return counts
}

func TestBuildCreatesTreeFromDecomposition(t *testing.T) {
	env := newResearchEnv()
	b := newTestBuilder(env)

	res, err := b.Execute(context.Background(), Input{Thesis: env.engagement.ThesisSummary}, env.context())
	require.NoError(t, err)

	// Mock decomposition: one root, three pillars, four assumptions.
	counts := countByType(res.Hypotheses)
	assert.Equal(t, 1, counts[domain.HypothesisThesis])
	assert.Equal(t, 3, counts[domain.HypothesisSubThesis])
	assert.Equal(t, 4, counts[domain.HypothesisAssumption])

	for _, h := range res.Hypotheses {
		assert.Equal(t, float32(0.5), h.Confidence, "every node starts at the prior")
		assert.Equal(t, domain.StatusUntested, h.Status)
		if h.Type != domain.HypothesisThesis {
			require.NotNil(t, h.ParentID)
		}
	}

	edges, err := env.edges.ListByEngagement(context.Background(), env.engagement.ID)
	require.NoError(t, err)
	var requires, supports int
	for _, e := range edges {
		switch e.Relationship {
		case domain.EdgeRequires:
			requires++
		case domain.EdgeSupports:
			supports++
		}
	}
	assert.Equal(t, 3, requires, "one requires edge per pillar")
	assert.Equal(t, 4, supports, "one supports edge per assumption")

	assert.Len(t, env.eventsOf(domain.EventHypothesisGenerated), len(res.Hypotheses))
}

func TestBuildIsIdempotentPerEngagement(t *testing.T) {
	env := newResearchEnv()
	b := newTestBuilder(env)

	first, err := b.Execute(context.Background(), Input{Thesis: env.engagement.ThesisSummary}, env.context())
	require.NoError(t, err)

	second, err := b.Execute(context.Background(), Input{Thesis: env.engagement.ThesisSummary}, env.context())
	require.NoError(t, err)
	assert.Len(t, second.Hypotheses, len(first.Hypotheses), "re-run returns the existing tree")

	stored, err := env.hypotheses.ListByEngagement(context.Background(), env.engagement.ID)
	require.NoError(t, err)
	assert.Len(t, stored, len(first.Hypotheses), "no second root planted")
	assert.Len(t, env.llm.DecomposeThesisCalls, 1)
}

func TestBuildFallsBackWhenModelFails(t *testing.T) {
	env := newResearchEnv()
	env.llm.DecomposeThesisError = errors.New("model unavailable")
	b := newTestBuilder(env)

	res, err := b.Execute(context.Background(), Input{Thesis: env.engagement.ThesisSummary}, env.context())
	require.NoError(t, err)

	counts := countByType(res.Hypotheses)
	assert.Equal(t, 1, counts[domain.HypothesisThesis])
	assert.Equal(t, 3, counts[domain.HypothesisSubThesis])
	assert.Equal(t, 2, counts[domain.HypothesisAssumption])

	root := res.Hypotheses[0]
	assert.Equal(t, domain.HypothesisThesis, root.Type)
	assert.Equal(t, env.engagement.ThesisSummary, root.Content,
		"fallback keeps the stated thesis as the root")
	for _, h := range res.Hypotheses[1:] {
		if h.Type == domain.HypothesisSubThesis {
			assert.Contains(t, h.Content, env.engagement.TargetCompanyName)
		}
	}
}

func TestBuildFallsBackToEngagementThesis(t *testing.T) {
	env := newResearchEnv()
	b := newTestBuilder(env)

	res, err := b.Execute(context.Background(), Input{}, env.context())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Hypotheses)
	require.Len(t, env.llm.DecomposeThesisCalls, 1)
	assert.Equal(t, env.engagement.ThesisSummary, env.llm.DecomposeThesisCalls[0])
}

func TestBuildRequiresAThesis(t *testing.T) {
	env := newResearchEnv()
	env.engagement.ThesisSummary = ""
	b := newTestBuilder(env)

	_, err := b.Execute(context.Background(), Input{}, env.context())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "thesis", verr.Field)
}

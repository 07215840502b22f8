package research

import (
	"context"
	"strings"
	"testing"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHunter(env *researchEnv) *Hunter {
	return NewHunter(env.gatherer, env.llm, zap.NewNop())
}

// conflictOn makes the mock analyst flag any evidence containing the
// marker as a conflict at the given severity.
func conflictOn(marker string, severity domain.Severity) func(hypothesis, evidence string) *domain.ConflictAnalysis {
	return func(_, evidence string) *domain.ConflictAnalysis {
		if strings.Contains(strings.ToLower(evidence), marker) {
			return &domain.ConflictAnalysis{
				Conflicts:   true,
				Severity:    severity,
				Description: "renewal rates undercut the growth claim",
			}
		}
		return &domain.ConflictAnalysis{Conflicts: false}
	}
}

func TestHunterFilesContradictions(t *testing.T) {
	env := newResearchEnv()
	h := env.addHypothesis(domain.HypothesisSubThesis,
		"Revenue growth stays above 25% for the next three years", 0.5, domain.StatusUntested)
	env.llm.AnalyzeConflictFunc = conflictOn("churn", domain.SeverityHigh)

	res, err := newTestHunter(env).Execute(context.Background(), Input{
		HypothesisIDs: []uuid.UUID{h.ID},
		Intensity:     domain.IntensityLight,
		MaxResults:    5,
	}, env.context())
	require.NoError(t, err)
	require.Len(t, res.Contradictions, 1)

	con := res.Contradictions[0]
	assert.Equal(t, domain.SeverityHigh, con.Severity)
	assert.Equal(t, domain.ContradictionUnresolved, con.Status)
	require.NotNil(t, con.HypothesisID)
	assert.Equal(t, h.ID, *con.HypothesisID)
	require.NotNil(t, con.EvidenceID)

	stored, err := env.contradictions.ListByHypothesis(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	events := env.eventsOf(domain.EventContradictionDetected)
	require.Len(t, events, 1)
	assert.Equal(t, string(domain.SeverityHigh), events[0].Data["severity"])
}

func TestHunterSeverityFloorTracksIntensity(t *testing.T) {
	tests := []struct {
		name      string
		intensity domain.Intensity
		severity  domain.Severity
		filed     bool
	}{
		{name: "light drops medium", intensity: domain.IntensityLight, severity: domain.SeverityMedium, filed: false},
		{name: "light keeps high", intensity: domain.IntensityLight, severity: domain.SeverityHigh, filed: true},
		{name: "aggressive keeps low", intensity: domain.IntensityAggressive, severity: domain.SeverityLow, filed: true},
		{name: "moderate drops low", intensity: domain.IntensityModerate, severity: domain.SeverityLow, filed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newResearchEnv()
			h := env.addHypothesis(domain.HypothesisSubThesis,
				"Renewal rates stay above 90%", 0.5, domain.StatusUntested)
			env.llm.AnalyzeConflictFunc = conflictOn("churn", tt.severity)

			res, err := newTestHunter(env).Execute(context.Background(), Input{
				HypothesisIDs: []uuid.UUID{h.ID},
				Intensity:     tt.intensity,
			}, env.context())
			require.NoError(t, err)
			if tt.filed {
				assert.NotEmpty(t, res.Contradictions)
			} else {
				assert.Empty(t, res.Contradictions)
			}
		})
	}
}

func TestHunterSkipsRootAndClosedNodes(t *testing.T) {
	env := newResearchEnv()
	env.addHypothesis(domain.HypothesisThesis,
		"Northstar compounds value", 0.5, domain.StatusUntested)
	env.addHypothesis(domain.HypothesisSubThesis,
		"The patent moat holds", 0.1, domain.StatusRefuted)

	res, err := newTestHunter(env).Execute(context.Background(), Input{}, env.context())
	require.NoError(t, err)
	assert.Empty(t, res.Contradictions)
	assert.Empty(t, env.search.SearchCalls, "nothing to hunt means no searches")
}

func TestHunterAnalyzesAlreadyLinkedEvidence(t *testing.T) {
	env := newResearchEnv()
	h := env.addHypothesis(domain.HypothesisSubThesis,
		"Renewal rates stay above 90%", 0.5, domain.StatusUntested)

	// No fresh web results this run; the conflict hides in evidence a
	// previous gather already linked to the hypothesis.
	env.search.SearchFunc = func(string, domain.SearchOpts) []domain.SearchResult { return nil }
	linked := domain.Evidence{
		ID:           uuid.New(),
		EngagementID: env.engagement.ID,
		Content:      "Churn among the top ten accounts doubled over the trailing year.",
		Sentiment:    domain.SentimentContradicting,
		Relevance: domain.EvidenceRelevance{
			HypothesisIDs:   []uuid.UUID{h.ID},
			RelevanceScores: []float32{0.9},
		},
	}
	require.NoError(t, env.evidence.Create(context.Background(), &linked))
	env.llm.AnalyzeConflictFunc = conflictOn("churn", domain.SeverityHigh)

	res, err := newTestHunter(env).Execute(context.Background(), Input{
		HypothesisIDs: []uuid.UUID{h.ID},
		Intensity:     domain.IntensityModerate,
	}, env.context())
	require.NoError(t, err)
	require.Len(t, res.Contradictions, 1)
	require.NotNil(t, res.Contradictions[0].EvidenceID)
	assert.Equal(t, linked.ID, *res.Contradictions[0].EvidenceID)
}

func TestHunterNeverRelitigatesSupport(t *testing.T) {
	env := newResearchEnv()
	h := env.addHypothesis(domain.HypothesisSubThesis,
		"Revenue growth stays above 25%", 0.5, domain.StatusUntested)

	// Flag everything as conflicting: only non-supporting evidence may
	// reach the analyst, so supporting items never produce a filing.
	env.llm.AnalyzeConflictFunc = func(_, _ string) *domain.ConflictAnalysis {
		return &domain.ConflictAnalysis{Conflicts: true, Severity: domain.SeverityHigh, Description: "conflict"}
	}
	env.search.SearchFunc = func(query string, opts domain.SearchOpts) []domain.SearchResult {
		return []domain.SearchResult{{
			URL:     "https://www.reuters.com/markets/northstar-beat",
			Title:   "Northstar beats estimates",
			Content: "Northstar Robotics posted record growth and raised guidance on accelerating inspection demand.",
		}}
	}

	res, err := newTestHunter(env).Execute(context.Background(), Input{
		HypothesisIDs: []uuid.UUID{h.ID},
		Intensity:     domain.IntensityAggressive,
	}, env.context())
	require.NoError(t, err)
	assert.Empty(t, res.Contradictions)
	assert.Empty(t, env.llm.AnalyzeConflictCalls)
}

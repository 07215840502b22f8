package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEngagement() *domain.Engagement {
	return &domain.Engagement{
		ID:                uuid.New(),
		TargetCompanyName: "Northstar Robotics",
		Sector:            "Industrial Automation",
		ThesisSummary:     "Northstar Robotics compounds revenue above 25% as factories automate inspection work",
	}
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	q := NewQueue(jobStore, newFakeEngagementStore(engagement), 100, 10, zap.NewNop())

	job, err := q.Submit(context.Background(), engagement.ID, domain.JobResearch, domain.JobConfig{
		Thesis: "Revenue compounds above 25% for the next three years",
	})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, engagement.ID, job.EngagementID)
	assert.NotEqual(t, uuid.Nil, job.ID)
}

func TestSubmitRejectsSecondActiveJob(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	q := NewQueue(jobStore, newFakeEngagementStore(engagement), 100, 10, zap.NewNop())

	first, err := q.Submit(context.Background(), engagement.ID, domain.JobResearch, domain.JobConfig{})
	require.NoError(t, err)

	second, err := q.Submit(context.Background(), engagement.ID, domain.JobResearch, domain.JobConfig{})
	var conflict *research.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ExistingJobID)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID, "conflict returns the existing job, not a new record")

	jobs, err := jobStore.ListByEngagement(context.Background(), engagement.ID, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "no second record created")
}

func TestSubmitValidation(t *testing.T) {
	engagement := testEngagement()

	tests := []struct {
		name  string
		kind  domain.JobKind
		cfg   domain.JobConfig
		field string
	}{
		{
			name:  "thesis too short",
			kind:  domain.JobResearch,
			cfg:   domain.JobConfig{Thesis: "too short"},
			field: "thesis",
		},
		{
			name:  "bad kind",
			kind:  domain.JobKind("audit"),
			cfg:   domain.JobConfig{},
			field: "kind",
		},
		{
			name:  "max results out of bounds",
			kind:  domain.JobResearch,
			cfg:   domain.JobConfig{MaxResults: 500},
			field: "max_results",
		},
		{
			name:  "min credibility out of range",
			kind:  domain.JobResearch,
			cfg:   domain.JobConfig{MinCredibility: 1.5},
			field: "min_credibility",
		},
		{
			name:  "unknown source class",
			kind:  domain.JobResearch,
			cfg:   domain.JobConfig{Sources: []domain.SourceClass{"darkweb"}},
			field: "sources",
		},
		{
			name:  "unknown intensity",
			kind:  domain.JobStressTest,
			cfg:   domain.JobConfig{Intensity: "brutal"},
			field: "intensity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobStore := newFakeJobStore()
			q := NewQueue(jobStore, newFakeEngagementStore(engagement), 100, 10, zap.NewNop())

			_, err := q.Submit(context.Background(), engagement.ID, tt.kind, tt.cfg)
			var verr *research.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, jobStore.order, "no job record on validation failure")
		})
	}
}

func TestSubmitRequiresThesisSomewhere(t *testing.T) {
	// An engagement with no usable thesis summary and no config thesis
	// has nothing to research.
	engagement := testEngagement()
	engagement.ThesisSummary = "tbd"
	q := NewQueue(newFakeJobStore(), newFakeEngagementStore(engagement), 100, 10, zap.NewNop())

	_, err := q.Submit(context.Background(), engagement.ID, domain.JobResearch, domain.JobConfig{})
	var verr *research.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "thesis", verr.Field)
	assert.True(t, strings.Contains(verr.Reason, "thesis"))
}

func TestSubmitUnknownEngagement(t *testing.T) {
	q := NewQueue(newFakeJobStore(), newFakeEngagementStore(), 100, 10, zap.NewNop())

	_, err := q.Submit(context.Background(), uuid.New(), domain.JobResearch, domain.JobConfig{})
	var verr *research.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "engagement_id", verr.Field)
}

func TestSubmitRateLimited(t *testing.T) {
	engagement := testEngagement()
	// Burst of one and a near-zero refill: the second submission in the
	// window must bounce without creating a record.
	jobStore := newFakeJobStore()
	q := NewQueue(jobStore, newFakeEngagementStore(engagement), 0.0001, 1, zap.NewNop())

	_, err := q.Submit(context.Background(), engagement.ID, domain.JobStressTest, domain.JobConfig{})
	require.NoError(t, err)

	_, err = q.Submit(context.Background(), engagement.ID, domain.JobStressTest, domain.JobConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Len(t, jobStore.order, 1)
}

func TestSubmitAllowedAfterTerminal(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	q := NewQueue(jobStore, newFakeEngagementStore(engagement), 100, 10, zap.NewNop())

	first, err := q.Submit(context.Background(), engagement.ID, domain.JobResearch, domain.JobConfig{})
	require.NoError(t, err)

	claimed, err := jobStore.ClaimNext(context.Background(), time.Minute, 3)
	require.NoError(t, err)
	require.NoError(t, jobStore.MarkFailed(context.Background(), claimed.ID, "provider down"))

	second, err := q.Submit(context.Background(), engagement.ID, domain.JobResearch, domain.JobConfig{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/events"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func submitJob(t *testing.T, jobStore *fakeJobStore, engagement *domain.Engagement, kind domain.JobKind) *domain.ResearchJob {
	t.Helper()
	job, err := jobStore.Create(context.Background(), &domain.ResearchJob{
		EngagementID: engagement.ID,
		Kind:         kind,
	})
	require.NoError(t, err)
	return job
}

func waitForStatus(t *testing.T, jobStore *fakeJobStore, id uuid.UUID, want domain.JobStatus) *domain.ResearchJob {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			j, _ := jobStore.GetByID(context.Background(), id)
			t.Fatalf("job never reached %s, stuck at %+v", want, j)
			return nil
		case <-time.After(5 * time.Millisecond):
			j, err := jobStore.GetByID(context.Background(), id)
			require.NoError(t, err)
			if j.Status == want {
				return j
			}
		}
	}
}

func TestPoolCompletesResearchJob(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	runner := &fakeRunner{
		researchFn: func(ctx context.Context, job *domain.ResearchJob) (*research.WorkflowResult, error) {
			return &research.WorkflowResult{Confidence: 0.8, ExecutionTimeMs: 12}, nil
		},
	}
	bus := events.NewBus(zap.NewNop())
	pool := NewPool(jobStore, newFakeEngagementStore(engagement), runner, bus, 2, time.Minute, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)

	job := submitJob(t, jobStore, engagement, domain.JobResearch)
	sub := bus.Subscribe(job.ID)
	defer sub.Close()

	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, jobStore, job.ID, domain.JobCompleted)
	require.NotNil(t, done.ConfidenceScore)
	assert.InDelta(t, 80.0, float64(*done.ConfidenceScore), 0.01)
	assert.Equal(t, 100, done.Progress)
	assert.NotNil(t, done.CompletedAt)

	var result research.WorkflowResult
	require.NoError(t, json.Unmarshal(done.Results, &result))
	assert.InDelta(t, 0.8, float64(result.Confidence), 0.001)

	// Terminal event closes the stream; the completed event must be on it.
	var sawCompleted bool
	for evt := range sub.Events {
		if evt.Type == domain.EventCompleted {
			sawCompleted = true
		}
	}
	assert.True(t, sawCompleted)
}

func TestPoolRunsStressTestJob(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	runner := &fakeRunner{
		stressFn: func(ctx context.Context, job *domain.ResearchJob) (*research.StressResult, error) {
			return &research.StressResult{OverallRiskScore: 0.4}, nil
		},
	}
	pool := NewPool(jobStore, newFakeEngagementStore(engagement), runner, nil, 1, time.Minute, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)

	job := submitJob(t, jobStore, engagement, domain.JobStressTest)
	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, jobStore, job.ID, domain.JobCompleted)
	require.NotNil(t, done.ConfidenceScore)
	assert.InDelta(t, 60.0, float64(*done.ConfidenceScore), 0.01)
	assert.Equal(t, 1, runner.stressRun)
	assert.Equal(t, 0, runner.researchRun)
}

func TestPoolFailsJobWithWorkflowError(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	runner := &fakeRunner{
		researchFn: func(ctx context.Context, job *domain.ResearchJob) (*research.WorkflowResult, error) {
			return nil, &research.WorkflowError{Phase: "contradiction_analysis", Err: errors.New("model unavailable")}
		},
	}
	bus := events.NewBus(zap.NewNop())
	pool := NewPool(jobStore, newFakeEngagementStore(engagement), runner, bus, 1, time.Minute, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)

	job := submitJob(t, jobStore, engagement, domain.JobResearch)
	sub := bus.Subscribe(job.ID)
	defer sub.Close()

	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, jobStore, job.ID, domain.JobFailed)
	assert.Contains(t, done.ErrorMessage, "contradiction_analysis")
	assert.Contains(t, done.ErrorMessage, "model unavailable")
	assert.Nil(t, done.ConfidenceScore)

	var sawError bool
	for evt := range sub.Events {
		if evt.Type == domain.EventError {
			sawError = true
			assert.NotEmpty(t, evt.Data["message"])
		}
	}
	assert.True(t, sawError)
}

func TestPoolFailsJobWhenEngagementMissing(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	pool := NewPool(jobStore, newFakeEngagementStore(), &fakeRunner{}, nil, 1, time.Minute, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)

	job := submitJob(t, jobStore, engagement, domain.JobResearch)
	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, jobStore, job.ID, domain.JobFailed)
	assert.Contains(t, done.ErrorMessage, "load engagement")
}

func TestPoolRetriesExpiredLeaseThenFails(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	runner := &fakeRunner{
		researchFn: func(ctx context.Context, job *domain.ResearchJob) (*research.WorkflowResult, error) {
			return nil, errors.New("transient crash")
		},
	}

	// Seed a running job whose lease already lapsed with one attempt
	// used: the pool must claim it again rather than treat it as lost.
	job := submitJob(t, jobStore, engagement, domain.JobResearch)
	_, err := jobStore.ClaimNext(context.Background(), -time.Second, 3)
	require.NoError(t, err)
	stale, err := jobStore.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobRunning, stale.Status)
	require.Equal(t, 1, stale.Attempts)

	pool := NewPool(jobStore, newFakeEngagementStore(engagement), runner, nil, 1, time.Minute, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)
	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, jobStore, job.ID, domain.JobFailed)
	assert.Equal(t, 2, done.Attempts, "expired lease re-claimed for a retry")
	assert.Contains(t, done.ErrorMessage, "transient crash")
}

func TestJanitorFailsExhaustedJob(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()

	// A job at the attempt ceiling with a lapsed lease is not claimable;
	// only the janitor can close it out.
	job := submitJob(t, jobStore, engagement, domain.JobResearch)
	jobStore.mu.Lock()
	j := jobStore.items[job.ID]
	j.Status = domain.JobRunning
	j.Attempts = 3
	expired := time.Now().Add(-time.Minute)
	j.LeaseExpiresAt = &expired
	j.ErrorMessage = "last failure"
	jobStore.mu.Unlock()

	pool := NewPool(jobStore, newFakeEngagementStore(engagement), &fakeRunner{}, nil, 1, 20*time.Millisecond, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)
	pool.Start()
	defer pool.Stop()

	done := waitForStatus(t, jobStore, job.ID, domain.JobFailed)
	assert.Equal(t, "last failure", done.ErrorMessage, "last error preserved")
}

func TestPoolRenewsLease(t *testing.T) {
	engagement := testEngagement()
	jobStore := newFakeJobStore()
	release := make(chan struct{})
	runner := &fakeRunner{
		researchFn: func(ctx context.Context, job *domain.ResearchJob) (*research.WorkflowResult, error) {
			<-release
			return &research.WorkflowResult{Confidence: 0.5}, nil
		},
	}
	// Lease short enough that the heartbeat fires several times while
	// the workflow is blocked.
	pool := NewPool(jobStore, newFakeEngagementStore(engagement), runner, nil, 1, 30*time.Millisecond, 3, zap.NewNop())
	pool.SetPollInterval(5 * time.Millisecond)

	job := submitJob(t, jobStore, engagement, domain.JobResearch)
	pool.Start()

	waitForStatus(t, jobStore, job.ID, domain.JobRunning)
	time.Sleep(100 * time.Millisecond)
	close(release)
	waitForStatus(t, jobStore, job.ID, domain.JobCompleted)
	pool.Stop()

	jobStore.mu.Lock()
	renewals := jobStore.renewals
	jobStore.mu.Unlock()
	assert.Greater(t, renewals, 0, "lease renewed while the workflow ran")
}

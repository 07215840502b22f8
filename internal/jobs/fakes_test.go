package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/convictionhq/conviction/internal/store"
	"github.com/google/uuid"
)

// fakeJobStore mirrors the relational store's semantics in memory:
// one active job per engagement, forward-only status, claim with
// lease and attempt accounting.
type fakeJobStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.ResearchJob
	order []uuid.UUID

	createErr error
	claimErr  error

	renewals  int
	completed int
	failed    int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{items: make(map[uuid.UUID]*domain.ResearchJob)}
}

func (s *fakeJobStore) Create(ctx context.Context, j *domain.ResearchJob) (*domain.ResearchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	for _, id := range s.order {
		cur := s.items[id]
		if cur.EngagementID == j.EngagementID && cur.Status.Active() {
			cp := *cur
			return &cp, store.ErrConflict
		}
	}
	j.ID = uuid.New()
	j.Status = domain.JobPending
	now := time.Now()
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	s.items[j.ID] = &cp
	s.order = append(s.order, j.ID)
	return j, nil
}

func (s *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeJobStore) GetActiveByEngagement(ctx context.Context, engagementID uuid.UUID) (*domain.ResearchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		j := s.items[id]
		if j.EngagementID == engagementID && j.Status.Active() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeJobStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]domain.ResearchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ResearchJob
	for _, id := range s.order {
		j := s.items[id]
		if j.EngagementID != engagementID {
			continue
		}
		out = append(out, *j)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeJobStore) ClaimNext(ctx context.Context, leaseTTL time.Duration, maxAttempts int) (*domain.ResearchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	now := time.Now()
	for _, id := range s.order {
		j := s.items[id]
		claimable := j.Status == domain.JobPending ||
			(j.Status == domain.JobRunning && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now))
		if !claimable || j.Attempts >= maxAttempts {
			continue
		}
		j.Status = domain.JobRunning
		j.Attempts++
		lease := now.Add(leaseTTL)
		j.LeaseExpiresAt = &lease
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
		cp := *j
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeJobStore) RenewLease(ctx context.Context, id uuid.UUID, leaseTTL time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok || j.Status != domain.JobRunning {
		return store.ErrNotFound
	}
	lease := time.Now().Add(leaseTTL)
	j.LeaseExpiresAt = &lease
	s.renewals++
	return nil
}

func (s *fakeJobStore) FailExpired(ctx context.Context, maxAttempts int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for _, id := range s.order {
		j := s.items[id]
		if j.Status == domain.JobRunning && j.LeaseExpiresAt != nil &&
			j.LeaseExpiresAt.Before(now) && j.Attempts >= maxAttempts {
			j.Status = domain.JobFailed
			if j.ErrorMessage == "" {
				j.ErrorMessage = "worker lease expired"
			}
			completed := now
			j.CompletedAt = &completed
			n++
		}
	}
	return n, nil
}

func (s *fakeJobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok || j.Status != domain.JobRunning {
		return store.ErrNotFound
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

func (s *fakeJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, results []byte, confidenceScore float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok || j.Status != domain.JobRunning {
		return store.ErrNotFound
	}
	j.Status = domain.JobCompleted
	j.Results = results
	j.ConfidenceScore = &confidenceScore
	j.Progress = 100
	now := time.Now()
	j.CompletedAt = &now
	s.completed++
	return nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.items[id]
	if !ok || j.Status.Terminal() {
		return store.ErrNotFound
	}
	j.Status = domain.JobFailed
	j.ErrorMessage = errorMessage
	now := time.Now()
	j.CompletedAt = &now
	s.failed++
	return nil
}

type fakeEngagementStore struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.Engagement
}

func newFakeEngagementStore(engagements ...*domain.Engagement) *fakeEngagementStore {
	s := &fakeEngagementStore{items: make(map[uuid.UUID]*domain.Engagement)}
	for _, e := range engagements {
		s.items[e.ID] = e
	}
	return s
}

func (s *fakeEngagementStore) Create(ctx context.Context, e *domain.Engagement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	s.items[e.ID] = e
	return nil
}

func (s *fakeEngagementStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeEngagementStore) List(ctx context.Context, limit int) ([]domain.Engagement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Engagement
	for _, e := range s.items {
		out = append(out, *e)
	}
	return out, nil
}

// fakeRunner stands in for the conductor. Hooks control the outcome;
// calls are counted for assertions.
type fakeRunner struct {
	mu          sync.Mutex
	researchFn  func(ctx context.Context, job *domain.ResearchJob) (*research.WorkflowResult, error)
	stressFn    func(ctx context.Context, job *domain.ResearchJob) (*research.StressResult, error)
	researchRun int
	stressRun   int
}

func (r *fakeRunner) ExecuteResearch(ctx context.Context, job *domain.ResearchJob, engagement *domain.Engagement) (*research.WorkflowResult, error) {
	r.mu.Lock()
	r.researchRun++
	fn := r.researchFn
	r.mu.Unlock()
	if fn != nil {
		return fn(ctx, job)
	}
	return &research.WorkflowResult{Confidence: 0.62}, nil
}

func (r *fakeRunner) ExecuteStressTest(ctx context.Context, job *domain.ResearchJob, engagement *domain.Engagement) (*research.StressResult, error) {
	r.mu.Lock()
	r.stressRun++
	fn := r.stressFn
	r.mu.Unlock()
	if fn != nil {
		return fn(ctx, job)
	}
	return &research.StressResult{OverallRiskScore: 0.3}, nil
}

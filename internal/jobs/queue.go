package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/research"
	"github.com/convictionhq/conviction/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MinThesisLen is the shortest thesis statement worth researching.
	// Anything shorter is rejected before a job record exists.
	MinThesisLen = 20

	// MaxResultsCeiling caps per-gather result counts so one job cannot
	// hammer the upstream providers.
	MaxResultsCeiling = 25
)

// ErrRateLimited rejects a submission that exceeds the job-submission
// budget. No job record is created.
var ErrRateLimited = errors.New("job submission rate limit exceeded, retry shortly")

// Queue validates and admits research jobs. Admission is rate limited
// to protect upstream providers, and an engagement holds at most one
// active job: a second submission returns the existing job's id
// instead of creating a record.
type Queue struct {
	store       domain.JobStore
	engagements domain.EngagementStore
	limiter     *rate.Limiter
	logger      *zap.Logger
}

func NewQueue(jobs domain.JobStore, engagements domain.EngagementStore, rps float64, burst int, logger *zap.Logger) *Queue {
	if rps <= 0 {
		rps = 0.2
	}
	if burst <= 0 {
		burst = 1
	}
	return &Queue{
		store:       jobs,
		engagements: engagements,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		logger:      logger,
	}
}

// Submit validates the config, checks the submission budget, and
// creates the job in pending state. The returned job is the existing
// active one when the call reports a ConflictError.
func (q *Queue) Submit(ctx context.Context, engagementID uuid.UUID, kind domain.JobKind, cfg domain.JobConfig) (*domain.ResearchJob, error) {
	if kind == "" {
		kind = domain.JobResearch
	}
	if err := validateConfig(kind, cfg); err != nil {
		return nil, err
	}

	engagement, err := q.engagements.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &research.ValidationError{Field: "engagement_id", Reason: "engagement not found"}
		}
		return nil, fmt.Errorf("load engagement: %w", err)
	}
	if cfg.Thesis == "" && kind == domain.JobResearch && len(engagement.ThesisSummary) < MinThesisLen {
		return nil, &research.ValidationError{
			Field:  "thesis",
			Reason: fmt.Sprintf("a thesis of at least %d characters is required", MinThesisLen),
		}
	}

	if !q.limiter.Allow() {
		return nil, ErrRateLimited
	}

	job := &domain.ResearchJob{
		EngagementID: engagementID,
		Kind:         kind,
		Config:       cfg,
	}
	created, err := q.store.Create(ctx, job)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			conflict := &research.ConflictError{}
			if created != nil {
				conflict.ExistingJobID = created.ID
			}
			q.logger.Info("research job submission rejected, active job exists",
				zap.String("engagement_id", engagementID.String()),
				zap.String("existing_job_id", conflict.ExistingJobID.String()))
			return created, conflict
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	q.logger.Info("research job queued",
		zap.String("job_id", created.ID.String()),
		zap.String("engagement_id", engagementID.String()),
		zap.String("kind", string(kind)))
	return created, nil
}

func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error) {
	return q.store.GetByID(ctx, id)
}

func (q *Queue) ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]domain.ResearchJob, error) {
	return q.store.ListByEngagement(ctx, engagementID, limit)
}

func validateConfig(kind domain.JobKind, cfg domain.JobConfig) error {
	if !domain.ValidJobKind(string(kind)) {
		return &research.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown job kind %q", kind)}
	}
	if cfg.Thesis != "" && len(cfg.Thesis) < MinThesisLen {
		return &research.ValidationError{
			Field:  "thesis",
			Reason: fmt.Sprintf("must be at least %d characters", MinThesisLen),
		}
	}
	if cfg.MaxResults < 0 || cfg.MaxResults > MaxResultsCeiling {
		return &research.ValidationError{
			Field:  "max_results",
			Reason: fmt.Sprintf("must be between 0 and %d", MaxResultsCeiling),
		}
	}
	if cfg.MinCredibility < 0 || cfg.MinCredibility > 1 {
		return &research.ValidationError{Field: "min_credibility", Reason: "must be within [0,1]"}
	}
	for _, class := range cfg.Sources {
		if !domain.ValidSourceClass(string(class)) {
			return &research.ValidationError{Field: "sources", Reason: fmt.Sprintf("unknown source class %q", class)}
		}
	}
	if cfg.Intensity != "" && !domain.ValidIntensity(string(cfg.Intensity)) {
		return &research.ValidationError{Field: "intensity", Reason: fmt.Sprintf("unknown intensity %q", cfg.Intensity)}
	}
	return nil
}

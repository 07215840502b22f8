package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobStore struct {
	db *pgxpool.Pool
}

func NewJobStore(db *pgxpool.Pool) *JobStore {
	return &JobStore{db: db}
}

// Create inserts the job only when the engagement has no pending or
// running job. On conflict it returns the existing active job together
// with ErrConflict; no new record is created. A partial unique index on
// (engagement_id) WHERE status IN ('pending','running') backs this up
// under concurrent submissions.
func (s *JobStore) Create(ctx context.Context, j *domain.ResearchJob) (*domain.ResearchJob, error) {
	configJSON, err := json.Marshal(j.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	if j.Kind == "" {
		j.Kind = domain.JobResearch
	}
	j.Status = domain.JobPending

	err = s.db.QueryRow(ctx,
		`INSERT INTO research_jobs (engagement_id, kind, status, config, progress)
		 SELECT $1, $2, 'pending', $3, 0
		 WHERE NOT EXISTS (
		     SELECT 1 FROM research_jobs
		     WHERE engagement_id = $1 AND status IN ('pending', 'running')
		 )
		 RETURNING id, created_at, updated_at`,
		j.EngagementID, j.Kind, configJSON,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) && !isUniqueViolation(err) {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	existing, getErr := s.GetActiveByEngagement(ctx, j.EngagementID)
	if getErr != nil {
		// The active job finished between our insert and this read.
		if errors.Is(getErr, ErrNotFound) {
			return nil, ErrConflict
		}
		return nil, getErr
	}
	return existing, ErrConflict
}

func (s *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.ResearchJob, error) {
	j, err := s.scanJobRow(s.db.QueryRow(ctx,
		selectJobColumns+` FROM research_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (s *JobStore) GetActiveByEngagement(ctx context.Context, engagementID uuid.UUID) (*domain.ResearchJob, error) {
	j, err := s.scanJobRow(s.db.QueryRow(ctx,
		selectJobColumns+`
		 FROM research_jobs
		 WHERE engagement_id = $1 AND status IN ('pending', 'running')
		 ORDER BY created_at DESC
		 LIMIT 1`,
		engagementID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (s *JobStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]domain.ResearchJob, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx,
		selectJobColumns+`
		 FROM research_jobs WHERE engagement_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		engagementID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.ResearchJob
	for rows.Next() {
		j, err := s.scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ClaimNext claims the oldest claimable job: a pending job, or a
// running job whose lease lapsed and which has attempts left. The
// claimed job is stamped running with a fresh lease and an incremented
// attempt counter. SKIP LOCKED keeps concurrent workers from fighting
// over the same row.
func (s *JobStore) ClaimNext(ctx context.Context, leaseTTL time.Duration, maxAttempts int) (*domain.ResearchJob, error) {
	j, err := s.scanJobRow(s.db.QueryRow(ctx,
		`UPDATE research_jobs
		 SET status = 'running',
		     attempts = attempts + 1,
		     lease_expires_at = NOW() + make_interval(secs => $1),
		     started_at = COALESCE(started_at, NOW()),
		     updated_at = NOW()
		 WHERE id = (
		     SELECT id FROM research_jobs
		     WHERE (status = 'pending' OR (status = 'running' AND lease_expires_at < NOW()))
		       AND attempts < $2
		     ORDER BY created_at ASC
		     FOR UPDATE SKIP LOCKED
		     LIMIT 1
		 )
		 RETURNING `+jobColumns,
		leaseTTL.Seconds(), maxAttempts,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (s *JobStore) RenewLease(ctx context.Context, id uuid.UUID, leaseTTL time.Duration) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE research_jobs
		 SET lease_expires_at = NOW() + make_interval(secs => $2), updated_at = NOW()
		 WHERE id = $1 AND status = 'running'`,
		id, leaseTTL.Seconds(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailExpired fails running jobs whose lease lapsed after the attempt
// ceiling. Jobs with attempts left stay claimable through ClaimNext.
func (s *JobStore) FailExpired(ctx context.Context, maxAttempts int) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE research_jobs
		 SET status = 'failed',
		     error_message = COALESCE(NULLIF(error_message, ''), 'worker lease expired'),
		     completed_at = NOW(),
		     updated_at = NOW()
		 WHERE status = 'running' AND lease_expires_at < NOW() AND attempts >= $1`,
		maxAttempts,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE research_jobs
		 SET progress = GREATEST(progress, $2), updated_at = NOW()
		 WHERE id = $1 AND status = 'running'`,
		id, progress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id uuid.UUID, results []byte, confidenceScore float32) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE research_jobs
		 SET status = 'completed', results = $2, confidence_score = $3, progress = 100,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'running'`,
		id, results, confidenceScore,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *JobStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE research_jobs
		 SET status = 'failed', error_message = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'running')`,
		id, errorMessage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const jobColumns = `id, engagement_id, kind, status, config, progress, results, confidence_score, error_message, attempts, lease_expires_at, started_at, completed_at, created_at, updated_at`

const selectJobColumns = `SELECT ` + jobColumns

func (s *JobStore) scanJobRow(row pgx.Row) (*domain.ResearchJob, error) {
	j := &domain.ResearchJob{}
	var configJSON []byte
	var errorMessage *string

	err := row.Scan(&j.ID, &j.EngagementID, &j.Kind, &j.Status, &configJSON, &j.Progress,
		&j.Results, &j.ConfidenceScore, &errorMessage, &j.Attempts,
		&j.LeaseExpiresAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &j.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if errorMessage != nil {
		j.ErrorMessage = *errorMessage
	}
	return j, nil
}

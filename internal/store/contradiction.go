package store

import (
	"context"
	"errors"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContradictionStore struct {
	db *pgxpool.Pool
}

func NewContradictionStore(db *pgxpool.Pool) *ContradictionStore {
	return &ContradictionStore{db: db}
}

func (s *ContradictionStore) Create(ctx context.Context, c *domain.Contradiction) error {
	if c.Status == "" {
		c.Status = domain.ContradictionUnresolved
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO contradictions (engagement_id, hypothesis_id, evidence_id, description, severity, status, resolution)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		c.EngagementID, c.HypothesisID, c.EvidenceID, c.Description, c.Severity, c.Status, c.Resolution,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *ContradictionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contradiction, error) {
	c := &domain.Contradiction{}
	err := s.db.QueryRow(ctx,
		`SELECT id, engagement_id, hypothesis_id, evidence_id, description, severity, status, resolution, resolved_at, created_at, updated_at
		 FROM contradictions WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.EngagementID, &c.HypothesisID, &c.EvidenceID, &c.Description, &c.Severity, &c.Status, &c.Resolution, &c.ResolvedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ContradictionStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]domain.Contradiction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, hypothesis_id, evidence_id, description, severity, status, resolution, resolved_at, created_at, updated_at
		 FROM contradictions WHERE engagement_id = $1
		 ORDER BY created_at DESC`,
		engagementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContradictions(rows)
}

func (s *ContradictionStore) ListByHypothesis(ctx context.Context, hypothesisID uuid.UUID) ([]domain.Contradiction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, hypothesis_id, evidence_id, description, severity, status, resolution, resolved_at, created_at, updated_at
		 FROM contradictions WHERE hypothesis_id = $1
		 ORDER BY created_at DESC`,
		hypothesisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanContradictions(rows)
}

func (s *ContradictionStore) CountUnresolved(ctx context.Context, engagementID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM contradictions
		 WHERE engagement_id = $1 AND status IN ('unresolved', 'critical')`,
		engagementID,
	).Scan(&count)
	return count, err
}

func (s *ContradictionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ContradictionStatus, resolution string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE contradictions
		 SET status = $2, resolution = $3, resolved_at = CASE WHEN $2 IN ('explained', 'dismissed') THEN NOW() ELSE resolved_at END, updated_at = NOW()
		 WHERE id = $1`,
		id, status, resolution,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanContradictions(rows pgx.Rows) ([]domain.Contradiction, error) {
	var items []domain.Contradiction
	for rows.Next() {
		var c domain.Contradiction
		if err := rows.Scan(&c.ID, &c.EngagementID, &c.HypothesisID, &c.EvidenceID, &c.Description, &c.Severity, &c.Status, &c.Resolution, &c.ResolvedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

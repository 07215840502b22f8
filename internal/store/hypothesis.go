package store

import (
	"context"
	"errors"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type HypothesisStore struct {
	db *pgxpool.Pool
}

func NewHypothesisStore(db *pgxpool.Pool) *HypothesisStore {
	return &HypothesisStore{db: db}
}

func (s *HypothesisStore) Create(ctx context.Context, h *domain.Hypothesis) error {
	var embedding *pgvector.Vector
	if len(h.Embedding) > 0 {
		v := pgvector.NewVector(h.Embedding)
		embedding = &v
	}

	if h.Status == "" {
		h.Status = domain.StatusUntested
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO hypotheses (engagement_id, parent_id, type, content, confidence, status, importance, testability, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		h.EngagementID, h.ParentID, h.Type, h.Content, h.Confidence, h.Status, h.Importance, h.Testability, embedding,
	).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (s *HypothesisStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Hypothesis, error) {
	h := &domain.Hypothesis{}
	err := s.db.QueryRow(ctx,
		`SELECT id, engagement_id, parent_id, type, content, confidence, status, importance, testability, created_at, updated_at
		 FROM hypotheses WHERE id = $1`,
		id,
	).Scan(&h.ID, &h.EngagementID, &h.ParentID, &h.Type, &h.Content, &h.Confidence, &h.Status, &h.Importance, &h.Testability, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return h, nil
}

func (s *HypothesisStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]domain.Hypothesis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, parent_id, type, content, confidence, status, importance, testability, created_at, updated_at
		 FROM hypotheses WHERE engagement_id = $1
		 ORDER BY created_at ASC`,
		engagementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHypotheses(rows)
}

func (s *HypothesisStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Hypothesis, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, parent_id, type, content, confidence, status, importance, testability, created_at, updated_at
		 FROM hypotheses WHERE id = ANY($1)
		 ORDER BY created_at ASC`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHypotheses(rows)
}

func (s *HypothesisStore) Update(ctx context.Context, h *domain.Hypothesis) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE hypotheses
		 SET content = $2, confidence = $3, status = $4, importance = $5, testability = $6, updated_at = NOW()
		 WHERE id = $1`,
		h.ID, h.Content, h.Confidence, h.Status, h.Importance, h.Testability,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HypothesisStore) UpdateAssessment(ctx context.Context, id uuid.UUID, confidence float32, status domain.HypothesisStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE hypotheses SET confidence = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, confidence, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *HypothesisStore) UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	var vec *pgvector.Vector
	if len(embedding) > 0 {
		v := pgvector.NewVector(embedding)
		vec = &v
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE hypotheses SET embedding = $2, updated_at = NOW() WHERE id = $1`,
		id, vec,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEmbedding loads only the embedding column for a hypothesis.
// Returns nil without error when no embedding has been stored yet.
func (s *HypothesisStore) GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var vec *pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT embedding FROM hypotheses WHERE id = $1`,
		id,
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if vec == nil {
		return nil, nil
	}
	return vec.Slice(), nil
}

func scanHypotheses(rows pgx.Rows) ([]domain.Hypothesis, error) {
	var hypotheses []domain.Hypothesis
	for rows.Next() {
		var h domain.Hypothesis
		if err := rows.Scan(&h.ID, &h.EngagementID, &h.ParentID, &h.Type, &h.Content, &h.Confidence, &h.Status, &h.Importance, &h.Testability, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		hypotheses = append(hypotheses, h)
	}
	return hypotheses, rows.Err()
}

package store

import (
	"context"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EdgeStore struct {
	db *pgxpool.Pool
}

func NewEdgeStore(db *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{db: db}
}

func (s *EdgeStore) Create(ctx context.Context, e *domain.HypothesisEdge) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO hypothesis_edges (engagement_id, source_id, target_id, relationship, strength, reasoning)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_id, target_id, relationship) DO UPDATE
		 SET strength = EXCLUDED.strength, reasoning = EXCLUDED.reasoning
		 RETURNING id, created_at`,
		e.EngagementID, e.SourceID, e.TargetID, e.Relationship, e.Strength, e.Reasoning,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *EdgeStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]domain.HypothesisEdge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, source_id, target_id, relationship, strength, reasoning, created_at
		 FROM hypothesis_edges WHERE engagement_id = $1
		 ORDER BY created_at ASC`,
		engagementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.HypothesisEdge
	for rows.Next() {
		var e domain.HypothesisEdge
		if err := rows.Scan(&e.ID, &e.EngagementID, &e.SourceID, &e.TargetID, &e.Relationship, &e.Strength, &e.Reasoning, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

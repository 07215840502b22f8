package store

import (
	"context"
	"errors"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EvidenceStore is the relational read model for evidence. The content
// store is authoritative; writes here are best-effort copies.
type EvidenceStore struct {
	db *pgxpool.Pool
}

func NewEvidenceStore(db *pgxpool.Pool) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Create(ctx context.Context, e *domain.Evidence) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO evidence (id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, duplicate_of, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO UPDATE
		 SET sentiment = EXCLUDED.sentiment,
		     credibility_score = EXCLUDED.credibility_score,
		     hypothesis_ids = EXCLUDED.hypothesis_ids,
		     relevance_scores = EXCLUDED.relevance_scores,
		     updated_at = NOW()`,
		e.ID, e.EngagementID, e.Content, e.ContentHash,
		e.Source.Type, e.Source.URL, e.Source.Title, e.Source.CredibilityScore, e.Source.RetrievedAt,
		e.Sentiment, e.Relevance.HypothesisIDs, e.Relevance.RelevanceScores, e.Tags, e.DuplicateOf,
		e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (s *EvidenceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Evidence, error) {
	e := &domain.Evidence{}
	err := s.db.QueryRow(ctx,
		`SELECT id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, duplicate_of, created_at, updated_at
		 FROM evidence WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.EngagementID, &e.Content, &e.ContentHash,
		&e.Source.Type, &e.Source.URL, &e.Source.Title, &e.Source.CredibilityScore, &e.Source.RetrievedAt,
		&e.Sentiment, &e.Relevance.HypothesisIDs, &e.Relevance.RelevanceScores, &e.Tags, &e.DuplicateOf, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EvidenceStore) ListByEngagement(ctx context.Context, engagementID uuid.UUID, limit int) ([]domain.Evidence, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, duplicate_of, created_at, updated_at
		 FROM evidence WHERE engagement_id = $1
		 ORDER BY credibility_score DESC, created_at DESC
		 LIMIT $2`,
		engagementID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvidence(rows)
}

func (s *EvidenceStore) ListByHypothesis(ctx context.Context, hypothesisID uuid.UUID) ([]domain.Evidence, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, duplicate_of, created_at, updated_at
		 FROM evidence WHERE $1 = ANY(hypothesis_ids)
		 ORDER BY credibility_score DESC`,
		hypothesisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvidence(rows)
}

func (s *EvidenceStore) UpdateReview(ctx context.Context, id uuid.UUID, sentiment domain.Sentiment, credibility float32) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE evidence SET sentiment = $2, credibility_score = $3, updated_at = NOW() WHERE id = $1`,
		id, sentiment, credibility,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvidence(rows pgx.Rows) ([]domain.Evidence, error) {
	var items []domain.Evidence
	for rows.Next() {
		var e domain.Evidence
		if err := rows.Scan(&e.ID, &e.EngagementID, &e.Content, &e.ContentHash,
			&e.Source.Type, &e.Source.URL, &e.Source.Title, &e.Source.CredibilityScore, &e.Source.RetrievedAt,
			&e.Sentiment, &e.Relevance.HypothesisIDs, &e.Relevance.RelevanceScores, &e.Tags, &e.DuplicateOf, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// ContentStore is the primary evidence store. Rows are keyed by
// (engagement_id, content_hash) so repeated submissions of the same
// content resolve to the first stored row instead of duplicating it.
type ContentStore struct {
	db *pgxpool.Pool
}

func NewContentStore(db *pgxpool.Pool) *ContentStore {
	return &ContentStore{db: db}
}

func (s *ContentStore) UpsertEvidence(ctx context.Context, e *domain.Evidence) (*domain.Evidence, bool, error) {
	var embedding *pgvector.Vector
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		embedding = &v
	}

	if e.Sentiment == "" {
		e.Sentiment = domain.SentimentNeutral
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO evidence_content (engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (engagement_id, content_hash) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		e.EngagementID, e.Content, e.ContentHash,
		e.Source.Type, e.Source.URL, e.Source.Title, e.Source.CredibilityScore, e.Source.RetrievedAt,
		e.Sentiment, e.Relevance.HypothesisIDs, e.Relevance.RelevanceScores, e.Tags, embedding,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("upsert evidence: %w", err)
	}

	// Conflict: the content already exists for this engagement.
	existing, err := s.getByHash(ctx, e.EngagementID, e.ContentHash)
	if err != nil {
		return nil, false, fmt.Errorf("fetch existing evidence: %w", err)
	}
	return existing, false, nil
}

func (s *ContentStore) GetEvidence(ctx context.Context, id uuid.UUID) (*domain.Evidence, error) {
	e := &domain.Evidence{}
	err := s.db.QueryRow(ctx,
		`SELECT id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, created_at, updated_at
		 FROM evidence_content WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.EngagementID, &e.Content, &e.ContentHash,
		&e.Source.Type, &e.Source.URL, &e.Source.Title, &e.Source.CredibilityScore, &e.Source.RetrievedAt,
		&e.Sentiment, &e.Relevance.HypothesisIDs, &e.Relevance.RelevanceScores, &e.Tags, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *ContentStore) getByHash(ctx context.Context, engagementID uuid.UUID, hash string) (*domain.Evidence, error) {
	e := &domain.Evidence{}
	err := s.db.QueryRow(ctx,
		`SELECT id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, created_at, updated_at
		 FROM evidence_content WHERE engagement_id = $1 AND content_hash = $2`,
		engagementID, hash,
	).Scan(&e.ID, &e.EngagementID, &e.Content, &e.ContentHash,
		&e.Source.Type, &e.Source.URL, &e.Source.Title, &e.Source.CredibilityScore, &e.Source.RetrievedAt,
		&e.Sentiment, &e.Relevance.HypothesisIDs, &e.Relevance.RelevanceScores, &e.Tags, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *ContentStore) SearchSimilar(ctx context.Context, engagementID uuid.UUID, embedding []float32, limit int) ([]domain.EvidenceWithScore, error) {
	if limit <= 0 {
		limit = 10
	}

	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, engagement_id, content, content_hash, source_type, source_url, source_title, credibility_score, retrieved_at, sentiment, hypothesis_ids, relevance_scores, tags, created_at, updated_at,
		        1 - (embedding <=> $2) AS score
		 FROM evidence_content
		 WHERE engagement_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		engagementID, vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []domain.EvidenceWithScore
	for rows.Next() {
		var es domain.EvidenceWithScore
		if err := rows.Scan(&es.ID, &es.EngagementID, &es.Content, &es.ContentHash,
			&es.Source.Type, &es.Source.URL, &es.Source.Title, &es.Source.CredibilityScore, &es.Source.RetrievedAt,
			&es.Sentiment, &es.Relevance.HypothesisIDs, &es.Relevance.RelevanceScores, &es.Tags, &es.CreatedAt, &es.UpdatedAt,
			&es.Score,
		); err != nil {
			return nil, err
		}
		results = append(results, es)
	}
	return results, rows.Err()
}

func (s *ContentStore) CountByEngagement(ctx context.Context, engagementID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM evidence_content WHERE engagement_id = $1`,
		engagementID,
	).Scan(&count)
	return count, err
}

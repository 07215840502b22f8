package store

import (
	"context"
	"errors"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EngagementStore struct {
	db *pgxpool.Pool
}

func NewEngagementStore(db *pgxpool.Pool) *EngagementStore {
	return &EngagementStore{db: db}
}

func (s *EngagementStore) Create(ctx context.Context, e *domain.Engagement) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO engagements (target_company_name, ticker_symbol, sector, thesis_summary)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		e.TargetCompanyName, e.TickerSymbol, e.Sector, e.ThesisSummary,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *EngagementStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Engagement, error) {
	e := &domain.Engagement{}
	err := s.db.QueryRow(ctx,
		`SELECT id, target_company_name, ticker_symbol, sector, thesis_summary, created_at, updated_at
		 FROM engagements WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.TargetCompanyName, &e.TickerSymbol, &e.Sector, &e.ThesisSummary, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EngagementStore) List(ctx context.Context, limit int) ([]domain.Engagement, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, target_company_name, ticker_symbol, sector, thesis_summary, created_at, updated_at
		 FROM engagements ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var engagements []domain.Engagement
	for rows.Next() {
		var e domain.Engagement
		if err := rows.Scan(&e.ID, &e.TargetCompanyName, &e.TickerSymbol, &e.Sector, &e.ThesisSummary, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		engagements = append(engagements, e)
	}
	return engagements, rows.Err()
}

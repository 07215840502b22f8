package domain

import (
	"time"

	"github.com/google/uuid"
)

// Engagement is a diligence engagement for a single target company.
// All hypotheses, evidence, contradictions and jobs hang off one engagement.
type Engagement struct {
	ID                uuid.UUID `json:"id"`
	TargetCompanyName string    `json:"target_company_name"`
	TickerSymbol      string    `json:"ticker_symbol,omitempty"`
	Sector            string    `json:"sector"`
	ThesisSummary     string    `json:"thesis_summary"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

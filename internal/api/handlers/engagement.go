package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type EngagementHandler struct {
	engagements domain.EngagementStore
}

func NewEngagementHandler(engagements domain.EngagementStore) *EngagementHandler {
	return &EngagementHandler{engagements: engagements}
}

type createEngagementRequest struct {
	TargetCompanyName string `json:"target_company_name"`
	TickerSymbol      string `json:"ticker_symbol,omitempty"`
	Sector            string `json:"sector,omitempty"`
	ThesisSummary     string `json:"thesis_summary"`
}

func (h *EngagementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEngagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.TargetCompanyName) == "" {
		writeError(w, http.StatusBadRequest, "target_company_name is required")
		return
	}

	engagement := &domain.Engagement{
		TargetCompanyName: strings.TrimSpace(req.TargetCompanyName),
		TickerSymbol:      strings.ToUpper(strings.TrimSpace(req.TickerSymbol)),
		Sector:            strings.TrimSpace(req.Sector),
		ThesisSummary:     strings.TrimSpace(req.ThesisSummary),
	}
	if err := h.engagements.Create(r.Context(), engagement); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, engagement)
}

func (h *EngagementHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	engagement, err := h.engagements.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, engagement)
}

func (h *EngagementHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	engagements, err := h.engagements.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engagements": engagements,
		"count":       len(engagements),
	})
}

// engagementID pulls the engagement id URL param shared by the nested
// routes.
func engagementID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "engagementID"))
	return id, err == nil
}

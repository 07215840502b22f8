package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type EvidenceHandler struct {
	evidence domain.EvidenceStore
}

func NewEvidenceHandler(evidence domain.EvidenceStore) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

func (h *EvidenceHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	if raw := r.URL.Query().Get("hypothesis_id"); raw != "" {
		hid, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hypothesis_id")
			return
		}
		items, err := h.evidence.ListByHypothesis(r.Context(), hid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"evidence": items, "count": len(items)})
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	items, err := h.evidence.ListByEngagement(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": items, "count": len(items)})
}

func (h *EvidenceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid evidence id")
		return
	}

	item, err := h.evidence.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type reviewEvidenceRequest struct {
	Sentiment   *string  `json:"sentiment,omitempty"`
	Credibility *float32 `json:"credibility,omitempty"`
}

// Review applies a human reviewer's correction to an item's sentiment
// or credibility. Content is immutable; only the assessment moves.
func (h *EvidenceHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid evidence id")
		return
	}

	var req reviewEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Sentiment == nil && req.Credibility == nil {
		writeError(w, http.StatusBadRequest, "nothing to review: provide sentiment or credibility")
		return
	}

	item, err := h.evidence.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sentiment := item.Sentiment
	if req.Sentiment != nil {
		if !domain.ValidSentiment(*req.Sentiment) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown sentiment %q", *req.Sentiment))
			return
		}
		sentiment = domain.Sentiment(*req.Sentiment)
	}
	credibility := item.Source.CredibilityScore
	if req.Credibility != nil {
		if *req.Credibility < 0 || *req.Credibility > 1 {
			writeError(w, http.StatusBadRequest, "credibility must be within [0,1]")
			return
		}
		credibility = *req.Credibility
	}

	if err := h.evidence.UpdateReview(r.Context(), id, sentiment, credibility); err != nil {
		writeServiceError(w, err)
		return
	}
	item.Sentiment = sentiment
	item.Source.CredibilityScore = credibility
	writeJSON(w, http.StatusOK, item)
}

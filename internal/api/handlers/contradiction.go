package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ContradictionHandler struct {
	contradictions domain.ContradictionStore
}

func NewContradictionHandler(contradictions domain.ContradictionStore) *ContradictionHandler {
	return &ContradictionHandler{contradictions: contradictions}
}

func (h *ContradictionHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	items, err := h.contradictions.ListByEngagement(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	unresolved := 0
	for _, c := range items {
		if c.Status == domain.ContradictionUnresolved || c.Status == domain.ContradictionCritical {
			unresolved++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contradictions": items,
		"count":          len(items),
		"unresolved":     unresolved,
	})
}

func (h *ContradictionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contradiction id")
		return
	}

	item, err := h.contradictions.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type resolveContradictionRequest struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
}

// Resolve records the analyst's disposition: explained away, dismissed
// as noise, or escalated to critical.
func (h *ContradictionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contradiction id")
		return
	}

	var req resolveContradictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidContradictionStatus(req.Status) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	status := domain.ContradictionStatus(req.Status)
	if err := h.contradictions.UpdateStatus(r.Context(), id, status, req.Resolution); err != nil {
		writeServiceError(w, err)
		return
	}

	item, err := h.contradictions.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

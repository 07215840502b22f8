package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type HypothesisHandler struct {
	hypotheses domain.HypothesisStore
	edges      domain.EdgeStore
}

func NewHypothesisHandler(hypotheses domain.HypothesisStore, edges domain.EdgeStore) *HypothesisHandler {
	return &HypothesisHandler{hypotheses: hypotheses, edges: edges}
}

func (h *HypothesisHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	nodes, err := h.hypotheses.ListByEngagement(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]any{"hypotheses": nodes, "count": len(nodes)}
	if r.URL.Query().Get("include_edges") == "true" {
		edges, err := h.edges.ListByEngagement(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp["edges"] = edges
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HypothesisHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	node, err := h.hypotheses.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type updateHypothesisRequest struct {
	Content     *string  `json:"content,omitempty"`
	Confidence  *float32 `json:"confidence,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Importance  *float32 `json:"importance,omitempty"`
	Testability *float32 `json:"testability,omitempty"`
}

// Update applies an analyst's edit. This is the only path besides the
// confidence updater that may move confidence or status; marking a
// node refuted here closes it to further automatic updates.
func (h *HypothesisHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hypothesis id")
		return
	}

	var req updateHypothesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := h.hypotheses.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if req.Content != nil {
		if *req.Content == "" {
			writeError(w, http.StatusBadRequest, "content cannot be empty")
			return
		}
		node.Content = *req.Content
	}
	if req.Confidence != nil {
		if *req.Confidence < 0 || *req.Confidence > 1 {
			writeError(w, http.StatusBadRequest, "confidence must be within [0,1]")
			return
		}
		node.Confidence = *req.Confidence
	}
	if req.Status != nil {
		if !domain.ValidHypothesisStatus(*req.Status) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", *req.Status))
			return
		}
		node.Status = domain.HypothesisStatus(*req.Status)
	}
	if req.Importance != nil {
		if *req.Importance < 0 || *req.Importance > 1 {
			writeError(w, http.StatusBadRequest, "importance must be within [0,1]")
			return
		}
		node.Importance = *req.Importance
	}
	if req.Testability != nil {
		if *req.Testability < 0 || *req.Testability > 1 {
			writeError(w, http.StatusBadRequest, "testability must be within [0,1]")
			return
		}
		node.Testability = *req.Testability
	}

	if err := h.hypotheses.Update(r.Context(), node); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

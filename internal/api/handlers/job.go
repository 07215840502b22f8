package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/convictionhq/conviction/internal/domain"
	"github.com/convictionhq/conviction/internal/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type JobHandler struct {
	queue *jobs.Queue
}

func NewJobHandler(queue *jobs.Queue) *JobHandler {
	return &JobHandler{queue: queue}
}

type submitJobRequest struct {
	Thesis         string      `json:"thesis,omitempty"`
	MaxResults     int         `json:"max_results,omitempty"`
	MinCredibility float32     `json:"min_credibility,omitempty"`
	Sources        []string    `json:"sources,omitempty"`
	Intensity      string      `json:"intensity,omitempty"`
	HypothesisIDs  []uuid.UUID `json:"hypothesis_ids,omitempty"`
}

func (r submitJobRequest) config() domain.JobConfig {
	cfg := domain.JobConfig{
		Thesis:         r.Thesis,
		MaxResults:     r.MaxResults,
		MinCredibility: r.MinCredibility,
		Intensity:      domain.Intensity(r.Intensity),
		HypothesisIDs:  r.HypothesisIDs,
	}
	for _, class := range r.Sources {
		cfg.Sources = append(cfg.Sources, domain.SourceClass(class))
	}
	return cfg
}

// SubmitResearch queues a full research run for the engagement. The
// job is accepted, not executed inline: the response is 202 with the
// pending record, and progress streams on the job's event feed.
func (h *JobHandler) SubmitResearch(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.JobResearch)
}

// SubmitStressTest queues an adversarial pass over the engagement's
// hypotheses (all of them, or the subset named in hypothesis_ids).
func (h *JobHandler) SubmitStressTest(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, domain.JobStressTest)
}

func (h *JobHandler) submit(w http.ResponseWriter, r *http.Request, kind domain.JobKind) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.queue.Submit(r.Context(), id, kind, req.config())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.queue.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) ListByEngagement(w http.ResponseWriter, r *http.Request) {
	id, ok := engagementID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid engagement id")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	list, err := h.queue.ListByEngagement(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list, "count": len(list)})
}
